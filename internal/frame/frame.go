package frame

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrFrameTooLarge 冻结后的帧大小超过配置上限
var ErrFrameTooLarge = errors.New("frame size exceeds limit")

// ============================================================================
// 配置
// ============================================================================

// Config 帧布局配置（只读，可在多个编译单元间共享）
type Config struct {
	MaxSize   int // 帧大小上限（字节），0 表示不限制
	Alignment int // 帧整体对齐（字节）
	WordSize  int // 范围槽单元大小（字节）
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxSize:   1 << 20,
		Alignment: 16,
		WordSize:  8,
	}
}

// WordClass 返回机器字对应的尺寸类别
func (c Config) WordClass() SizeClass {
	class, ok := ClassForBytes(c.WordSize)
	if !ok {
		panic(fmt.Sprintf("frame: unsupported word size %d", c.WordSize))
	}
	return class
}

// ============================================================================
// 物理槽
// ============================================================================

// PhysicalSlot 物理栈槽，只能由 Map 产生，分配后不可变
type PhysicalSlot struct {
	Index       int       // 在 Map 中的分配序号
	SpillOffset int       // 相对溢出区起点的偏移
	Class       SizeClass // 尺寸类别（范围槽为单元的类别）
	Ref         bool      // 是否可能存放对象引用（范围槽见 RefMap）
	Units       int       // 范围槽的单元数，简单槽为 0
	RefMap      []bool    // 范围槽的引用位图
}

// IsRange 是否为范围槽
func (s PhysicalSlot) IsRange() bool {
	return s.Units > 0
}

// Size 槽占用的总字节数
func (s PhysicalSlot) Size() int {
	if s.IsRange() {
		return s.Units * s.Class.Bytes()
	}
	return s.Class.Bytes()
}

// UnitRef 范围槽第 unit 个单元是否存放引用
func (s PhysicalSlot) UnitRef(unit int) bool {
	if !s.IsRange() {
		return s.Ref
	}
	return unit < len(s.RefMap) && s.RefMap[unit]
}

func (s PhysicalSlot) String() string {
	if s.IsRange() {
		return fmt.Sprintf("spill+%d[%dx%s]", s.SpillOffset, s.Units, s.Class)
	}
	if s.Ref {
		return fmt.Sprintf("spill+%d:%s:ref", s.SpillOffset, s.Class)
	}
	return fmt.Sprintf("spill+%d:%s", s.SpillOffset, s.Class)
}

// ============================================================================
// Frame Map
// ============================================================================

// Map 栈帧布局
//
// 布局（低地址在上）：
//
//	| outgoing args | <- sp + 0
//	|---------------|
//	| spill area    | <- sp + SpillBase()
//	|---------------|
//	| padding       |
//	|---------------| <- sp + TotalSize()
type Map struct {
	cfg Config

	spillSize    int
	outgoingSize int
	refs         []int // 引用单元（相对溢出区偏移）
	slots        []PhysicalSlot

	totalSize int
	finished  bool
}

// NewMap 创建空的 Frame Map
func NewMap(cfg Config) *Map {
	if cfg.Alignment <= 0 {
		cfg.Alignment = DefaultConfig().Alignment
	}
	if cfg.WordSize <= 0 {
		cfg.WordSize = DefaultConfig().WordSize
	}
	return &Map{cfg: cfg}
}

// Config 返回帧配置
func (m *Map) Config() Config {
	return m.cfg
}

// Allocate 在溢出区按自然对齐 bump 分配一个简单槽
func (m *Map) Allocate(class SizeClass, ref bool) PhysicalSlot {
	m.checkMutable("Allocate")
	if !class.Valid() {
		panic(fmt.Sprintf("frame: invalid size class %d", int(class)))
	}

	offset := AlignUp(m.spillSize, class.Align())
	m.spillSize = offset + class.Bytes()

	slot := PhysicalSlot{
		Index:       len(m.slots),
		SpillOffset: offset,
		Class:       class,
		Ref:         ref,
	}
	m.slots = append(m.slots, slot)
	if ref {
		m.refs = append(m.refs, offset)
	}
	return slot
}

// AllocateRange 在溢出区 bump 分配 units 个连续的字单元
// refMap 中置位的单元额外登记为引用单元；refMap 为 nil 表示没有引用
func (m *Map) AllocateRange(units int, refMap []bool) PhysicalSlot {
	m.checkMutable("AllocateRange")
	if units <= 0 {
		panic(fmt.Sprintf("frame: AllocateRange with %d units", units))
	}
	if refMap != nil && len(refMap) != units {
		panic(fmt.Sprintf("frame: reference bitmap has %d bits for %d units", len(refMap), units))
	}

	class := m.cfg.WordClass()
	word := class.Bytes()
	offset := AlignUp(m.spillSize, word)
	m.spillSize = offset + units*word

	bitmap := make([]bool, units)
	copy(bitmap, refMap)

	slot := PhysicalSlot{
		Index:       len(m.slots),
		SpillOffset: offset,
		Class:       class,
		Units:       units,
		RefMap:      bitmap,
	}
	m.slots = append(m.slots, slot)
	for i, ref := range bitmap {
		if ref {
			m.refs = append(m.refs, offset+i*word)
		}
	}
	return slot
}

// ReserveOutgoing 将出参区扩大到 max(当前, size)
func (m *Map) ReserveOutgoing(size int) {
	m.checkMutable("ReserveOutgoing")
	if size < 0 {
		panic(fmt.Sprintf("frame: negative outgoing size %d", size))
	}
	if size > m.outgoingSize {
		m.outgoingSize = size
	}
}

// Finish 计算并冻结帧大小，只能调用一次
// 帧大小为 align(SpillBase + spill)，不是 align(outgoing + spill)：
// 出参区之上填充到 16 字节边界，Size16 槽在帧内保持 16 字节对齐
// 超过上限时返回包装了 ErrFrameTooLarge 的错误，调用方应放弃编译该单元
func (m *Map) Finish() error {
	if m.finished {
		panic("frame: Finish called twice")
	}
	m.finished = true
	m.totalSize = AlignUp(m.SpillBase()+m.spillSize, m.cfg.Alignment)

	if m.cfg.MaxSize > 0 && m.totalSize > m.cfg.MaxSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, m.totalSize, m.cfg.MaxSize)
	}
	return nil
}

func (m *Map) checkMutable(op string) {
	if m.finished {
		panic("frame: " + op + " after Finish")
	}
}

// ============================================================================
// 查询
// ============================================================================

// Finished 帧大小是否已冻结
func (m *Map) Finished() bool {
	return m.finished
}

// SpillSize 溢出区当前大小
func (m *Map) SpillSize() int {
	return m.spillSize
}

// OutgoingSize 出参区大小
func (m *Map) OutgoingSize() int {
	return m.outgoingSize
}

// SpillBase 溢出区在帧内的起始偏移
// 对齐到最大尺寸类别，保证溢出区内的自然对齐在帧内依然成立
func (m *Map) SpillBase() int {
	return AlignUp(m.outgoingSize, Size16.Bytes())
}

// TotalSize 冻结后的帧大小
func (m *Map) TotalSize() int {
	if !m.finished {
		panic("frame: TotalSize before Finish")
	}
	return m.totalSize
}

// Offset 物理槽在帧内的最终偏移
func (m *Map) Offset(slot PhysicalSlot) int {
	if !m.finished {
		panic("frame: Offset before Finish")
	}
	return m.SpillBase() + slot.SpillOffset
}

// ReferenceOffsets 所有引用单元的最终帧偏移（升序）
func (m *Map) ReferenceOffsets() []int {
	if !m.finished {
		panic("frame: ReferenceOffsets before Finish")
	}
	base := m.SpillBase()
	offsets := make([]int, len(m.refs))
	for i, off := range m.refs {
		offsets[i] = base + off
	}
	sort.Ints(offsets)
	return offsets
}

// Slots 按分配顺序返回所有物理槽（副本）
func (m *Map) Slots() []PhysicalSlot {
	slots := make([]PhysicalSlot, len(m.slots))
	for i, s := range m.slots {
		if s.RefMap != nil {
			s.RefMap = append([]bool(nil), s.RefMap...)
		}
		slots[i] = s
	}
	return slots
}

// String 返回帧布局的文本表示
func (m *Map) String() string {
	var sb strings.Builder
	if m.finished {
		sb.WriteString(fmt.Sprintf("frame size=%d outgoing=%d spill=%d\n", m.totalSize, m.outgoingSize, m.spillSize))
	} else {
		sb.WriteString(fmt.Sprintf("frame (open) outgoing=%d spill=%d\n", m.outgoingSize, m.spillSize))
	}
	for _, s := range m.slots {
		sb.WriteString(fmt.Sprintf("  #%d %s\n", s.Index, s))
	}
	if m.finished && len(m.refs) > 0 {
		sb.WriteString(fmt.Sprintf("  refs %v\n", m.ReferenceOffsets()))
	}
	return sb.String()
}
