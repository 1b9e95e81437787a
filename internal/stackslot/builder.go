package stackslot

import (
	"fmt"

	"github.com/tangzhangming/slotframe/internal/frame"
	"github.com/tangzhangming/slotframe/internal/lir"
)

// ============================================================================
// 分配策略
// ============================================================================

// Strategy 分配策略
type Strategy int

const (
	StrategyInterval Strategy = iota // 基于活跃区间，复用栈槽
	StrategySimple                   // 每个虚拟槽独占一个物理槽
)

func (s Strategy) String() string {
	switch s {
	case StrategyInterval:
		return "interval"
	case StrategySimple:
		return "simple"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ParseStrategy 解析策略名
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "interval":
		return StrategyInterval, nil
	case "simple":
		return StrategySimple, nil
	default:
		return 0, fmt.Errorf("unknown allocation strategy %q", name)
	}
}

// Stats 单个编译单元的分配统计
type Stats struct {
	Slots        int // 已登记的虚拟槽
	Intervals    int // 参与分配的区间
	Fresh        int // 新分配的简单槽
	Reused       int // 从空闲表复用的简单槽
	RangeSlots   int // 范围槽
	CallSites    int // 调用点
	LivenessPops int // 活跃性工作表弹出次数
	Rewritten    int // 改写的操作数
}

// ============================================================================
// Builder
// ============================================================================

// Option Builder 选项
type Option func(*Builder)

// WithObserver 注入观察者
func WithObserver(obs Observer) Option {
	return func(b *Builder) {
		if obs != nil {
			b.obs = obs
		}
	}
}

// WithVerify 分配完成后校验结果
func WithVerify(verify bool) Option {
	return func(b *Builder) {
		b.verify = verify
	}
}

// Builder 虚拟栈槽登记表，每个编译单元一个实例
type Builder struct {
	cfg    frame.Config
	obs    Observer
	verify bool

	slots     []VirtualSlot
	callSites []int

	finalized bool
	intervals []*Interval
	liveness  *Liveness
	stats     Stats
}

// NewBuilder 创建 Builder
func NewBuilder(cfg frame.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg: cfg,
		obs: NopObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewSimpleSlot 申请一个简单虚拟槽
// 引用槽必须是机器字大小
func (b *Builder) NewSimpleSlot(class frame.SizeClass, ref bool) SlotID {
	b.checkOpen("NewSimpleSlot")
	if !class.Valid() {
		panic(fmt.Sprintf("stackslot: invalid size class %d", int(class)))
	}
	if ref && class != b.cfg.WordClass() {
		panic(fmt.Sprintf("stackslot: reference slot must be word sized, got %s", class))
	}

	s := &SimpleSlot{id: SlotID(len(b.slots)), Class: class, Ref: ref}
	b.slots = append(b.slots, s)
	b.obs.SlotCreated(s)
	return s.id
}

// NewRangeSlot 申请 units 个连续字单元，refMap 标记存放引用的单元
// units 为 0 时不分配任何东西，返回 NoSlot
func (b *Builder) NewRangeSlot(units int, refMap []bool) SlotID {
	b.checkOpen("NewRangeSlot")
	if units < 0 {
		panic(fmt.Sprintf("stackslot: negative range size %d", units))
	}
	if units == 0 {
		return NoSlot
	}
	if refMap != nil && len(refMap) != units {
		panic(fmt.Sprintf("stackslot: reference bitmap has %d bits for %d units", len(refMap), units))
	}

	bitmap := make([]bool, units)
	copy(bitmap, refMap)
	s := &RangeSlot{id: SlotID(len(b.slots)), Units: units, RefMap: bitmap}
	b.slots = append(b.slots, s)
	b.obs.SlotCreated(s)
	return s.id
}

// NoteCallSite 记录一个调用点的出参区需求（字节）
func (b *Builder) NoteCallSite(argAreaSize int) {
	b.checkOpen("NoteCallSite")
	if argAreaSize < 0 {
		panic(fmt.Sprintf("stackslot: negative argument area size %d", argAreaSize))
	}
	b.callSites = append(b.callSites, argAreaSize)
}

// Config 返回帧配置
func (b *Builder) Config() frame.Config {
	return b.cfg
}

// Slot 按 ID 查找虚拟槽
func (b *Builder) Slot(id SlotID) VirtualSlot {
	if id < 0 || int(id) >= len(b.slots) {
		panic(fmt.Sprintf("stackslot: unknown slot v%d", id))
	}
	return b.slots[id]
}

// NumSlots 已登记的虚拟槽数量
func (b *Builder) NumSlots() int {
	return len(b.slots)
}

// Finalize 分配所有虚拟槽、冻结帧大小并改写指令流，只能调用一次
//
// 帧大小超过上限时返回包装了 frame.ErrFrameTooLarge 的错误，此时指令流不被改写。
func (b *Builder) Finalize(fn *lir.Func, strategy Strategy) (*frame.Map, error) {
	if b.finalized {
		panic("stackslot: Finalize called twice")
	}
	b.finalized = true

	fn.NumberInstructions()
	fm := frame.NewMap(b.cfg)
	b.stats.Slots = len(b.slots)
	b.stats.CallSites = len(b.callSites)

	switch strategy {
	case StrategyInterval:
		la := &livenessAnalyzer{fn: fn, slots: b.slots}
		b.liveness = la.analyze()
		b.stats.LivenessPops = b.liveness.Pops
		b.obs.LivenessConverged(fn, b.liveness)

		b.intervals = b.liveness.Intervals
		newIntervalAllocator(fm, b.obs, &b.stats).allocate(b.intervals)
	case StrategySimple:
		b.intervals = allocateSimple(fm, b.slots, b.obs, &b.stats)
	default:
		panic(fmt.Sprintf("stackslot: unknown strategy %d", int(strategy)))
	}
	for _, iv := range b.intervals {
		if iv != nil {
			b.stats.Intervals++
		}
	}

	for _, size := range b.callSites {
		fm.ReserveOutgoing(size)
	}
	if err := fm.Finish(); err != nil {
		return nil, fmt.Errorf("stackslot: %s: %w", fn.Name, err)
	}

	if b.verify {
		if err := Verify(b.intervals, fm); err != nil {
			return nil, fmt.Errorf("stackslot: %s: verification failed: %w", fn.Name, err)
		}
	}

	b.stats.Rewritten = rewrite(fn, fm, b.intervals)
	b.obs.FrameFinished(fn, fm)
	return fm, nil
}

// Intervals 返回按槽 ID 索引的活跃区间（Finalize 之后有效）
func (b *Builder) Intervals() []*Interval {
	return b.intervals
}

// Liveness 返回活跃性分析结果；简单策略下为 nil
func (b *Builder) Liveness() *Liveness {
	return b.liveness
}

// Stats 返回分配统计
func (b *Builder) Stats() Stats {
	return b.stats
}

func (b *Builder) checkOpen(op string) {
	if b.finalized {
		panic("stackslot: " + op + " after Finalize")
	}
}
