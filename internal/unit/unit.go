// Package unit 从 TOML 描述加载编译单元
//
// 描述文件扮演代码生成器的角色：声明虚拟栈槽、基本块、控制流边和指令，
// 加载时依次向 Builder 申请栈槽、按调用约定登记调用点并构建 LIR。
//
//	name = "example"
//
//	[[slots]]
//	name = "a"
//	kind = "simple"
//	size = 8
//	ref = true
//
//	[[blocks]]
//	name = "entry"
//	succs = ["exit"]
//
//	[[blocks.insts]]
//	op = "store"
//	outputs = ["a"]
//	inputs = ["%1"]
package unit

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"

	"github.com/tangzhangming/slotframe/internal/callconv"
	"github.com/tangzhangming/slotframe/internal/frame"
	"github.com/tangzhangming/slotframe/internal/lir"
	"github.com/tangzhangming/slotframe/internal/stackslot"
)

// Description 编译单元描述
type Description struct {
	Name   string      `toml:"name"`
	Slots  []SlotDesc  `toml:"slots"`
	Blocks []BlockDesc `toml:"blocks"`
}

// SlotDesc 虚拟栈槽描述
type SlotDesc struct {
	Name  string `toml:"name"`
	Kind  string `toml:"kind"`  // simple 或 range
	Size  int    `toml:"size"`  // simple：字节数
	Ref   bool   `toml:"ref"`   // simple：是否存放引用
	Units int    `toml:"units"` // range：单元数
	Refs  []bool `toml:"refs"`  // range：引用位图
}

// BlockDesc 基本块描述
type BlockDesc struct {
	Name  string     `toml:"name"`
	Succs []string   `toml:"succs"`
	Insts []InstDesc `toml:"insts"`
}

// InstDesc 指令描述
// 操作数写法：name（虚拟槽）、name[k]（范围槽单元）、%N（寄存器）、$N（立即数）
type InstDesc struct {
	Op       string   `toml:"op"`
	Inputs   []string `toml:"inputs"`
	Alive    []string `toml:"alive"`
	Temps    []string `toml:"temps"`
	Outputs  []string `toml:"outputs"`
	States   []string `toml:"states"`
	CallArgs []string `toml:"call_args"` // 非空表示调用点
}

// LoadFile 读取描述文件
func LoadFile(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read unit file: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse 解析描述
func Parse(data []byte) (*Description, error) {
	var d Description
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse unit: %w", err)
	}
	if d.Name == "" {
		d.Name = "anonymous"
	}
	return &d, nil
}

// Build 向 b 登记所有栈槽和调用点并构建 LIR 函数
// 描述中的所有问题合并为一个错误返回
func (d *Description) Build(b *stackslot.Builder, conv callconv.Convention) (*lir.Func, error) {
	slots, err := d.registerSlots(b)
	if err != nil {
		return nil, err
	}

	fn := lir.NewFunc(d.Name)
	blocks := make(map[string]*lir.Block, len(d.Blocks))
	for i, bd := range d.Blocks {
		name := bd.Name
		if name == "" {
			name = fmt.Sprintf("B%d", i)
		}
		if _, dup := blocks[name]; dup {
			err = multierr.Append(err, fmt.Errorf("duplicate block %q", name))
			continue
		}
		blocks[name] = fn.NewBlock(name)
	}
	if err != nil {
		return nil, err
	}

	for i, bd := range d.Blocks {
		blk := fn.Blocks[i]
		for _, succ := range bd.Succs {
			target, ok := blocks[succ]
			if !ok {
				err = multierr.Append(err, fmt.Errorf("block %s: unknown successor %q", blk, succ))
				continue
			}
			fn.AddEdge(blk, target)
		}

		for j, id := range bd.Insts {
			inst, ierr := buildInst(id, slots, b)
			if ierr != nil {
				for _, e := range multierr.Errors(ierr) {
					err = multierr.Append(err, fmt.Errorf("block %s inst %d: %w", blk, j, e))
				}
				continue
			}
			if len(id.CallArgs) > 0 {
				size, cerr := callSize(id.CallArgs, conv)
				if cerr != nil {
					err = multierr.Append(err, fmt.Errorf("block %s inst %d: %w", blk, j, cerr))
					continue
				}
				b.NoteCallSite(size)
			}
			blk.Append(inst)
		}
	}
	if err != nil {
		return nil, err
	}
	return fn, nil
}

// registerSlots 按声明顺序申请虚拟槽
func (d *Description) registerSlots(b *stackslot.Builder) (map[string]stackslot.SlotID, error) {
	var err error
	word := b.Config().WordSize
	slots := make(map[string]stackslot.SlotID, len(d.Slots))

	for i, sd := range d.Slots {
		if sd.Name == "" {
			err = multierr.Append(err, fmt.Errorf("slot %d: missing name", i))
			continue
		}
		if _, dup := slots[sd.Name]; dup {
			err = multierr.Append(err, fmt.Errorf("duplicate slot %q", sd.Name))
			continue
		}

		switch strings.ToLower(sd.Kind) {
		case "", "simple":
			class, ok := frame.ClassForBytes(sd.Size)
			if !ok {
				err = multierr.Append(err, fmt.Errorf("slot %q: unsupported size %d", sd.Name, sd.Size))
				continue
			}
			if sd.Ref && sd.Size != word {
				err = multierr.Append(err, fmt.Errorf("slot %q: reference slot must be %d bytes", sd.Name, word))
				continue
			}
			slots[sd.Name] = b.NewSimpleSlot(class, sd.Ref)
		case "range":
			if sd.Units < 0 {
				err = multierr.Append(err, fmt.Errorf("slot %q: negative unit count", sd.Name))
				continue
			}
			if sd.Refs != nil && len(sd.Refs) != sd.Units {
				err = multierr.Append(err, fmt.Errorf("slot %q: %d reference bits for %d units",
					sd.Name, len(sd.Refs), sd.Units))
				continue
			}
			slots[sd.Name] = b.NewRangeSlot(sd.Units, sd.Refs)
		default:
			err = multierr.Append(err, fmt.Errorf("slot %q: unknown kind %q", sd.Name, sd.Kind))
		}
	}
	return slots, err
}

func buildInst(id InstDesc, slots map[string]stackslot.SlotID, b *stackslot.Builder) (*lir.Inst, error) {
	var err error
	inst := lir.NewInst(id.Op)
	parse := func(list []string) []lir.Value {
		vs := make([]lir.Value, 0, len(list))
		for _, s := range list {
			v, perr := ParseOperand(s, slots)
			if perr == nil {
				perr = checkUnit(s, v, b)
			}
			if perr != nil {
				err = multierr.Append(err, perr)
				continue
			}
			vs = append(vs, v)
		}
		return vs
	}

	inst.In(parse(id.Inputs)...)
	inst.Keep(parse(id.Alive)...)
	inst.Temp(parse(id.Temps)...)
	inst.Out(parse(id.Outputs)...)
	inst.State(parse(id.States)...)
	return inst, err
}

// ParseOperand 解析操作数
func ParseOperand(s string, slots map[string]stackslot.SlotID) (lir.Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return lir.Value{}, fmt.Errorf("empty operand")
	case strings.HasPrefix(s, "%"):
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimPrefix(s, "%"), "r"))
		if err != nil || n < 0 {
			return lir.Value{}, fmt.Errorf("invalid register %q", s)
		}
		return lir.Reg(n), nil
	case strings.HasPrefix(s, "$"):
		n, err := strconv.ParseInt(s[1:], 0, 64)
		if err != nil {
			return lir.Value{}, fmt.Errorf("invalid constant %q", s)
		}
		return lir.Const(n), nil
	}

	name, unit := s, 0
	if i := strings.IndexByte(s, '['); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return lir.Value{}, fmt.Errorf("invalid slot operand %q", s)
		}
		n, err := strconv.Atoi(s[i+1 : len(s)-1])
		if err != nil || n < 0 {
			return lir.Value{}, fmt.Errorf("invalid unit index in %q", s)
		}
		name, unit = s[:i], n
	}

	id, ok := slots[name]
	if !ok {
		return lir.Value{}, fmt.Errorf("unknown slot %q", name)
	}
	return lir.VirtualSlotUnit(int(id), unit), nil
}

// checkUnit 校验槽操作数的单元下标：简单槽只有单元 0，范围槽不超过其单元数
func checkUnit(s string, v lir.Value, b *stackslot.Builder) error {
	if !v.IsVirtualSlot() {
		return nil
	}
	id := stackslot.SlotID(v.Slot)
	if id == stackslot.NoSlot {
		if v.Unit != 0 {
			return fmt.Errorf("operand %q: empty range has no unit %d", s, v.Unit)
		}
		return nil
	}

	switch slot := b.Slot(id).(type) {
	case *stackslot.SimpleSlot:
		if v.Unit != 0 {
			return fmt.Errorf("operand %q: simple slot has no unit %d", s, v.Unit)
		}
	case *stackslot.RangeSlot:
		if v.Unit >= slot.Units {
			return fmt.Errorf("operand %q: unit %d out of range (%d units)", s, v.Unit, slot.Units)
		}
	default:
		panic(fmt.Sprintf("unit: unknown slot shape %T", slot))
	}
	return nil
}

func callSize(args []string, conv callconv.Convention) (int, error) {
	classes := make([]callconv.ArgClass, 0, len(args))
	for _, a := range args {
		c, err := callconv.ParseArgClass(a)
		if err != nil {
			return 0, err
		}
		classes = append(classes, c)
	}
	return conv.OutgoingSize(classes), nil
}
