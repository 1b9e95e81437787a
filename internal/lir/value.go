// Package lir 定义栈槽分配所观察的低级 IR
//
// 分配器只通过固定的操作数访问约定（ForEachOperand）观察指令：
// 每个操作数带有一个角色（Input / Alive / Temp / Output / State），
// 分配器据此计算活跃性并在最后把虚拟栈槽改写为具体的帧偏移。
package lir

import "fmt"

// ============================================================================
// 操作数
// ============================================================================

// Kind 操作数种类
type Kind int

const (
	KindIllegal     Kind = iota
	KindRegister         // 机器寄存器
	KindConstant         // 立即数
	KindVirtualSlot      // 虚拟栈槽（待分配）
	KindStackSlot        // 已分配的栈槽（帧偏移）
)

func (k Kind) String() string {
	switch k {
	case KindIllegal:
		return "illegal"
	case KindRegister:
		return "reg"
	case KindConstant:
		return "const"
	case KindVirtualSlot:
		return "vslot"
	case KindStackSlot:
		return "stack"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// Value 操作数
type Value struct {
	Kind Kind
	Reg  int   // KindRegister
	Imm  int64 // KindConstant

	// KindVirtualSlot
	Slot int // 虚拟栈槽 ID
	Unit int // 范围槽内的单元下标

	// KindStackSlot
	Offset int  // 帧内偏移
	Size   int  // 字节数
	Ref    bool // 是否存放对象引用
}

// Reg 寄存器操作数
func Reg(n int) Value {
	return Value{Kind: KindRegister, Reg: n}
}

// Const 立即数操作数
func Const(n int64) Value {
	return Value{Kind: KindConstant, Imm: n}
}

// VirtualSlot 虚拟栈槽操作数
func VirtualSlot(id int) Value {
	return Value{Kind: KindVirtualSlot, Slot: id}
}

// VirtualSlotUnit 引用范围槽第 unit 个单元的操作数
func VirtualSlotUnit(id, unit int) Value {
	return Value{Kind: KindVirtualSlot, Slot: id, Unit: unit}
}

// StackSlot 已分配栈槽操作数
func StackSlot(offset, size int, ref bool) Value {
	return Value{Kind: KindStackSlot, Offset: offset, Size: size, Ref: ref}
}

// IsVirtualSlot 是否为虚拟栈槽
func (v Value) IsVirtualSlot() bool {
	return v.Kind == KindVirtualSlot
}

func (v Value) String() string {
	switch v.Kind {
	case KindRegister:
		return fmt.Sprintf("%%r%d", v.Reg)
	case KindConstant:
		return fmt.Sprintf("$%d", v.Imm)
	case KindVirtualSlot:
		if v.Unit > 0 {
			return fmt.Sprintf("v%d[%d]", v.Slot, v.Unit)
		}
		return fmt.Sprintf("v%d", v.Slot)
	case KindStackSlot:
		if v.Ref {
			return fmt.Sprintf("[sp+%d]:%d:ref", v.Offset, v.Size)
		}
		return fmt.Sprintf("[sp+%d]:%d", v.Offset, v.Size)
	default:
		return "<illegal>"
	}
}

// ============================================================================
// 操作数角色
// ============================================================================

// Mode 操作数角色
type Mode int

const (
	ModeInput  Mode = iota // 指令执行前读取
	ModeAlive              // 整条指令期间保持有效，不能被 temp 覆盖
	ModeTemp               // 临时，指令结束即死亡
	ModeOutput             // 由指令写入
	ModeState              // 辅助状态引用（如调试/去优化信息）
)

func (m Mode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModeAlive:
		return "alive"
	case ModeTemp:
		return "temp"
	case ModeOutput:
		return "output"
	case ModeState:
		return "state"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(m))
	}
}

// IsDef 该角色是否定义（杀死）值
func (m Mode) IsDef() bool {
	return m == ModeTemp || m == ModeOutput
}
