package lir

import (
	"fmt"
	"strings"
)

// ============================================================================
// 指令
// ============================================================================

// Inst LIR 指令
type Inst struct {
	ID int    // 指令位置（op id），由 Func.NumberInstructions 赋值
	Op string // 操作名

	Inputs  []Value
	Alive   []Value
	Temps   []Value
	Outputs []Value
	States  []Value
}

// NewInst 创建指令
func NewInst(op string) *Inst {
	return &Inst{ID: -1, Op: op}
}

// In 追加 input 操作数
func (inst *Inst) In(vs ...Value) *Inst {
	inst.Inputs = append(inst.Inputs, vs...)
	return inst
}

// Keep 追加 alive 操作数
func (inst *Inst) Keep(vs ...Value) *Inst {
	inst.Alive = append(inst.Alive, vs...)
	return inst
}

// Temp 追加 temp 操作数
func (inst *Inst) Temp(vs ...Value) *Inst {
	inst.Temps = append(inst.Temps, vs...)
	return inst
}

// Out 追加 output 操作数
func (inst *Inst) Out(vs ...Value) *Inst {
	inst.Outputs = append(inst.Outputs, vs...)
	return inst
}

// State 追加 state 操作数
func (inst *Inst) State(vs ...Value) *Inst {
	inst.States = append(inst.States, vs...)
	return inst
}

// OperandFunc 操作数访问回调，可以就地修改操作数
type OperandFunc func(v *Value, mode Mode)

// ForEachOperand 按 input、alive、temp、output、state 的顺序访问所有操作数
func (inst *Inst) ForEachOperand(fn OperandFunc) {
	visit := func(vs []Value, mode Mode) {
		for i := range vs {
			fn(&vs[i], mode)
		}
	}
	visit(inst.Inputs, ModeInput)
	visit(inst.Alive, ModeAlive)
	visit(inst.Temps, ModeTemp)
	visit(inst.Outputs, ModeOutput)
	visit(inst.States, ModeState)
}

// String 返回指令的字符串表示
func (inst *Inst) String() string {
	var sb strings.Builder
	if len(inst.Outputs) > 0 {
		sb.WriteString(joinValues(inst.Outputs))
		sb.WriteString(" = ")
	}
	sb.WriteString(inst.Op)
	if len(inst.Inputs) > 0 {
		sb.WriteString(" ")
		sb.WriteString(joinValues(inst.Inputs))
	}
	if len(inst.Alive) > 0 {
		sb.WriteString(" alive(" + joinValues(inst.Alive) + ")")
	}
	if len(inst.Temps) > 0 {
		sb.WriteString(" temp(" + joinValues(inst.Temps) + ")")
	}
	if len(inst.States) > 0 {
		sb.WriteString(" state(" + joinValues(inst.States) + ")")
	}
	return sb.String()
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// ============================================================================
// 基本块与函数
// ============================================================================

// Block 基本块
type Block struct {
	ID    int
	Name  string
	Insts []*Inst
	Succs []*Block
	Preds []*Block
}

// Append 追加指令
func (b *Block) Append(insts ...*Inst) *Block {
	b.Insts = append(b.Insts, insts...)
	return b
}

// FirstID 块内第一条指令的 op id，空块返回 -1
func (b *Block) FirstID() int {
	if len(b.Insts) == 0 {
		return -1
	}
	return b.Insts[0].ID
}

// LastID 块内最后一条指令的 op id，空块返回 -1
func (b *Block) LastID() int {
	if len(b.Insts) == 0 {
		return -1
	}
	return b.Insts[len(b.Insts)-1].ID
}

func (b *Block) String() string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("B%d", b.ID)
}

// Func LIR 函数（编译单元）
type Func struct {
	Name   string
	Blocks []*Block // 线性块顺序
}

// NewFunc 创建函数
func NewFunc(name string) *Func {
	return &Func{Name: name}
}

// NewBlock 按线性顺序追加一个新块
func (f *Func) NewBlock(name string) *Block {
	b := &Block{ID: len(f.Blocks), Name: name}
	f.Blocks = append(f.Blocks, b)
	return b
}

// AddEdge 添加控制流边 from -> to，同时维护前驱列表
func (f *Func) AddEdge(from, to *Block) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// NumberInstructions 按块顺序为所有指令分配严格递增的 op id，返回指令总数
func (f *Func) NumberInstructions() int {
	id := 0
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			inst.ID = id
			id++
		}
	}
	return id
}

// ForEachInst 按块顺序访问所有指令
func (f *Func) ForEachInst(fn func(b *Block, inst *Inst)) {
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			fn(b, inst)
		}
	}
}

// ============================================================================
// LIR 打印器
// ============================================================================

// String 打印函数
func (f *Func) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("func %s\n", f.Name))
	for _, b := range f.Blocks {
		sb.WriteString(b.String())
		sb.WriteString(":")
		if len(b.Succs) > 0 {
			names := make([]string, len(b.Succs))
			for i, s := range b.Succs {
				names[i] = s.String()
			}
			sb.WriteString(" -> " + strings.Join(names, ", "))
		}
		sb.WriteString("\n")
		for _, inst := range b.Insts {
			sb.WriteString(fmt.Sprintf("%4d: %s\n", inst.ID, inst.String()))
		}
	}
	return sb.String()
}
