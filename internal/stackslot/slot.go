// Package stackslot 为代码生成器无法放进寄存器的临时值分配栈槽
//
// 流程：
// 1. 代码生成期间通过 Builder 申请虚拟栈槽并记录调用点
// 2. Finalize 时对指令流做后向活跃性分析，得到每个虚拟槽的活跃区间
// 3. 按区间起点线性扫描，为区间分配新的物理槽或复用同尺寸空闲槽
// 4. 冻结 Frame Map 后一次性把指令中的虚拟槽改写为帧偏移
package stackslot

import (
	"fmt"

	"github.com/tangzhangming/slotframe/internal/frame"
)

// SlotID 虚拟栈槽 ID（稠密、非负、永不复用）
type SlotID int

// NoSlot 零长度范围请求返回的哨兵 ID，改写时直接跳过
const NoSlot SlotID = -1

// VirtualSlot 虚拟栈槽，只有 *SimpleSlot 和 *RangeSlot 两种形态
type VirtualSlot interface {
	ID() SlotID
	isVirtualSlot()
}

// SimpleSlot 单个存储单元
type SimpleSlot struct {
	id    SlotID
	Class frame.SizeClass
	Ref   bool
}

// ID 返回槽 ID
func (s *SimpleSlot) ID() SlotID { return s.id }

func (*SimpleSlot) isVirtualSlot() {}

func (s *SimpleSlot) String() string {
	if s.Ref {
		return fmt.Sprintf("v%d:%s:ref", s.id, s.Class)
	}
	return fmt.Sprintf("v%d:%s", s.id, s.Class)
}

// RangeSlot 连续 Units 个字单元，RefMap 标记哪些单元存放引用
// 范围槽整体申请，永不被部分复用
type RangeSlot struct {
	id     SlotID
	Units  int
	RefMap []bool
}

// ID 返回槽 ID
func (s *RangeSlot) ID() SlotID { return s.id }

func (*RangeSlot) isVirtualSlot() {}

func (s *RangeSlot) String() string {
	return fmt.Sprintf("v%d:range[%d]", s.id, s.Units)
}
