package stackslot

import (
	"fmt"

	"github.com/tangzhangming/slotframe/internal/frame"
	"github.com/tangzhangming/slotframe/internal/lir"
)

// rewrite 把所有虚拟槽操作数替换为帧偏移
// 每个编译单元只能执行一次：改写后操作数中不再有虚拟槽 ID
func rewrite(fn *lir.Func, fm *frame.Map, intervals []*Interval) int {
	word := fm.Config().WordSize
	count := 0

	fn.ForEachInst(func(b *lir.Block, inst *lir.Inst) {
		inst.ForEachOperand(func(v *lir.Value, mode lir.Mode) {
			if !v.IsVirtualSlot() || SlotID(v.Slot) == NoSlot {
				return
			}
			if v.Slot < 0 || v.Slot >= len(intervals) {
				panic(fmt.Sprintf("stackslot: %s@%d: unknown slot v%d", b, inst.ID, v.Slot))
			}
			iv := intervals[v.Slot]
			if iv == nil || !iv.Assigned {
				panic(fmt.Sprintf("stackslot: %s@%d: slot v%d has no interval", b, inst.ID, v.Slot))
			}

			base := fm.Offset(iv.Phys)
			switch s := iv.Slot.(type) {
			case *SimpleSlot:
				if v.Unit != 0 {
					panic(fmt.Sprintf("stackslot: %s@%d: unit %d of simple slot v%d", b, inst.ID, v.Unit, v.Slot))
				}
				*v = lir.StackSlot(base, iv.Phys.Size(), iv.Phys.Ref)
			case *RangeSlot:
				if v.Unit < 0 || v.Unit >= s.Units {
					panic(fmt.Sprintf("stackslot: %s@%d: unit %d out of range v%d[%d]", b, inst.ID, v.Unit, v.Slot, s.Units))
				}
				*v = lir.StackSlot(base+v.Unit*word, word, iv.Phys.UnitRef(v.Unit))
			default:
				panic(fmt.Sprintf("stackslot: unknown slot shape %T", iv.Slot))
			}
			count++
		})
	})
	return count
}
