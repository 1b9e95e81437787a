package stackslot

import (
	"fmt"

	"github.com/tangzhangming/slotframe/internal/frame"
)

// freeLists 按（尺寸类别, 是否引用）分桶的空闲物理槽表
// 只收简单槽；同一桶内按 LIFO 复用
type freeLists struct {
	buckets [frame.NumSizeClasses][2][]frame.PhysicalSlot
}

func refIndex(ref bool) int {
	if ref {
		return 1
	}
	return 0
}

// push 归还一个物理槽
func (f *freeLists) push(slot frame.PhysicalSlot) {
	if slot.IsRange() {
		panic(fmt.Sprintf("stackslot: range slot %s returned to free list", slot))
	}
	b := &f.buckets[slot.Class][refIndex(slot.Ref)]
	*b = append(*b, slot)
}

// pop 取出一个尺寸类别和引用标记都精确匹配的空闲槽
func (f *freeLists) pop(class frame.SizeClass, ref bool) (frame.PhysicalSlot, bool) {
	b := &f.buckets[class][refIndex(ref)]
	if len(*b) == 0 {
		return frame.PhysicalSlot{}, false
	}
	slot := (*b)[len(*b)-1]
	*b = (*b)[:len(*b)-1]
	return slot, true
}

// size 空闲槽总数
func (f *freeLists) size() int {
	n := 0
	for c := range f.buckets {
		for r := range f.buckets[c] {
			n += len(f.buckets[c][r])
		}
	}
	return n
}
