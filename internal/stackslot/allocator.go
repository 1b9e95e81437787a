// allocator.go - 基于活跃区间的栈槽分配
//
// 线性扫描：
// 1. 区间按起点升序排序，起点相同时按槽 ID 升序（保证确定性）
// 2. 处理每个区间前，先释放所有终点早于其起点的活跃区间
// 3. 范围槽总是新分配，永不进入或取自空闲表
// 4. 简单槽优先从同尺寸、同引用标记的空闲桶复用，否则新分配
// 5. 区间加入按终点排序的活跃表
//
// 两个区间共享物理槽，当且仅当包络不相交且尺寸类别完全一致。

package stackslot

import (
	"fmt"
	"sort"

	"github.com/tangzhangming/slotframe/internal/frame"
)

// intervalAllocator 区间分配器，每个编译单元一个实例
type intervalAllocator struct {
	fm     *frame.Map
	free   freeLists
	active []*Interval // 按 To 升序
	obs    Observer
	stats  *Stats
}

func newIntervalAllocator(fm *frame.Map, obs Observer, stats *Stats) *intervalAllocator {
	return &intervalAllocator{fm: fm, obs: obs, stats: stats}
}

// allocate 为所有区间分配物理槽；nil 项（未引用的槽）被跳过
func (a *intervalAllocator) allocate(intervals []*Interval) {
	sorted := make([]*Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv != nil {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		return sorted[i].Slot.ID() < sorted[j].Slot.ID()
	})

	a.active = a.active[:0]
	for _, current := range sorted {
		a.expireOldIntervals(current)
		reused := a.assign(current)
		a.obs.IntervalAssigned(current, reused)
		a.addToActive(current)
	}
}

// expireOldIntervals 释放终点早于 current 起点的活跃区间
func (a *intervalAllocator) expireOldIntervals(current *Interval) {
	n := 0
	for n < len(a.active) && a.active[n].To < current.From {
		expired := a.active[n]
		switch expired.Slot.(type) {
		case *SimpleSlot:
			a.free.push(expired.Phys)
		case *RangeSlot:
			// 范围槽不复用
		default:
			panic(fmt.Sprintf("stackslot: unknown slot shape %T", expired.Slot))
		}
		n++
	}
	a.active = append(a.active[:0], a.active[n:]...)
}

// assign 为区间分配物理槽，返回是否复用了空闲槽
func (a *intervalAllocator) assign(iv *Interval) bool {
	reused := false
	switch s := iv.Slot.(type) {
	case *RangeSlot:
		iv.Phys = a.fm.AllocateRange(s.Units, s.RefMap)
		a.stats.RangeSlots++
	case *SimpleSlot:
		if slot, ok := a.free.pop(s.Class, s.Ref); ok {
			iv.Phys = slot
			reused = true
			a.stats.Reused++
		} else {
			iv.Phys = a.fm.Allocate(s.Class, s.Ref)
			a.stats.Fresh++
		}
	default:
		panic(fmt.Sprintf("stackslot: unknown slot shape %T", iv.Slot))
	}
	iv.Assigned = true
	return reused
}

// addToActive 将区间加入活跃表（保持按结束位置排序）
func (a *intervalAllocator) addToActive(iv *Interval) {
	i := sort.Search(len(a.active), func(i int) bool {
		return a.active[i].To > iv.To
	})
	a.active = append(a.active, nil)
	copy(a.active[i+1:], a.active[i:])
	a.active[i] = iv
}

// allocateSimple 简单策略：每个已登记的槽按 ID 顺序独占一个新物理槽
func allocateSimple(fm *frame.Map, slots []VirtualSlot, obs Observer, stats *Stats) []*Interval {
	intervals := make([]*Interval, len(slots))
	for i, slot := range slots {
		iv := newInterval(slot)
		switch s := slot.(type) {
		case *SimpleSlot:
			iv.Phys = fm.Allocate(s.Class, s.Ref)
			stats.Fresh++
		case *RangeSlot:
			iv.Phys = fm.AllocateRange(s.Units, s.RefMap)
			stats.RangeSlots++
		default:
			panic(fmt.Sprintf("stackslot: unknown slot shape %T", slot))
		}
		iv.Assigned = true
		obs.IntervalAssigned(iv, false)
		intervals[i] = iv
	}
	return intervals
}
