package stackslot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tangzhangming/slotframe/internal/frame"
)

// ============================================================================
// 活跃区间
// ============================================================================

// Range 闭区间 [From, To]，端点为 op id
type Range struct {
	From int
	To   int
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.From, r.To)
}

// Interval 虚拟槽的活跃区间
// Ranges 有序且互不相交；From/To 是所有 Ranges 的包络，调度只使用包络
type Interval struct {
	Slot   VirtualSlot
	Ranges []Range
	From   int
	To     int

	Assigned bool
	Phys     frame.PhysicalSlot
}

func newInterval(slot VirtualSlot) *Interval {
	return &Interval{Slot: slot, From: -1, To: -1}
}

// addRange 加入 [from, to] 并与已有区间合并；区间只会变宽
func (iv *Interval) addRange(from, to int) {
	if from > to {
		panic(fmt.Sprintf("stackslot: inverted range [%d,%d] for v%d", from, to, iv.Slot.ID()))
	}

	i := sort.Search(len(iv.Ranges), func(i int) bool {
		return iv.Ranges[i].To+1 >= from
	})
	j := i
	for j < len(iv.Ranges) && iv.Ranges[j].From <= to+1 {
		if iv.Ranges[j].From < from {
			from = iv.Ranges[j].From
		}
		if iv.Ranges[j].To > to {
			to = iv.Ranges[j].To
		}
		j++
	}

	merged := append([]Range{}, iv.Ranges[:i]...)
	merged = append(merged, Range{From: from, To: to})
	iv.Ranges = append(merged, iv.Ranges[j:]...)

	iv.From = iv.Ranges[0].From
	iv.To = iv.Ranges[len(iv.Ranges)-1].To
}

// Covers 位置 pos 是否在区间内
func (iv *Interval) Covers(pos int) bool {
	i := sort.Search(len(iv.Ranges), func(i int) bool {
		return iv.Ranges[i].To >= pos
	})
	return i < len(iv.Ranges) && iv.Ranges[i].From <= pos
}

// Overlaps 两个区间是否有共同位置
func (iv *Interval) Overlaps(other *Interval) bool {
	i, j := 0, 0
	for i < len(iv.Ranges) && j < len(other.Ranges) {
		a, b := iv.Ranges[i], other.Ranges[j]
		if a.From <= b.To && b.From <= a.To {
			return true
		}
		if a.To < b.To {
			i++
		} else {
			j++
		}
	}
	return false
}

// IsRange 区间是否属于范围槽
func (iv *Interval) IsRange() bool {
	_, ok := iv.Slot.(*RangeSlot)
	return ok
}

func (iv *Interval) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("v%d", iv.Slot.ID()))
	for _, r := range iv.Ranges {
		sb.WriteString(" ")
		sb.WriteString(r.String())
	}
	if iv.Assigned {
		sb.WriteString(" -> ")
		sb.WriteString(iv.Phys.String())
	}
	return sb.String()
}
