package stackslot

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/tangzhangming/slotframe/internal/frame"
)

// Verify 校验分配结果，返回所有违规的合并错误：
//   - 共享物理槽的区间互不重叠
//   - 复用的物理槽与区间的尺寸类别、引用标记一致
//   - 范围槽分配的物理槽只属于一个区间
//   - 引用单元与 Frame Map 的引用偏移表完全一致
//
// fm 必须已 Finish。
func Verify(intervals []*Interval, fm *frame.Map) error {
	var err error

	owners := make(map[int][]*Interval)
	for _, iv := range intervals {
		if iv == nil {
			continue
		}
		if !iv.Assigned {
			err = multierr.Append(err, fmt.Errorf("v%d: interval not assigned", iv.Slot.ID()))
			continue
		}
		owners[iv.Phys.Index] = append(owners[iv.Phys.Index], iv)

		switch s := iv.Slot.(type) {
		case *SimpleSlot:
			if iv.Phys.IsRange() {
				err = multierr.Append(err, fmt.Errorf("v%d: simple slot assigned range %s", s.ID(), iv.Phys))
			} else if iv.Phys.Class != s.Class || iv.Phys.Ref != s.Ref {
				err = multierr.Append(err, fmt.Errorf("v%d: class %s ref=%t assigned %s",
					s.ID(), s.Class, s.Ref, iv.Phys))
			}
		case *RangeSlot:
			if !iv.Phys.IsRange() || iv.Phys.Units != s.Units {
				err = multierr.Append(err, fmt.Errorf("v%d: range of %d units assigned %s", s.ID(), s.Units, iv.Phys))
			}
		default:
			panic(fmt.Sprintf("stackslot: unknown slot shape %T", iv.Slot))
		}
	}

	indexes := make([]int, 0, len(owners))
	for index := range owners {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	for _, index := range indexes {
		group := owners[index]
		if len(group) > 1 && group[0].Phys.IsRange() {
			err = multierr.Append(err, fmt.Errorf("range slot #%d shared by %d intervals", index, len(group)))
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if group[i].Overlaps(group[j]) {
					err = multierr.Append(err, fmt.Errorf("v%d and v%d overlap but share slot #%d",
						group[i].Slot.ID(), group[j].Slot.ID(), index))
				}
			}
		}
	}

	return multierr.Append(err, verifyReferences(intervals, fm))
}

// verifyReferences 校验引用偏移表与各槽的引用标记一致
func verifyReferences(intervals []*Interval, fm *frame.Map) error {
	var err error

	recorded := make(map[int]bool)
	for _, off := range fm.ReferenceOffsets() {
		recorded[off] = true
	}

	word := fm.Config().WordSize
	expected := make(map[int]bool)
	check := func(id SlotID, off int, ref bool) {
		if ref {
			expected[off] = true
			if !recorded[off] {
				err = multierr.Append(err, fmt.Errorf("v%d: reference at offset %d not recorded", id, off))
			}
		} else if recorded[off] {
			err = multierr.Append(err, fmt.Errorf("v%d: non-reference offset %d recorded as reference", id, off))
		}
	}

	for _, iv := range intervals {
		if iv == nil || !iv.Assigned {
			continue
		}
		base := fm.Offset(iv.Phys)
		switch s := iv.Slot.(type) {
		case *SimpleSlot:
			check(s.ID(), base, s.Ref)
		case *RangeSlot:
			for unit, ref := range s.RefMap {
				check(s.ID(), base+unit*word, ref)
			}
		}
	}

	for _, off := range fm.ReferenceOffsets() {
		if !expected[off] {
			err = multierr.Append(err, fmt.Errorf("reference offset %d has no owning slot", off))
		}
	}
	return err
}
