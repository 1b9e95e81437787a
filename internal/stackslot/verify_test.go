package stackslot

import (
	"testing"

	"go.uber.org/multierr"

	"github.com/tangzhangming/slotframe/internal/frame"
)

func assigned(slot VirtualSlot, phys frame.PhysicalSlot, ranges ...Range) *Interval {
	iv := newInterval(slot)
	for _, r := range ranges {
		iv.addRange(r.From, r.To)
	}
	iv.Assigned = true
	iv.Phys = phys
	return iv
}

func TestVerifyAcceptsValidAllocation(t *testing.T) {
	fm := frame.NewMap(frame.DefaultConfig())
	p := fm.Allocate(frame.Size8, true)
	q := fm.AllocateRange(2, []bool{false, true})
	if err := fm.Finish(); err != nil {
		t.Fatal(err)
	}

	intervals := []*Interval{
		assigned(&SimpleSlot{id: 0, Class: frame.Size8, Ref: true}, p, Range{0, 2}),
		assigned(&SimpleSlot{id: 1, Class: frame.Size8, Ref: true}, p, Range{3, 4}),
		assigned(&RangeSlot{id: 2, Units: 2, RefMap: []bool{false, true}}, q, Range{0, 4}),
		nil,
	}
	if err := Verify(intervals, fm); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

// TestVerifyReportsAllViolations 校验报告所有违规
func TestVerifyReportsAllViolations(t *testing.T) {
	fm := frame.NewMap(frame.DefaultConfig())
	p := fm.Allocate(frame.Size8, false)
	q := fm.AllocateRange(2, []bool{true, false})
	if err := fm.Finish(); err != nil {
		t.Fatal(err)
	}

	intervals := []*Interval{
		// 与 v1 重叠却共享 p
		assigned(&SimpleSlot{id: 0, Class: frame.Size8}, p, Range{0, 3}),
		// 尺寸类别不符
		assigned(&SimpleSlot{id: 1, Class: frame.Size4}, p, Range{2, 5}),
		// 范围槽被两个区间共享，且位图与物理槽不一致
		assigned(&RangeSlot{id: 2, Units: 2, RefMap: []bool{false, false}}, q, Range{0, 1}),
		assigned(&RangeSlot{id: 3, Units: 2, RefMap: []bool{true, false}}, q, Range{4, 5}),
	}

	err := Verify(intervals, fm)
	if err == nil {
		t.Fatal("expected violations")
	}
	// overlap(v0,v1)、class(v1)、range shared、ref 位未被 v2 期望却已登记
	if n := len(multierr.Errors(err)); n != 4 {
		t.Errorf("got %d violations, want 4: %v", n, err)
	}
}

func TestVerifyUnassigned(t *testing.T) {
	fm := frame.NewMap(frame.DefaultConfig())
	if err := fm.Finish(); err != nil {
		t.Fatal(err)
	}
	iv := newInterval(&SimpleSlot{id: 0, Class: frame.Size8})
	iv.addRange(0, 1)
	if err := Verify([]*Interval{iv}, fm); err == nil {
		t.Error("expected error for unassigned interval")
	}
}
