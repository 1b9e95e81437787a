package frame

import (
	"errors"
	"testing"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want int
	}{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 8, 24},
		{5, 1, 5},
		{5, 0, 5},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestClassForBytes(t *testing.T) {
	for c := Size1; c <= Size16; c++ {
		got, ok := ClassForBytes(c.Bytes())
		if !ok || got != c {
			t.Errorf("ClassForBytes(%d) = %v, %v", c.Bytes(), got, ok)
		}
	}
	if _, ok := ClassForBytes(3); ok {
		t.Error("3 bytes should not map to a size class")
	}
}

// TestAllocateNaturalAlignment 测试简单槽按自然对齐分配
func TestAllocateNaturalAlignment(t *testing.T) {
	m := NewMap(DefaultConfig())

	a := m.Allocate(Size1, false)
	b := m.Allocate(Size8, true)
	c := m.Allocate(Size4, false)
	d := m.Allocate(Size16, false)

	if a.SpillOffset != 0 {
		t.Errorf("a offset = %d, want 0", a.SpillOffset)
	}
	if b.SpillOffset != 8 {
		t.Errorf("b offset = %d, want 8", b.SpillOffset)
	}
	if c.SpillOffset != 16 {
		t.Errorf("c offset = %d, want 16", c.SpillOffset)
	}
	if d.SpillOffset != 32 {
		t.Errorf("d offset = %d, want 32", d.SpillOffset)
	}
	if m.SpillSize() != 48 {
		t.Errorf("spill size = %d, want 48", m.SpillSize())
	}
}

// TestSpillSizeMonotonic 测试溢出区只增不减
func TestSpillSizeMonotonic(t *testing.T) {
	m := NewMap(DefaultConfig())
	prev := m.SpillSize()
	for i := 0; i < 20; i++ {
		if i%3 == 0 {
			m.AllocateRange(i%4+1, nil)
		} else {
			m.Allocate(SizeClass(i%NumSizeClasses), i%2 == 0)
		}
		if m.SpillSize() < prev {
			t.Fatalf("spill size shrank from %d to %d", prev, m.SpillSize())
		}
		prev = m.SpillSize()
	}
}

// TestAllocateRangeReferenceBitmap 测试范围槽的引用位图登记
func TestAllocateRangeReferenceBitmap(t *testing.T) {
	m := NewMap(DefaultConfig())
	s := m.AllocateRange(3, []bool{false, true, false})

	if !s.IsRange() || s.Units != 3 {
		t.Fatalf("expected 3-unit range, got %v", s)
	}
	if s.Size() != 24 {
		t.Errorf("range size = %d, want 24", s.Size())
	}
	if err := m.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	refs := m.ReferenceOffsets()
	if len(refs) != 1 || refs[0] != m.Offset(s)+8 {
		t.Errorf("reference offsets = %v, want [%d]", refs, m.Offset(s)+8)
	}
}

func TestReserveOutgoingKeepsMax(t *testing.T) {
	m := NewMap(DefaultConfig())
	m.ReserveOutgoing(32)
	m.ReserveOutgoing(16)
	m.ReserveOutgoing(40)
	m.ReserveOutgoing(0)
	if m.OutgoingSize() != 40 {
		t.Errorf("outgoing = %d, want 40", m.OutgoingSize())
	}
}

// TestFinishLayout 测试出参区位于帧底、溢出区位于其上
func TestFinishLayout(t *testing.T) {
	m := NewMap(DefaultConfig())
	s := m.Allocate(Size8, true)
	m.ReserveOutgoing(24)
	if err := m.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if m.SpillBase() != 32 {
		t.Errorf("spill base = %d, want 32", m.SpillBase())
	}
	if m.Offset(s) != 32 {
		t.Errorf("offset = %d, want 32", m.Offset(s))
	}
	if m.TotalSize() != 48 {
		t.Errorf("total = %d, want 48", m.TotalSize())
	}
	if refs := m.ReferenceOffsets(); len(refs) != 1 || refs[0] != 32 {
		t.Errorf("refs = %v, want [32]", refs)
	}
}

// TestFinishPadsUnalignedOutgoing 出参区大小不是 16 的倍数时，溢出区从下一个 16 字节边界开始
func TestFinishPadsUnalignedOutgoing(t *testing.T) {
	tests := []struct {
		name      string
		class     SizeClass
		outgoing  int
		wantBase  int
		wantTotal int
	}{
		{"s8 after 8", Size8, 8, 16, 32},
		{"s16 after 8", Size16, 8, 16, 32},
		{"s4 after 12", Size4, 12, 16, 32},
		{"s8 after 16", Size8, 16, 16, 32},
		{"s8 no calls", Size8, 0, 0, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMap(DefaultConfig())
			s := m.Allocate(tt.class, false)
			m.ReserveOutgoing(tt.outgoing)
			if err := m.Finish(); err != nil {
				t.Fatalf("Finish: %v", err)
			}
			if m.SpillBase() != tt.wantBase {
				t.Errorf("spill base = %d, want %d", m.SpillBase(), tt.wantBase)
			}
			if off := m.Offset(s); off%tt.class.Align() != 0 {
				t.Errorf("offset %d not aligned to %d", off, tt.class.Align())
			}
			if m.TotalSize() != tt.wantTotal {
				t.Errorf("total = %d, want %d", m.TotalSize(), tt.wantTotal)
			}
		})
	}
}

func TestSlotsReturnsCopy(t *testing.T) {
	m := NewMap(DefaultConfig())
	m.Allocate(Size8, false)
	m.AllocateRange(2, []bool{false, true})

	slots := m.Slots()
	slots[0].SpillOffset = 100
	slots[1].RefMap[0] = true

	again := m.Slots()
	if again[0].SpillOffset != 0 {
		t.Errorf("slot offset changed through Slots(): %d", again[0].SpillOffset)
	}
	if again[1].RefMap[0] {
		t.Error("range bitmap changed through Slots()")
	}
}

func TestFinishTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 32
	m := NewMap(cfg)
	for i := 0; i < 5; i++ {
		m.Allocate(Size8, false)
	}
	err := m.Finish()
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if !m.Finished() {
		t.Error("map should be frozen even when too large")
	}
}

func TestFinishTwicePanics(t *testing.T) {
	m := NewMap(DefaultConfig())
	if err := m.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if m.TotalSize() != 0 {
		t.Errorf("empty frame size = %d, want 0", m.TotalSize())
	}
	expectPanic(t, "second Finish", func() { _ = m.Finish() })
	expectPanic(t, "Allocate after Finish", func() { m.Allocate(Size8, false) })
	expectPanic(t, "AllocateRange after Finish", func() { m.AllocateRange(2, nil) })
	expectPanic(t, "ReserveOutgoing after Finish", func() { m.ReserveOutgoing(8) })
}

func TestInvalidRequestsPanic(t *testing.T) {
	m := NewMap(DefaultConfig())
	expectPanic(t, "zero-unit range", func() { m.AllocateRange(0, nil) })
	expectPanic(t, "bitmap length mismatch", func() { m.AllocateRange(2, []bool{true}) })
	expectPanic(t, "invalid class", func() { m.Allocate(SizeClass(9), false) })
	expectPanic(t, "offset before finish", func() { m.Offset(PhysicalSlot{}) })
}

func TestReport(t *testing.T) {
	m := NewMap(DefaultConfig())
	m.Allocate(Size4, false)
	m.AllocateRange(2, []bool{true, true})
	if err := m.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	r := m.Report()
	if len(r.Slots) != 2 {
		t.Fatalf("report slots = %d, want 2", len(r.Slots))
	}
	if r.Slots[1].Offset != 8 || r.Slots[1].Size != 16 {
		t.Errorf("range slot report = %+v", r.Slots[1])
	}
	if len(r.ReferenceOffsets) != 2 || r.ReferenceOffsets[0] != 8 || r.ReferenceOffsets[1] != 16 {
		t.Errorf("reference offsets = %v", r.ReferenceOffsets)
	}
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}
