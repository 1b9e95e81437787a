package stackslot

import (
	"testing"

	"github.com/tangzhangming/slotframe/internal/frame"
	"github.com/tangzhangming/slotframe/internal/lir"
)

func newTestBuilder(opts ...Option) *Builder {
	return NewBuilder(frame.DefaultConfig(), append([]Option{WithVerify(true)}, opts...)...)
}

func def(id SlotID) *lir.Inst {
	return lir.NewInst("store").Out(lir.VirtualSlot(int(id))).In(lir.Reg(0))
}

func use(id SlotID) *lir.Inst {
	return lir.NewInst("load").Out(lir.Reg(0)).In(lir.VirtualSlot(int(id)))
}

func nop() *lir.Inst {
	return lir.NewInst("nop")
}

func mustFinalize(t *testing.T, b *Builder, fn *lir.Func, strategy Strategy) *frame.Map {
	t.Helper()
	fm, err := b.Finalize(fn, strategy)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return fm
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

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
