package stackslot

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"

	"github.com/tangzhangming/slotframe/internal/frame"
	"github.com/tangzhangming/slotframe/internal/lir"
)

type recordingObserver struct {
	created   int
	converged int
	assigned  int
	reused    int
	finished  int
}

func (o *recordingObserver) SlotCreated(VirtualSlot) { o.created++ }

func (o *recordingObserver) LivenessConverged(*lir.Func, *Liveness) { o.converged++ }

func (o *recordingObserver) IntervalAssigned(iv *Interval, reused bool) {
	o.assigned++
	if reused {
		o.reused++
	}
}

func (o *recordingObserver) FrameFinished(*lir.Func, *frame.Map) { o.finished++ }

func TestObserverEvents(t *testing.T) {
	obs := &recordingObserver{}
	b := newTestBuilder(WithObserver(obs))
	v0 := b.NewSimpleSlot(frame.Size8, false)
	v1 := b.NewSimpleSlot(frame.Size8, false)
	b.NewRangeSlot(2, nil)

	fn := lir.NewFunc("observed")
	fn.NewBlock("entry").Append(def(v0), use(v0), def(v1), use(v1))
	mustFinalize(t, b, fn, StrategyInterval)

	if obs.created != 3 {
		t.Errorf("created = %d, want 3", obs.created)
	}
	if obs.converged != 1 || obs.finished != 1 {
		t.Errorf("converged = %d finished = %d, want 1/1", obs.converged, obs.finished)
	}
	if obs.assigned != 2 || obs.reused != 1 {
		t.Errorf("assigned = %d reused = %d, want 2/1", obs.assigned, obs.reused)
	}
}

func TestZapObserver(t *testing.T) {
	core, logs := zapobserver.New(zapcore.DebugLevel)
	b := newTestBuilder(WithObserver(NewZapObserver(zap.New(core))))
	v := b.NewSimpleSlot(frame.Size8, true)
	r := b.NewRangeSlot(2, []bool{true, false})

	fn := lir.NewFunc("logged")
	fn.NewBlock("entry").Append(def(v), use(v), lir.NewInst("init").Out(lir.VirtualSlot(int(r))))
	mustFinalize(t, b, fn, StrategyInterval)

	if n := logs.FilterMessage("slot created").Len(); n != 1 {
		t.Errorf("slot created entries = %d, want 1", n)
	}
	if n := logs.FilterMessage("range slot created").Len(); n != 1 {
		t.Errorf("range slot created entries = %d, want 1", n)
	}
	if n := logs.FilterMessage("interval assigned").Len(); n != 2 {
		t.Errorf("interval assigned entries = %d, want 2", n)
	}
	finished := logs.FilterMessage("frame finished").All()
	if len(finished) != 1 {
		t.Fatalf("frame finished entries = %d, want 1", len(finished))
	}
	if got := finished[0].ContextMap()["func"]; got != "logged" {
		t.Errorf("func field = %v", got)
	}
}

func TestNilObserverKeepsDefault(t *testing.T) {
	b := NewBuilder(frame.DefaultConfig(), WithObserver(nil))
	if _, ok := b.obs.(NopObserver); !ok {
		t.Errorf("observer = %T, want NopObserver", b.obs)
	}
}
