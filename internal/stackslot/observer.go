package stackslot

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/slotframe/internal/frame"
	"github.com/tangzhangming/slotframe/internal/lir"
)

// Observer 分配过程的观察者，通过 WithObserver 注入
type Observer interface {
	SlotCreated(slot VirtualSlot)
	LivenessConverged(fn *lir.Func, lv *Liveness)
	IntervalAssigned(iv *Interval, reused bool)
	FrameFinished(fn *lir.Func, fm *frame.Map)
}

// NopObserver 不做任何事的观察者
type NopObserver struct{}

func (NopObserver) SlotCreated(VirtualSlot) {}
func (NopObserver) LivenessConverged(*lir.Func, *Liveness) {}
func (NopObserver) IntervalAssigned(*Interval, bool) {}
func (NopObserver) FrameFinished(*lir.Func, *frame.Map) {}

// ZapObserver 把分配事件写入 zap 日志（debug 级别）
type ZapObserver struct {
	log *zap.Logger
}

// NewZapObserver 创建 zap 观察者
func NewZapObserver(log *zap.Logger) *ZapObserver {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapObserver{log: log.Named("stackslot")}
}

func (o *ZapObserver) SlotCreated(slot VirtualSlot) {
	switch s := slot.(type) {
	case *SimpleSlot:
		o.log.Debug("slot created",
			zap.Int("id", int(s.ID())),
			zap.Stringer("class", s.Class),
			zap.Bool("ref", s.Ref))
	case *RangeSlot:
		o.log.Debug("range slot created",
			zap.Int("id", int(s.ID())),
			zap.Int("units", s.Units),
			zap.Bools("refs", s.RefMap))
	}
}

func (o *ZapObserver) LivenessConverged(fn *lir.Func, lv *Liveness) {
	o.log.Debug("liveness converged",
		zap.String("func", fn.Name),
		zap.Int("blocks", len(fn.Blocks)),
		zap.Int("pops", lv.Pops))
}

func (o *ZapObserver) IntervalAssigned(iv *Interval, reused bool) {
	o.log.Debug("interval assigned",
		zap.Int("slot", int(iv.Slot.ID())),
		zap.Int("from", iv.From),
		zap.Int("to", iv.To),
		zap.Int("spill_offset", iv.Phys.SpillOffset),
		zap.Bool("reused", reused))
}

func (o *ZapObserver) FrameFinished(fn *lir.Func, fm *frame.Map) {
	o.log.Info("frame finished",
		zap.String("func", fn.Name),
		zap.Int("size", fm.TotalSize()),
		zap.Int("spill", fm.SpillSize()),
		zap.Int("outgoing", fm.OutgoingSize()),
		zap.Ints("refs", fm.ReferenceOffsets()))
}
