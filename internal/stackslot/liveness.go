// liveness.go - 栈槽活跃性分析
//
// 后向数据流不动点迭代：
//   live-out(b) = ∪ live-in(succ(b))
//   live(i-1)   = use(i) ∪ (live(i) - def(i))
// 其中 output/temp 为 def，input/alive/state 为 use。
//
// 工作表以逆序块初始化；块的 live-in 变化时把所有前驱重新入表。
// 集合只增不减且大小有限，因此迭代必然收敛。
// 收敛后再对每个块做一次后向扫描，把最终的活跃信息转换为活跃区间。

package stackslot

import (
	"fmt"

	"github.com/tangzhangming/slotframe/internal/lir"
)

// Liveness 活跃性分析结果
type Liveness struct {
	LiveIn  []bitset // 按块 ID 索引
	LiveOut []bitset

	// Intervals 按槽 ID 索引，从未被引用的槽为 nil
	Intervals []*Interval

	// Pops 工作表弹出次数
	Pops int
}

// LiveInSlots 返回块入口处活跃的槽 ID
func (l *Liveness) LiveInSlots(b *lir.Block) []int {
	return l.LiveIn[b.ID].slice()
}

// LiveOutSlots 返回块出口处活跃的槽 ID
func (l *Liveness) LiveOutSlots(b *lir.Block) []int {
	return l.LiveOut[b.ID].slice()
}

// livenessAnalyzer 活跃性分析器
type livenessAnalyzer struct {
	fn    *lir.Func
	slots []VirtualSlot
}

// analyze 计算活跃集合并构建活跃区间；指令必须已编号
func (a *livenessAnalyzer) analyze() *Liveness {
	numBlocks := len(a.fn.Blocks)
	numSlots := len(a.slots)

	lv := &Liveness{
		LiveIn:    make([]bitset, numBlocks),
		LiveOut:   make([]bitset, numBlocks),
		Intervals: make([]*Interval, numSlots),
	}
	for i := range a.fn.Blocks {
		lv.LiveIn[i] = newBitset(numSlots)
		lv.LiveOut[i] = newBitset(numSlots)
	}

	visited := make([]bool, numBlocks)
	inList := make([]bool, numBlocks)

	// 栈式工作表：按块顺序压入，弹出顺序即为逆序
	work := make([]*lir.Block, 0, numBlocks)
	for _, b := range a.fn.Blocks {
		work = append(work, b)
		inList[b.ID] = true
	}

	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		inList[b.ID] = false
		lv.Pops++

		out := newBitset(numSlots)
		for _, succ := range b.Succs {
			out.union(lv.LiveIn[succ.ID])
		}
		if visited[b.ID] && out.equal(lv.LiveOut[b.ID]) {
			continue
		}
		visited[b.ID] = true
		lv.LiveOut[b.ID] = out

		in := out.clone()
		for i := len(b.Insts) - 1; i >= 0; i-- {
			a.transfer(b.Insts[i], in)
		}

		if in.equal(lv.LiveIn[b.ID]) {
			continue
		}
		lv.LiveIn[b.ID] = in
		for _, pred := range b.Preds {
			if !inList[pred.ID] {
				inList[pred.ID] = true
				work = append(work, pred)
			}
		}
	}

	a.buildIntervals(lv)
	return lv
}

// transfer live = use(inst) ∪ (live - def(inst))
func (a *livenessAnalyzer) transfer(inst *lir.Inst, live bitset) {
	inst.ForEachOperand(func(v *lir.Value, mode lir.Mode) {
		if id, ok := a.slotOf(v); ok && mode.IsDef() {
			live.clear(id)
		}
	})
	inst.ForEachOperand(func(v *lir.Value, mode lir.Mode) {
		if id, ok := a.slotOf(v); ok && !mode.IsDef() {
			live.set(id)
		}
	})
}

// buildIntervals 按最终的 live-out 集合逐块后向扫描，构建活跃区间
func (a *livenessAnalyzer) buildIntervals(lv *Liveness) {
	end := make([]int, len(a.slots))

	intervalOf := func(id int) *Interval {
		if lv.Intervals[id] == nil {
			lv.Intervals[id] = newInterval(a.slots[id])
		}
		return lv.Intervals[id]
	}

	for _, b := range a.fn.Blocks {
		if len(b.Insts) == 0 {
			continue
		}
		first, last := b.FirstID(), b.LastID()

		live := lv.LiveOut[b.ID].clone()
		live.scan(func(id int) { end[id] = last })

		for i := len(b.Insts) - 1; i >= 0; i-- {
			inst := b.Insts[i]
			pos := inst.ID

			inst.ForEachOperand(func(v *lir.Value, mode lir.Mode) {
				id, ok := a.slotOf(v)
				if !ok || !mode.IsDef() {
					return
				}
				if live.has(id) {
					intervalOf(id).addRange(pos, end[id])
					live.clear(id)
				} else {
					// 定义后未使用（或 temp）：只占用当前位置
					intervalOf(id).addRange(pos, pos)
				}
			})
			inst.ForEachOperand(func(v *lir.Value, mode lir.Mode) {
				id, ok := a.slotOf(v)
				if !ok || mode.IsDef() {
					return
				}
				if !live.has(id) {
					live.set(id)
					end[id] = pos
				}
			})
		}

		live.scan(func(id int) {
			intervalOf(id).addRange(first, end[id])
		})
	}
}

// slotOf 返回操作数引用的虚拟槽 ID；NoSlot 和非虚拟槽操作数返回 false
func (a *livenessAnalyzer) slotOf(v *lir.Value) (int, bool) {
	if !v.IsVirtualSlot() || SlotID(v.Slot) == NoSlot {
		return 0, false
	}
	if v.Slot < 0 || v.Slot >= len(a.slots) {
		panic(fmt.Sprintf("stackslot: operand references unknown slot v%d", v.Slot))
	}
	return v.Slot, true
}
