package stackslot

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/atomic"

	"github.com/tangzhangming/slotframe/internal/frame"
	"github.com/tangzhangming/slotframe/internal/lir"
)

// ============================================================================
// 并发编译
// ============================================================================

// Unit 一个独立的编译单元：指令流及其专属的 Builder
type Unit struct {
	Func     *lir.Func
	Builder  *Builder
	Strategy Strategy
}

// Result 编译单元的分配结果
type Result struct {
	Unit  *Unit
	Frame *frame.Map
	Err   error
}

// PoolStats 工作池累计统计
type PoolStats struct {
	Units     int64 // 完成的编译单元
	Failed    int64 // 失败的编译单元
	Slots     int64 // 虚拟槽总数
	Reused    int64 // 复用的物理槽
	FrameSize int64 // 帧大小总和
}

// Pool 在多个工作协程上并发处理互相独立的编译单元
// 各单元拥有自己的 Builder 和 Frame Map，工作协程之间不共享可变状态
type Pool struct {
	workers int

	units     atomic.Int64
	failed    atomic.Int64
	slots     atomic.Int64
	reused    atomic.Int64
	frameSize atomic.Int64
}

// NewPool 创建工作池；workers <= 0 时使用 CPU 数
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

// Workers 工作协程数
func (p *Pool) Workers() int {
	return p.workers
}

// Run 处理所有编译单元，结果与输入一一对应
// ctx 取消后不再派发新单元，未处理的单元以 ctx.Err() 作为错误返回
func (p *Pool) Run(ctx context.Context, units []*Unit) []Result {
	results := make([]Result, len(units))
	for i, u := range units {
		results[i].Unit = u
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.runUnit(units[i])
			}
		}()
	}

	next := 0
dispatch:
	for ; next < len(units); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(units); i++ {
		results[i].Err = ctx.Err()
		p.failed.Inc()
	}
	return results
}

func (p *Pool) runUnit(u *Unit) Result {
	fm, err := u.Builder.Finalize(u.Func, u.Strategy)
	stats := u.Builder.Stats()

	p.units.Inc()
	p.slots.Add(int64(stats.Slots))
	p.reused.Add(int64(stats.Reused))
	if err != nil {
		p.failed.Inc()
		return Result{Unit: u, Err: err}
	}
	p.frameSize.Add(int64(fm.TotalSize()))
	return Result{Unit: u, Frame: fm}
}

// Stats 返回累计统计快照
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Units:     p.units.Load(),
		Failed:    p.failed.Load(),
		Slots:     p.slots.Load(),
		Reused:    p.reused.Load(),
		FrameSize: p.frameSize.Load(),
	}
}
