// Package pool implements the worker pool (C7): a channel-driven pool of
// goroutines that execute per-block jobs, with both a dynamic ordered mode
// (work queue plus a min-heap reassembly stage, directly modeled on
// cosnicolaou-pbzip2/parallel.go's Decompressor/worker/assemble) and a
// static mode (a fixed partition of indices run across a WaitGroup, for
// callers that already know each block's destination and need no
// reassembly).
package pool

import (
	"container/heap"
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Task is one unit of work submitted to an OrderedPool. tid identifies the
// worker goroutine running it (0..n-1), usable to index into per-thread
// scratch state such as a filter.Arena.
type Task func(tid int) (interface{}, error)

// Result is one Task's outcome, delivered by Results in submission order.
type Result struct {
	Order uint64
	Value interface{}
	Err   error
}

type job struct {
	order uint64
	task  Task
	value interface{}
	err   error
}

// OrderedPool runs Tasks across n goroutines and reassembles their Results
// into submission order, mirroring cosnicolaou-pbzip2's block decompression
// pipeline (workCh -> worker -> doneCh -> heap-ordered assemble -> output).
type OrderedPool struct {
	order uint64

	ctx    context.Context
	workCh chan job
	doneCh chan job
	outCh  chan Result

	workWg     sync.WaitGroup
	assembleWg sync.WaitGroup
}

// New starts an OrderedPool with n worker goroutines. n<=0 defaults to
// runtime.GOMAXPROCS(-1), matching NewDecompressor's default concurrency.
func New(ctx context.Context, n int) *OrderedPool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(-1)
	}
	p := &OrderedPool{
		ctx:    ctx,
		workCh: make(chan job, n),
		doneCh: make(chan job, n),
		outCh:  make(chan Result, n),
	}
	p.workWg.Add(n)
	for tid := 0; tid < n; tid++ {
		tid := tid
		go func() {
			defer p.workWg.Done()
			p.worker(tid)
		}()
	}
	p.assembleWg.Add(1)
	go func() {
		defer p.assembleWg.Done()
		p.assemble()
	}()
	return p
}

func (p *OrderedPool) worker(tid int) {
	for {
		select {
		case j, ok := <-p.workCh:
			if !ok {
				return
			}
			j.value, j.err = j.task(tid)
			select {
			case p.doneCh <- j:
			case <-p.ctx.Done():
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Submit enqueues task and returns its submission order (1-based, matching
// the expected-sequence counter assemble uses).
func (p *OrderedPool) Submit(task Task) (uint64, error) {
	order := atomic.AddUint64(&p.order, 1)
	select {
	case p.workCh <- job{order: order, task: task}:
		return order, nil
	case <-p.ctx.Done():
		return 0, p.ctx.Err()
	}
}

// jobHeap orders pending results by submission order, directly modeled on
// parallel.go's blockHeap.
type jobHeap []job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].order < h[j].order }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x interface{}) { *h = append(*h, x.(job)) }
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (p *OrderedPool) assemble() {
	defer close(p.outCh)
	h := &jobHeap{}
	heap.Init(h)
	expected := uint64(1)
	doneCh := p.doneCh
	var ready []Result // in-order results not yet taken from outCh
	for doneCh != nil || len(ready) > 0 {
		var outCh chan Result
		var head Result
		if len(ready) > 0 {
			outCh, head = p.outCh, ready[0]
		}
		select {
		case j, ok := <-doneCh:
			if !ok {
				doneCh = nil
				continue
			}
			heap.Push(h, j)
			for h.Len() > 0 && (*h)[0].order == expected {
				next := heap.Pop(h).(job)
				ready = append(ready, Result{Order: next.order, Value: next.value, Err: next.err})
				expected++
			}
		case outCh <- head:
			ready = ready[1:]
		case <-p.ctx.Done():
			return
		}
	}
}

// Results returns the channel of in-order Results. It closes once Close has
// drained every submitted job.
func (p *OrderedPool) Results() <-chan Result {
	return p.outCh
}

// Close signals no more Tasks will be submitted, waits for every worker and
// the assembler to drain, and closes the Results channel.
func (p *OrderedPool) Close() {
	close(p.workCh)
	p.workWg.Wait()
	close(p.doneCh)
	p.assembleWg.Wait()
}

// Static runs fn(i) for i in [0,n) across a fixed pool of nthreads
// goroutines with no reassembly step, for callers whose outputs already
// land at known, non-overlapping destinations (e.g. decompressing each
// block of a chunk directly into its slice of the destination buffer).
// nthreads<=0 defaults to runtime.GOMAXPROCS(-1). It returns the first
// error encountered, after waiting for all in-flight calls to finish.
func Static(ctx context.Context, nthreads, n int, fn func(i, tid int) error) error {
	if nthreads <= 0 {
		nthreads = runtime.GOMAXPROCS(-1)
	}
	if nthreads > n {
		nthreads = n
	}
	if n == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	per := (n + nthreads - 1) / nthreads

	wg.Add(nthreads)
	for tid := 0; tid < nthreads; tid++ {
		tid := tid
		lo, hi := tid*per, (tid+1)*per
		if hi > n {
			hi = n
		}
		go func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				select {
				case <-ctx.Done():
					mu.Lock()
					if firstErr == nil {
						firstErr = ctx.Err()
					}
					mu.Unlock()
					return
				default:
				}
				if err := fn(i, tid); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return
				}
			}
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return nil
}
