package parallel

import "sync"

// rangePool is a fixed set of workers applying one function to every Range
// pushed onto its queue.
type rangePool struct {
	fn    func(Range)
	queue chan Range
	wg    sync.WaitGroup
}

// startPool launches workers goroutines running fn. depth is the queue
// capacity; push blocks while the queue is full.
func startPool(workers, depth int, fn func(Range)) *rangePool {
	p := &rangePool{fn: fn, queue: make(chan Range, depth)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *rangePool) work() {
	defer p.wg.Done()
	for r := range p.queue {
		p.fn(r)
	}
}

func (p *rangePool) push(r Range) { p.queue <- r }

// drain closes the queue and waits for every queued range to finish. The
// pool cannot be used afterwards.
func (p *rangePool) drain() {
	close(p.queue)
	p.wg.Wait()
}
