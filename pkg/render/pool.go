package render

import (
	"context"
	"errors"
	"sync"

	"github.com/vango-dev/flight/pkg/protocol"
)

// ErrPoolClosed is returned by Render after Close.
var ErrPoolClosed = errors.New("render: pool closed")

// Pool runs render jobs on a fixed set of worker goroutines. Each job's
// frames come back over a channel; canceling the job's context stops the
// worker and closes the channel.
type Pool struct {
	renderer *Renderer
	tasks    chan *Call
	quit     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// Call is one submitted job.
type Call struct {
	ctx  context.Context
	job  Job
	msgs chan protocol.Message
	done chan struct{}

	summary Summary
	err     error
}

// Messages returns the job's frames in render order. The channel is closed
// when the job finishes or its context is canceled. The consumer must drain
// it or cancel the context.
func (c *Call) Messages() <-chan protocol.Message { return c.msgs }

// Wait blocks until the worker is done with the job.
func (c *Call) Wait() (Summary, error) {
	<-c.done
	return c.summary, c.err
}

// NewPool starts workers goroutines rendering with r.
func NewPool(r *Renderer, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		renderer: r,
		tasks:    make(chan *Call),
		quit:     make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case c := <-p.tasks:
			c.summary, c.err = p.renderer.Stream(c.ctx, c.job, chanEmitter{ctx: c.ctx, ch: c.msgs})
			close(c.msgs)
			close(c.done)
		case <-p.quit:
			return
		}
	}
}

// Render hands job to the next free worker. It blocks until a worker
// accepts the job, ctx is done or the pool is closed.
func (p *Pool) Render(ctx context.Context, job Job) (*Call, error) {
	c := &Call{
		ctx:  ctx,
		job:  job,
		msgs: make(chan protocol.Message, 8),
		done: make(chan struct{}),
	}
	select {
	case <-p.quit:
		return nil, ErrPoolClosed
	default:
	}
	select {
	case p.tasks <- c:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, ErrPoolClosed
	}
}

// Stream renders job on a worker and copies its frames to out. If out
// fails the job is canceled and out's error returned.
func (p *Pool) Stream(ctx context.Context, job Job, out Emitter) (Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := p.Render(ctx, job)
	if err != nil {
		return Summary{}, err
	}
	var writeErr error
	for m := range c.Messages() {
		if writeErr != nil {
			continue
		}
		if writeErr = out.Write(m); writeErr != nil {
			cancel()
		}
	}
	sum, err := c.Wait()
	if writeErr != nil {
		return sum, writeErr
	}
	return sum, err
}

// Close stops the workers after their current jobs.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.quit)
		p.wg.Wait()
	})
}

type chanEmitter struct {
	ctx context.Context
	ch  chan<- protocol.Message
}

func (e chanEmitter) Write(m protocol.Message) error {
	select {
	case e.ch <- m:
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}
