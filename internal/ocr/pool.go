package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// PassMode is the page-segmentation assumption for one recognition pass.
type PassMode int

const (
	PassSingleBlock PassMode = iota // uniform block of text
	PassSparseText                  // scattered text, no layout
	PassAuto                        // engine decides
)

func (m PassMode) String() string {
	switch m {
	case PassSingleBlock:
		return "single-block"
	case PassSparseText:
		return "sparse-text"
	case PassAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// passOrder is the fixed priority order passes run in for a page.
var passOrder = []PassMode{PassSingleBlock, PassSparseText, PassAuto}

// Recognizer runs one recognition pass over an encoded page image.
// Implementations are not required to be safe for concurrent use; each
// pool worker owns one instance.
type Recognizer interface {
	Recognize(img []byte, mode PassMode) (string, error)
	Close() error
}

// RecognizerFactory builds one Recognizer per pool worker.
type RecognizerFactory func() (Recognizer, error)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("ocr pool is shut down")

type job struct {
	img    []byte
	mode   PassMode
	result chan jobResult
}

type jobResult struct {
	text string
	err  error
}

// Pool is a bounded set of long-lived recognition workers. It is an
// explicitly owned resource: workers start lazily on first submit and
// hold their Recognizer until Shutdown. Each worker processes one job at
// a time; pages may be recognized concurrently across workers.
type Pool struct {
	size    int
	factory RecognizerFactory
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	jobs    chan job
	wg      sync.WaitGroup

	// subMu serializes in-flight submits against the queue close in
	// Shutdown; closed is only written under subMu.
	subMu  sync.RWMutex
	closed bool
}

// DefaultWorkers bounds recognition concurrency when no size is given.
const DefaultWorkers = 3

func NewPool(size int, factory RecognizerFactory, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		size:    size,
		factory: factory,
		logger:  logger,
		jobs:    make(chan job),
	}
}

// start lazily spawns the workers. Returns false once the pool has been
// shut down.
func (p *Pool) start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	if p.started {
		return true
	}
	p.started = true
	p.logger.Debug("ocr.pool.start", "workers", p.size)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return true
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	rec, err := p.factory()
	if err != nil {
		p.logger.Error("ocr.pool.worker_init_failed", "worker", id, "error", err)
		// Drain jobs with the init error so submitters are not stuck.
		for j := range p.jobs {
			j.result <- jobResult{err: fmt.Errorf("worker init: %w", err)}
		}
		return
	}
	defer func() {
		if cerr := rec.Close(); cerr != nil {
			p.logger.Warn("ocr.pool.recognizer_close", "worker", id, "error", cerr)
		}
	}()

	for j := range p.jobs {
		text, err := rec.Recognize(j.img, j.mode)
		j.result <- jobResult{text: text, err: err}
	}
}

// Submit queues one recognition pass and waits for its result. A
// cancelled context abandons the wait; a job already running on a worker
// is not interrupted, its result is simply discarded.
func (p *Pool) Submit(ctx context.Context, img []byte, mode PassMode) (string, error) {
	if !p.start() {
		return "", ErrPoolClosed
	}
	j := job{img: img, mode: mode, result: make(chan jobResult, 1)}
	p.subMu.RLock()
	if p.closed {
		p.subMu.RUnlock()
		return "", ErrPoolClosed
	}
	select {
	case p.jobs <- j:
		p.subMu.RUnlock()
	case <-ctx.Done():
		p.subMu.RUnlock()
		return "", ctx.Err()
	}
	select {
	case res := <-j.result:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Shutdown releases all workers and their recognizers. Safe to call
// multiple times.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	if started {
		p.subMu.Lock()
		p.closed = true
		close(p.jobs)
		p.subMu.Unlock()
	}
	p.wg.Wait()
}
