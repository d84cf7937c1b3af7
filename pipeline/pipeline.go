// Package pipeline validates, de-duplicates, and serializes crawled records.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bookworm-labs/catalog/config"
	"github.com/bookworm-labs/catalog/models"
	"github.com/bookworm-labs/catalog/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// Pipeline accumulates the crawl's records in extraction order, assigning
// each accepted record the next 1-based sequence id. The whole dataset is
// handed to the writer as one atomic WriteAll when the pipeline closes, so a
// failed run never leaves a half-written store behind.
//
// A single worker drains the channel; ordering is part of the contract, not
// an implementation detail.
type Pipeline struct {
	writer OutputWriter
	bookCh chan *models.Book
	wg     sync.WaitGroup

	seen *lru.Cache[string, struct{}]

	booksMu sync.Mutex
	books   []models.Book

	statsMu sync.Mutex
	dropped map[string]int

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline writing its final dataset through writer.
func NewPipeline(writer OutputWriter, cfg *config.Config) (*Pipeline, error) {
	seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("dedupe cache: %w", err)
	}
	return &Pipeline{
		writer:   writer,
		bookCh:   make(chan *models.Book, cfg.PipelineBufferSize),
		seen:     seen,
		dropped:  make(map[string]int),
		shutdown: make(chan struct{}),
	}, nil
}

// Start launches the accumulation worker.
func (p *Pipeline) Start() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.wg.Add(1)
	go p.worker()
}

// Process enqueues one record for accumulation.
func (p *Pipeline) Process(book *models.Book) error {
	if book == nil {
		return nil
	}

	p.mu.Lock()
	closed, err := p.closed, p.err
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case p.bookCh <- book:
		return nil
	}
}

// Close drains the worker and performs the single atomic dataset write.
// Nothing reaches the writer before Close.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.bookCh)
	})
	p.wg.Wait()

	if err := p.Err(); err != nil {
		return err
	}

	p.booksMu.Lock()
	books := p.books
	p.booksMu.Unlock()

	if err := p.writer.WriteAll(books); err != nil {
		err = fmt.Errorf("write dataset: %w", err)
		p.setErr(err)
		return err
	}
	return nil
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Books returns the accumulated dataset in extraction order.
func (p *Pipeline) Books() []models.Book {
	p.booksMu.Lock()
	defer p.booksMu.Unlock()
	out := make([]models.Book, len(p.books))
	copy(out, p.books)
	return out
}

// Dropped reports how many records were rejected, keyed by reason.
func (p *Pipeline) Dropped() map[string]int {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	out := make(map[string]int, len(p.dropped))
	for k, v := range p.dropped {
		out[k] = v
	}
	return out
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	for book := range p.bookCh {
		if err := parser.ValidateBook(book); err != nil {
			p.drop("invalid_record")
			continue
		}
		if ok, _ := p.seen.ContainsOrAdd(book.BookURL, struct{}{}); ok {
			p.drop("duplicate_url")
			continue
		}

		p.booksMu.Lock()
		book.ID = len(p.books) + 1
		p.books = append(p.books, *book)
		p.booksMu.Unlock()
	}
}

func (p *Pipeline) drop(reason string) {
	p.statsMu.Lock()
	p.dropped[reason]++
	p.statsMu.Unlock()
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.closed = true
	p.mu.Unlock()
	p.signalShutdown()
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}
