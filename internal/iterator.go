package internal

import (
	"context"

	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
)

// PageFunc fetches one page of records. nextURL is empty for the first page.
// It returns the records, the URL of the following page and whether the
// result set is exhausted.
type PageFunc[T any] func(ctx context.Context, nextURL string) (records []T, next string, done bool, err error)

// Pager walks a paginated result set one record at a time, fetching pages lazily.
type Pager[T any] struct {
	ctx       context.Context
	fetch     PageFunc[T]
	buffer    []T
	bufferIdx int
	next      string
	started   bool
	done      bool
	err       error
}

// NewPager creates a pager that calls fetch for each page.
func NewPager[T any](ctx context.Context, fetch PageFunc[T]) *Pager[T] {
	return &Pager[T]{ctx: ctx, fetch: fetch}
}

// HasNext reports whether Next will return a record. It fetches the next page
// when the current one is used up, so it can block on I/O.
func (p *Pager[T]) HasNext() bool {
	for p.bufferIdx >= len(p.buffer) {
		if p.err != nil || (p.started && p.done) {
			return false
		}
		p.fetchPage()
	}
	return true
}

// Next returns the next record, the fetch error that stopped iteration, or
// errors.ErrNoMoreRecords when the result set is exhausted.
func (p *Pager[T]) Next() (T, error) {
	var zero T
	if !p.HasNext() {
		if p.err != nil {
			return zero, p.err
		}
		return zero, pkgerrs.ErrNoMoreRecords
	}

	record := p.buffer[p.bufferIdx]
	p.bufferIdx++
	return record, nil
}

// Err returns the error that stopped iteration, if any.
func (p *Pager[T]) Err() error {
	return p.err
}

// Collect drains the pager. Records read before a failure are returned with the error.
func (p *Pager[T]) Collect() ([]T, error) {
	var all []T
	for p.HasNext() {
		record, err := p.Next()
		if err != nil {
			return all, err
		}
		all = append(all, record)
	}
	return all, p.err
}

func (p *Pager[T]) fetchPage() {
	records, next, done, err := p.fetch(p.ctx, p.next)
	p.started = true
	if err != nil {
		p.err = err
		return
	}

	p.buffer = records
	p.bufferIdx = 0
	p.next = next
	// An empty page that claims more results would otherwise loop forever.
	p.done = done || next == "" || len(records) == 0
}
