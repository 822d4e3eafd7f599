package force

import (
	"context"

	"github.com/jamesprial/go-salesforce-api-wrapper/internal"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

// QueryIterator walks every record of a SOQL query, requesting further pages
// through nextRecordsUrl as needed. T is the record type, e.g. a struct with
// json tags or map[string]any.
//
// Go does not allow type parameters on methods, so iterators are created with
// the NewQueryIterator function rather than a Client method.
type QueryIterator[T any] struct {
	ctx            context.Context
	client         *Client
	soql           string
	includeDeleted bool
	totalSize      int
	pager          *internal.Pager[T]
}

// NewQueryIterator creates an iterator for soql. No request is made until HasNext or Next is called.
func NewQueryIterator[T any](ctx context.Context, client *Client, soql string) *QueryIterator[T] {
	it := &QueryIterator[T]{
		ctx:    ctx,
		client: client,
		soql:   soql,
	}
	it.Reset()
	return it
}

// IncludeDeleted switches the iterator to queryAll, returning deleted and archived records too.
// It must be called before iteration starts.
func (it *QueryIterator[T]) IncludeDeleted() *QueryIterator[T] {
	it.includeDeleted = true
	return it
}

// HasNext returns true if there are more records to iterate through.
func (it *QueryIterator[T]) HasNext() bool {
	return it.pager.HasNext()
}

// Next returns the next record in the iteration.
func (it *QueryIterator[T]) Next() (T, error) {
	return it.pager.Next()
}

// Err returns any error encountered during iteration.
func (it *QueryIterator[T]) Err() error {
	return it.pager.Err()
}

// TotalSize returns the totalSize reported by the first page, or 0 before it is fetched.
func (it *QueryIterator[T]) TotalSize() int {
	return it.totalSize
}

// Reset restarts the iteration from the first page.
func (it *QueryIterator[T]) Reset() {
	it.totalSize = 0
	it.pager = internal.NewPager[T](it.ctx, it.fetch)
}

// Collect fetches all remaining records up to maxRecords. Zero or less means no limit.
func (it *QueryIterator[T]) Collect(maxRecords int) ([]T, error) {
	var records []T
	for (maxRecords <= 0 || len(records) < maxRecords) && it.HasNext() {
		record, err := it.Next()
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, it.Err()
}

func (it *QueryIterator[T]) fetch(ctx context.Context, next string) ([]T, string, bool, error) {
	var page types.QueryResponse[T]
	var err error
	switch {
	case next != "":
		err = it.client.QueryMore(ctx, next, &page)
	case it.includeDeleted:
		err = it.client.QueryAll(ctx, it.soql, &page)
	default:
		err = it.client.Query(ctx, it.soql, &page)
	}
	if err != nil {
		return nil, "", false, err
	}

	if next == "" {
		it.totalSize = page.TotalSize
	}
	return page.Records, page.NextRecordsURL, page.Done, nil
}
