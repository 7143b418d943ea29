// Package memory holds the in-process receipt archive used when no
// database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
)

// ReceiptArchive keeps records in memory for the life of the process.
type ReceiptArchive struct {
	mu      sync.RWMutex
	records []*receipt.Record
	ids     map[string]struct{}
}

var _ receipt.Archive = (*ReceiptArchive)(nil)

// NewReceiptArchive creates an empty archive.
func NewReceiptArchive() *ReceiptArchive {
	return &ReceiptArchive{ids: make(map[string]struct{})}
}

// Save stores a copy of rec.
func (a *ReceiptArchive) Save(_ context.Context, rec *receipt.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.ids[rec.ID]; ok {
		return fmt.Errorf("receipt %s already archived", rec.ID)
	}
	cp := *rec
	a.records = append(a.records, &cp)
	a.ids[rec.ID] = struct{}{}
	return nil
}

// List returns copies newest first.
func (a *ReceiptArchive) List(_ context.Context, opts receipt.ListOptions) ([]*receipt.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	sorted := make([]*receipt.Record, len(a.records))
	copy(sorted, a.records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if opts.Offset >= len(sorted) {
		return nil, nil
	}
	end := opts.Offset + limit
	if end > len(sorted) {
		end = len(sorted)
	}

	out := make([]*receipt.Record, 0, end-opts.Offset)
	for _, r := range sorted[opts.Offset:end] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// Count returns the number of archived receipts.
func (a *ReceiptArchive) Count(context.Context) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records), nil
}
