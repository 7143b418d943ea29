package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
)

func TestReceiptArchive(t *testing.T) {
	ctx := context.Background()
	a := NewReceiptArchive()
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, a.Save(ctx, &receipt.Record{
			ID:          fmt.Sprintf("r%d", i),
			StudentName: fmt.Sprintf("student %d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	page, err := a.List(ctx, receipt.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "r4", page[0].ID)
	assert.Equal(t, "r3", page[1].ID)

	page, err = a.List(ctx, receipt.ListOptions{Limit: 10, Offset: 4})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "r0", page[0].ID)

	page, err = a.List(ctx, receipt.ListOptions{Offset: 9})
	require.NoError(t, err)
	assert.Empty(t, page)

	assert.Error(t, a.Save(ctx, &receipt.Record{ID: "r1"}))
}

func TestReceiptArchive_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	a := NewReceiptArchive()
	rec := &receipt.Record{ID: "x", StudentName: "Ada"}
	require.NoError(t, a.Save(ctx, rec))

	rec.StudentName = "changed"
	list, err := a.List(ctx, receipt.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Ada", list[0].StudentName)
}
