package register

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/persistence/memory"
)

func TestWriter_Write(t *testing.T) {
	ctx := context.Background()
	archive := memory.NewReceiptArchive()
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, archive.Save(ctx, &receipt.Record{
			ID:          fmt.Sprintf("r%d", i),
			StudentName: fmt.Sprintf("Student %d", i),
			Email:       "s@x.com",
			Fees:        "500",
			Filename:    fmt.Sprintf("Receipt-Student %d.pdf", i),
			SignedWith:  true,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}

	var buf bytes.Buffer
	require.NoError(t, NewWriter(archive, time.UTC).Write(ctx, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Issued At", rows[0][0])
	assert.Equal(t, "2026-10-17 11:00:00", rows[1][0])
	assert.Equal(t, "Student 2", rows[1][1])
	assert.Equal(t, "r0", rows[3][9])
}

func TestWriter_EmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(memory.NewReceiptArchive(), nil).Write(context.Background(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
