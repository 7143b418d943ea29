package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 10, 17, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026/10/17/abc-ada-lovelace.pdf", ObjectKey("abc", "Ada Lovelace", at))
	assert.Equal(t, "2026/10/17/abc-receipt.pdf", ObjectKey("abc", "", at))
	assert.Equal(t, "2026/10/17/abc-a-b.pdf", ObjectKey("abc", "../a/b", at))
	assert.Equal(t, "2026/10/17/abc-receipt.pdf", ObjectKey("abc", "Анна", at))
}

func TestLocalStore_Put(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	loc, err := store.Put(context.Background(), "2026/10/17/x-ada.pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "2026", "10", "17", "x-ada.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))
}

func TestLocalStore_RejectsEscape(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.pdf", []byte("x"))
	assert.Error(t, err)
}
