package receipt

import (
	"context"
	"time"
)

// Record describes one saved receipt.
type Record struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	StudentID   string    `json:"studentId,omitempty"`
	StudentName string    `json:"studentName"`
	Email       string    `json:"email"`
	Fees        string    `json:"fees"`
	Filename    string    `json:"filename"`
	Location    string    `json:"location"`
	SizeBytes   int       `json:"sizeBytes"`
	SignedWith  bool      `json:"signed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListOptions pages through the archive, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// Archive stores a Record for every saved receipt.
type Archive interface {
	Save(ctx context.Context, rec *Record) error
	List(ctx context.Context, opts ListOptions) ([]*Record, error)
	Count(ctx context.Context) (int, error)
}

// Store persists the rendered PDF bytes and returns where they went.
type Store interface {
	Put(ctx context.Context, key string, pdf []byte) (location string, err error)
}
