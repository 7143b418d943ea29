package postgres

import (
	"context"
	"fmt"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
)

// ReceiptRepository implements receipt.Archive for PostgreSQL.
type ReceiptRepository struct {
	conn *Connection
}

var _ receipt.Archive = (*ReceiptRepository)(nil)

// NewReceiptRepository creates a new ReceiptRepository.
func NewReceiptRepository(conn *Connection) *ReceiptRepository {
	return &ReceiptRepository{conn: conn}
}

// Save inserts a record. Records are immutable once written.
func (r *ReceiptRepository) Save(ctx context.Context, rec *receipt.Record) error {
	query := `
		INSERT INTO receipts (
			id, session_id, student_id, student_name, email, fees,
			filename, location, size_bytes, signed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.Exec(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.StudentID,
		rec.StudentName,
		rec.Email,
		rec.Fees,
		rec.Filename,
		rec.Location,
		rec.SizeBytes,
		rec.SignedWith,
		rec.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("receipt %s already archived: %w", rec.ID, err)
		}
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

// List returns records newest first.
func (r *ReceiptRepository) List(ctx context.Context, opts receipt.ListOptions) ([]*receipt.Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, session_id, student_id, student_name, email, fees,
		       filename, location, size_bytes, signed, created_at
		FROM receipts
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.conn.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var records []*receipt.Record
	for rows.Next() {
		var rec receipt.Record
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.StudentID,
			&rec.StudentName,
			&rec.Email,
			&rec.Fees,
			&rec.Filename,
			&rec.Location,
			&rec.SizeBytes,
			&rec.SignedWith,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Count returns the number of archived receipts.
func (r *ReceiptRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, "SELECT count(*) FROM receipts").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count receipts: %w", err)
	}
	return n, nil
}
