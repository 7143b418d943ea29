package student

import "context"

// Source is the port to the external student-record service.
// Implementations live in infrastructure/external and must not retry.
type Source interface {
	// ListStudents returns every student's id and name.
	ListStudents(ctx context.Context) ([]Summary, error)

	// GetStudent returns the full record for id.
	// Returns shared.ErrStudentNotFound if the service does not know id.
	GetStudent(ctx context.Context, id string) (*Detail, error)
}
