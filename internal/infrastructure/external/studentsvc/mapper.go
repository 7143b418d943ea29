package studentsvc

import (
	"errors"

	"github.com/webmasters-learning/receipt-desk/internal/domain/student"
)

// ErrNilDTO is returned when asked to map a nil DTO.
var ErrNilDTO = errors.New("studentsvc: nil DTO")

// Mapper converts service DTOs into domain entities, keeping the wire
// format out of the domain.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// SummariesFromDTO converts the directory listing. Entries without an
// identifier cannot be selected and are dropped.
func (m *Mapper) SummariesFromDTO(dtos []SummaryDTO) []student.Summary {
	out := make([]student.Summary, 0, len(dtos))
	for _, d := range dtos {
		key := d.Key()
		if key == "" {
			continue
		}
		out = append(out, student.Summary{ID: key, Name: string(d.Name)})
	}
	return out
}

// DetailFromDTO converts a detail record. requestedID is used when the
// body does not echo an identifier back.
func (m *Mapper) DetailFromDTO(dto *DetailDTO, requestedID string) (*student.Detail, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	id := string(dto.MongoID)
	if id == "" {
		id = string(dto.ID)
	}
	if id == "" {
		id = requestedID
	}

	return &student.Detail{
		ID:            id,
		Name:          string(dto.Name),
		Email:         string(dto.Email),
		TotalFees:     string(dto.TotalFees),
		RemainingFees: string(dto.RemainingFees),
	}, nil
}
