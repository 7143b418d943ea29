// Package studentsvc implements the client for the external student-record
// service: the directory listing and the per-student detail record.
package studentsvc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT DTOs
// ══════════════════════════════════════════════════════════════════════════════

// SummaryDTO is one element of the directory listing.
// The service keys students by a document id in "_id"; "id" is accepted
// for services that expose a plain identifier. Identifiers are opaque and
// may be numbers on the wire.
type SummaryDTO struct {
	MongoID FlexText `json:"_id"`
	ID      FlexText `json:"id"`
	Name    FlexText `json:"name"`
}

// Key returns whichever identifier the service supplied.
func (s SummaryDTO) Key() string {
	if s.MongoID != "" {
		return string(s.MongoID)
	}
	return string(s.ID)
}

// DetailDTO is a single student's record.
type DetailDTO struct {
	MongoID       FlexText `json:"_id,omitempty"`
	ID            FlexText `json:"id,omitempty"`
	Name          FlexText `json:"name"`
	Email         FlexText `json:"email"`
	TotalFees     FlexText `json:"totalFees"`
	RemainingFees FlexText `json:"remainingFees"`
}

// FlexText accepts a JSON string, number, boolean or null and keeps it as
// text. Fee amounts arrive as either strings or numbers depending on how
// the record was created.
type FlexText string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexText(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = FlexText(strconv.FormatBool(b))
	case '{', '[':
		return fmt.Errorf("flex text: unsupported JSON value %s", data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = FlexText(n.String())
	}
	return nil
}

// APIErrorDTO is the error body some deployments return alongside 4xx/5xx.
type APIErrorDTO struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Reason  string `json:"error"`
}

// Error implements error.
func (e *APIErrorDTO) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if msg == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, msg)
}
