// Package session holds the operator's receipt form: the student
// directory, the selected student's record, the editable fields and the
// export workflow. Every failure is reported through a single Notice.
package session

import (
	"errors"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
)

// NoticeKind classifies a notice.
type NoticeKind string

const (
	NoticeDirectoryLoad NoticeKind = "directory_load"
	NoticeDetailFetch   NoticeKind = "detail_fetch"
	NoticeValidation    NoticeKind = "validation"
	NoticeExport        NoticeKind = "export"
)

// Operator-facing messages.
const (
	MsgDirectoryLoad    = "Failed to fetch student names. Please try again."
	MsgDetailFetch      = "Failed to fetch student details. Please try again later."
	MsgValidation       = receipt.RequiredFieldsMessage
	MsgAssetUnavailable = "The receipt could not be finalized because the signature image did not load."
	MsgExportFailed     = "The receipt could not be saved. Please try again."
)

// Notice is the one error channel of a session.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

func exportNotice(err error) *Notice {
	if errors.Is(err, shared.ErrAssetUnavailable) {
		return &Notice{Kind: NoticeExport, Message: MsgAssetUnavailable}
	}
	return &Notice{Kind: NoticeExport, Message: MsgExportFailed}
}
