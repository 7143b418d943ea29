// Package receipt models the editable payment receipt: its fields, the
// presence rules checked before export, the export state machine, and the
// record kept for every saved receipt.
package receipt

import (
	"fmt"

	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
	"github.com/webmasters-learning/receipt-desk/internal/domain/student"
)

// Placeholder is rendered in place of any empty value.
const Placeholder = "N/A"

// RequiredFieldsMessage is shown when validation fails.
const RequiredFieldsMessage = "Student Name and Email are required fields."

// Field names a single editable receipt field. Values are the wire names.
type Field string

const (
	FieldStudentName       Field = "studentName"
	FieldEmail             Field = "email"
	FieldPaymentMethod     Field = "paymentMethod"
	FieldTransactionID     Field = "transactionId"
	FieldCourseDescription Field = "courseDescription"
	FieldFees              Field = "fees"
	FieldRemainingFees     Field = "remainingFees"
	FieldDate              Field = "date"
)

// Fields lists every editable field in display order.
var Fields = []Field{
	FieldStudentName,
	FieldEmail,
	FieldPaymentMethod,
	FieldTransactionID,
	FieldCourseDescription,
	FieldFees,
	FieldRemainingFees,
	FieldDate,
}

// ParseField validates a wire name.
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", shared.WrapError("receipt", "ParseField", shared.ErrInvalidInput,
		"unknown receipt field", fmt.Errorf("%w: %q", shared.ErrUnknownField, name))
}

// Form holds the receipt data as free text.
type Form struct {
	StudentName       string `json:"studentName"`
	Email             string `json:"email"`
	PaymentMethod     string `json:"paymentMethod"`
	TransactionID     string `json:"transactionId"`
	CourseDescription string `json:"courseDescription"`
	Fees              string `json:"fees"`
	RemainingFees     string `json:"remainingFees"`
	Date              string `json:"date"`
}

// NewForm returns an empty form dated today.
func NewForm(today string) Form {
	return Form{Date: today}
}

// FromDetail builds a fresh form from a fetched student record.
// Fields not supplied by the record start out empty.
func FromDetail(d student.Detail, today string) Form {
	return Form{
		StudentName:   d.Name,
		Email:         d.Email,
		Fees:          d.TotalFees,
		RemainingFees: d.RemainingFees,
		Date:          today,
	}
}

func (f *Form) ref(field Field) *string {
	switch field {
	case FieldStudentName:
		return &f.StudentName
	case FieldEmail:
		return &f.Email
	case FieldPaymentMethod:
		return &f.PaymentMethod
	case FieldTransactionID:
		return &f.TransactionID
	case FieldCourseDescription:
		return &f.CourseDescription
	case FieldFees:
		return &f.Fees
	case FieldRemainingFees:
		return &f.RemainingFees
	case FieldDate:
		return &f.Date
	}
	return nil
}

// With returns a copy of f with a single field replaced.
func (f Form) With(field Field, value string) (Form, error) {
	p := f.ref(field)
	if p == nil {
		return f, shared.WrapError("receipt", "UpdateField", shared.ErrInvalidInput,
			"unknown receipt field", fmt.Errorf("%w: %q", shared.ErrUnknownField, field))
	}
	*p = value
	return f, nil
}

// Get returns the value of a single field.
func (f Form) Get(field Field) string {
	if p := f.ref(field); p != nil {
		return *p
	}
	return ""
}

// Validate checks that the student name and email are present.
// No other field is inspected.
func (f Form) Validate() error {
	if f.StudentName == "" || f.Email == "" {
		return shared.ErrRequiredFields
	}
	return nil
}

// Row is one label/value line of the receipt table.
type Row struct {
	Label string
	Value string
}

// tableFields are the fields printed in the receipt table, in order. The
// date is printed in the header instead.
var tableFields = []struct {
	field Field
	label string
}{
	{FieldStudentName, "Student Name"},
	{FieldEmail, "Email"},
	{FieldPaymentMethod, "Payment Method"},
	{FieldTransactionID, "Transaction ID"},
	{FieldCourseDescription, "Course Description"},
	{FieldFees, "Fees"},
	{FieldRemainingFees, "Remaining Fees"},
}

// Rows returns the table body with empty values replaced by Placeholder.
func (f Form) Rows() []Row {
	rows := make([]Row, 0, len(tableFields))
	for _, tf := range tableFields {
		rows = append(rows, Row{Label: tf.label, Value: orPlaceholder(f.Get(tf.field))})
	}
	return rows
}

// Filename is the download name of the receipt. The student name is used
// verbatim.
func (f Form) Filename() string {
	return "Receipt-" + orPlaceholder(f.StudentName) + ".pdf"
}

func orPlaceholder(v string) string {
	if v == "" {
		return Placeholder
	}
	return v
}
