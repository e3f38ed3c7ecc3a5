package extract

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/dgallion1/alertledger/internal/notice"
)

// Field names one required value of an entry.
type Field string

const (
	FieldAmount      Field = "amount"
	FieldAccount     Field = "account"
	FieldPostedDate  Field = "posted_date"
	FieldDescription Field = "description"
)

// PartialRecord accumulates field values while a document is parsed.
// A zero field is unset; a zero amount is treated as unset.
type PartialRecord struct {
	Amount      int64
	Account     string
	PostedDate  civil.Date
	Description string
}

// Has reports whether the field holds a usable value.
func (r PartialRecord) Has(f Field) bool {
	switch f {
	case FieldAmount:
		return r.Amount != 0
	case FieldAccount:
		return r.Account != ""
	case FieldPostedDate:
		return !r.PostedDate.IsZero()
	case FieldDescription:
		return r.Description != ""
	}
	return false
}

// Missing lists unset fields in a stable order.
func (r PartialRecord) Missing() []Field {
	var missing []Field
	for _, f := range []Field{FieldAmount, FieldAccount, FieldPostedDate, FieldDescription} {
		if !r.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// ErrIncomplete is matched by every *IncompleteError.
var ErrIncomplete = errors.New("incomplete document")

// IncompleteError reports a document that did not yield every field.
// It is an expected outcome for unrecognized or altered layouts.
type IncompleteError struct {
	Missing []Field
}

func (e *IncompleteError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("incomplete document: missing %s", strings.Join(names, ", "))
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncomplete
}

// Finalize converts a record into an entry when every field is set.
func Finalize(r PartialRecord) (notice.Entry, error) {
	if missing := r.Missing(); len(missing) > 0 {
		return notice.Entry{}, &IncompleteError{Missing: missing}
	}
	return notice.Entry{
		Amount:      r.Amount,
		Account:     r.Account,
		PostedDate:  r.PostedDate,
		Description: r.Description,
	}, nil
}

// MissingFields extracts the missing field list from an incomplete error.
func MissingFields(err error) []Field {
	var inc *IncompleteError
	if errors.As(err, &inc) {
		return inc.Missing
	}
	return nil
}
