package crm

import (
	"errors"
	"fmt"

	"github.com/okian/arena/internal/domain/model"
)

// ErrValidation is the kind matched by every ValidationError.
var ErrValidation = errors.New("payload validation failed")

// ValidationError reports the first constraint a payload violated.
type ValidationError struct {
	Source     model.SourceSystem
	Field      string // path inside the payload, e.g. records[2].external_user_id
	Constraint string // validator tag such as required, max=12, or type
	Detail     string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s payload: ", e.Source)
	if e.Field != "" {
		msg += e.Field + ": "
	}
	msg += e.Constraint
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(src model.SourceSystem, field, constraint, detail string) error {
	return &ValidationError{Source: src, Field: field, Constraint: constraint, Detail: detail}
}
