package engine

import (
	"fmt"
	"strings"

	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
)

// NotFoundError is returned when an operation references an unknown entity
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// InvalidStateError is returned when a medication is already in a terminal state
type InvalidStateError struct {
	MedicationID string
	Status       model.DoseStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("medication %s is already %s", e.MedicationID, e.Status)
}

// FieldError describes one rejected input field
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned for malformed or incomplete input
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// InsufficientFundsError is returned when a purchase exceeds the coin balance
type InsufficientFundsError struct {
	Balance float64
	Price   float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient coins: balance %.1f, price %.1f", e.Balance, e.Price)
}
