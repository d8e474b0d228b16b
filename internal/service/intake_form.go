package service

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"branch-queue-engine/internal/domain/entity"
)

// FieldErrors maps intake field names to human-readable messages.
type FieldErrors map[string]string

// IntakeValidationError is returned when submitted intake data fails the
// service's bound form definition. Warnings carry non-fatal findings on
// optional fields; they never block a booking on their own.
type IntakeValidationError struct {
	Fields   FieldErrors
	Warnings FieldErrors
}

func (e *IntakeValidationError) Error() string {
	return fmt.Sprintf("intake validation failed for %d field(s)", len(e.Fields))
}

// IntakeValidator checks submitted values against a form's ordered field
// definitions. Field definitions live in the database, so the checks are
// data-driven rather than struct-tag based.
type IntakeValidator struct{}

func NewIntakeValidator() *IntakeValidator {
	return &IntakeValidator{}
}

// Validate checks the values against the form. Required fields must be
// present and non-blank and must pass their type check; on optional
// fields a failed type check is only recorded as a warning, which
// mirrors the permissive kiosk intake behaviour. Warnings are returned
// even when the submission passes, so callers can surface them.
func (v *IntakeValidator) Validate(form *entity.IntakeForm, values map[string]string) (FieldErrors, *IntakeValidationError) {
	if form == nil {
		return nil, nil
	}

	result := &IntakeValidationError{Fields: FieldErrors{}, Warnings: FieldErrors{}}

	for _, field := range form.Fields {
		raw, present := values[field.Name]
		value := strings.TrimSpace(raw)

		if value == "" {
			if field.Required {
				result.Fields[field.Name] = field.Label + " is required"
			} else if present {
				result.Warnings[field.Name] = field.Label + " is blank"
			}
			continue
		}

		if msg := checkFieldType(&field, value); msg != "" {
			if field.Required {
				result.Fields[field.Name] = msg
			} else {
				result.Warnings[field.Name] = msg
			}
		}
	}

	if len(result.Fields) == 0 {
		return result.Warnings, nil
	}
	return result.Warnings, result
}

func checkFieldType(field *entity.IntakeFormField, value string) string {
	switch field.Type {
	case entity.FieldTypeNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return field.Label + " must be a number"
		}
	case entity.FieldTypeDate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return field.Label + " must be a date in YYYY-MM-DD format"
		}
	case entity.FieldTypeEmail:
		if _, err := mail.ParseAddress(value); err != nil {
			return field.Label + " must be a valid email address"
		}
	case entity.FieldTypePhone:
		if countDigits(value) < 6 {
			return field.Label + " must be a valid phone number"
		}
	case entity.FieldTypeSelect:
		for _, option := range field.Options {
			if value == option {
				return ""
			}
		}
		return field.Label + " must be one of the listed options"
	}
	return ""
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
