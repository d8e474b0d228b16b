package service

import (
	"testing"

	"branch-queue-engine/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testForm() *entity.IntakeForm {
	formID := uuid.New()
	return &entity.IntakeForm{
		ID:   formID,
		Name: "Visit Intake",
		Fields: []entity.IntakeFormField{
			{FormID: formID, Name: "full_name", Label: "Full Name", Type: entity.FieldTypeText, Required: true},
			{FormID: formID, Name: "age", Label: "Age", Type: entity.FieldTypeNumber, Required: true},
			{FormID: formID, Name: "visit_date", Label: "Visit Date", Type: entity.FieldTypeDate},
			{FormID: formID, Name: "email", Label: "Email", Type: entity.FieldTypeEmail},
			{FormID: formID, Name: "phone", Label: "Phone", Type: entity.FieldTypePhone},
			{FormID: formID, Name: "channel", Label: "Preferred Channel", Type: entity.FieldTypeSelect, Options: entity.StringSlice{"email", "sms"}},
		},
	}
}

func TestIntakeValidatorAcceptsValidValues(t *testing.T) {
	v := NewIntakeValidator()

	warnings, err := v.Validate(testForm(), map[string]string{
		"full_name":  "Dana Ismail",
		"age":        "42",
		"visit_date": "2026-09-10",
		"email":      "dana@example.com",
		"phone":      "+62 811 2233 44",
		"channel":    "sms",
	})
	assert.Nil(t, err)
	assert.Empty(t, warnings)
}

func TestIntakeValidatorNilFormIsPermissive(t *testing.T) {
	v := NewIntakeValidator()
	warnings, err := v.Validate(nil, map[string]string{"anything": "goes"})
	assert.Nil(t, err)
	assert.Empty(t, warnings)
}

func TestIntakeValidatorRequiredFields(t *testing.T) {
	v := NewIntakeValidator()

	_, err := v.Validate(testForm(), map[string]string{
		"full_name": "   ", // whitespace only
	})
	require.NotNil(t, err)
	assert.Contains(t, err.Fields, "full_name")
	assert.Contains(t, err.Fields, "age")
	assert.NotContains(t, err.Fields, "visit_date")
}

func TestIntakeValidatorTypeChecks(t *testing.T) {
	v := NewIntakeValidator()

	_, err := v.Validate(testForm(), map[string]string{
		"full_name": "Dana Ismail",
		"age":       "forty-two",
	})
	require.NotNil(t, err)
	assert.Equal(t, "Age must be a number", err.Fields["age"])
}

func TestIntakeValidatorOptionalFailuresAreWarnings(t *testing.T) {
	v := NewIntakeValidator()

	// All required fields pass; the optional ones carry bad values. The
	// submission goes through but every finding comes back as a warning.
	warnings, err := v.Validate(testForm(), map[string]string{
		"full_name":  "Dana Ismail",
		"age":        "42",
		"visit_date": "10/09/2026",
		"email":      "not-an-email",
		"phone":      "123",
		"channel":    "fax",
	})
	assert.Nil(t, err, "optional field failures must not block")
	assert.Equal(t, "Visit Date must be a date in YYYY-MM-DD format", warnings["visit_date"])
	assert.Contains(t, warnings, "email")
	assert.Contains(t, warnings, "phone")
	assert.Contains(t, warnings, "channel")
}

func TestIntakeValidatorWarningsReportedAlongsideErrors(t *testing.T) {
	v := NewIntakeValidator()

	warnings, err := v.Validate(testForm(), map[string]string{
		"age":     "42",
		"email":   "not-an-email",
		"channel": "fax",
	})
	require.NotNil(t, err)
	assert.Contains(t, err.Fields, "full_name")
	assert.Contains(t, err.Warnings, "email")
	assert.Contains(t, err.Warnings, "channel")
	assert.Equal(t, err.Warnings, warnings)
}

func TestIntakeValidatorSelectMembership(t *testing.T) {
	v := NewIntakeValidator()
	form := testForm()
	form.Fields = []entity.IntakeFormField{
		{Name: "channel", Label: "Preferred Channel", Type: entity.FieldTypeSelect, Required: true, Options: entity.StringSlice{"email", "sms"}},
	}

	_, err := v.Validate(form, map[string]string{"channel": "carrier pigeon"})
	require.NotNil(t, err)
	assert.Equal(t, "Preferred Channel must be one of the listed options", err.Fields["channel"])

	_, err = v.Validate(form, map[string]string{"channel": "email"})
	assert.Nil(t, err)
}
