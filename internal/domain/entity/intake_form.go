package entity

import (
	"time"

	"github.com/google/uuid"
)

// Field types accepted by intake forms.
const (
	FieldTypeText     = "text"
	FieldTypeTextarea = "textarea"
	FieldTypeNumber   = "number"
	FieldTypeDate     = "date"
	FieldTypeEmail    = "email"
	FieldTypePhone    = "phone"
	FieldTypeSelect   = "select"
)

// IntakeForm is a service-specific structured intake definition bound to
// bookings and tickets at creation time.
type IntakeForm struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Fields []IntakeFormField `gorm:"foreignKey:FormID" json:"fields,omitempty"`
}

func (IntakeForm) TableName() string {
	return "intake_forms"
}

// IntakeFormField is one ordered field definition of an intake form.
type IntakeFormField struct {
	ID       uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	FormID   uuid.UUID   `gorm:"type:uuid;not null;index" json:"form_id"`
	Name     string      `gorm:"type:varchar(100);not null" json:"name"`
	Label    string      `gorm:"type:varchar(255);not null" json:"label"`
	Type     string      `gorm:"type:varchar(20);not null;default:'text'" json:"type"`
	Required bool        `gorm:"not null;default:false" json:"required"`
	Options  StringSlice `gorm:"type:jsonb" json:"options,omitempty"`
	Position int         `gorm:"not null;default:0" json:"position"`
}

func (IntakeFormField) TableName() string {
	return "intake_form_fields"
}
