package compat

import (
	"fmt"
	"time"
)

// FieldType declares the contract of a specification field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeEnum    FieldType = "enum"
	FieldTypeArray   FieldType = "array"
	FieldTypeObject  FieldType = "object"
)

// Importance grades how much a field matters for a category.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// FieldConstraints carries type-specific restrictions on a field's values.
type FieldConstraints struct {
	// Enum lists the permitted values for enum fields. The order is
	// significant: adjacency in this list drives partial-match scoring.
	Enum []string `json:"enum,omitempty"`

	// Min/Max bound numeric fields when set.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	// Exact marks a string field as an identifier: values must match
	// exactly, with no case folding or containment scoring.
	Exact bool `json:"exact,omitempty"`
}

// FieldMetadata carries display and scoring metadata for a field.
type FieldMetadata struct {
	Label      string     `json:"label,omitempty"`
	Importance Importance `json:"importance,omitempty"`
	// Weight in [0,1] scales the field's contribution to the aggregate
	// confidence. Required for any field participating in scoring.
	Weight float64 `json:"weight"`
}

// FieldDefinition declares one specification field's contract within a
// schema version.
type FieldDefinition struct {
	Name        string           `json:"name"`
	Type        FieldType        `json:"type"`
	Constraints FieldConstraints `json:"constraints,omitempty"`
	Metadata    FieldMetadata    `json:"metadata"`
}

// CategorySchema is the versioned description of a device category's
// specification shape. A version is immutable once referenced by a stored
// specification; the engine only reads it.
type CategorySchema struct {
	CategoryID string            `json:"category_id"`
	Version    string            `json:"version"`
	Fields     []FieldDefinition `json:"fields"`
	CreatedAt  time.Time         `json:"created_at,omitempty"`
}

// Field returns the definition with the given name, if declared.
func (s *CategorySchema) Field(name string) (*FieldDefinition, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Validate checks the schema's structural invariants.
func (s *CategorySchema) Validate() error {
	if s.CategoryID == "" {
		return fmt.Errorf("schema is missing a category id")
	}
	if s.Version == "" {
		return fmt.Errorf("schema for category %s is missing a version", s.CategoryID)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s/%s has a field without a name", s.CategoryID, s.Version)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema %s/%s declares field %q twice", s.CategoryID, s.Version, f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Type {
		case FieldTypeString, FieldTypeNumber, FieldTypeBoolean, FieldTypeArray, FieldTypeObject:
		case FieldTypeEnum:
			if len(f.Constraints.Enum) == 0 {
				return fmt.Errorf("enum field %q in schema %s/%s has no enum values", f.Name, s.CategoryID, s.Version)
			}
		default:
			return fmt.Errorf("field %q in schema %s/%s has unknown type %q", f.Name, s.CategoryID, s.Version, f.Type)
		}

		if f.Metadata.Weight < 0 || f.Metadata.Weight > 1 {
			return fmt.Errorf("field %q in schema %s/%s has weight %v outside [0,1]", f.Name, s.CategoryID, s.Version, f.Metadata.Weight)
		}
	}
	return nil
}

// CheckValueType verifies that a value is representable under the declared
// field type. Enum values are carried as strings.
func CheckValueType(name string, v Value, ft FieldType) error {
	ok := false
	switch ft {
	case FieldTypeString, FieldTypeEnum:
		ok = v.Kind() == KindString
	case FieldTypeNumber:
		ok = v.Kind() == KindNumber
	case FieldTypeBoolean:
		ok = v.Kind() == KindBool
	case FieldTypeArray:
		ok = v.Kind() == KindArray
	case FieldTypeObject:
		ok = v.Kind() == KindObject
	default:
		return fmt.Errorf("field %q has unknown type %q", name, ft)
	}
	if !ok {
		return fmt.Errorf("field %q must be of type %s, got %s", name, ft, v.Kind())
	}
	return nil
}

// DeviceSpec is the runtime unit the engine compares: one device's
// specification payload together with the coordinates of the schema that
// governs it. The engine does not persist it.
type DeviceSpec struct {
	DeviceID       string           `json:"device_id"`
	CategoryID     string           `json:"category_id"`
	SchemaVersion  string           `json:"schema_version"`
	Specifications map[string]Value `json:"specifications"`
	CreatedAt      time.Time        `json:"created_at,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at,omitempty"`
}

// DisplayName returns the device's human-facing name: the "name" or
// "display_name" specification when present, otherwise the device id.
func (d *DeviceSpec) DisplayName() string {
	for _, key := range []string{"name", "display_name"} {
		if v, ok := d.Specifications[key]; ok {
			if s, isStr := v.AsString(); isStr && s != "" {
				return s
			}
		}
	}
	return d.DeviceID
}
