package compat

import "testing"

func validSchema() *CategorySchema {
	return &CategorySchema{
		CategoryID: "usb-hubs",
		Version:    "v1",
		Fields: []FieldDefinition{
			{Name: "connector", Type: FieldTypeString, Metadata: FieldMetadata{Weight: 0.9}},
			{
				Name:        "resolution",
				Type:        FieldTypeEnum,
				Constraints: FieldConstraints{Enum: []string{"low", "medium", "high"}},
				Metadata:    FieldMetadata{Weight: 0.5},
			},
		},
	}
}

func TestCategorySchema_Validate(t *testing.T) {
	if err := validSchema().Validate(); err != nil {
		t.Errorf("valid schema rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*CategorySchema)
	}{
		{"missing category id", func(s *CategorySchema) { s.CategoryID = "" }},
		{"missing version", func(s *CategorySchema) { s.Version = "" }},
		{"duplicate field name", func(s *CategorySchema) {
			s.Fields = append(s.Fields, FieldDefinition{Name: "connector", Type: FieldTypeString})
		}},
		{"enum without values", func(s *CategorySchema) {
			s.Fields[1].Constraints.Enum = nil
		}},
		{"unknown field type", func(s *CategorySchema) {
			s.Fields[0].Type = "matrix"
		}},
		{"weight out of range", func(s *CategorySchema) {
			s.Fields[0].Metadata.Weight = 1.5
		}},
		{"unnamed field", func(s *CategorySchema) {
			s.Fields[0].Name = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchema()
			tt.mutate(s)
			if err := s.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestCategorySchema_Field(t *testing.T) {
	s := validSchema()

	def, ok := s.Field("connector")
	if !ok || def.Name != "connector" {
		t.Errorf("Field(connector) = %v, %v", def, ok)
	}
	if _, ok := s.Field("missing"); ok {
		t.Error("Field(missing) should report absence")
	}

	var nilSchema *CategorySchema
	if _, ok := nilSchema.Field("connector"); ok {
		t.Error("nil schema should report absence, not panic")
	}
}

func TestDeviceSpec_DisplayName(t *testing.T) {
	spec := &DeviceSpec{
		DeviceID:       "dev-1",
		Specifications: map[string]Value{"name": String("Label Printer")},
	}
	if got := spec.DisplayName(); got != "Label Printer" {
		t.Errorf("DisplayName() = %q, want the name specification", got)
	}

	spec = &DeviceSpec{DeviceID: "dev-2", Specifications: map[string]Value{}}
	if got := spec.DisplayName(); got != "dev-2" {
		t.Errorf("DisplayName() = %q, want the device id fallback", got)
	}
}
