package compat

import (
	"strings"
	"testing"
)

func newComparator() *FieldComparator {
	return NewFieldComparator(DefaultThresholds())
}

func TestCompareNumber_Thresholds(t *testing.T) {
	c := newComparator()
	def := &FieldDefinition{Name: "power", Type: FieldTypeNumber, Metadata: FieldMetadata{Weight: 1}}

	tests := []struct {
		name string
		a, b float64
		want Level
	}{
		{"equal values", 100, 100, LevelFull},
		{"within five percent", 100, 105, LevelFull},
		{"ten percent higher", 100, 115, LevelPartial},
		{"fifty percent higher", 100, 200, LevelNone},
		{"both zero", 0, 0, LevelFull},
		{"negative pair within tolerance", -100, -104, LevelFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Compare("power", Number(tt.a), Number(tt.b), def, def)
			if got.Level != tt.want {
				t.Errorf("Compare(%v, %v) = %s, want %s", tt.a, tt.b, got.Level, tt.want)
			}
			if got.Message == "" {
				t.Error("expected a message naming the field and values")
			}
		})
	}
}

func TestCompareNumber_PartialMentionsMinorDifference(t *testing.T) {
	c := newComparator()
	got := c.Compare("power", Number(100), Number(115), nil, nil)
	if got.Level != LevelPartial {
		t.Fatalf("expected partial, got %s", got.Level)
	}
	if !strings.Contains(got.Message, "minor difference") {
		t.Errorf("message %q should mention the minor difference", got.Message)
	}
}

func TestCompareNumber_NoneMentionsSignificantDifference(t *testing.T) {
	c := newComparator()
	got := c.Compare("power", Number(100), Number(200), nil, nil)
	if got.Level != LevelNone {
		t.Fatalf("expected none, got %s", got.Level)
	}
	if !strings.Contains(got.Message, "differ significantly") {
		t.Errorf("message %q should mention the significant difference", got.Message)
	}
}

func TestCompareString_CaseInsensitive(t *testing.T) {
	c := newComparator()
	def := &FieldDefinition{Name: "connector", Type: FieldTypeString, Metadata: FieldMetadata{Weight: 0.8}}

	got := c.Compare("connector", String("USB-C"), String("usb-c"), def, def)
	if got.Level != LevelFull {
		t.Fatalf("expected full for case-only difference, got %s", got.Level)
	}
	if !strings.Contains(got.Message, "case-insensitive") {
		t.Errorf("message %q should mention case-insensitivity", got.Message)
	}
	if got.Weight != 0.8 {
		t.Errorf("weight = %v, want the field's declared 0.8", got.Weight)
	}
}

func TestCompareString_Containment(t *testing.T) {
	c := newComparator()
	got := c.Compare("protocol", String("Bluetooth 5.2"), String("Bluetooth"), nil, nil)
	if got.Level != LevelPartial {
		t.Errorf("expected partial for containment, got %s", got.Level)
	}

	got = c.Compare("protocol", String("Zigbee"), String("Z-Wave"), nil, nil)
	if got.Level != LevelNone {
		t.Errorf("expected none for unrelated strings, got %s", got.Level)
	}
}

func TestCompareString_ExactConstraint(t *testing.T) {
	c := newComparator()
	def := &FieldDefinition{
		Name:        "part_number",
		Type:        FieldTypeString,
		Constraints: FieldConstraints{Exact: true},
		Metadata:    FieldMetadata{Weight: 1},
	}

	got := c.Compare("part_number", String("AB-100"), String("ab-100"), def, def)
	if got.Level != LevelNone {
		t.Errorf("identifier strings must match exactly, got %s", got.Level)
	}
}

func TestCompareBoolean(t *testing.T) {
	c := newComparator()
	def := &FieldDefinition{Name: "wireless", Type: FieldTypeBoolean, Metadata: FieldMetadata{Weight: 1}}

	if got := c.Compare("wireless", Bool(true), Bool(true), def, def); got.Level != LevelFull {
		t.Errorf("equal booleans = %s, want full", got.Level)
	}
	if got := c.Compare("wireless", Bool(true), Bool(false), def, def); got.Level != LevelNone {
		t.Errorf("differing booleans = %s, want none", got.Level)
	}
}

func TestCompareEnum_Adjacency(t *testing.T) {
	c := newComparator()
	def := &FieldDefinition{
		Name:        "resolution",
		Type:        FieldTypeEnum,
		Constraints: FieldConstraints{Enum: []string{"low", "medium", "high", "ultra"}},
		Metadata:    FieldMetadata{Weight: 1},
	}

	tests := []struct {
		name string
		a, b string
		want Level
	}{
		{"equal", "medium", "medium", LevelFull},
		{"adjacent", "medium", "high", LevelPartial},
		{"non-adjacent", "low", "ultra", LevelNone},
		{"value outside ordering", "medium", "extreme", LevelNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Compare("resolution", String(tt.a), String(tt.b), def, def)
			if got.Level != tt.want {
				t.Errorf("Compare(%q, %q) = %s, want %s", tt.a, tt.b, got.Level, tt.want)
			}
		})
	}
}

func TestCompareEnum_AdjacentMessage(t *testing.T) {
	c := newComparator()
	def := &FieldDefinition{
		Name:        "resolution",
		Type:        FieldTypeEnum,
		Constraints: FieldConstraints{Enum: []string{"low", "medium", "high", "ultra"}},
	}
	got := c.Compare("resolution", String("medium"), String("high"), def, def)
	if !strings.Contains(got.Message, "adjacent in enum") {
		t.Errorf("message %q should mention enum adjacency", got.Message)
	}
}

func TestCompareArray_Overlap(t *testing.T) {
	c := newComparator()
	def := &FieldDefinition{Name: "features", Type: FieldTypeArray, Metadata: FieldMetadata{Weight: 1}}

	tests := []struct {
		name string
		a, b []string
		want Level
	}{
		{"identical", []string{"f1", "f2"}, []string{"f1", "f2"}, LevelFull},
		{"half overlap", []string{"f1", "f2", "f3"}, []string{"f2", "f3", "f4"}, LevelPartial},
		{"disjoint", []string{"f1"}, []string{"f2"}, LevelNone},
		{"both empty", nil, nil, LevelFull},
		{"four of five shared", []string{"a", "b", "c", "d"}, []string{"a", "b", "c", "d", "e"}, LevelFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Compare("features", stringArray(tt.a...), stringArray(tt.b...), def, def)
			if got.Level != tt.want {
				t.Errorf("Compare(%v, %v) = %s, want %s", tt.a, tt.b, got.Level, tt.want)
			}
		})
	}
}

func TestCompareArray_PartialMessage(t *testing.T) {
	c := newComparator()
	got := c.Compare("features", stringArray("f1", "f2", "f3"), stringArray("f2", "f3", "f4"), nil, nil)
	if got.Level != LevelPartial {
		t.Fatalf("overlap 0.5 should be partial, got %s", got.Level)
	}
	if !strings.Contains(got.Message, "partial overlap") {
		t.Errorf("message %q should mention the partial overlap", got.Message)
	}
}

func TestCompareObject_OneLevel(t *testing.T) {
	c := newComparator()
	def := &FieldDefinition{Name: "dimensions", Type: FieldTypeObject, Metadata: FieldMetadata{Weight: 0.5}}

	a := Object(map[string]Value{"width": Number(100), "height": Number(50)})
	b := Object(map[string]Value{"width": Number(100), "height": Number(51)})
	if got := c.Compare("dimensions", a, b, def, def); got.Level != LevelFull {
		t.Errorf("near-equal sub-values = %s, want full", got.Level)
	}

	b = Object(map[string]Value{"width": Number(100), "height": Number(200)})
	if got := c.Compare("dimensions", a, b, def, def); got.Level != LevelNone {
		t.Errorf("one significantly different sub-value = %s, want none (worst-case)", got.Level)
	}

	b = Object(map[string]Value{"depth": Number(30)})
	if got := c.Compare("dimensions", a, b, def, def); got.Level != LevelFull {
		t.Errorf("no shared sub-keys = %s, want full (skip)", got.Level)
	}
}

func TestCompare_DeclaredTypeMismatch(t *testing.T) {
	c := newComparator()
	numDef := &FieldDefinition{Name: "ports", Type: FieldTypeNumber}
	strDef := &FieldDefinition{Name: "ports", Type: FieldTypeString}

	got := c.Compare("ports", Number(4), String("4"), numDef, strDef)
	if got.Level != LevelNone {
		t.Errorf("declared type mismatch = %s, want none", got.Level)
	}
	if !strings.Contains(got.Message, "type") {
		t.Errorf("message %q should explain the type mismatch", got.Message)
	}
}

func TestCompare_ValueKindMismatchWithoutSchema(t *testing.T) {
	c := newComparator()
	got := c.Compare("ports", Number(4), String("four"), nil, nil)
	if got.Level != LevelNone {
		t.Errorf("kind mismatch = %s, want none", got.Level)
	}
}

func TestCompare_WeightDefaultsToOne(t *testing.T) {
	c := newComparator()
	got := c.Compare("anything", String("a"), String("a"), nil, nil)
	if got.Weight != 1.0 {
		t.Errorf("undeclared field weight = %v, want 1.0", got.Weight)
	}
}

func stringArray(elems ...string) Value {
	vals := make([]Value, len(elems))
	for i, e := range elems {
		vals[i] = String(e)
	}
	return Array(vals...)
}
