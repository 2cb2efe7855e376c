package compat

import (
	"fmt"
	"math"
	"strings"
)

// Thresholds are the policy constants behind partial-match scoring. They are
// tunable per comparator instance; the defaults are deliberate policy, not
// derived values, and tests depend on them verbatim.
type Thresholds struct {
	// NumberFull is the maximum relative difference treated as a full
	// match for numeric fields.
	NumberFull float64
	// NumberPartial is the maximum relative difference treated as a
	// partial match ("minor difference") for numeric fields.
	NumberPartial float64
	// ArrayFull is the minimum Jaccard overlap treated as a full match
	// for array fields.
	ArrayFull float64
	// EnumAdjacency is the maximum distance between two enum positions
	// still treated as a partial match.
	EnumAdjacency int
}

// DefaultThresholds returns the stock policy: 5%/20% for numbers, 0.8 array
// overlap, enum adjacency distance 1.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NumberFull:    0.05,
		NumberPartial: 0.20,
		ArrayFull:     0.8,
		EnumAdjacency: 1,
	}
}

// epsilon guards the relative-difference denominator when both values are
// at or near zero.
const epsilon = 1e-9

// FieldComparator compares a single field's two values, dispatching on the
// field's declared type. It is stateless apart from its thresholds and safe
// for concurrent use.
type FieldComparator struct {
	thresholds Thresholds
}

// NewFieldComparator creates a comparator with the given thresholds.
func NewFieldComparator(thresholds Thresholds) *FieldComparator {
	return &FieldComparator{thresholds: thresholds}
}

// Compare produces the verdict for one field. srcDef and dstDef are the
// field's definitions on each side; either may be nil when the schema lookup
// degraded, in which case the type is inferred from the value itself.
func (c *FieldComparator) Compare(name string, src, dst Value, srcDef, dstDef *FieldDefinition) FieldResult {
	weight := fieldWeight(srcDef, dstDef)

	// A declared type disagreement is always a hard incompatibility;
	// the comparator never guesses across it.
	if srcDef != nil && dstDef != nil && srcDef.Type != dstDef.Type {
		return FieldResult{
			Level:  LevelNone,
			Weight: weight,
			Message: fmt.Sprintf("%s: declared types differ (%s vs %s)",
				name, srcDef.Type, dstDef.Type),
		}
	}

	def := srcDef
	if def == nil {
		def = dstDef
	}

	fieldType := effectiveType(def, src)

	if fieldType != FieldTypeEnum && src.Kind() != dst.Kind() {
		return FieldResult{
			Level:  LevelNone,
			Weight: weight,
			Message: fmt.Sprintf("%s: value kinds differ (%s vs %s)",
				name, src.Kind(), dst.Kind()),
		}
	}

	var result FieldResult
	switch fieldType {
	case FieldTypeBoolean:
		result = c.compareExact(name, src, dst)
	case FieldTypeString:
		if def != nil && def.Constraints.Exact {
			result = c.compareExact(name, src, dst)
		} else {
			result = c.compareString(name, src, dst)
		}
	case FieldTypeNumber:
		result = c.compareNumber(name, src, dst)
	case FieldTypeEnum:
		result = c.compareEnum(name, src, dst, def)
	case FieldTypeArray:
		result = c.compareArray(name, src, dst)
	case FieldTypeObject:
		result = c.compareObject(name, src, dst)
	default:
		result = c.compareExact(name, src, dst)
	}

	result.Weight = weight
	return result
}

// effectiveType resolves the type to dispatch on: the declared type when a
// definition survived the schema lookup, otherwise the value's own kind.
func effectiveType(def *FieldDefinition, v Value) FieldType {
	if def != nil && def.Type != "" {
		return def.Type
	}
	switch v.Kind() {
	case KindString:
		return FieldTypeString
	case KindNumber:
		return FieldTypeNumber
	case KindBool:
		return FieldTypeBoolean
	case KindArray:
		return FieldTypeArray
	case KindObject:
		return FieldTypeObject
	}
	return FieldTypeString
}

// fieldWeight picks the scoring weight from the side that declares one,
// defaulting to 1.0 when the field is undeclared on both sides.
func fieldWeight(srcDef, dstDef *FieldDefinition) float64 {
	if srcDef != nil && srcDef.Metadata.Weight > 0 {
		return srcDef.Metadata.Weight
	}
	if dstDef != nil && dstDef.Metadata.Weight > 0 {
		return dstDef.Metadata.Weight
	}
	return 1.0
}

// compareExact handles identifier strings and booleans: equal or nothing.
func (c *FieldComparator) compareExact(name string, src, dst Value) FieldResult {
	if src.Equal(dst) {
		return FieldResult{
			Level:   LevelFull,
			Message: fmt.Sprintf("%s: %s matches exactly", name, src.Summary()),
		}
	}
	return FieldResult{
		Level:   LevelNone,
		Message: fmt.Sprintf("%s: %s and %s do not match", name, src.Summary(), dst.Summary()),
	}
}

// compareString scores general strings: case-insensitive equality is a full
// match, substring containment either way is a partial match.
func (c *FieldComparator) compareString(name string, src, dst Value) FieldResult {
	a, _ := src.AsString()
	b, _ := dst.AsString()

	if a == b {
		return FieldResult{
			Level:   LevelFull,
			Message: fmt.Sprintf("%s: %s matches exactly", name, src.Summary()),
		}
	}

	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return FieldResult{
			Level:   LevelFull,
			Message: fmt.Sprintf("%s: %s and %s are a case-insensitive match", name, src.Summary(), dst.Summary()),
		}
	}
	if la != "" && lb != "" && (strings.Contains(la, lb) || strings.Contains(lb, la)) {
		return FieldResult{
			Level:   LevelPartial,
			Message: fmt.Sprintf("%s: %s and %s overlap but are not equivalent", name, src.Summary(), dst.Summary()),
		}
	}
	return FieldResult{
		Level:   LevelNone,
		Message: fmt.Sprintf("%s: %s and %s do not match", name, src.Summary(), dst.Summary()),
	}
}

// compareNumber scores numbers by relative difference:
// <=5% full, <=20% partial (minor difference), otherwise none.
func (c *FieldComparator) compareNumber(name string, src, dst Value) FieldResult {
	a, _ := src.AsNumber()
	b, _ := dst.AsNumber()

	denom := math.Max(math.Max(math.Abs(a), math.Abs(b)), epsilon)
	rel := math.Abs(a-b) / denom

	switch {
	case rel <= c.thresholds.NumberFull:
		return FieldResult{
			Level:   LevelFull,
			Message: fmt.Sprintf("%s: %s and %s are within %.0f%%", name, src.Summary(), dst.Summary(), c.thresholds.NumberFull*100),
		}
	case rel <= c.thresholds.NumberPartial:
		return FieldResult{
			Level:   LevelPartial,
			Message: fmt.Sprintf("%s: %s and %s show a minor difference (%.0f%%)", name, src.Summary(), dst.Summary(), rel*100),
		}
	default:
		return FieldResult{
			Level:   LevelNone,
			Message: fmt.Sprintf("%s: %s and %s differ significantly (%.0f%%)", name, src.Summary(), dst.Summary(), rel*100),
		}
	}
}

// compareEnum scores enum values by position in the declared ordering:
// equal full, adjacent partial, otherwise none. A value missing from the
// ordering cannot be placed and scores none.
func (c *FieldComparator) compareEnum(name string, src, dst Value, def *FieldDefinition) FieldResult {
	a, aok := src.AsString()
	b, bok := dst.AsString()
	if !aok || !bok {
		return FieldResult{
			Level:   LevelNone,
			Message: fmt.Sprintf("%s: enum values must be strings, got %s and %s", name, src.Kind(), dst.Kind()),
		}
	}

	if a == b {
		return FieldResult{
			Level:   LevelFull,
			Message: fmt.Sprintf("%s: %s matches exactly", name, src.Summary()),
		}
	}

	var ordering []string
	if def != nil {
		ordering = def.Constraints.Enum
	}
	ia, ib := -1, -1
	for i, v := range ordering {
		if v == a {
			ia = i
		}
		if v == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return FieldResult{
			Level:   LevelNone,
			Message: fmt.Sprintf("%s: %s and %s cannot be placed in the declared ordering", name, src.Summary(), dst.Summary()),
		}
	}

	if abs(ia-ib) <= c.thresholds.EnumAdjacency {
		return FieldResult{
			Level:   LevelPartial,
			Message: fmt.Sprintf("%s: %s and %s are adjacent in enum", name, src.Summary(), dst.Summary()),
		}
	}
	return FieldResult{
		Level:   LevelNone,
		Message: fmt.Sprintf("%s: %s and %s are not adjacent in enum", name, src.Summary(), dst.Summary()),
	}
}

// compareArray scores arrays by Jaccard overlap of their element sets:
// >=0.8 full, anything above zero partial, zero none. Two empty arrays are
// identical and score full.
func (c *FieldComparator) compareArray(name string, src, dst Value) FieldResult {
	as, _ := src.AsArray()
	bs, _ := dst.AsArray()

	setA := make(map[string]struct{}, len(as))
	for _, v := range as {
		setA[v.canonical()] = struct{}{}
	}
	setB := make(map[string]struct{}, len(bs))
	for _, v := range bs {
		setB[v.canonical()] = struct{}{}
	}

	union := len(setA)
	intersection := 0
	for k := range setB {
		if _, ok := setA[k]; ok {
			intersection++
		} else {
			union++
		}
	}

	if union == 0 {
		return FieldResult{
			Level:   LevelFull,
			Message: fmt.Sprintf("%s: both sides are empty", name),
		}
	}

	overlap := float64(intersection) / float64(union)
	switch {
	case overlap >= c.thresholds.ArrayFull:
		return FieldResult{
			Level:   LevelFull,
			Message: fmt.Sprintf("%s: %s and %s overlap at %.0f%%", name, src.Summary(), dst.Summary(), overlap*100),
		}
	case overlap > 0:
		return FieldResult{
			Level:   LevelPartial,
			Message: fmt.Sprintf("%s: %s and %s show partial overlap (%.0f%%)", name, src.Summary(), dst.Summary(), overlap*100),
		}
	default:
		return FieldResult{
			Level:   LevelNone,
			Message: fmt.Sprintf("%s: %s and %s share no elements", name, src.Summary(), dst.Summary()),
		}
	}
}

// compareObject compares matching sub-keys one level deep, with the same
// worst-case aggregation as the overall engine. Sub-fields have no schema
// definitions; their types are inferred from the values.
func (c *FieldComparator) compareObject(name string, src, dst Value) FieldResult {
	ao, _ := src.AsObject()
	bo, _ := dst.AsObject()

	level := LevelFull
	compared := 0
	var worst string
	for _, key := range sortedFieldNames(ao) {
		bv, ok := bo[key]
		if !ok {
			continue
		}
		sub := c.Compare(name+"."+key, ao[key], bv, nil, nil)
		compared++
		if sub.Level < level {
			level = sub.Level
			worst = sub.Message
		}
	}

	if compared == 0 {
		return FieldResult{
			Level:   LevelFull,
			Message: fmt.Sprintf("%s: no shared keys to compare", name),
		}
	}
	if level == LevelFull {
		return FieldResult{
			Level:   LevelFull,
			Message: fmt.Sprintf("%s: all %d shared keys match", name, compared),
		}
	}
	return FieldResult{
		Level:   level,
		Message: worst,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
