package compat

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

type staticResolver struct {
	schemas map[string]*CategorySchema
	err     error
}

func (r *staticResolver) ResolveSchema(ctx context.Context, categoryID, version string) (*CategorySchema, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.schemas[categoryID+"/"+version], nil
}

func hubSchema() *CategorySchema {
	return &CategorySchema{
		CategoryID: "usb-hubs",
		Version:    "v1",
		Fields: []FieldDefinition{
			{Name: "connector", Type: FieldTypeString, Metadata: FieldMetadata{Weight: 0.9, Importance: ImportanceHigh}},
			{Name: "power_output", Type: FieldTypeNumber, Metadata: FieldMetadata{Weight: 0.7}},
			{Name: "features", Type: FieldTypeArray, Metadata: FieldMetadata{Weight: 0.4}},
		},
	}
}

func peripheralSchema() *CategorySchema {
	return &CategorySchema{
		CategoryID: "peripherals",
		Version:    "v1",
		Fields: []FieldDefinition{
			{Name: "connector", Type: FieldTypeString, Metadata: FieldMetadata{Weight: 0.9, Importance: ImportanceHigh}},
			{Name: "power_required", Type: FieldTypeNumber, Metadata: FieldMetadata{Weight: 0.7}},
			{Name: "features", Type: FieldTypeArray, Metadata: FieldMetadata{Weight: 0.4}},
		},
	}
}

func testResolver() *staticResolver {
	return &staticResolver{schemas: map[string]*CategorySchema{
		"usb-hubs/v1":    hubSchema(),
		"peripherals/v1": peripheralSchema(),
	}}
}

func peripheral(power float64) *DeviceSpec {
	return &DeviceSpec{
		DeviceID:      "printer-1",
		CategoryID:    "peripherals",
		SchemaVersion: "v1",
		Specifications: map[string]Value{
			"name":           String("Label Printer"),
			"connector":      String("USB-C"),
			"power_required": Number(power),
			"features":       stringArray("print", "scan"),
		},
	}
}

func hub(power float64) *DeviceSpec {
	return &DeviceSpec{
		DeviceID:      "hub-1",
		CategoryID:    "usb-hubs",
		SchemaVersion: "v1",
		Specifications: map[string]Value{
			"display_name": String("USB Hub"),
			"connector":    String("usb-c"),
			"power_output": Number(power),
			"features":     stringArray("print", "scan"),
		},
	}
}

func TestEngine_Compare_FullyCompatible(t *testing.T) {
	engine := NewEngine(testResolver())
	rules := []Rule{{
		ID:          "rule-power",
		Name:        PowerRuleName,
		SourceField: "power_required",
		TargetField: "power_output",
	}}

	result, err := engine.Compare(context.Background(), peripheral(100), hub(120), rules)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if result.Compatible != LevelFull {
		t.Errorf("compatible = %s, want full\ndetails: %s", result.Compatible, result.Details)
	}
	if result.Confidence <= 0.9 {
		t.Errorf("confidence = %v, want > 0.9", result.Confidence)
	}
	if !reflect.DeepEqual(result.MatchedRules, []string{"rule-power"}) {
		t.Errorf("matched rules = %v, want [rule-power]", result.MatchedRules)
	}
	if len(result.Limitations) != 0 {
		t.Errorf("limitations = %v, want none", result.Limitations)
	}
	if _, ok := result.FieldResults["connector"]; !ok {
		t.Error("connector field should appear in the per-field results")
	}
}

func TestEngine_Compare_PowerShortfallIsNone(t *testing.T) {
	engine := NewEngine(testResolver())
	rules := []Rule{{
		ID:          "rule-power",
		Name:        PowerRuleName,
		SourceField: "power_required",
		TargetField: "power_output",
	}}

	result, err := engine.Compare(context.Background(), peripheral(150), hub(100), rules)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if result.Compatible != LevelNone {
		t.Errorf("compatible = %s, want none (worst-case law)", result.Compatible)
	}
	if len(result.Limitations) == 0 || len(result.Recommendations) == 0 {
		t.Errorf("expected limitations and recommendations, got %v / %v",
			result.Limitations, result.Recommendations)
	}
	if !strings.Contains(result.Details, "NONE") {
		t.Errorf("details %q should carry the upper-case verdict", result.Details)
	}
	if !strings.Contains(result.Details, "Limitations:") {
		t.Errorf("details %q should carry a Limitations block", result.Details)
	}
}

func TestEngine_Compare_WorstCaseLaw(t *testing.T) {
	engine := NewEngine(testResolver())

	source := peripheral(100)
	target := hub(120)
	// Every field matches except one hard incompatibility.
	target.Specifications["connector"] = String("HDMI")

	result, err := engine.Compare(context.Background(), source, target, nil)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Compatible != LevelNone {
		t.Errorf("a single none must force the overall verdict to none, got %s", result.Compatible)
	}
}

func TestEngine_Compare_InapplicableRuleSkipped(t *testing.T) {
	engine := NewEngine(testResolver())
	rules := []Rule{{
		ID:          "rule-ghost",
		Name:        PowerRuleName,
		SourceField: "nonexistent_field",
		TargetField: "power_output",
	}}

	result, err := engine.Compare(context.Background(), peripheral(100), hub(120), rules)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result.MatchedRules) != 0 {
		t.Errorf("inapplicable rule must not appear in matched rules, got %v", result.MatchedRules)
	}
}

func TestEngine_Compare_Idempotent(t *testing.T) {
	engine := NewEngine(testResolver())
	rules := []Rule{{
		ID:          "rule-power",
		Name:        PowerRuleName,
		SourceField: "power_required",
		TargetField: "power_output",
	}}

	first, err := engine.Compare(context.Background(), peripheral(100), hub(120), rules)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	second, err := engine.Compare(context.Background(), peripheral(100), hub(120), rules)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs must produce identical results")
	}
}

func TestEngine_Compare_MissingSchemaDegrades(t *testing.T) {
	engine := NewEngine(&staticResolver{err: errors.New("lookup timed out")})

	result, err := engine.Compare(context.Background(), peripheral(100), hub(105), nil)
	if err != nil {
		t.Fatalf("a failed schema lookup must not fail the comparison: %v", err)
	}
	if result.Compatible == LevelNone {
		t.Errorf("schema-less comparison of near-identical specs = %s\ndetails: %s",
			result.Compatible, result.Details)
	}
}

func TestEngine_Compare_NilResolver(t *testing.T) {
	engine := NewEngine(nil)
	if _, err := engine.Compare(context.Background(), peripheral(100), hub(120), nil); err != nil {
		t.Fatalf("engine without a resolver should still compare: %v", err)
	}
}

func TestEngine_Compare_MalformedInput(t *testing.T) {
	engine := NewEngine(testResolver())

	if _, err := engine.Compare(context.Background(), nil, hub(120), nil); err == nil {
		t.Error("nil source must be rejected")
	}
	if _, err := engine.Compare(context.Background(), peripheral(100), &DeviceSpec{DeviceID: "x"}, nil); err == nil {
		t.Error("a device without a specification payload must be rejected")
	}
	bad := []Rule{{ID: "incomplete"}}
	if _, err := engine.Compare(context.Background(), peripheral(100), hub(120), bad); err == nil {
		t.Error("a rule missing required keys must be rejected")
	}
}

func TestEngine_Compare_ProcessorFailureIsolated(t *testing.T) {
	engine := NewEngine(testResolver())
	engine.RegisterRuleProcessor("explosive", RuleProcessorFunc(func(rule Rule, ctx *Context) (RuleResult, error) {
		panic("boom")
	}))

	rules := []Rule{
		{ID: "rule-explosive", Name: "explosive", SourceField: "connector", TargetField: "connector"},
		{ID: "rule-power", Name: PowerRuleName, SourceField: "power_required", TargetField: "power_output"},
	}

	result, err := engine.Compare(context.Background(), peripheral(100), hub(120), rules)
	if err != nil {
		t.Fatalf("a panicking processor must not abort the comparison: %v", err)
	}
	if !reflect.DeepEqual(result.MatchedRules, []string{"rule-power"}) {
		t.Errorf("matched rules = %v, want only the healthy rule", result.MatchedRules)
	}
}

func TestEngine_Compare_CustomProcessorMatchesDirectCall(t *testing.T) {
	processor := RuleProcessorFunc(func(rule Rule, ctx *Context) (RuleResult, error) {
		return RuleResult{
			Level:       LevelPartial,
			Confidence:  0.6,
			Limitations: []string{"custom limitation"},
		}, nil
	})

	engine := NewEngine(testResolver())
	engine.RegisterRuleProcessor("custom_check", processor)

	rule := Rule{ID: "rule-custom", Name: "custom_check", SourceField: "connector", TargetField: "connector"}
	rctx := &Context{Source: peripheral(100), Target: hub(120)}

	direct, err := processor.Process(rule, rctx)
	if err != nil {
		t.Fatalf("direct Process() error = %v", err)
	}

	result, err := engine.Compare(context.Background(), peripheral(100), hub(120), []Rule{rule})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if !reflect.DeepEqual(result.MatchedRules, []string{"rule-custom"}) {
		t.Fatalf("matched rules = %v, want [rule-custom]", result.MatchedRules)
	}
	if result.Compatible > direct.Level {
		t.Errorf("overall verdict %s cannot be better than the rule's %s", result.Compatible, direct.Level)
	}
	if !reflect.DeepEqual(result.Limitations, direct.Limitations) {
		t.Errorf("limitations = %v, want the processor's %v", result.Limitations, direct.Limitations)
	}
}

func TestEngine_Compare_ConfidenceIsWeightedMean(t *testing.T) {
	resolver := &staticResolver{schemas: map[string]*CategorySchema{
		"cat/v1": {
			CategoryID: "cat",
			Version:    "v1",
			Fields: []FieldDefinition{
				{Name: "a", Type: FieldTypeString, Metadata: FieldMetadata{Weight: 0.75}},
				{Name: "b", Type: FieldTypeString, Metadata: FieldMetadata{Weight: 0.25}},
			},
		},
	}}
	engine := NewEngine(resolver)

	source := &DeviceSpec{
		DeviceID: "d1", CategoryID: "cat", SchemaVersion: "v1",
		Specifications: map[string]Value{"a": String("match"), "b": String("left")},
	}
	target := &DeviceSpec{
		DeviceID: "d2", CategoryID: "cat", SchemaVersion: "v1",
		Specifications: map[string]Value{"a": String("match"), "b": String("right")},
	}

	result, err := engine.Compare(context.Background(), source, target, nil)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	// a: full (1.0 * 0.75), b: none (0.0 * 0.25) => 0.75 / 1.0
	want := 0.75
	if diff := result.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v", result.Confidence, want)
	}
}

func TestEngine_Compare_DetailsNarrative(t *testing.T) {
	engine := NewEngine(testResolver())
	result, err := engine.Compare(context.Background(), peripheral(100), hub(120), nil)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	for _, want := range []string{"Label Printer", "USB Hub", "FULL", "%"} {
		if !strings.Contains(result.Details, want) {
			t.Errorf("details %q should contain %q", result.Details, want)
		}
	}
}

func TestEngine_Compare_DeduplicatesNarratives(t *testing.T) {
	engine := NewEngine(testResolver())
	engine.RegisterRuleProcessor("dupes", RuleProcessorFunc(func(rule Rule, ctx *Context) (RuleResult, error) {
		return RuleResult{
			Level:           LevelPartial,
			Confidence:      0.5,
			Limitations:     []string{"shared limitation"},
			Recommendations: []string{"shared recommendation"},
		}, nil
	}))

	rules := []Rule{
		{ID: "rule-1", Name: "dupes", SourceField: "connector", TargetField: "connector"},
		{ID: "rule-2", Name: "dupes", SourceField: "features", TargetField: "features"},
	}

	result, err := engine.Compare(context.Background(), peripheral(100), hub(120), rules)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result.Limitations) != 1 {
		t.Errorf("limitations = %v, want a single deduplicated entry", result.Limitations)
	}
	if len(result.Recommendations) != 1 {
		t.Errorf("recommendations = %v, want a single deduplicated entry", result.Recommendations)
	}
	if len(result.MatchedRules) != 2 {
		t.Errorf("matched rules = %v, want both rule ids", result.MatchedRules)
	}
}

func TestEngine_Compare_BaseRules(t *testing.T) {
	base := []Rule{{
		ID:          "rule-power",
		Name:        PowerRuleName,
		SourceField: "power_required",
		TargetField: "power_output",
	}}
	engine := NewEngine(testResolver(), WithRules(base))

	result, err := engine.Compare(context.Background(), peripheral(150), hub(100), nil)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Compatible != LevelNone {
		t.Errorf("base rules should be evaluated, got %s", result.Compatible)
	}
}

func TestEngine_Compare_EmptySpecsAreFull(t *testing.T) {
	engine := NewEngine(nil)
	source := &DeviceSpec{DeviceID: "a", Specifications: map[string]Value{}}
	target := &DeviceSpec{DeviceID: "b", Specifications: map[string]Value{}}

	result, err := engine.Compare(context.Background(), source, target, nil)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Compatible != LevelFull {
		t.Errorf("nothing to compare should be full, got %s", result.Compatible)
	}
	if result.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0 when nothing contributed", result.Confidence)
	}
}

func TestEngine_Compare_ConcurrentUse(t *testing.T) {
	engine := NewEngine(testResolver())
	rules := []Rule{{
		ID:          "rule-power",
		Name:        PowerRuleName,
		SourceField: "power_required",
		TargetField: "power_output",
	}}

	done := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func(i int) {
			result, err := engine.Compare(context.Background(), peripheral(float64(90+i)), hub(120), rules)
			if err == nil && result == nil {
				err = fmt.Errorf("nil result")
			}
			done <- err
		}(i)
	}
	for i := 0; i < 16; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent Compare() error = %v", err)
		}
	}
}
