package compat

import (
	"context"
	"fmt"
)

// SchemaResolver looks up the versioned schema governing a device's
// specifications. Implementations may hit storage or a cache; returning
// (nil, nil) means the schema is unknown, which the engine tolerates.
type SchemaResolver interface {
	ResolveSchema(ctx context.Context, categoryID, version string) (*CategorySchema, error)
}

// SchemaResolverFunc adapts a function to the SchemaResolver interface.
type SchemaResolverFunc func(ctx context.Context, categoryID, version string) (*CategorySchema, error)

// ResolveSchema implements SchemaResolver.
func (f SchemaResolverFunc) ResolveSchema(ctx context.Context, categoryID, version string) (*CategorySchema, error) {
	return f(ctx, categoryID, version)
}

// Engine drives full comparisons: per-field comparison, rule evaluation,
// and aggregation into one Result. A single Engine is safe for concurrent
// comparisons; processor registration must happen before those begin.
type Engine struct {
	resolver   SchemaResolver
	registry   *Registry
	comparator *FieldComparator
	baseRules  []Rule
}

// Option configures an Engine.
type Option func(*Engine)

// WithThresholds overrides the comparator's policy thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) {
		e.comparator = NewFieldComparator(t)
	}
}

// WithRules pre-registers a base rule set evaluated on every comparison, in
// addition to any rules passed to Compare.
func WithRules(rules []Rule) Option {
	return func(e *Engine) {
		e.baseRules = rules
	}
}

// NewEngine creates an engine. resolver may be nil, in which case every
// comparison runs schema-less and field types are inferred from values.
func NewEngine(resolver SchemaResolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:   resolver,
		registry:   NewRegistry(),
		comparator: NewFieldComparator(DefaultThresholds()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterRuleProcessor installs a processor under a name, adding to or
// overriding the built-in set. Call during startup only.
func (e *Engine) RegisterRuleProcessor(name string, p RuleProcessor) {
	e.registry.Register(name, p)
}

// HasRuleProcessor reports whether a processor is registered under name.
func (e *Engine) HasRuleProcessor(name string) bool {
	_, ok := e.registry.Processor(name)
	return ok
}

// SetRules replaces the engine's base rule set. Intended for configuration
// reloads between comparisons.
func (e *Engine) SetRules(rules []Rule) {
	e.baseRules = rules
}

// Compare computes the compatibility verdict between two devices. rules are
// evaluated in addition to the engine's base rule set. The engine degrades
// gracefully on missing schemas, missing fields and inapplicable rules; it
// returns an error only for malformed input.
func (e *Engine) Compare(ctx context.Context, source, target *DeviceSpec, rules []Rule) (*Result, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("both devices are required for a comparison")
	}
	if source.Specifications == nil {
		return nil, fmt.Errorf("device %s has no specification payload", source.DeviceID)
	}
	if target.Specifications == nil {
		return nil, fmt.Errorf("device %s has no specification payload", target.DeviceID)
	}

	allRules := make([]Rule, 0, len(e.baseRules)+len(rules))
	allRules = append(allRules, e.baseRules...)
	allRules = append(allRules, rules...)
	for _, r := range allRules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule: %w", err)
		}
	}

	// Schema lookups degrade to nil: a miss must not fail the comparison.
	sourceSchema := e.lookupSchema(ctx, source)
	targetSchema := e.lookupSchema(ctx, target)

	rctx := &Context{
		Source:       source,
		Target:       target,
		SourceSchema: sourceSchema,
		TargetSchema: targetSchema,
	}

	fieldResults := make(map[string]FieldResult)
	overall := LevelFull
	var weightSum, scoreSum float64

	for _, name := range unionFieldNames(source.Specifications, target.Specifications) {
		sv, sok := source.Specifications[name]
		tv, tok := target.Specifications[name]
		if !sok || !tok {
			// Fields absent on one side are skipped, not penalized.
			continue
		}

		srcDef, _ := sourceSchema.Field(name)
		dstDef, _ := targetSchema.Field(name)

		fr := e.comparator.Compare(name, sv, tv, srcDef, dstDef)
		fieldResults[name] = fr
		overall = overall.Worst(fr.Level)
		weightSum += fr.Weight
		scoreSum += fr.Weight * fr.Level.Score()
	}

	var matched []string
	var limitations, recommendations [][]string
	for _, rule := range allRules {
		if !IsRuleApplicable(rule, rctx) {
			continue
		}
		processor, ok := e.registry.Processor(rule.Name)
		if !ok {
			// No processor registered under this name: treat like an
			// inapplicable rule rather than failing the comparison.
			continue
		}

		rr, err := e.runProcessor(processor, rule, rctx)
		if err != nil {
			// A failing processor must not abort the comparison; the
			// rule is excluded from the matched set.
			continue
		}

		matched = append(matched, rule.ID)
		overall = overall.Worst(rr.Level)

		weight := rr.Weight
		if weight == 0 {
			weight = 1.0
		}
		weightSum += weight
		scoreSum += weight * rr.Confidence

		limitations = append(limitations, rr.Limitations)
		recommendations = append(recommendations, rr.Recommendations)
	}

	confidence := 1.0
	if weightSum > 0 {
		confidence = scoreSum / weightSum
	}

	mergedLimitations := dedupe(limitations...)
	mergedRecommendations := dedupe(recommendations...)

	return &Result{
		Compatible:      overall,
		Confidence:      confidence,
		Details:         buildDetails(source, target, overall, confidence, mergedLimitations, mergedRecommendations),
		Limitations:     mergedLimitations,
		Recommendations: mergedRecommendations,
		MatchedRules:    matched,
		FieldResults:    fieldResults,
	}, nil
}

// lookupSchema resolves a device's schema, swallowing lookup failures per
// the degrade-gracefully policy.
func (e *Engine) lookupSchema(ctx context.Context, spec *DeviceSpec) *CategorySchema {
	if e.resolver == nil || spec.CategoryID == "" {
		return nil
	}
	schema, err := e.resolver.ResolveSchema(ctx, spec.CategoryID, spec.SchemaVersion)
	if err != nil {
		return nil
	}
	return schema
}

// runProcessor invokes a processor with panic isolation so one misbehaving
// strategy cannot take down the whole comparison.
func (e *Engine) runProcessor(p RuleProcessor, rule Rule, ctx *Context) (result RuleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule processor %s panicked: %v", rule.Name, r)
		}
	}()
	return p.Process(rule, ctx)
}

// unionFieldNames returns the sorted union of both specs' field names.
func unionFieldNames(a, b map[string]Value) []string {
	merged := make(map[string]Value, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return sortedFieldNames(merged)
}
