package compat

import (
	"fmt"
	"math"
)

// Rule is a named cross-field check. Name is the dispatch key into the
// processor registry; SourceField is read from the source device and
// TargetField from the target device.
type Rule struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	SourceField  string `json:"source_field"`
	TargetField  string `json:"target_field"`
	Condition    string `json:"condition,omitempty"`
	DefaultLevel Level  `json:"compatibility_type"`
	Message      string `json:"message,omitempty"`
}

// Validate checks the rule carries the keys a processor needs.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule is missing an id")
	}
	if r.Name == "" {
		return fmt.Errorf("rule %s is missing a processor name", r.ID)
	}
	if r.SourceField == "" || r.TargetField == "" {
		return fmt.Errorf("rule %s must name both a source and a target field", r.ID)
	}
	return nil
}

// Context is the comparison state handed to rule processors: both devices
// and whichever schemas resolved. Either schema may be nil.
type Context struct {
	Source       *DeviceSpec
	Target       *DeviceSpec
	SourceSchema *CategorySchema
	TargetSchema *CategorySchema
}

// RuleProcessor evaluates one cross-field domain condition. Implementations
// must be safe for concurrent use; the engine invokes them from concurrent
// comparisons.
type RuleProcessor interface {
	Process(rule Rule, ctx *Context) (RuleResult, error)
}

// RuleProcessorFunc adapts a plain function to the RuleProcessor interface.
type RuleProcessorFunc func(rule Rule, ctx *Context) (RuleResult, error)

// Process implements RuleProcessor.
func (f RuleProcessorFunc) Process(rule Rule, ctx *Context) (RuleResult, error) {
	return f(rule, ctx)
}

// Registry maps rule names to their processors. Registration is expected
// during setup, before comparisons are in flight; the registry is read-only
// during concurrent use and therefore carries no lock.
type Registry struct {
	processors map[string]RuleProcessor
}

// NewRegistry creates a registry with the built-in processors installed.
func NewRegistry() *Registry {
	r := &Registry{processors: make(map[string]RuleProcessor)}
	r.Register(PowerRuleName, &PowerProcessor{})
	return r
}

// Register installs a processor under a name, replacing any previous one.
func (r *Registry) Register(name string, p RuleProcessor) {
	r.processors[name] = p
}

// Processor retrieves the processor registered under a name.
func (r *Registry) Processor(name string) (RuleProcessor, bool) {
	p, ok := r.processors[name]
	return p, ok
}

// Names lists the registered processor names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	return names
}

// IsRuleApplicable reports whether both of the rule's dependency fields are
// present on their respective devices. Absence is not an error; the rule is
// simply skipped and does not appear in the result's matched rules.
func IsRuleApplicable(rule Rule, ctx *Context) bool {
	if ctx.Source == nil || ctx.Target == nil {
		return false
	}
	if _, ok := ctx.Source.Specifications[rule.SourceField]; !ok {
		return false
	}
	_, ok := ctx.Target.Specifications[rule.TargetField]
	return ok
}

// PowerRuleName is the registry key of the built-in power processor.
const PowerRuleName = "power_compatibility"

// PowerProcessor checks power sufficiency: the rule's source field is the
// power the source device requires, the target field the power the target
// supplies. Supply meeting the requirement is a full match; a shortfall is a
// hard incompatibility with at least one limitation and recommendation.
type PowerProcessor struct{}

// powerFullConfidence is the confidence reported when supply covers the
// requirement. Policy constant.
const powerFullConfidence = 0.95

// Process implements RuleProcessor.
func (p *PowerProcessor) Process(rule Rule, ctx *Context) (RuleResult, error) {
	required, err := numericSpec(ctx.Source, rule.SourceField)
	if err != nil {
		return RuleResult{}, fmt.Errorf("power rule %s: %w", rule.ID, err)
	}
	supplied, err := numericSpec(ctx.Target, rule.TargetField)
	if err != nil {
		return RuleResult{}, fmt.Errorf("power rule %s: %w", rule.ID, err)
	}

	if required <= supplied {
		return RuleResult{
			Level:      LevelFull,
			Confidence: powerFullConfidence,
			Weight:     1.0,
		}, nil
	}

	// Confidence in the incompatibility grows with the relative
	// shortfall, capped below certainty. Policy constant.
	shortfall := (required - supplied) / math.Max(required, epsilon)
	confidence := math.Min(0.99, 0.5+shortfall)

	return RuleResult{
		Level:      LevelNone,
		Confidence: confidence,
		Weight:     1.0,
		Limitations: []string{
			fmt.Sprintf("%s supplies %.0fW but %s requires %.0fW",
				ctx.Target.DisplayName(), supplied, ctx.Source.DisplayName(), required),
		},
		Recommendations: []string{
			fmt.Sprintf("Use a power source rated for at least %.0fW", required),
		},
	}, nil
}

// numericSpec reads a required numeric specification off a device.
func numericSpec(spec *DeviceSpec, field string) (float64, error) {
	v, ok := spec.Specifications[field]
	if !ok {
		return 0, fmt.Errorf("field %q is not present on device %s", field, spec.DeviceID)
	}
	n, ok := v.AsNumber()
	if !ok {
		return 0, fmt.Errorf("field %q on device %s is %s, expected a number", field, spec.DeviceID, v.Kind())
	}
	return n, nil
}
