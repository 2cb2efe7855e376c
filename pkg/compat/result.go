package compat

import (
	"fmt"
	"sort"
	"strings"
)

// Level is a compatibility verdict, ordered from worst to best.
type Level int

const (
	LevelNone Level = iota
	LevelPartial
	LevelFull
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelPartial:
		return "partial"
	case LevelFull:
		return "full"
	}
	return "unknown"
}

// ParseLevel converts a stored verdict string back to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "none":
		return LevelNone, nil
	case "partial":
		return LevelPartial, nil
	case "full":
		return LevelFull, nil
	}
	return LevelNone, fmt.Errorf("unknown compatibility level: %s", s)
}

// MarshalJSON encodes the level as its lowercase name.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON decodes a lowercase level name.
func (l *Level) UnmarshalJSON(data []byte) error {
	parsed, err := ParseLevel(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Worst returns the more restrictive of two levels.
func (l Level) Worst(other Level) Level {
	if other < l {
		return other
	}
	return l
}

// Score maps a verdict to its confidence contribution:
// full -> 1.0, partial -> 0.5, none -> 0.0.
func (l Level) Score() float64 {
	switch l {
	case LevelFull:
		return 1.0
	case LevelPartial:
		return 0.5
	}
	return 0.0
}

// FieldResult is the outcome of comparing a single field across two devices.
type FieldResult struct {
	Level   Level   `json:"compatible"`
	Weight  float64 `json:"weight"`
	Message string  `json:"message"`
}

// RuleResult is the outcome a rule processor reports for one rule.
type RuleResult struct {
	Level           Level    `json:"compatible"`
	Confidence      float64  `json:"confidence"`
	Weight          float64  `json:"weight,omitempty"`
	Limitations     []string `json:"limitations,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Result is the final verdict for one comparison. It is constructed fresh
// per call and never mutated afterwards; persistence is the caller's choice.
type Result struct {
	Compatible      Level                  `json:"compatible"`
	Confidence      float64                `json:"confidence"`
	Details         string                 `json:"details"`
	Limitations     []string               `json:"limitations"`
	Recommendations []string               `json:"recommendations"`
	MatchedRules    []string               `json:"matched_rules"`
	FieldResults    map[string]FieldResult `json:"field_compatibility"`
}

// dedupe merges string lists preserving first-seen order.
func dedupe(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range lists {
		for _, s := range list {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// buildDetails renders the human-readable narrative for a result.
func buildDetails(source, target *DeviceSpec, level Level, confidence float64, limitations, recommendations []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compatibility between %s and %s: %s (confidence %d%%).",
		source.DisplayName(), target.DisplayName(),
		strings.ToUpper(level.String()), int(confidence*100+0.5))

	if len(limitations) > 0 {
		b.WriteString("\nLimitations:")
		for _, l := range limitations {
			b.WriteString("\n- " + l)
		}
	}
	if len(recommendations) > 0 {
		b.WriteString("\nRecommendations:")
		for _, r := range recommendations {
			b.WriteString("\n- " + r)
		}
	}
	return b.String()
}

// sortedFieldNames returns the map's keys in a stable order so results and
// messages are deterministic across runs.
func sortedFieldNames(m map[string]Value) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
