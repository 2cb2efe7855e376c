// Package compat implements the compatibility engine: it decides whether two
// devices, described by heterogeneous schema-defined specifications, can
// interoperate, at what confidence, and with what caveats.
//
// # Overview
//
// A comparison takes two DeviceSpec payloads plus their (possibly differing)
// category schemas and produces a Result:
//
//   - the FieldComparator compares each shared field's two values, dispatching
//     on the field's declared type,
//   - the rule Registry runs named RuleProcessor strategies for cross-field
//     domain checks such as power sufficiency,
//   - the Engine aggregates everything into a worst-case verdict with a
//     weighted confidence score, merged limitations and recommendations, and
//     a human-readable narrative.
//
// # Verdicts
//
// A Level is one of none < partial < full. The overall verdict is the worst
// contributing level: a single none anywhere makes the whole result none.
// Confidence is the weighted mean of per-field scores (full 1.0, partial 0.5,
// none 0.0) and per-rule confidences.
//
// # Scoring policy
//
// The partial-match thresholds are policy constants, not derived values:
// numbers within 5% relative difference match fully and within 20% partially;
// arrays need a Jaccard overlap of 0.8 for a full match; enum values one
// position apart in the declared ordering match partially. They live in
// Thresholds and are tunable per engine instance.
//
// # Degradation
//
// Missing schemas, missing fields and inapplicable rules are not errors: the
// engine skips them and the result simply reflects what was comparable. A
// rule whose processor fails or panics is excluded from the matched set
// without aborting the rest of the comparison. Errors are reserved for
// malformed input such as a nil specification payload.
//
// # Usage
//
//	engine := compat.NewEngine(resolver)
//	engine.RegisterRuleProcessor("connector_fit", myProcessor)
//
//	result, err := engine.Compare(ctx, source, target, rules)
//	if err != nil {
//		return err
//	}
//	fmt.Println(result.Details)
//
// Comparisons are pure, reentrant and safe to run concurrently. Processor
// registration must finish before concurrent comparisons begin; the registry
// is not locked.
package compat
