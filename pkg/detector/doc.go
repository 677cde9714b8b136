// Package detector implements the rule-based violation detector.
//
// A RuleSet holds five categories of compiled regular expressions
// (harmful content, bias, privacy, illegal content, misinformation), each
// with a fixed severity and confidence. Detector.Detect checks every
// category concurrently, relaxes severities once when the caller-supplied
// context names a medical, educational, academic or research setting, and
// aggregates the violations into a score:
//
//	score = max(0, 1 - min(1, Σ weight(severity) × confidence))
//
// Privacy patterns are case-sensitive, report every match, and never echo
// the matched text: their evidence is always "[REDACTED]".
//
// Extra patterns, such as sets for other languages, are loaded from YAML
// rule packs:
//
//	rules, err := detector.LoadRuleSet([]string{"packs/spanish.yaml"})
//	if err != nil {
//		return err
//	}
//	d := detector.New(rules)
//	result := d.Detect(text, "medical consultation")
//
// Model adapts a Detector to the analyzer's model registry.
package detector
