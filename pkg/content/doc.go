// Package content provides a keyword-based analysis model that flags
// prompt injection attempts and toxic language.
//
// It complements the rule detector: the detector matches structured
// patterns for violations, while this model looks for instruction
// override phrases and keyword lists per toxicity category. Keywords match
// on word boundaries and are case-insensitive.
//
//	a, err := content.NewAnalyzer(cfg.Content)
//	if err != nil {
//	    return err
//	}
//	reg.Register(content.ModelName, content.NewModel(a))
package content
