package detector

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/aegis/pkg/safety"
)

func TestModel_Analyze(t *testing.T) {
	m := NewModel(nil)

	score, err := m.Analyze(context.Background(), safety.Request{
		Text: "My email is jane@example.com and women are never on time",
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(score.Categories) != len(ViolationTypes)+1 {
		t.Errorf("expected %d categories, got %d", len(ViolationTypes)+1, len(score.Categories))
	}
	if _, ok := score.Categories[OverallCategory]; !ok {
		t.Error("expected overall category")
	}

	privacy := score.Categories[string(ViolationPrivacy)]
	if privacy.Score >= 1 {
		t.Errorf("expected privacy score below 1, got %v", privacy.Score)
	}
	if len(privacy.Mitigations) != 1 {
		t.Errorf("expected a mitigation suggestion, got %v", privacy.Mitigations)
	}
	if privacy.Subcategories["email"] != 0.90 {
		t.Errorf("expected email subcategory 0.90, got %v", privacy.Subcategories["email"])
	}

	if clean := score.Categories[string(ViolationHarmfulContent)]; clean.Score != 1 {
		t.Errorf("expected clean harmful category score 1, got %v", clean.Score)
	}

	if len(score.Flags) != 2 {
		t.Fatalf("expected 2 flags, got %d", len(score.Flags))
	}
	types := map[safety.FlagType]bool{}
	for _, f := range score.Flags {
		types[f.Type] = true
	}
	if !types[safety.FlagPrivacyIssue] || !types[safety.FlagBiasDetected] {
		t.Errorf("expected privacy and bias flags, got %v", types)
	}

	if !approxEqual(score.OverallScore, safety.MeanScore(score.Categories)) {
		t.Errorf("expected overall score to be the category mean")
	}
	if score.Metadata.ModelVersions[DefaultModelName] != ModelVersion {
		t.Errorf("expected model version recorded, got %v", score.Metadata.ModelVersions)
	}
}

func TestModel_FlagTypeMapping(t *testing.T) {
	tests := []struct {
		vt       ViolationType
		expected safety.FlagType
	}{
		{ViolationHarmfulContent, safety.FlagContentViolation},
		{ViolationIllegalContent, safety.FlagContentViolation},
		{ViolationMisinformation, safety.FlagContentViolation},
		{ViolationBias, safety.FlagBiasDetected},
		{ViolationPrivacy, safety.FlagPrivacyIssue},
	}

	for _, tt := range tests {
		if got := flagType(tt.vt); got != tt.expected {
			t.Errorf("flagType(%s): expected %s, got %s", tt.vt, tt.expected, got)
		}
	}
}

func TestModel_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewModel(nil).Analyze(ctx, safety.Request{Text: "hello"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestModel_Info(t *testing.T) {
	m := NewModel(nil)

	info := m.Info()
	if info.Name != DefaultModelName || info.Version != ModelVersion {
		t.Errorf("unexpected info %+v", info)
	}
	if len(info.Capabilities) != len(ViolationTypes) {
		t.Errorf("expected %d capabilities, got %d", len(ViolationTypes), len(info.Capabilities))
	}
	if !m.Ready() {
		t.Error("expected model to be ready")
	}
}
