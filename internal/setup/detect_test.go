package setup

import (
	"testing"

	"stocksetup/pkg/contracts/domain"
)

func TestDetectFullTemplate(t *testing.T) {
	results := []domain.SearchResult{
		{ID: "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", Title: "Stock Analyses", Kind: domain.KindDatabase},
		{ID: "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2", Title: "Stock History", Kind: domain.KindDatabase},
		{ID: "c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3", Title: "Stock Intelligence", Kind: domain.KindPage},
	}

	out := Detect(results)

	if out.NeedsManual {
		t.Error("expected NeedsManual=false when all roles matched")
	}
	if out.Analyses == nil || out.Analyses.ID != "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1" {
		t.Errorf("analyses match = %+v", out.Analyses)
	}
	if out.Analyses.Confidence != domain.ConfidenceHigh {
		t.Errorf("analyses confidence = %s, want high", out.Analyses.Confidence)
	}
	if out.History == nil || out.History.Confidence != domain.ConfidenceHigh {
		t.Errorf("history match = %+v", out.History)
	}
	if out.Page == nil || out.Page.Confidence != domain.ConfidenceHigh {
		t.Errorf("page match = %+v", out.Page)
	}
}

func TestDetectAmbiguousCandidates(t *testing.T) {
	// Two exact-title analyses databases: the winner is deterministic (lowest
	// id) and graded medium because the match did not distinguish.
	results := []domain.SearchResult{
		{ID: "ffffffffffffffffffffffffffffffff", Title: "Stock Analyses", Kind: domain.KindDatabase},
		{ID: "00000000000000000000000000000000", Title: "Stock Analyses", Kind: domain.KindDatabase},
	}

	out := Detect(results)

	if out.Analyses == nil {
		t.Fatal("expected an analyses match")
	}
	if out.Analyses.ID != "00000000000000000000000000000000" {
		t.Errorf("winner = %s, want lowest id", out.Analyses.ID)
	}
	if out.Analyses.Confidence != domain.ConfidenceMedium {
		t.Errorf("confidence = %s, want medium", out.Analyses.Confidence)
	}
}

func TestDetectKindMismatch(t *testing.T) {
	// A page titled "Stock Analyses" must not satisfy the analyses database
	// role.
	results := []domain.SearchResult{
		{ID: "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", Title: "Stock Analyses", Kind: domain.KindPage},
	}

	out := Detect(results)

	if out.Analyses != nil {
		t.Errorf("analyses = %+v, want nil for wrong kind", out.Analyses)
	}
	if !out.NeedsManual {
		t.Error("expected NeedsManual=true")
	}
}

func TestDetectWeakMatchIsLowConfidence(t *testing.T) {
	results := []domain.SearchResult{
		{ID: "c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3", Title: "My Dashboard", Kind: domain.KindPage},
	}

	out := Detect(results)

	if out.Page == nil {
		t.Fatal("expected a page match")
	}
	if out.Page.Confidence != domain.ConfidenceLow {
		t.Errorf("confidence = %s, want low", out.Page.Confidence)
	}
}

func TestDetectEmptyResults(t *testing.T) {
	out := Detect(nil)

	if out.Analyses != nil || out.History != nil || out.Page != nil {
		t.Errorf("expected no matches, got %+v", out)
	}
	if !out.NeedsManual {
		t.Error("expected NeedsManual=true for empty results")
	}
}

func TestDetectNormalizesMatchIDs(t *testing.T) {
	results := []domain.SearchResult{
		{ID: "a1a1a1a1-a1a1-a1a1-a1a1-a1a1a1a1a1a1", Title: "Stock Analyses", Kind: domain.KindDatabase},
	}

	out := Detect(results)

	if out.Analyses == nil {
		t.Fatal("expected an analyses match")
	}
	if out.Analyses.ID != "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1" {
		t.Errorf("id = %s, want dashes stripped", out.Analyses.ID)
	}
}

func TestDetectDeterministic(t *testing.T) {
	results := []domain.SearchResult{
		{ID: "b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2", Title: "Stock History Archive", Kind: domain.KindDatabase},
		{ID: "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1", Title: "Stock History", Kind: domain.KindDatabase},
		{ID: "c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3", Title: "Old History", Kind: domain.KindDatabase},
	}

	first := Detect(results)
	for i := 0; i < 5; i++ {
		if got := Detect(results); got.History == nil || got.History.ID != first.History.ID {
			t.Fatalf("detection not deterministic: run %d chose %+v, first chose %+v", i, got.History, first.History)
		}
	}
	// Exact title beats a strong substring match.
	if first.History.ID != "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1" {
		t.Errorf("winner = %s, want the exact-title database", first.History.ID)
	}
}
