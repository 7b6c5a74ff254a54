package setup

import (
	"sort"
	"strings"

	"stocksetup/pkg/contracts/domain"
)

// Role names the three typed targets detection maps search results onto.
type Role string

const (
	RoleAnalyses Role = "analyses"
	RoleHistory  Role = "history"
	RolePage     Role = "page"
)

// Title scores. A candidate at or above scoreStrong is considered
// unambiguous on its own; anything below is a weak textual match.
const (
	scoreExact   = 100
	scoreStrong  = 80
	scoreWeak    = 40
	scoreMinimum = scoreWeak
)

type roleClassifier struct {
	kind   domain.ResourceKind
	exact  []string
	strong []string
	weak   []string
}

// Classifiers follow the template the workspace is duplicated from: two
// databases titled "Stock Analyses" and "Stock History" plus the dashboard
// page titled "Stock Intelligence".
var roleClassifiers = map[Role]roleClassifier{
	RoleAnalyses: {
		kind:   domain.KindDatabase,
		exact:  []string{"stock analyses"},
		strong: []string{"stock analyses", "stock analysis"},
		weak:   []string{"analyses", "analysis"},
	},
	RoleHistory: {
		kind:   domain.KindDatabase,
		exact:  []string{"stock history"},
		strong: []string{"stock history"},
		weak:   []string{"history"},
	},
	RolePage: {
		kind:   domain.KindPage,
		exact:  []string{"stock intelligence"},
		strong: []string{"stock intelligence"},
		weak:   []string{"dashboard", "intelligence", "stocks"},
	},
}

type candidate struct {
	result domain.SearchResult
	score  int
}

// Detect classifies the remote search results into the three wizard roles.
// The output is deterministic for a given input: candidates are ranked by
// score and ties broken by identifier. Detect never mutates stored state.
func Detect(results []domain.SearchResult) domain.DetectionResult {
	out := domain.DetectionResult{
		Analyses: matchRole(RoleAnalyses, results),
		History:  matchRole(RoleHistory, results),
		Page:     matchRole(RolePage, results),
	}
	out.NeedsManual = out.Analyses == nil || out.History == nil || out.Page == nil
	return out
}

func matchRole(role Role, results []domain.SearchResult) *domain.ResourceMatch {
	classifier := roleClassifiers[role]

	var candidates []candidate
	for _, r := range results {
		if r.Kind != classifier.kind {
			continue
		}
		if score := scoreTitle(classifier, r.Title); score >= scoreMinimum {
			candidates = append(candidates, candidate{result: r, score: score})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].result.ID < candidates[j].result.ID
	})

	top := candidates[0]
	return &domain.ResourceMatch{
		ID:         NormalizeID(top.result.ID),
		Title:      top.result.Title,
		Confidence: grade(top.score, len(candidates)),
	}
}

func scoreTitle(c roleClassifier, title string) int {
	normalized := strings.ToLower(strings.TrimSpace(title))
	for _, t := range c.exact {
		if normalized == t {
			return scoreExact
		}
	}
	for _, t := range c.strong {
		if strings.Contains(normalized, t) {
			return scoreStrong
		}
	}
	for _, t := range c.weak {
		if strings.Contains(normalized, t) {
			return scoreWeak
		}
	}
	return 0
}

// grade assigns confidence: a single strong candidate is unambiguous; a
// strong winner among several needs confirmation; a weak textual match is
// low regardless of how many competed.
func grade(topScore, total int) domain.Confidence {
	switch {
	case topScore >= scoreStrong && total == 1:
		return domain.ConfidenceHigh
	case topScore >= scoreStrong:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
