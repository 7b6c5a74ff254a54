package setup

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"stocksetup/pkg/contracts/domain"
)

// Submission is the (possibly user-edited) role-to-resource mapping sent for
// confirmation. Identifiers may be raw IDs or workspace URLs.
type Submission struct {
	AnalysesID string `json:"analyses_id"`
	HistoryID  string `json:"history_id"`
	PageID     string `json:"page_id"`
}

const idHelpURL = "https://developers.notion.com/docs/working-with-page-content#where-can-i-find-my-pages-id"

// Gate validates and commits a role-to-resource mapping exactly once per
// call. Missing fields are rejected before any remote call; remote lookups
// run concurrently; a commit overwrites all three identifiers atomically or
// not at all.
type Gate struct {
	store     ProgressStore
	validator ResourceValidator
	logger    *slog.Logger
}

// NewGate creates a confirmation gate.
func NewGate(store ProgressStore, validator ResourceValidator, logger *slog.Logger) *Gate {
	return &Gate{
		store:     store,
		validator: validator,
		logger:    logger.With(slog.String("component", "confirmation_gate")),
	}
}

// Confirm validates the submission and commits the resulting Configuration.
// It returns ValidationErrors with one entry per rejected field, or a
// retryable RemoteError if a collaborator was unreachable. Re-invoking with
// the same input is safe; the last successful call wins.
func (g *Gate) Confirm(ctx context.Context, userID string, sub Submission) (domain.Configuration, error) {
	fields := []struct {
		name string
		raw  string
		kind domain.ResourceKind
	}{
		{"analyses_id", sub.AnalysesID, domain.KindDatabase},
		{"history_id", sub.HistoryID, domain.KindDatabase},
		{"page_id", sub.PageID, domain.KindPage},
	}

	var missing ValidationErrors
	for _, f := range fields {
		if NormalizeID(f.raw) == "" {
			missing = append(missing, domain.FieldError{
				Field:   f.name,
				Message: f.name + " is required",
			})
		}
	}
	if len(missing) > 0 {
		return domain.Configuration{}, missing
	}

	normalized := make([]string, len(fields))
	fieldErrs := make([]*domain.FieldError, len(fields))

	grp, grpCtx := errgroup.WithContext(ctx)
	for i, f := range fields {
		i, f := i, f
		normalized[i] = NormalizeID(f.raw)
		grp.Go(func() error {
			status, err := g.validator.Lookup(grpCtx, normalized[i], f.kind)
			if err != nil {
				return &RemoteError{Op: "lookup", Err: err}
			}
			switch status {
			case domain.LookupFound:
			case domain.LookupWrongKind:
				fieldErrs[i] = &domain.FieldError{
					Field:   f.name,
					Message: "resource exists but is not a " + string(f.kind),
					HelpURL: idHelpURL,
				}
			default:
				fieldErrs[i] = &domain.FieldError{
					Field:   f.name,
					Message: "resource not found or not shared with the integration",
					HelpURL: idHelpURL,
				}
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return domain.Configuration{}, err
	}

	var invalid ValidationErrors
	for _, fe := range fieldErrs {
		if fe != nil {
			invalid = append(invalid, *fe)
		}
	}
	if len(invalid) > 0 {
		g.logger.WarnContext(ctx, "confirmation rejected",
			slog.String("user_id", userID),
			slog.Int("field_errors", len(invalid)))
		return domain.Configuration{}, invalid
	}

	cfg := domain.Configuration{
		AnalysesDBID: normalized[0],
		HistoryDBID:  normalized[1],
		PageID:       normalized[2],
		CommittedAt:  time.Now().UTC(),
	}
	if err := g.store.Commit(ctx, userID, cfg); err != nil {
		return domain.Configuration{}, err
	}

	g.logger.InfoContext(ctx, "configuration committed",
		slog.String("user_id", userID),
		slog.String("analyses_db_id", cfg.AnalysesDBID),
		slog.String("history_db_id", cfg.HistoryDBID),
		slog.String("page_id", cfg.PageID))

	return cfg, nil
}
