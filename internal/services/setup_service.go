// Package services contains the business service layer between HTTP
// transport and the setup core.
package services

import (
	"context"
	"log/slog"
	"time"

	"stocksetup/internal/setup"
	"stocksetup/pkg/contracts/domain"
)

const confirmTimeout = 45 * time.Second

// SetupService defines the onboarding operations exposed to transport.
type SetupService interface {
	Status(ctx context.Context, userID string) (domain.SetupProgress, error)
	Advance(ctx context.Context, userID string, step domain.Step) (domain.SetupProgress, error)
	Detect(ctx context.Context, userID string) (domain.DetectionResult, error)
	Confirm(ctx context.Context, userID string, sub setup.Submission) (domain.Configuration, domain.SetupProgress, error)
}

type setupService struct {
	machine *setup.Machine
	gate    *setup.Gate
	logger  *slog.Logger
}

// NewSetupService creates the setup service backed by the step machine and
// the confirmation gate.
func NewSetupService(machine *setup.Machine, gate *setup.Gate, logger *slog.Logger) SetupService {
	return &setupService{
		machine: machine,
		gate:    gate,
		logger:  logger.With(slog.String("service", "setup")),
	}
}

func (s *setupService) Status(ctx context.Context, userID string) (domain.SetupProgress, error) {
	return s.machine.Status(ctx, userID)
}

func (s *setupService) Advance(ctx context.Context, userID string, step domain.Step) (domain.SetupProgress, error) {
	return s.machine.Advance(ctx, userID, step)
}

func (s *setupService) Detect(ctx context.Context, userID string) (domain.DetectionResult, error) {
	return s.machine.Detect(ctx, userID)
}

// Confirm validates and commits the submitted mapping, then runs the
// completion cascade. A commit that lands but fails to cascade still leaves
// the configuration durable; the caller sees the error and can re-advance.
func (s *setupService) Confirm(ctx context.Context, userID string, sub setup.Submission) (domain.Configuration, domain.SetupProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	cfg, err := s.gate.Confirm(ctx, userID, sub)
	if err != nil {
		return domain.Configuration{}, domain.SetupProgress{}, err
	}

	progress, err := s.machine.CompleteSetup(ctx, userID, cfg)
	if err != nil {
		s.logger.ErrorContext(ctx, "completion cascade failed after commit",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return cfg, domain.SetupProgress{}, err
	}

	return cfg, progress, nil
}
