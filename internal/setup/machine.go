package setup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"stocksetup/pkg/contracts/domain"
	"stocksetup/pkg/contracts/events"
)

// ProgressStore is the durable per-user record of wizard progress and the
// committed configuration. Implementations must serialize same-user writes
// and provide read-after-write consistency per user.
type ProgressStore interface {
	GetProgress(ctx context.Context, userID string) (domain.SetupProgress, error)
	Advance(ctx context.Context, userID string, step domain.Step) (domain.SetupProgress, error)
	GetConfiguration(ctx context.Context, userID string) (*domain.Configuration, error)
	Commit(ctx context.Context, userID string, cfg domain.Configuration) error
}

// SearchProvider lists the remote resources visible to a user's workspace.
type SearchProvider interface {
	Search(ctx context.Context, userID string) ([]domain.SearchResult, error)
}

// ResourceValidator confirms a submitted identifier exists remotely and is
// of the expected kind.
type ResourceValidator interface {
	Lookup(ctx context.Context, id string, kind domain.ResourceKind) (domain.LookupStatus, error)
}

// Broadcaster pushes wizard events to connected renderers. A nil-safe no-op
// implementation is acceptable; the machine never depends on delivery.
type Broadcaster interface {
	Broadcast(ev events.SetupEvent)
}

const detectionTimeout = 30 * time.Second

// Machine orchestrates transitions between the six onboarding steps. It owns
// the sequencing of detection after entering the verify step and the atomic
// completion cascade after a successful confirmation commit.
type Machine struct {
	store  ProgressStore
	search SearchProvider
	hub    Broadcaster
	logger *slog.Logger
}

// NewMachine creates a step state machine.
func NewMachine(store ProgressStore, search SearchProvider, hub Broadcaster, logger *slog.Logger) *Machine {
	return &Machine{
		store:  store,
		search: search,
		hub:    hub,
		logger: logger.With(slog.String("component", "setup_machine")),
	}
}

// Status returns the user's current progress, creating the default record
// (step 1, nothing completed) on first query.
func (m *Machine) Status(ctx context.Context, userID string) (domain.SetupProgress, error) {
	return m.store.GetProgress(ctx, userID)
}

// Advance moves the user to the requested step. Re-requesting a step at or
// below the current one is an idempotent no-op; skipping unsatisfied
// prerequisites fails with ErrInvalidTransition and leaves progress
// untouched. Entering the verify step schedules detection in the background;
// callers never sequence detection themselves.
func (m *Machine) Advance(ctx context.Context, userID string, step domain.Step) (domain.SetupProgress, error) {
	before, err := m.store.GetProgress(ctx, userID)
	if err != nil {
		return domain.SetupProgress{}, err
	}

	progress, err := m.store.Advance(ctx, userID, step)
	if err != nil {
		return domain.SetupProgress{}, err
	}

	entered := progress.CurrentStep > before.CurrentStep
	if entered {
		m.broadcast(events.NewSetupEvent(events.TypeSetupProgress, userID, int(progress.CurrentStep), progress))
	}

	// The 2→3 transition owns detection sequencing: kick it off as soon as
	// the verify step is entered so the renderer receives matches without a
	// second round trip. Failures are broadcast and retryable; they never
	// touch stored progress.
	if entered && step == domain.StepVerify {
		m.scheduleDetection(userID)
	}

	m.logger.InfoContext(ctx, "step advanced",
		slog.String("user_id", userID),
		slog.Int("step", int(step)),
		slog.Int("current_step", int(progress.CurrentStep)),
		slog.Bool("no_op", !entered))

	return progress, nil
}

// Detect classifies fresh search results into the three roles. If a
// Configuration is already committed the call is an idempotent no-op that
// returns the existing mapping via AlreadySetupError. Search failures come
// back as a retryable RemoteError.
func (m *Machine) Detect(ctx context.Context, userID string) (domain.DetectionResult, error) {
	cfg, err := m.store.GetConfiguration(ctx, userID)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	if cfg != nil {
		return domain.DetectionResult{}, &AlreadySetupError{Config: *cfg}
	}

	results, err := m.search.Search(ctx, userID)
	if err != nil {
		return domain.DetectionResult{}, &RemoteError{Op: "search", Err: err}
	}

	detection := Detect(results)
	m.logger.InfoContext(ctx, "detection completed",
		slog.String("user_id", userID),
		slog.Int("candidates", len(results)),
		slog.Bool("needs_manual", detection.NeedsManual))

	return detection, nil
}

// CompleteSetup runs the atomic completion cascade after a confirmation
// commit: steps 4 and 5 are synthetic and step 6 is the durable terminal
// state. Renderers animate the intermediate steps from the broadcast; the
// machine persists only the 3→6 jump.
func (m *Machine) CompleteSetup(ctx context.Context, userID string, cfg domain.Configuration) (domain.SetupProgress, error) {
	progress, err := m.store.Advance(ctx, userID, domain.StepComplete)
	if err != nil {
		return domain.SetupProgress{}, err
	}

	m.broadcast(events.NewSetupEvent(events.TypeSetupComplete, userID, int(domain.StepComplete), cfg))
	m.logger.InfoContext(ctx, "setup completed",
		slog.String("user_id", userID),
		slog.String("analyses_db_id", cfg.AnalysesDBID),
		slog.String("history_db_id", cfg.HistoryDBID),
		slog.String("page_id", cfg.PageID))

	return progress, nil
}

func (m *Machine) scheduleDetection(userID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), detectionTimeout)
		defer cancel()

		detection, err := m.Detect(ctx, userID)
		if err != nil {
			var already *AlreadySetupError
			if errors.As(err, &already) {
				m.broadcast(events.NewSetupEvent(events.TypeSetupDetection, userID, int(domain.StepVerify), already.Config))
				return
			}
			m.logger.Error("scheduled detection failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
			m.broadcast(events.NewSetupEvent(events.TypeSetupError, userID, int(domain.StepVerify), map[string]string{
				"error":     "detection failed",
				"retryable": "true",
			}))
			return
		}
		m.broadcast(events.NewSetupEvent(events.TypeSetupDetection, userID, int(domain.StepVerify), detection))
	}()
}

func (m *Machine) broadcast(ev events.SetupEvent) {
	if m.hub != nil {
		m.hub.Broadcast(ev)
	}
}
