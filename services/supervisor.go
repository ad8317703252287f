package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/trivia-duel/cache"
	"github.com/Dosada05/trivia-duel/models"
	"github.com/Dosada05/trivia-duel/repositories"
)

const (
	supervisorBatch     = 100
	defaultStrandGrace  = time.Minute
	reasonStartDeadline = "start deadline exceeded"
	reasonSessionLost   = "live session lost"
)

type SupervisorConfig struct {
	StartDeadline time.Duration
	// StrandGrace is how long an in_progress match may lack a live session before it is cancelled.
	StrandGrace time.Duration
}

// Supervisor periodically repairs matches that the request path left behind.
type Supervisor struct {
	matchRepo   repositories.MatchRepository
	matches     MatchService
	matchmaking MatchmakingService
	store       *cache.Store
	cfg         SupervisorConfig
	logger      *slog.Logger
	now         func() time.Time
}

func NewSupervisor(
	matchRepo repositories.MatchRepository,
	matches MatchService,
	matchmaking MatchmakingService,
	store *cache.Store,
	cfg SupervisorConfig,
	logger *slog.Logger,
) *Supervisor {
	if cfg.StartDeadline <= 0 {
		cfg.StartDeadline = 2 * time.Minute
	}
	if cfg.StrandGrace <= 0 {
		cfg.StrandGrace = defaultStrandGrace
	}
	return &Supervisor{
		matchRepo:   matchRepo,
		matches:     matches,
		matchmaking: matchmaking,
		store:       store,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Sweep runs one pass. It keeps going after individual failures and returns them joined.
func (s *Supervisor) Sweep(ctx context.Context) error {
	var errs []error
	errs = append(errs, s.sweepQueues(ctx)...)
	errs = append(errs, s.sweepWaiting(ctx)...)
	errs = append(errs, s.sweepInProgress(ctx)...)
	return errors.Join(errs...)
}

func (s *Supervisor) sweepQueues(ctx context.Context) []error {
	subjects, err := s.matchmaking.Subjects(ctx)
	if err != nil {
		return []error{fmt.Errorf("list subjects: %w", err)}
	}
	var errs []error
	for _, subj := range subjects {
		// Просроченные команды снимаем до подбора пар.
		if _, err := s.matchmaking.ExpireWaitingTeams(ctx, subj.Subject); err != nil {
			errs = append(errs, fmt.Errorf("expire teams for %q: %w", subj.Subject, err))
		}
		if n, err := s.matchmaking.PairWaitingTeams(ctx, subj.Subject); err != nil {
			errs = append(errs, fmt.Errorf("pair teams for %q: %w", subj.Subject, err))
		} else if n > 0 {
			s.logger.Info("supervisor paired waiting teams", slog.String("subject", subj.Subject), slog.Int("pairs", n))
		}
	}
	return errs
}

func (s *Supervisor) sweepWaiting(ctx context.Context) []error {
	waiting, err := s.matchRepo.ListByStatus(ctx, models.MatchStatusWaiting, supervisorBatch)
	if err != nil {
		return []error{fmt.Errorf("list waiting matches: %w", err)}
	}
	now := s.now()
	var errs []error
	for _, m := range waiting {
		if now.Sub(m.CreatedAt) > s.cfg.StartDeadline {
			if err := s.matches.Cancel(ctx, m.ID, reasonStartDeadline); err != nil && !errors.Is(err, ErrInvalidState) {
				errs = append(errs, fmt.Errorf("cancel match %d: %w", m.ID, err))
			}
			continue
		}
		if _, err := s.matches.Start(ctx, m.ID); err != nil && !errors.Is(err, ErrInvalidState) {
			errs = append(errs, fmt.Errorf("retry start of match %d: %w", m.ID, err))
		}
	}
	return errs
}

func (s *Supervisor) sweepInProgress(ctx context.Context) []error {
	running, err := s.matchRepo.ListByStatus(ctx, models.MatchStatusInProgress, supervisorBatch)
	if err != nil {
		return []error{fmt.Errorf("list running matches: %w", err)}
	}
	now := s.now()
	var errs []error
	for _, m := range running {
		if m.EndTime != nil && now.After(*m.EndTime) {
			if _, err := s.matches.Finish(ctx, m.ID); err != nil && !errors.Is(err, ErrInvalidState) {
				errs = append(errs, fmt.Errorf("finish match %d: %w", m.ID, err))
			}
			continue
		}

		_, err := s.store.GetSession(ctx, m.ID)
		switch {
		case err == nil:
		case errors.Is(err, cache.ErrSessionNotFound):
			if m.StartTime != nil && now.Sub(*m.StartTime) > s.cfg.StrandGrace {
				if err := s.matches.Cancel(ctx, m.ID, reasonSessionLost); err != nil && !errors.Is(err, ErrInvalidState) {
					errs = append(errs, fmt.Errorf("cancel stranded match %d: %w", m.ID, err))
				}
			}
		default:
			errs = append(errs, fmt.Errorf("read session of match %d: %w", m.ID, err))
		}
	}
	return errs
}
