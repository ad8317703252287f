package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Dosada05/trivia-duel/cache"
	"github.com/Dosada05/trivia-duel/models"
	"github.com/Dosada05/trivia-duel/repositories"
	"github.com/google/uuid"
)

const (
	maxSubjectLength     = 100
	waitPerQueued        = 2 * time.Second
	defaultSweepInterval = 30 * time.Second
)

type MatchmakingConfig struct {
	TeamSize   int
	Timeout    time.Duration
	SessionTTL time.Duration
	// SweepInterval is how often the supervisor expires parked teams.
	SweepInterval time.Duration
}

type MatchmakingService interface {
	Join(ctx context.Context, userID int, subject string) (*models.JoinResult, error)
	Leave(ctx context.Context, userID int) error
	Subjects(ctx context.Context) ([]models.SubjectSummary, error)
	PairWaitingTeams(ctx context.Context, subject string) (int, error)
	ExpireWaitingTeams(ctx context.Context, subject string) (int, error)
}

type matchmakingService struct {
	tx           repositories.Transactor
	matchRepo    repositories.MatchRepository
	teamRepo     repositories.TeamRepository
	questionRepo repositories.QuestionRepository
	store        *cache.Store
	matches      MatchService
	cfg          MatchmakingConfig
	logger       *slog.Logger
	now          func() time.Time
}

func NewMatchmakingService(
	tx repositories.Transactor,
	matchRepo repositories.MatchRepository,
	teamRepo repositories.TeamRepository,
	questionRepo repositories.QuestionRepository,
	store *cache.Store,
	matches MatchService,
	cfg MatchmakingConfig,
	logger *slog.Logger,
) MatchmakingService {
	if cfg.TeamSize <= 0 {
		cfg.TeamSize = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	return &matchmakingService{
		tx:           tx,
		matchRepo:    matchRepo,
		teamRepo:     teamRepo,
		questionRepo: questionRepo,
		store:        store,
		matches:      matches,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

func normalizeSubject(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrValidationFailed)
	}
	if utf8.RuneCountInString(subject) > maxSubjectLength {
		return "", fmt.Errorf("%w: subject is longer than %d characters", ErrValidationFailed, maxSubjectLength)
	}
	return subject, nil
}

func (s *matchmakingService) Join(ctx context.Context, userID int, subject string) (*models.JoinResult, error) {
	subject, err := normalizeSubject(subject)
	if err != nil {
		return nil, err
	}

	already := &models.JoinResult{
		Status:  models.JoinStatusAlreadyQueued,
		Subject: subject,
		Message: "already in queue or in a match",
	}
	if _, engaged, err := s.store.Engagement(ctx, userID); err != nil {
		return nil, translateStoreErr(err)
	} else if engaged {
		return already, fmt.Errorf("%w: user %d", ErrAlreadyQueued, userID)
	}

	entry := models.QueueEntry{UserID: userID, Subject: subject, JoinedAt: s.now().UTC()}
	reserved, err := s.store.Reserve(ctx, entry)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if !reserved {
		return already, fmt.Errorf("%w: user %d", ErrAlreadyQueued, userID)
	}

	if _, err := s.store.Enqueue(ctx, entry); err != nil {
		if relErr := s.store.ReleaseReservations(ctx, userID); relErr != nil {
			s.logger.Error("failed to release reservation", slog.Int("user_id", userID), slog.Any("error", relErr))
		}
		return nil, translateStoreErr(err)
	}

	team, err := s.store.PopTeam(ctx, subject, s.cfg.TeamSize)
	if err != nil {
		s.logger.Warn("team formation failed, user stays queued",
			slog.String("subject", subject), slog.Int("user_id", userID), slog.Any("error", err))
		return s.waitingResult(ctx, subject), nil
	}
	if len(team) == 0 {
		return s.waitingResult(ctx, subject), nil
	}

	res, err := s.formTeam(ctx, subject, team)
	if !containsUser(team, userID) {
		// Команду собрали из тех, кто стоял раньше; вызывающий остаётся в очереди.
		if err != nil {
			s.logger.Error("failed to place formed team", slog.String("subject", subject), slog.Any("error", err))
		}
		return s.waitingResult(ctx, subject), nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *matchmakingService) waitingResult(ctx context.Context, subject string) *models.JoinResult {
	length, err := s.store.QueueLength(ctx, subject)
	if err != nil {
		s.logger.Warn("failed to read queue length", slog.String("subject", subject), slog.Any("error", err))
		length = 1
	}
	eta := time.Duration(length) * waitPerQueued
	if eta > s.cfg.Timeout {
		eta = s.cfg.Timeout
	}
	return &models.JoinResult{
		Status:        models.JoinStatusWaiting,
		Subject:       subject,
		Position:      int(length),
		EstimatedWait: int(eta / time.Second),
	}
}

// formTeam turns popped queue entries into a team and either pairs it with a
// waiting opponent or parks it. Players are never dropped: on a store failure
// they go back to the head of the queue.
func (s *matchmakingService) formTeam(ctx context.Context, subject string, entries []models.QueueEntry) (*models.JoinResult, error) {
	ids := entryUserIDs(entries)

	if err := s.store.ReleaseReservations(ctx, ids...); err != nil {
		s.logger.Warn("failed to release reservations", slog.Any("user_ids", ids), slog.Any("error", err))
	}

	team := &models.WaitingTeam{
		ID:        uuid.NewString(),
		Subject:   subject,
		Players:   ids,
		CreatedAt: s.now().UTC(),
	}
	// Маркер должен пережить команду в листе ожидания: её снимает только супервизор.
	if err := s.store.SetEngaged(ctx, ids, cache.PendingTeamValue(team.ID), s.pendingTTL()); err != nil {
		s.logger.Warn("failed to mark team engaged", slog.Any("user_ids", ids), slog.Any("error", err))
	}
	opponent, err := s.store.PairOrWait(ctx, team)
	if err != nil {
		if clrErr := s.store.ClearEngaged(ctx, ids...); clrErr != nil {
			s.logger.Warn("failed to clear engagement", slog.Any("user_ids", ids), slog.Any("error", clrErr))
		}
		if rqErr := s.store.Requeue(ctx, entries); rqErr != nil {
			s.logger.Error("failed to requeue players", slog.Any("user_ids", ids), slog.Any("error", rqErr))
		}
		return nil, translateStoreErr(err)
	}
	if opponent == nil {
		s.logger.Info("team formed, waiting for opponent",
			slog.String("subject", subject), slog.String("team", team.ID), slog.Any("players", ids))
		return &models.JoinResult{
			Status:      models.JoinStatusTeamFormedWaiting,
			Subject:     subject,
			TeamPlayers: ids,
			Message:     "team formed, waiting for opponent",
		}, nil
	}
	return s.createAndStart(ctx, opponent, team)
}

// pendingTTL covers the matchmaking timeout plus up to two supervisor ticks
// before the parked team is actually expired.
func (s *matchmakingService) pendingTTL() time.Duration {
	return s.cfg.Timeout + 2*s.cfg.SweepInterval
}

// createAndStart persists a match for two paired teams and starts it. first is
// the team that waited longer and becomes "Team 1".
func (s *matchmakingService) createAndStart(ctx context.Context, first, second *models.WaitingTeam) (*models.JoinResult, error) {
	matchID, err := s.createMatch(ctx, first, second)
	if err != nil {
		s.logger.Error("failed to create match for paired teams, parking them again",
			slog.String("subject", second.Subject), slog.Any("error", err))
		if pErr := s.store.PushWaitingTeam(ctx, first, true); pErr != nil {
			s.logger.Error("failed to park team", slog.String("team", first.ID), slog.Any("error", pErr))
		}
		if pErr := s.store.PushWaitingTeam(ctx, second, false); pErr != nil {
			s.logger.Error("failed to park team", slog.String("team", second.ID), slog.Any("error", pErr))
		}
		return nil, translateStoreErr(err)
	}

	players := append(append([]int{}, first.Players...), second.Players...)
	if err := s.store.SetEngaged(ctx, players, engagedMatchValue(matchID), s.cfg.SessionTTL); err != nil {
		s.logger.Warn("failed to mark players engaged", slog.Int("match_id", matchID), slog.Any("error", err))
	}

	res := &models.JoinResult{
		Status:      models.JoinStatusMatched,
		Subject:     second.Subject,
		TeamPlayers: second.Players,
		MatchID:     matchID,
		GameStatus:  models.MatchStatusInProgress,
	}
	if _, err := s.matches.Start(ctx, matchID); err != nil {
		s.logger.Error("match created but start failed",
			slog.Int("match_id", matchID), slog.Any("error", err))
		res.GameStatus = models.MatchStatusWaiting
		res.Message = "match created, start will be retried"
	}
	return res, nil
}

func (s *matchmakingService) createMatch(ctx context.Context, first, second *models.WaitingTeam) (int, error) {
	var matchID int
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		match := &models.Match{Subject: second.Subject, Status: models.MatchStatusWaiting}
		if err := s.matchRepo.Create(ctx, tx, match); err != nil {
			return err
		}
		for i, wt := range []*models.WaitingTeam{first, second} {
			team := &models.Team{MatchID: match.ID, Name: fmt.Sprintf("Team %d", i+1)}
			if err := s.teamRepo.Create(ctx, tx, team); err != nil {
				return err
			}
			if err := s.teamRepo.AddMembers(ctx, tx, team.ID, wt.Players); err != nil {
				return err
			}
		}
		matchID = match.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("match created",
		slog.Int("match_id", matchID),
		slog.String("subject", second.Subject),
		slog.String("team_1", first.ID),
		slog.String("team_2", second.ID))
	return matchID, nil
}

func (s *matchmakingService) Leave(ctx context.Context, userID int) error {
	removed, err := s.store.Leave(ctx, userID)
	if err != nil {
		return translateStoreErr(err)
	}
	if !removed {
		return fmt.Errorf("%w: user %d", ErrNotQueued, userID)
	}
	s.logger.Debug("user left matchmaking queue", slog.Int("user_id", userID))
	return nil
}

func (s *matchmakingService) Subjects(ctx context.Context) ([]models.SubjectSummary, error) {
	subjects, err := s.questionRepo.ListSubjects(ctx)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return subjects, nil
}

// PairWaitingTeams matches parked teams that could not be paired on the join path.
func (s *matchmakingService) PairWaitingTeams(ctx context.Context, subject string) (int, error) {
	paired := 0
	for {
		teams, err := s.store.PopWaitingPair(ctx, subject)
		if err != nil {
			return paired, translateStoreErr(err)
		}
		if len(teams) < 2 {
			return paired, nil
		}
		if _, err := s.createAndStart(ctx, teams[0], teams[1]); err != nil {
			return paired, err
		}
		paired++
	}
}

// ExpireWaitingTeams drops parked teams older than the matchmaking timeout and
// frees their players to queue again. Markers are cleared by the store together
// with the team.
func (s *matchmakingService) ExpireWaitingTeams(ctx context.Context, subject string) (int, error) {
	cutoff := s.now().UTC().Add(-s.cfg.Timeout)
	expired, err := s.store.ExpireWaitingTeams(ctx, subject, cutoff)
	if err != nil {
		return 0, translateStoreErr(err)
	}
	for _, team := range expired {
		s.logger.Info("waiting team expired", slog.String("subject", subject), slog.String("team", team.ID))
	}
	return len(expired), nil
}
