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
	"golang.org/x/sync/errgroup"
)

type MatchConfig struct {
	QuestionsPerMatch int
	GameDuration      time.Duration
	SessionTTL        time.Duration
}

type MatchService interface {
	Start(ctx context.Context, matchID int) (*models.LiveSession, error)
	CurrentQuestion(ctx context.Context, matchID int) (*models.QuestionView, error)
	CheckAdvance(ctx context.Context, matchID int) error
	Finish(ctx context.Context, matchID int) (*models.MatchResults, error)
	Cancel(ctx context.Context, matchID int, reason string) error
	GetState(ctx context.Context, matchID int) (*models.MatchState, error)
	Results(ctx context.Context, matchID int) (*models.MatchResults, error)
	UserStats(ctx context.Context, matchID, userID int) (*models.UserMatchStats, error)
	PlayerStats(ctx context.Context, userID int) (*models.UserStats, error)
	LiveScores(ctx context.Context, matchID int) (*models.ScoreSnapshot, error)
	TeamMembers(ctx context.Context, matchID, userID int) ([]int, error)
}

type matchService struct {
	tx                repositories.Transactor
	matchRepo         repositories.MatchRepository
	teamRepo          repositories.TeamRepository
	participationRepo repositories.ParticipationRepository
	answerRepo        repositories.AnswerRepository
	questionRepo      repositories.QuestionRepository
	userStatsRepo     repositories.UserStatsRepository
	store             *cache.Store
	notifier          Notifier
	publisher         ResultPublisher
	archiver          ResultArchiver
	cfg               MatchConfig
	logger            *slog.Logger
	now               func() time.Time
}

func NewMatchService(
	tx repositories.Transactor,
	matchRepo repositories.MatchRepository,
	teamRepo repositories.TeamRepository,
	participationRepo repositories.ParticipationRepository,
	answerRepo repositories.AnswerRepository,
	questionRepo repositories.QuestionRepository,
	userStatsRepo repositories.UserStatsRepository,
	store *cache.Store,
	notifier Notifier,
	publisher ResultPublisher,
	archiver ResultArchiver,
	cfg MatchConfig,
	logger *slog.Logger,
) MatchService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if archiver == nil {
		archiver = nopArchiver{}
	}
	if cfg.QuestionsPerMatch <= 0 {
		cfg.QuestionsPerMatch = 5
	}
	if cfg.GameDuration <= 0 {
		cfg.GameDuration = 5 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	return &matchService{
		tx:                tx,
		matchRepo:         matchRepo,
		teamRepo:          teamRepo,
		participationRepo: participationRepo,
		answerRepo:        answerRepo,
		questionRepo:      questionRepo,
		userStatsRepo:     userStatsRepo,
		store:             store,
		notifier:          notifier,
		publisher:         publisher,
		archiver:          archiver,
		cfg:               cfg,
		logger:            logger,
		now:               time.Now,
	}
}

func (s *matchService) Start(ctx context.Context, matchID int) (*models.LiveSession, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if match.Status != models.MatchStatusWaiting {
		return nil, fmt.Errorf("%w: match %d is %s", ErrInvalidState, matchID, match.Status)
	}

	var sess *models.LiveSession
	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		locked, err := s.matchRepo.GetForUpdate(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if locked.Status != models.MatchStatusWaiting {
			return fmt.Errorf("%w: match %d is %s", ErrInvalidState, matchID, locked.Status)
		}

		teams, err := s.teamRepo.ListByMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		sessionTeams, players, err := rosterFromTeams(teams)
		if err != nil {
			return fmt.Errorf("%w: match %d: %w", ErrInvalidState, matchID, err)
		}

		questions, err := s.drawQuestions(ctx, tx, locked.Subject, players)
		if err != nil {
			return err
		}

		if _, err := s.participationRepo.CreateBatch(ctx, tx, matchID, players); err != nil {
			return err
		}

		start := s.now().UTC()
		end := start.Add(s.cfg.GameDuration)
		if err := s.matchRepo.UpdateStatus(ctx, tx, matchID, models.MatchStatusWaiting, models.MatchStatusInProgress, &start, &end); err != nil {
			return err
		}

		sess = &models.LiveSession{
			SchemaVersion: models.SessionSchemaVersion,
			MatchID:       matchID,
			Subject:       locked.Subject,
			Status:        models.MatchStatusInProgress,
			Questions:     questions,
			Cursor:        0,
			Teams:         sessionTeams,
			Players:       players,
			StartTime:     start,
			EndTime:       end,
		}
		return nil
	})
	if err != nil {
		return nil, translateStoreErr(err)
	}

	if err := s.store.PutSession(ctx, sess); err != nil {
		s.logger.Error("failed to publish live session, reverting start",
			slog.Int("match_id", matchID), slog.Any("error", err))
		if rbErr := s.revertStart(ctx, matchID); rbErr != nil {
			s.logger.Error("failed to revert match start", slog.Int("match_id", matchID), slog.Any("error", rbErr))
		}
		return nil, translateStoreErr(err)
	}

	if err := s.store.SetEngaged(ctx, sess.Players, engagedMatchValue(matchID), s.cfg.SessionTTL); err != nil {
		s.logger.Warn("failed to mark players engaged", slog.Int("match_id", matchID), slog.Any("error", err))
	}

	s.logger.Info("match started",
		slog.Int("match_id", matchID),
		slog.String("subject", sess.Subject),
		slog.Int("players", len(sess.Players)))

	if q, ok := sess.CurrentQuestion(); ok {
		s.notifier.BroadcastToMatch(matchID, models.NewEvent(models.EventCurrentQuestion, matchID, sess.View(q)), 0)
	}
	return sess, nil
}

// revertStart puts a started match back into waiting so a later Start can retry it.
func (s *matchService) revertStart(ctx context.Context, matchID int) error {
	return s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.participationRepo.DeleteByMatch(ctx, tx, matchID); err != nil {
			return err
		}
		return s.matchRepo.UpdateStatus(ctx, tx, matchID, models.MatchStatusInProgress, models.MatchStatusWaiting, nil, nil)
	})
}

func rosterFromTeams(teams []models.Team) ([]models.SessionTeam, []int, error) {
	if len(teams) != 2 {
		return nil, nil, fmt.Errorf("expected 2 teams, got %d", len(teams))
	}
	seen := make(map[int]bool)
	sessionTeams := make([]models.SessionTeam, 0, len(teams))
	players := make([]int, 0)
	for _, t := range teams {
		members := t.MemberIDs()
		if len(members) == 0 {
			return nil, nil, fmt.Errorf("team %d has no members", t.ID)
		}
		for _, id := range members {
			if seen[id] {
				return nil, nil, fmt.Errorf("user %d is on more than one team", id)
			}
			seen[id] = true
		}
		sessionTeams = append(sessionTeams, models.SessionTeam{TeamID: t.ID, Name: t.Name, Members: members})
		players = append(players, members...)
	}
	return sessionTeams, players, nil
}

// drawQuestions prefers questions none of the players has answered before and
// falls back to the whole subject pool.
func (s *matchService) drawQuestions(ctx context.Context, tx repositories.SQLExecutor, subject string, players []int) ([]models.SessionQuestion, error) {
	n := s.cfg.QuestionsPerMatch
	exclude, err := s.questionRepo.AnsweredByUsers(ctx, tx, subject, players)
	if err != nil {
		return nil, err
	}
	drawn, err := s.questionRepo.DrawForSubject(ctx, tx, subject, exclude, n)
	if err != nil {
		return nil, err
	}
	if len(drawn) < n && len(exclude) > 0 {
		drawn, err = s.questionRepo.DrawForSubject(ctx, tx, subject, nil, n)
		if err != nil {
			return nil, err
		}
	}
	if len(drawn) < n {
		return nil, fmt.Errorf("%w: subject %q has %d, need %d", ErrInsufficientContent, subject, len(drawn), n)
	}

	questions := make([]models.SessionQuestion, 0, n)
	for _, q := range drawn[:n] {
		points := q.Points
		if points <= 0 {
			points = models.DefaultQuestionPoints
		}
		questions = append(questions, models.SessionQuestion{
			ID:            q.ID,
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Points:        points,
		})
	}
	return questions, nil
}

func (s *matchService) CurrentQuestion(ctx context.Context, matchID int) (*models.QuestionView, error) {
	sess, err := s.store.GetSession(ctx, matchID)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			// Ещё не начавшийся матч - это InvalidState, завершённый - NotFound.
			if match, mErr := s.matchRepo.GetByID(ctx, nil, matchID); mErr == nil && match.Status == models.MatchStatusWaiting {
				return nil, fmt.Errorf("%w: match %d has not started", ErrInvalidState, matchID)
			}
		}
		return nil, translateStoreErr(err)
	}
	if sess.Status != models.MatchStatusInProgress {
		return nil, fmt.Errorf("%w: match %d is %s", ErrInvalidState, matchID, sess.Status)
	}
	q, ok := sess.CurrentQuestion()
	if !ok {
		return nil, fmt.Errorf("%w: match %d", ErrQuestionsExhausted, matchID)
	}
	if err := s.store.MarkSeen(ctx, matchID, q.ID); err != nil {
		s.logger.Warn("failed to record seen question", slog.Int("match_id", matchID), slog.Any("error", err))
	}
	return sess.View(q), nil
}

// CheckAdvance moves the cursor past every question the whole roster has
// already answered. Answers may arrive ahead of the cursor, so one call can
// skip several questions or finish the match.
func (s *matchService) CheckAdvance(ctx context.Context, matchID int) error {
	var finish bool
	sess, advanced, err := s.store.UpdateSession(ctx, matchID, func(sess *models.LiveSession) (bool, error) {
		finish = false
		if sess.Status != models.MatchStatusInProgress {
			return false, fmt.Errorf("%w: match %d is %s", ErrInvalidState, matchID, sess.Status)
		}
		from := sess.Cursor
		for {
			q, ok := sess.CurrentQuestion()
			if !ok {
				finish = true
				break
			}
			answered, err := s.store.CountAnswered(ctx, matchID, q.ID, sess.Players)
			if err != nil {
				return false, err
			}
			if answered < len(sess.Players) {
				break
			}
			if sess.IsLastQuestion() {
				finish = true
				break
			}
			sess.Cursor++
		}
		return sess.Cursor != from, nil
	})
	if err != nil {
		return translateStoreErr(err)
	}

	if advanced && !finish {
		if q, ok := sess.CurrentQuestion(); ok {
			s.logger.Debug("match advanced", slog.Int("match_id", matchID), slog.Int("cursor", sess.Cursor))
			s.notifier.BroadcastToMatch(matchID, models.NewEvent(models.EventCurrentQuestion, matchID, sess.View(q)), 0)
		}
	}
	if finish {
		if _, err := s.Finish(ctx, matchID); err != nil {
			return err
		}
	}
	return nil
}

func (s *matchService) Finish(ctx context.Context, matchID int) (*models.MatchResults, error) {
	sess, err := s.store.GetSession(ctx, matchID)
	if err != nil {
		if !errors.Is(err, cache.ErrSessionNotFound) {
			s.logger.Warn("finishing without live session", slog.Int("match_id", matchID), slog.Any("error", err))
		}
		sess = nil
	}

	var results *models.MatchResults
	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetForUpdate(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusInProgress {
			return fmt.Errorf("%w: match %d is %s", ErrInvalidState, matchID, match.Status)
		}
		teams, err := s.teamRepo.ListByMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		parts, err := s.participationRepo.ListByMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}

		totals, winnerID := decideOutcome(teams, parts)
		for i := range teams {
			teams[i].TotalScore = totals[teams[i].ID]
			teams[i].IsWinner = winnerID != nil && teams[i].ID == *winnerID
			if err := s.teamRepo.UpdateResult(ctx, tx, teams[i].ID, teams[i].TotalScore, teams[i].IsWinner); err != nil {
				return err
			}
		}

		winners := make(map[int]bool)
		for _, t := range teams {
			if t.IsWinner {
				for _, id := range t.MemberIDs() {
					winners[id] = true
				}
			}
		}
		for _, p := range parts {
			if err := s.userStatsRepo.ApplyMatchResult(ctx, tx, p.UserID, p.TotalScore, winners[p.UserID]); err != nil {
				return err
			}
		}

		end := s.now().UTC()
		if err := s.matchRepo.UpdateStatus(ctx, tx, matchID, models.MatchStatusInProgress, models.MatchStatusFinished, nil, &end); err != nil {
			return err
		}
		match.Status = models.MatchStatusFinished
		match.EndTime = &end
		results = buildResults(match, teams, parts)
		return nil
	})
	if err != nil {
		return nil, translateStoreErr(err)
	}

	s.releaseLive(ctx, matchID, sess, results.Teams)
	results.ArchiveURL = s.archiver.Location(matchID)

	s.logger.Info("match finished",
		slog.Int("match_id", matchID),
		slog.Any("winner_team_id", results.WinnerTeamID))

	s.afterFinish(ctx, results)
	return results, nil
}

// decideOutcome sums member scores per team. The highest total wins; on equal
// totals the team with the lower id wins.
func decideOutcome(teams []models.Team, parts []*models.Participation) (map[int]float64, *int) {
	teamOf := make(map[int]int)
	for _, t := range teams {
		for _, id := range t.MemberIDs() {
			teamOf[id] = t.ID
		}
	}
	totals := make(map[int]float64, len(teams))
	for _, t := range teams {
		totals[t.ID] = 0
	}
	for _, p := range parts {
		if teamID, ok := teamOf[p.UserID]; ok {
			totals[teamID] += p.TotalScore
		}
	}

	var winner *int
	for _, t := range teams {
		id := t.ID
		switch {
		case winner == nil:
			winner = &id
		case totals[id] > totals[*winner]:
			winner = &id
		case totals[id] == totals[*winner] && id < *winner:
			winner = &id
		}
	}
	return totals, winner
}

func buildResults(match *models.Match, teams []models.Team, parts []*models.Participation) *models.MatchResults {
	res := &models.MatchResults{
		MatchID:   match.ID,
		Subject:   match.Subject,
		Status:    match.Status,
		Teams:     make([]models.TeamScore, 0, len(teams)),
		Players:   make([]models.PlayerScore, 0, len(parts)),
		StartTime: match.StartTime,
		EndTime:   match.EndTime,
	}
	teamOf := make(map[int]int)
	for _, t := range teams {
		res.Teams = append(res.Teams, models.TeamScore{TeamID: t.ID, Name: t.Name, Score: t.TotalScore, Members: t.MemberIDs()})
		for _, id := range t.MemberIDs() {
			teamOf[id] = t.ID
		}
		if t.IsWinner {
			id := t.ID
			res.WinnerTeamID = &id
		}
	}
	for _, p := range parts {
		res.Players = append(res.Players, models.PlayerScore{UserID: p.UserID, TeamID: teamOf[p.UserID], Score: p.TotalScore})
	}
	return res
}

// releaseLive drops ephemeral state of a match that reached a terminal status.
func (s *matchService) releaseLive(ctx context.Context, matchID int, sess *models.LiveSession, teams []models.TeamScore) {
	var playerIDs, teamIDs, questionIDs []int
	if sess != nil {
		playerIDs, teamIDs, questionIDs = sess.Players, sess.TeamIDs(), sess.QuestionIDs()
	} else {
		for _, t := range teams {
			teamIDs = append(teamIDs, t.TeamID)
			playerIDs = append(playerIDs, t.Members...)
		}
	}

	if err := s.store.DeleteSession(ctx, matchID, playerIDs, teamIDs, questionIDs); err != nil {
		s.logger.Error("failed to delete live session", slog.Int("match_id", matchID), slog.Any("error", err))
	}
	if err := s.store.ClearEngaged(ctx, playerIDs...); err != nil {
		s.logger.Warn("failed to clear engagement markers", slog.Int("match_id", matchID), slog.Any("error", err))
	}
}

// afterFinish fans the result out to sockets, the broker and the archive.
func (s *matchService) afterFinish(ctx context.Context, results *models.MatchResults) {
	s.notifier.BroadcastToMatch(results.MatchID, models.NewEvent(models.EventGameEnded, results.MatchID, results), 0)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		evt := models.MatchFinishedEvent{
			MatchID:      results.MatchID,
			Subject:      results.Subject,
			WinnerTeamID: results.WinnerTeamID,
			Teams:        results.Teams,
			Players:      results.Players,
			FinishedAt:   s.now().UTC(),
		}
		if err := s.publisher.PublishMatchFinished(gCtx, evt); err != nil {
			return fmt.Errorf("publish match %d: %w", results.MatchID, err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := s.archiver.Archive(gCtx, results); err != nil {
			return fmt.Errorf("archive match %d: %w", results.MatchID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("post-finish delivery failed", slog.Int("match_id", results.MatchID), slog.Any("error", err))
	}
}

func (s *matchService) Cancel(ctx context.Context, matchID int, reason string) error {
	var teams []models.Team
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetForUpdate(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if match.Status.IsTerminal() {
			return fmt.Errorf("%w: match %d is already %s", ErrInvalidState, matchID, match.Status)
		}
		teams, err = s.teamRepo.ListByMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		end := s.now().UTC()
		return s.matchRepo.UpdateStatus(ctx, tx, matchID, match.Status, models.MatchStatusCancelled, nil, &end)
	})
	if err != nil {
		return translateStoreErr(err)
	}

	sess, err := s.store.GetSession(ctx, matchID)
	if err != nil {
		sess = nil
	}
	teamScores := make([]models.TeamScore, 0, len(teams))
	for _, t := range teams {
		teamScores = append(teamScores, models.TeamScore{TeamID: t.ID, Name: t.Name, Members: t.MemberIDs()})
	}
	s.releaseLive(ctx, matchID, sess, teamScores)

	s.logger.Info("match cancelled", slog.Int("match_id", matchID), slog.String("reason", reason))
	s.notifier.BroadcastToMatch(matchID, models.NewEvent(models.EventGameCancelled, matchID, map[string]interface{}{
		"match_id": matchID,
		"reason":   reason,
	}), 0)
	return nil
}

func (s *matchService) GetState(ctx context.Context, matchID int) (*models.MatchState, error) {
	sess, err := s.store.GetSession(ctx, matchID)
	if err == nil {
		snapshot, err := s.snapshot(ctx, sess)
		if err != nil {
			return nil, translateStoreErr(err)
		}
		start, end := sess.StartTime, sess.EndTime
		return &models.MatchState{
			MatchID:         sess.MatchID,
			Subject:         sess.Subject,
			Status:          sess.Status,
			Live:            true,
			CurrentQuestion: sess.Cursor + 1,
			TotalQuestions:  len(sess.Questions),
			Teams:           snapshot.Teams,
			Players:         sess.Players,
			StartTime:       &start,
			EndTime:         &end,
			Scores:          snapshot,
		}, nil
	}
	if !errors.Is(err, cache.ErrSessionNotFound) {
		s.logger.Warn("live session unreadable, using durable state", slog.Int("match_id", matchID), slog.Any("error", err))
	}

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	teams, err := s.teamRepo.ListByMatch(ctx, nil, matchID)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	state := &models.MatchState{
		MatchID:        match.ID,
		Subject:        match.Subject,
		Status:         match.Status,
		Live:           false,
		TotalQuestions: s.cfg.QuestionsPerMatch,
		Teams:          make([]models.TeamScore, 0, len(teams)),
		Players:        make([]int, 0),
		StartTime:      match.StartTime,
		EndTime:        match.EndTime,
	}
	if match.Status == models.MatchStatusFinished {
		state.CurrentQuestion = s.cfg.QuestionsPerMatch
	}
	for _, t := range teams {
		state.Teams = append(state.Teams, models.TeamScore{TeamID: t.ID, Name: t.Name, Score: t.TotalScore, Members: t.MemberIDs()})
		state.Players = append(state.Players, t.MemberIDs()...)
		if t.IsWinner {
			id := t.ID
			state.WinnerTeamID = &id
		}
	}
	return state, nil
}

func (s *matchService) Results(ctx context.Context, matchID int) (*models.MatchResults, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	var (
		teams []models.Team
		parts []*models.Participation
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		teams, err = s.teamRepo.ListByMatch(gCtx, nil, matchID)
		return err
	})
	g.Go(func() error {
		var err error
		parts, err = s.participationRepo.ListByMatch(gCtx, nil, matchID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, translateStoreErr(err)
	}

	res := buildResults(match, teams, parts)
	switch match.Status {
	case models.MatchStatusFinished:
		res.ArchiveURL = s.archiver.Location(matchID)
	case models.MatchStatusInProgress:
		sess, err := s.store.GetSession(ctx, matchID)
		if err != nil {
			return nil, translateStoreErr(err)
		}
		total := len(sess.Questions)
		res.Progress = &models.MatchProgress{
			CurrentQuestion: sess.Cursor + 1,
			TotalQuestions:  total,
			Completion:      float64(sess.Cursor) / float64(total) * 100,
		}
		snapshot, err := s.snapshot(ctx, sess)
		if err != nil {
			return nil, translateStoreErr(err)
		}
		res.Teams = snapshot.Teams
		res.Players = snapshot.Players
	}
	return res, nil
}

func (s *matchService) UserStats(ctx context.Context, matchID, userID int) (*models.UserMatchStats, error) {
	p, err := s.participationRepo.Get(ctx, nil, matchID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipationNotFound) {
			if _, mErr := s.matchRepo.GetByID(ctx, nil, matchID); mErr != nil {
				return nil, translateStoreErr(mErr)
			}
		}
		return nil, translateStoreErr(err)
	}
	answers, err := s.answerRepo.ListByParticipation(ctx, nil, p.ID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return &models.UserMatchStats{
		MatchID:             matchID,
		UserID:              userID,
		TotalScore:          p.TotalScore,
		CorrectAnswers:      p.CorrectAnswers,
		TotalAnswers:        p.TotalAnswers,
		Accuracy:            p.Accuracy(),
		AverageResponseTime: p.AverageResponseTime,
		Answers:             answers,
	}, nil
}

func (s *matchService) PlayerStats(ctx context.Context, userID int) (*models.UserStats, error) {
	stats, err := s.userStatsRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserStatsNotFound) {
			return &models.UserStats{UserID: userID}, nil
		}
		return nil, translateStoreErr(err)
	}
	return stats, nil
}

func (s *matchService) LiveScores(ctx context.Context, matchID int) (*models.ScoreSnapshot, error) {
	sess, err := s.store.GetSession(ctx, matchID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	snapshot, err := s.snapshot(ctx, sess)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return snapshot, nil
}

func (s *matchService) snapshot(ctx context.Context, sess *models.LiveSession) (*models.ScoreSnapshot, error) {
	users, teams, err := s.store.Scores(ctx, sess.MatchID, sess.Players, sess.TeamIDs())
	if err != nil {
		return nil, err
	}
	snap := &models.ScoreSnapshot{
		MatchID: sess.MatchID,
		Teams:   make([]models.TeamScore, 0, len(sess.Teams)),
		Players: make([]models.PlayerScore, 0, len(sess.Players)),
	}
	for _, t := range sess.Teams {
		snap.Teams = append(snap.Teams, models.TeamScore{TeamID: t.TeamID, Name: t.Name, Score: teams[t.TeamID], Members: t.Members})
		for _, u := range t.Members {
			snap.Players = append(snap.Players, models.PlayerScore{UserID: u, TeamID: t.TeamID, Score: users[u]})
		}
	}
	return snap, nil
}

func (s *matchService) TeamMembers(ctx context.Context, matchID, userID int) ([]int, error) {
	sess, err := s.store.GetSession(ctx, matchID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	team, ok := sess.TeamOf(userID)
	if !ok {
		return nil, fmt.Errorf("%w: user %d, match %d", ErrNotParticipant, userID, matchID)
	}
	return team.Members, nil
}
