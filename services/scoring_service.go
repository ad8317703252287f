package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Dosada05/trivia-duel/cache"
	"github.com/Dosada05/trivia-duel/models"
	"github.com/Dosada05/trivia-duel/repositories"
)

// DefaultAnswerMaxTime is the half-life of the response time decay.
const DefaultAnswerMaxTime = 10 * time.Second

const minPointsFactor = 0.5

type SubmitAnswerInput struct {
	MatchID      int
	UserID       int
	QuestionID   int
	Answer       string
	ResponseTime float64
}

type ScoringService interface {
	Submit(ctx context.Context, input SubmitAnswerInput) (*models.AnswerResult, error)
}

type scoringService struct {
	tx                repositories.Transactor
	participationRepo repositories.ParticipationRepository
	answerRepo        repositories.AnswerRepository
	store             *cache.Store
	matches           MatchService
	notifier          Notifier
	maxTime           time.Duration
	logger            *slog.Logger
	now               func() time.Time
}

func NewScoringService(
	tx repositories.Transactor,
	participationRepo repositories.ParticipationRepository,
	answerRepo repositories.AnswerRepository,
	store *cache.Store,
	matches MatchService,
	notifier Notifier,
	maxTime time.Duration,
	logger *slog.Logger,
) ScoringService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if maxTime <= 0 {
		maxTime = DefaultAnswerMaxTime
	}
	return &scoringService{
		tx:                tx,
		participationRepo: participationRepo,
		answerRepo:        answerRepo,
		store:             store,
		matches:           matches,
		notifier:          notifier,
		maxTime:           maxTime,
		logger:            logger,
		now:               time.Now,
	}
}

// CalculatePoints returns 0 for a wrong answer. A correct one earns base points
// decayed with half-life maxTime and floored at half of base.
func CalculatePoints(isCorrect bool, basePoints int, responseTime float64, maxTime time.Duration) float64 {
	if !isCorrect || basePoints <= 0 {
		return 0
	}
	if responseTime < 0 {
		responseTime = 0
	}
	if maxTime <= 0 {
		maxTime = DefaultAnswerMaxTime
	}
	factor := math.Exp(-math.Ln2 / maxTime.Seconds() * responseTime)
	return float64(basePoints) * math.Max(minPointsFactor, factor)
}

func answerMatches(submitted, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(correct))
}

func (s *scoringService) Submit(ctx context.Context, input SubmitAnswerInput) (*models.AnswerResult, error) {
	if math.IsNaN(input.ResponseTime) || math.IsInf(input.ResponseTime, 0) {
		return nil, fmt.Errorf("%w: response_time must be a finite number", ErrValidationFailed)
	}
	responseTime := math.Max(0, input.ResponseTime)

	sess, err := s.store.GetSession(ctx, input.MatchID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if sess.Status != models.MatchStatusInProgress {
		return nil, fmt.Errorf("%w: match %d is %s", ErrInvalidState, input.MatchID, sess.Status)
	}
	team, ok := sess.TeamOf(input.UserID)
	if !ok {
		return nil, fmt.Errorf("%w: user %d, match %d", ErrNotParticipant, input.UserID, input.MatchID)
	}
	question, ok := sess.Question(input.QuestionID)
	if !ok {
		return nil, fmt.Errorf("%w: question %d, match %d", ErrQuestionNotInMatch, input.QuestionID, input.MatchID)
	}

	claimed, err := s.store.ClaimAnswer(ctx, input.MatchID, input.QuestionID, input.UserID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: question %d, user %d", ErrDuplicateAnswer, input.QuestionID, input.UserID)
	}

	isCorrect := answerMatches(input.Answer, question.CorrectAnswer)
	points := CalculatePoints(isCorrect, question.Points, responseTime, s.maxTime)

	var participation *models.Participation
	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		p, err := s.participationRepo.GetForUpdate(ctx, tx, input.MatchID, input.UserID)
		if err != nil {
			return err
		}
		record := &models.AnswerRecord{
			ParticipationID: p.ID,
			QuestionID:      input.QuestionID,
			UserAnswer:      input.Answer,
			IsCorrect:       isCorrect,
			ResponseTime:    responseTime,
			PointsEarned:    points,
			AnsweredAt:      s.now().UTC(),
		}
		if err := s.answerRepo.Create(ctx, tx, record); err != nil {
			return err
		}
		p.ApplyAnswer(isCorrect, points, responseTime)
		if err := s.participationRepo.Update(ctx, tx, p); err != nil {
			return err
		}
		participation = p
		return nil
	})
	if err != nil {
		if !errors.Is(err, repositories.ErrAnswerDuplicate) {
			if relErr := s.store.ReleaseAnswer(ctx, input.MatchID, input.QuestionID, input.UserID); relErr != nil {
				s.logger.Error("failed to release answer claim",
					slog.Int("match_id", input.MatchID), slog.Int("user_id", input.UserID), slog.Any("error", relErr))
			}
		}
		return nil, translateStoreErr(err)
	}

	userTotal, teamTotal, err := s.store.AddScore(ctx, input.MatchID, input.UserID, team.TeamID, points)
	if err != nil {
		s.logger.Error("failed to update live score counters",
			slog.Int("match_id", input.MatchID), slog.Int("user_id", input.UserID), slog.Any("error", err))
		userTotal = participation.TotalScore
	}

	s.notifier.BroadcastToMatch(input.MatchID, models.NewEvent(models.EventScoreUpdate, input.MatchID, map[string]interface{}{
		"user_id":    input.UserID,
		"team_id":    team.TeamID,
		"user_score": userTotal,
		"team_score": teamTotal,
	}), 0)
	s.notifier.BroadcastToTeam(input.MatchID, team.Members, models.NewEvent(models.EventTeammateAnswered, input.MatchID, map[string]interface{}{
		"user_id":     input.UserID,
		"question_id": input.QuestionID,
		"is_correct":  isCorrect,
		"points":      points,
	}))

	if err := s.matches.CheckAdvance(ctx, input.MatchID); err != nil {
		s.logger.Warn("check advance after answer failed",
			slog.Int("match_id", input.MatchID), slog.Any("error", err))
	}

	return &models.AnswerResult{
		MatchID:        input.MatchID,
		QuestionID:     input.QuestionID,
		IsCorrect:      isCorrect,
		PointsEarned:   points,
		TotalScore:     participation.TotalScore,
		CorrectAnswers: participation.CorrectAnswers,
		TotalAnswers:   participation.TotalAnswers,
	}, nil
}
