package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/trivia-duel/cache"
	"github.com/Dosada05/trivia-duel/models"
	"github.com/Dosada05/trivia-duel/repositories"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeDB is an in-memory stand-in for postgres. Transactions are serialized and
// roll back by restoring a snapshot.
type fakeDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID    int
	matches   map[int]models.Match
	teams     map[int]models.Team
	parts     map[int]models.Participation
	answers   []models.AnswerRecord
	questions []models.Question
	stats     map[int]models.UserStats

	// failures keyed by operation name, e.g. "participations.CreateBatch".
	failures map[string]error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		matches:  make(map[int]models.Match),
		teams:    make(map[int]models.Team),
		parts:    make(map[int]models.Participation),
		stats:    make(map[int]models.UserStats),
		failures: make(map[string]error),
	}
}

func (db *fakeDB) id() int {
	db.nextID++
	return db.nextID
}

func (db *fakeDB) fail(op string) error {
	return db.failures[op]
}

func (db *fakeDB) setFailure(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.failures, op)
		return
	}
	db.failures[op] = err
}

type fakeSnapshot struct {
	nextID  int
	matches map[int]models.Match
	teams   map[int]models.Team
	parts   map[int]models.Participation
	answers []models.AnswerRecord
	stats   map[int]models.UserStats
}

func (db *fakeDB) snapshot() fakeSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := fakeSnapshot{
		nextID:  db.nextID,
		matches: make(map[int]models.Match, len(db.matches)),
		teams:   make(map[int]models.Team, len(db.teams)),
		parts:   make(map[int]models.Participation, len(db.parts)),
		answers: append([]models.AnswerRecord(nil), db.answers...),
		stats:   make(map[int]models.UserStats, len(db.stats)),
	}
	for k, v := range db.matches {
		s.matches[k] = v
	}
	for k, v := range db.teams {
		v.Members = append([]models.TeamMember(nil), v.Members...)
		s.teams[k] = v
	}
	for k, v := range db.parts {
		s.parts[k] = v
	}
	for k, v := range db.stats {
		s.stats[k] = v
	}
	return s
}

func (db *fakeDB) restore(s fakeSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID = s.nextID
	db.matches = s.matches
	db.teams = s.teams
	db.parts = s.parts
	db.answers = s.answers
	db.stats = s.stats
}

type fakeTransactor struct {
	db *fakeDB
}

func (t *fakeTransactor) WithinTx(ctx context.Context, fn func(tx repositories.SQLExecutor) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()
	snap := t.db.snapshot()
	if err := fn(nil); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

// --- matches ---

type fakeMatchRepo struct{ db *fakeDB }

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("matches.Create"); err != nil {
		return err
	}
	match.ID = r.db.id()
	match.CreatedAt = time.Now().UTC()
	stored := *match
	stored.Teams = nil
	r.db.matches[match.ID] = stored
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return &m, nil
}

func (r *fakeMatchRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *fakeMatchRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.MatchStatus, startTime, endTime *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("matches.UpdateStatus"); err != nil {
		return err
	}
	m, ok := r.db.matches[id]
	if !ok || m.Status != from {
		return repositories.ErrMatchStatusConflict
	}
	m.Status = to
	if startTime != nil {
		t := *startTime
		m.StartTime = &t
	}
	if endTime != nil {
		t := *endTime
		m.EndTime = &t
	}
	r.db.matches[id] = m
	return nil
}

func (r *fakeMatchRepo) ListByStatus(ctx context.Context, status models.MatchStatus, limit int) ([]*models.Match, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.db.matches {
		if m.Status == status {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- teams ---

type fakeTeamRepo struct{ db *fakeDB }

func (r *fakeTeamRepo) Create(ctx context.Context, exec repositories.SQLExecutor, team *models.Team) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.matches[team.MatchID]; !ok {
		return repositories.ErrTeamMatchInvalid
	}
	team.ID = r.db.id()
	team.CreatedAt = time.Now().UTC()
	r.db.teams[team.ID] = *team
	return nil
}

func (r *fakeTeamRepo) AddMembers(ctx context.Context, exec repositories.SQLExecutor, teamID int, userIDs []int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	members := append([]models.TeamMember(nil), t.Members...)
	for _, id := range userIDs {
		members = append(members, models.TeamMember{TeamID: teamID, UserID: id, JoinedAt: time.Now().UTC()})
	}
	t.Members = members
	r.db.teams[teamID] = t
	return nil
}

func (r *fakeTeamRepo) ListByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]models.Team, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.Team, 0, 2)
	for _, t := range r.db.teams {
		if t.MatchID == matchID {
			t.Members = append([]models.TeamMember(nil), t.Members...)
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTeamRepo) UpdateResult(ctx context.Context, exec repositories.SQLExecutor, teamID int, totalScore float64, isWinner bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.TotalScore = totalScore
	t.IsWinner = isWinner
	r.db.teams[teamID] = t
	return nil
}

// --- participations ---

type fakeParticipationRepo struct{ db *fakeDB }

func (r *fakeParticipationRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, matchID int, userIDs []int) ([]*models.Participation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("participations.CreateBatch"); err != nil {
		return nil, err
	}
	out := make([]*models.Participation, 0, len(userIDs))
	for _, uid := range userIDs {
		for _, p := range r.db.parts {
			if p.MatchID == matchID && p.UserID == uid {
				return nil, repositories.ErrParticipationConflict
			}
		}
		p := models.Participation{ID: r.db.id(), MatchID: matchID, UserID: uid, CreatedAt: time.Now().UTC()}
		r.db.parts[p.ID] = p
		out = append(out, &p)
	}
	return out, nil
}

func (r *fakeParticipationRepo) Get(ctx context.Context, exec repositories.SQLExecutor, matchID, userID int) (*models.Participation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.parts {
		if p.MatchID == matchID && p.UserID == userID {
			return &p, nil
		}
	}
	return nil, repositories.ErrParticipationNotFound
}

func (r *fakeParticipationRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, matchID, userID int) (*models.Participation, error) {
	return r.Get(ctx, exec, matchID, userID)
}

func (r *fakeParticipationRepo) Update(ctx context.Context, exec repositories.SQLExecutor, p *models.Participation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("participations.Update"); err != nil {
		return err
	}
	if _, ok := r.db.parts[p.ID]; !ok {
		return repositories.ErrParticipationNotFound
	}
	r.db.parts[p.ID] = *p
	return nil
}

func (r *fakeParticipationRepo) ListByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]*models.Participation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]*models.Participation, 0)
	for _, p := range r.db.parts {
		if p.MatchID == matchID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeParticipationRepo) DeleteByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, p := range r.db.parts {
		if p.MatchID == matchID {
			delete(r.db.parts, id)
		}
	}
	return nil
}

// --- answers ---

type fakeAnswerRepo struct{ db *fakeDB }

func (r *fakeAnswerRepo) Create(ctx context.Context, exec repositories.SQLExecutor, answer *models.AnswerRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.parts[answer.ParticipationID]; !ok {
		return repositories.ErrAnswerParticipationInvalid
	}
	for _, a := range r.db.answers {
		if a.ParticipationID == answer.ParticipationID && a.QuestionID == answer.QuestionID {
			return repositories.ErrAnswerDuplicate
		}
	}
	answer.ID = r.db.id()
	r.db.answers = append(r.db.answers, *answer)
	return nil
}

func (r *fakeAnswerRepo) ListByParticipation(ctx context.Context, exec repositories.SQLExecutor, participationID int) ([]models.AnswerRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.AnswerRecord, 0)
	for _, a := range r.db.answers {
		if a.ParticipationID == participationID {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- questions ---

type fakeQuestionRepo struct{ db *fakeDB }

func (r *fakeQuestionRepo) DrawForSubject(ctx context.Context, exec repositories.SQLExecutor, subject string, excludeIDs []int, limit int) ([]models.Question, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	skip := make(map[int]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		skip[id] = true
	}
	out := make([]models.Question, 0, limit)
	for _, q := range r.db.questions {
		if q.Subject != subject || skip[q.ID] {
			continue
		}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeQuestionRepo) AnsweredByUsers(ctx context.Context, exec repositories.SQLExecutor, subject string, userIDs []int) ([]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	users := make(map[int]bool, len(userIDs))
	for _, id := range userIDs {
		users[id] = true
	}
	subjectOf := make(map[int]string, len(r.db.questions))
	for _, q := range r.db.questions {
		subjectOf[q.ID] = q.Subject
	}
	seen := make(map[int]bool)
	out := make([]int, 0)
	for _, a := range r.db.answers {
		p, ok := r.db.parts[a.ParticipationID]
		if !ok || !users[p.UserID] || subjectOf[a.QuestionID] != subject || seen[a.QuestionID] {
			continue
		}
		seen[a.QuestionID] = true
		out = append(out, a.QuestionID)
	}
	return out, nil
}

func (r *fakeQuestionRepo) ListSubjects(ctx context.Context) ([]models.SubjectSummary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	counts := make(map[string]int)
	for _, q := range r.db.questions {
		counts[q.Subject]++
	}
	out := make([]models.SubjectSummary, 0, len(counts))
	for s, n := range counts {
		out = append(out, models.SubjectSummary{Subject: s, QuestionCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out, nil
}

// --- user stats ---

type fakeUserStatsRepo struct{ db *fakeDB }

func (r *fakeUserStatsRepo) ApplyMatchResult(ctx context.Context, exec repositories.SQLExecutor, userID int, score float64, won bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s := r.db.stats[userID]
	s.UserID = userID
	s.TotalGames++
	s.TotalScore += score
	if won {
		s.TotalWins++
	}
	s.UpdatedAt = time.Now().UTC()
	r.db.stats[userID] = s
	return nil
}

func (r *fakeUserStatsRepo) GetByUserID(ctx context.Context, userID int) (*models.UserStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.stats[userID]
	if !ok {
		return nil, repositories.ErrUserStatsNotFound
	}
	return &s, nil
}

// --- collaborators ---

type sentEvent struct {
	matchID int
	members []int
	exclude int
	event   models.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) BroadcastToMatch(matchID int, event models.Event, excludeUserID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{matchID: matchID, exclude: excludeUserID, event: event})
}

func (n *recordingNotifier) BroadcastToTeam(matchID int, memberIDs []int, event models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{matchID: matchID, members: memberIDs, event: event})
}

func (n *recordingNotifier) count(t models.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.event.Type == t {
			c++
		}
	}
	return c
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.MatchFinishedEvent
	err    error
}

func (p *recordingPublisher) PublishMatchFinished(ctx context.Context, event models.MatchFinishedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type recordingArchiver struct {
	mu       sync.Mutex
	archived []int
}

func (a *recordingArchiver) Archive(ctx context.Context, results *models.MatchResults) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, results.MatchID)
	return a.Location(results.MatchID), nil
}

func (a *recordingArchiver) Location(matchID int) string {
	return "https://archive.test/" + archiveKey(matchID)
}

// --- environment ---

type testEnv struct {
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	store *cache.Store
	db    *fakeDB

	matchRepo         *fakeMatchRepo
	teamRepo          *fakeTeamRepo
	participationRepo *fakeParticipationRepo
	answerRepo        *fakeAnswerRepo
	questionRepo      *fakeQuestionRepo
	userStatsRepo     *fakeUserStatsRepo

	notifier  *recordingNotifier
	publisher *recordingPublisher
	archiver  *recordingArchiver

	matches     MatchService
	scoring     ScoringService
	matchmaking MatchmakingService
	supervisor  *Supervisor
}

type envOption func(*envConfig)

type envConfig struct {
	teamSize int
}

func withTeamSize(n int) envOption {
	return func(c *envConfig) { c.teamSize = n }
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{teamSize: 1}
	for _, o := range opts {
		o(&cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := cache.NewStore(rdb, cache.Options{SessionTTL: time.Hour, ReservationTTL: 5 * time.Minute})
	db := newFakeDB()
	env := &testEnv{
		mr:                mr,
		rdb:               rdb,
		store:             store,
		db:                db,
		matchRepo:         &fakeMatchRepo{db: db},
		teamRepo:          &fakeTeamRepo{db: db},
		participationRepo: &fakeParticipationRepo{db: db},
		answerRepo:        &fakeAnswerRepo{db: db},
		questionRepo:      &fakeQuestionRepo{db: db},
		userStatsRepo:     &fakeUserStatsRepo{db: db},
		notifier:          &recordingNotifier{},
		publisher:         &recordingPublisher{},
		archiver:          &recordingArchiver{},
	}
	tx := &fakeTransactor{db: db}
	logger := testLogger()

	env.matches = NewMatchService(tx, env.matchRepo, env.teamRepo, env.participationRepo, env.answerRepo,
		env.questionRepo, env.userStatsRepo, store, env.notifier, env.publisher, env.archiver,
		MatchConfig{QuestionsPerMatch: 5, GameDuration: 5 * time.Minute, SessionTTL: time.Hour}, logger)
	env.scoring = NewScoringService(tx, env.participationRepo, env.answerRepo, store, env.matches, env.notifier,
		DefaultAnswerMaxTime, logger)
	env.matchmaking = NewMatchmakingService(tx, env.matchRepo, env.teamRepo, env.questionRepo, store, env.matches,
		MatchmakingConfig{TeamSize: cfg.teamSize, Timeout: 5 * time.Minute, SessionTTL: time.Hour}, logger)
	env.supervisor = NewSupervisor(env.matchRepo, env.matches, env.matchmaking, store,
		SupervisorConfig{StartDeadline: 2 * time.Minute, StrandGrace: time.Minute}, logger)
	return env
}

// seedQuestions adds n questions for subject whose correct answer is "answer-<id>".
func (e *testEnv) seedQuestions(subject string, n int) []models.Question {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	added := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		id := e.db.id()
		q := models.Question{
			ID:            id,
			Subject:       subject,
			Text:          "question " + subject,
			Options:       []string{"a", "b", "c"},
			CorrectAnswer: correctAnswerFor(id),
			Points:        models.DefaultQuestionPoints,
		}
		e.db.questions = append(e.db.questions, q)
		added = append(added, q)
	}
	return added
}

func correctAnswerFor(questionID int) string {
	return "answer-" + strconv.Itoa(questionID)
}

// createWaitingMatch inserts a waiting match with the given rosters directly.
func (e *testEnv) createWaitingMatch(t *testing.T, subject string, rosters ...[]int) int {
	t.Helper()
	ctx := context.Background()
	m := &models.Match{Subject: subject, Status: models.MatchStatusWaiting}
	require.NoError(t, e.matchRepo.Create(ctx, nil, m))
	for i, roster := range rosters {
		team := &models.Team{MatchID: m.ID, Name: "Team " + strconv.Itoa(i+1)}
		require.NoError(t, e.teamRepo.Create(ctx, nil, team))
		require.NoError(t, e.teamRepo.AddMembers(ctx, nil, team.ID, roster))
	}
	return m.ID
}

func (e *testEnv) startMatch(t *testing.T, subject string, rosters ...[]int) *models.LiveSession {
	t.Helper()
	id := e.createWaitingMatch(t, subject, rosters...)
	sess, err := e.matches.Start(context.Background(), id)
	require.NoError(t, err)
	return sess
}

func (e *testEnv) matchStatus(t *testing.T, id int) models.MatchStatus {
	t.Helper()
	m, err := e.matchRepo.GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return m.Status
}

func (e *testEnv) answerCount() int {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return len(e.db.answers)
}
