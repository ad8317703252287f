package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/trivia-duel/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinFormsTeamsInArrivalOrder(t *testing.T) {
	env := newTestEnv(t, withTeamSize(2))
	env.seedQuestions("Science", 5)
	ctx := context.Background()

	r1, err := env.matchmaking.Join(ctx, 1, "Science")
	require.NoError(t, err)
	assert.Equal(t, models.JoinStatusWaiting, r1.Status)
	assert.Equal(t, 1, r1.Position)
	assert.Equal(t, 2, r1.EstimatedWait)

	r2, err := env.matchmaking.Join(ctx, 2, "Science")
	require.NoError(t, err)
	assert.Equal(t, models.JoinStatusTeamFormedWaiting, r2.Status)
	assert.Equal(t, []int{1, 2}, r2.TeamPlayers)

	r3, err := env.matchmaking.Join(ctx, 3, "Science")
	require.NoError(t, err)
	assert.Equal(t, models.JoinStatusWaiting, r3.Status)

	r4, err := env.matchmaking.Join(ctx, 4, "Science")
	require.NoError(t, err)
	require.Equal(t, models.JoinStatusMatched, r4.Status)
	assert.Equal(t, models.MatchStatusInProgress, r4.GameStatus)
	assert.Equal(t, []int{3, 4}, r4.TeamPlayers)

	teams, err := env.teamRepo.ListByMatch(ctx, nil, r4.MatchID)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "Team 1", teams[0].Name)
	assert.Equal(t, []int{1, 2}, teams[0].MemberIDs())
	assert.Equal(t, "Team 2", teams[1].Name)
	assert.Equal(t, []int{3, 4}, teams[1].MemberIDs())

	n, err := env.store.QueueLength(ctx, "Science")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJoinRejectsReservedUser(t *testing.T) {
	env := newTestEnv(t, withTeamSize(2))
	ctx := context.Background()

	_, err := env.matchmaking.Join(ctx, 1, "Science")
	require.NoError(t, err)

	res, err := env.matchmaking.Join(ctx, 1, "History")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Equal(t, CodeAlreadyQueued, ErrorCode(err))
	require.NotNil(t, res)
	assert.Equal(t, models.JoinStatusAlreadyQueued, res.Status)

	n, err := env.store.QueueLength(ctx, "History")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, env.matchmaking.Leave(ctx, 1))
	res, err = env.matchmaking.Join(ctx, 1, "History")
	require.NoError(t, err)
	assert.Equal(t, models.JoinStatusWaiting, res.Status)
}

func TestJoinRejectsEngagedUser(t *testing.T) {
	env := newTestEnv(t, withTeamSize(1))
	ctx := context.Background()

	res, err := env.matchmaking.Join(ctx, 1, "Science")
	require.NoError(t, err)
	require.Equal(t, models.JoinStatusTeamFormedWaiting, res.Status)

	_, err = env.matchmaking.Join(ctx, 1, "Science")
	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestJoinValidatesSubject(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.matchmaking.Join(context.Background(), 1, "   ")
	assert.ErrorIs(t, err, ErrValidationFailed)

	long := make([]byte, maxSubjectLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = env.matchmaking.Join(context.Background(), 1, string(long))
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestLeaveWithoutReservation(t *testing.T) {
	env := newTestEnv(t)
	err := env.matchmaking.Leave(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotQueued)
	assert.Equal(t, CodeNotQueued, ErrorCode(err))
}

func TestLeaveRemovesUserFromQueue(t *testing.T) {
	env := newTestEnv(t, withTeamSize(3))
	ctx := context.Background()

	for _, u := range []int{1, 2} {
		_, err := env.matchmaking.Join(ctx, u, "Science")
		require.NoError(t, err)
	}
	require.NoError(t, env.matchmaking.Leave(ctx, 1))

	n, err := env.store.QueueLength(ctx, "Science")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, err := env.matchmaking.Join(ctx, 3, "Science")
	require.NoError(t, err)
	assert.Equal(t, models.JoinStatusWaiting, res.Status)
	assert.Equal(t, 2, res.Position)
}

func TestJoinMatchedEvenWhenStartFails(t *testing.T) {
	env := newTestEnv(t, withTeamSize(1))
	env.seedQuestions("Science", 2)
	ctx := context.Background()

	_, err := env.matchmaking.Join(ctx, 1, "Science")
	require.NoError(t, err)
	res, err := env.matchmaking.Join(ctx, 2, "Science")
	require.NoError(t, err)

	assert.Equal(t, models.JoinStatusMatched, res.Status)
	assert.Equal(t, models.MatchStatusWaiting, res.GameStatus)
	assert.NotZero(t, res.MatchID)
	assert.Equal(t, models.MatchStatusWaiting, env.matchStatus(t, res.MatchID))

	// игроки заняты матчем и не могут встать в очередь заново
	_, err = env.matchmaking.Join(ctx, 1, "Science")
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	env.seedQuestions("Science", 3)
	_, err = env.matches.Start(ctx, res.MatchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInProgress, env.matchStatus(t, res.MatchID))
}

func TestJoinParksTeamsWhenMatchCreationFails(t *testing.T) {
	env := newTestEnv(t, withTeamSize(1))
	env.seedQuestions("Science", 5)
	ctx := context.Background()

	_, err := env.matchmaking.Join(ctx, 1, "Science")
	require.NoError(t, err)

	env.db.setFailure("matches.Create", errors.New("db down"))
	_, err = env.matchmaking.Join(ctx, 2, "Science")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	waiting, err := env.rdb.LRange(ctx, "teams_waiting:Science", 0, -1).Result()
	require.NoError(t, err)
	assert.Len(t, waiting, 2)

	env.db.setFailure("matches.Create", nil)
	paired, err := env.matchmaking.PairWaitingTeams(ctx, "Science")
	require.NoError(t, err)
	assert.Equal(t, 1, paired)

	running, err := env.matchRepo.ListByStatus(ctx, models.MatchStatusInProgress, 10)
	require.NoError(t, err)
	require.Len(t, running, 1)
	teams, err := env.teamRepo.ListByMatch(ctx, nil, running[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, teams[0].MemberIDs())
	assert.Equal(t, []int{2}, teams[1].MemberIDs())
}

func TestJoinCallerOutsideFormedTeamKeepsWaiting(t *testing.T) {
	env := newTestEnv(t, withTeamSize(2))
	ctx := context.Background()

	_, err := env.matchmaking.Join(ctx, 1, "Science")
	require.NoError(t, err)

	// 2 встаёт в очередь в обход Join, поэтому команду [1,2] соберёт Join игрока 3
	entry := models.QueueEntry{UserID: 2, Subject: "Science", JoinedAt: time.Now().UTC()}
	ok, err := env.store.Reserve(ctx, entry)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = env.store.Enqueue(ctx, entry)
	require.NoError(t, err)

	res, err := env.matchmaking.Join(ctx, 3, "Science")
	require.NoError(t, err)
	assert.Equal(t, models.JoinStatusWaiting, res.Status)
	assert.Equal(t, 1, res.Position)

	_, engaged, err := env.store.Engagement(ctx, 1)
	require.NoError(t, err)
	assert.True(t, engaged)
}

func TestExpireWaitingTeamsFreesPlayers(t *testing.T) {
	env := newTestEnv(t, withTeamSize(1))
	ctx := context.Background()

	_, err := env.matchmaking.Join(ctx, 1, "Science")
	require.NoError(t, err)

	mm := env.matchmaking.(*matchmakingService)
	mm.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	n, err := env.matchmaking.ExpireWaitingTeams(ctx, "Science")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, engaged, err := env.store.Engagement(ctx, 1)
	require.NoError(t, err)
	assert.False(t, engaged)

	mm.now = time.Now
	res, err := env.matchmaking.Join(ctx, 1, "Science")
	require.NoError(t, err)
	assert.Equal(t, models.JoinStatusTeamFormedWaiting, res.Status)
}

func TestParkedPlayerIsNeverPairedWithThemselves(t *testing.T) {
	env := newTestEnv(t, withTeamSize(1))
	env.seedQuestions("Science", 5)
	ctx := context.Background()

	res, err := env.matchmaking.Join(ctx, 1, "Science")
	require.NoError(t, err)
	require.Equal(t, models.JoinStatusTeamFormedWaiting, res.Status)

	// маркер переживает таймаут подбора, пока супервизор не снимет команду
	env.mr.FastForward(5*time.Minute + time.Second)
	_, err = env.matchmaking.Join(ctx, 1, "Science")
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	require.NoError(t, env.store.ClearEngaged(ctx, 1))
	res, err = env.matchmaking.Join(ctx, 1, "Science")
	require.NoError(t, err)
	assert.Equal(t, models.JoinStatusTeamFormedWaiting, res.Status)

	n, err := env.matchmaking.PairWaitingTeams(ctx, "Science")
	require.NoError(t, err)
	assert.Zero(t, n)
	waiting, err := env.matchRepo.ListByStatus(ctx, models.MatchStatusWaiting, 10)
	require.NoError(t, err)
	assert.Empty(t, waiting)

	res, err = env.matchmaking.Join(ctx, 2, "Science")
	require.NoError(t, err)
	require.Equal(t, models.JoinStatusMatched, res.Status)
	teams, err := env.teamRepo.ListByMatch(ctx, nil, res.MatchID)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, []int{1}, teams[0].MemberIDs())
	assert.Equal(t, []int{2}, teams[1].MemberIDs())

	// оставшаяся команда игрока 1 истекает, а маркер матча не трогается
	mm := env.matchmaking.(*matchmakingService)
	mm.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	expired, err := env.matchmaking.ExpireWaitingTeams(ctx, "Science")
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	v, engaged, err := env.store.Engagement(ctx, 1)
	require.NoError(t, err)
	assert.True(t, engaged)
	assert.Equal(t, engagedMatchValue(res.MatchID), v)
}

func TestEstimatedWaitIsCapped(t *testing.T) {
	env := newTestEnv(t, withTeamSize(10))
	mm := env.matchmaking.(*matchmakingService)
	mm.cfg.Timeout = 3 * time.Second
	ctx := context.Background()

	var last *models.JoinResult
	for u := 1; u <= 4; u++ {
		res, err := env.matchmaking.Join(ctx, u, "Science")
		require.NoError(t, err)
		last = res
	}
	assert.Equal(t, 4, last.Position)
	assert.Equal(t, 3, last.EstimatedWait)
}

func TestSubjectsFromQuestionBank(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions("Science", 2)
	env.seedQuestions("History", 1)

	subjects, err := env.matchmaking.Subjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.SubjectSummary{
		{Subject: "History", QuestionCount: 1},
		{Subject: "Science", QuestionCount: 2},
	}, subjects)
}
