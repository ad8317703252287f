package cache

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ClaimAnswer sets the answered marker if absent. False means the slot was already taken.
func (s *Store) ClaimAnswer(ctx context.Context, matchID, questionID, userID int) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, answeredKey(matchID, questionID, userID), 1, s.opts.SessionTTL).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

func (s *Store) ReleaseAnswer(ctx context.Context, matchID, questionID, userID int) error {
	if err := s.rdb.Del(ctx, answeredKey(matchID, questionID, userID)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// CountAnswered counts distinct users holding an answered marker for the question.
func (s *Store) CountAnswered(ctx context.Context, matchID, questionID int, userIDs []int) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(userIDs))
	seen := make(map[int]struct{}, len(userIDs))
	for _, u := range userIDs {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		keys = append(keys, answeredKey(matchID, questionID, u))
	}
	n, err := s.rdb.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

// AddScore bumps the live user and team counters and refreshes TTLs of the match keys.
func (s *Store) AddScore(ctx context.Context, matchID, userID, teamID int, points float64) (float64, float64, error) {
	var userTotal, teamTotal *redis.FloatCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		userTotal = pipe.IncrByFloat(ctx, userScoreKey(matchID, userID), points)
		pipe.Expire(ctx, userScoreKey(matchID, userID), s.opts.SessionTTL)
		teamTotal = pipe.IncrByFloat(ctx, teamScoreKey(matchID, teamID), points)
		pipe.Expire(ctx, teamScoreKey(matchID, teamID), s.opts.SessionTTL)
		pipe.Expire(ctx, sessionKey(matchID), s.opts.SessionTTL)
		return nil
	})
	if err != nil {
		return 0, 0, unavailable(err)
	}
	return userTotal.Val(), teamTotal.Val(), nil
}

// Scores reads live counters; missing counters read as zero.
func (s *Store) Scores(ctx context.Context, matchID int, userIDs, teamIDs []int) (map[int]float64, map[int]float64, error) {
	keys := make([]string, 0, len(userIDs)+len(teamIDs))
	for _, u := range userIDs {
		keys = append(keys, userScoreKey(matchID, u))
	}
	for _, t := range teamIDs {
		keys = append(keys, teamScoreKey(matchID, t))
	}
	users := make(map[int]float64, len(userIDs))
	teams := make(map[int]float64, len(teamIDs))
	if len(keys) == 0 {
		return users, teams, nil
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, unavailable(err)
	}
	for i, u := range userIDs {
		users[u] = parseScore(values[i])
	}
	for i, t := range teamIDs {
		teams[t] = parseScore(values[len(userIDs)+i])
	}
	return users, teams, nil
}

func parseScore(v interface{}) float64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0
	}
	return f
}

func (s *Store) MarkSeen(ctx context.Context, matchID, questionID int) error {
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, seenKey(matchID), questionID)
		pipe.Expire(ctx, seenKey(matchID), s.opts.SessionTTL)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) SeenQuestions(ctx context.Context, matchID int) ([]int, error) {
	members, err := s.rdb.SMembers(ctx, seenKey(matchID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	ids := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
