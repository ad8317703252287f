package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/trivia-duel/models"
	"github.com/redis/go-redis/v9"
)

const maxPopAttempts = 3

// popN takes exactly ARGV[1] elements from the head or nothing at all.
var popNScript = redis.NewScript(`
	local size = tonumber(ARGV[1])
	if redis.call('LLEN', KEYS[1]) < size then
		return {}
	end
	local popped = redis.call('LRANGE', KEYS[1], 0, size - 1)
	redis.call('LTRIM', KEYS[1], size, -1)
	return popped
`)

// leaveQueue rewrites the queue without any entry of the user and drops the reservation.
var leaveQueueScript = redis.NewScript(`
	local removed = 0
	local items = redis.call('LRANGE', KEYS[1], 0, -1)
	for _, raw in ipairs(items) do
		local entry = cjson.decode(raw)
		if tonumber(entry.user_id) == tonumber(ARGV[1]) then
			removed = removed + redis.call('LREM', KEYS[1], 0, raw)
		end
	end
	redis.call('DEL', KEYS[2])
	return removed
`)

// pairOrWait takes the oldest parked team that shares no player with ARGV[1],
// or parks ARGV[1] at the tail when there is none. ARGV[2..] are its players.
var pairOrWaitScript = redis.NewScript(`
	local mine = {}
	for i = 2, #ARGV do
		mine[tonumber(ARGV[i])] = true
	end
	local items = redis.call('LRANGE', KEYS[1], 0, -1)
	for _, raw in ipairs(items) do
		local team = cjson.decode(raw)
		local shared = false
		for _, id in ipairs(team.players) do
			if mine[tonumber(id)] then
				shared = true
				break
			end
		end
		if not shared then
			redis.call('LREM', KEYS[1], 1, raw)
			return raw
		end
	end
	redis.call('RPUSH', KEYS[1], ARGV[1])
	return false
`)

// popPair takes the first two parked teams with disjoint players, or nothing.
var popPairScript = redis.NewScript(`
	local items = redis.call('LRANGE', KEYS[1], 0, -1)
	local teams = {}
	for i, raw in ipairs(items) do
		teams[i] = cjson.decode(raw)
	end
	for i = 1, #items do
		local seen = {}
		for _, id in ipairs(teams[i].players) do
			seen[tonumber(id)] = true
		end
		for j = i + 1, #items do
			local shared = false
			for _, id in ipairs(teams[j].players) do
				if seen[tonumber(id)] then
					shared = true
					break
				end
			end
			if not shared then
				redis.call('LREM', KEYS[1], 1, items[i])
				redis.call('LREM', KEYS[1], 1, items[j])
				return {items[i], items[j]}
			end
		end
	end
	return {}
`)

// expireTeam drops a parked team and, in the same step, the engagement markers
// KEYS[2..] that still point at it.
var expireTeamScript = redis.NewScript(`
	local removed = redis.call('LREM', KEYS[1], 1, ARGV[1])
	if removed > 0 then
		for i = 2, #KEYS do
			if redis.call('GET', KEYS[i]) == ARGV[2] then
				redis.call('DEL', KEYS[i])
			end
		end
	end
	return removed
`)

func encodeEntry(entry models.QueueEntry) (string, error) {
	entry.JoinedAt = entry.JoinedAt.UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to encode queue entry for user %d: %w", entry.UserID, err)
	}
	return string(data), nil
}

// Reserve sets the user's reservation marker only if none exists.
func (s *Store) Reserve(ctx context.Context, entry models.QueueEntry) (bool, error) {
	raw, err := encodeEntry(entry)
	if err != nil {
		return false, err
	}
	ok, err := s.rdb.SetNX(ctx, reservationKey(entry.UserID), raw, s.opts.ReservationTTL).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

func (s *Store) Reservation(ctx context.Context, userID int) (*models.QueueEntry, error) {
	raw, err := s.rdb.Get(ctx, reservationKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrReservationNotFound
		}
		return nil, unavailable(err)
	}
	var entry models.QueueEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode reservation of user %d: %w", userID, err)
	}
	return &entry, nil
}

func (s *Store) ReleaseReservations(ctx context.Context, userIDs ...int) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, reservationKey(id))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Enqueue appends the entry to the subject queue and returns the new queue length.
func (s *Store) Enqueue(ctx context.Context, entry models.QueueEntry) (int64, error) {
	raw, err := encodeEntry(entry)
	if err != nil {
		return 0, err
	}
	n, err := s.rdb.RPush(ctx, queueKey(entry.Subject), raw).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (s *Store) QueueLength(ctx context.Context, subject string) (int64, error) {
	n, err := s.rdb.LLen(ctx, queueKey(subject)).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// PopTeam atomically takes size entries from the head of the subject queue.
// Entries whose reservation expired or was replaced are discarded; if that
// leaves the team short, the fresh ones go back to the head in their original order.
func (s *Store) PopTeam(ctx context.Context, subject string, size int) ([]models.QueueEntry, error) {
	key := queueKey(subject)
	for attempt := 0; attempt < maxPopAttempts; attempt++ {
		raws, err := popNScript.Run(ctx, s.rdb, []string{key}, size).StringSlice()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, unavailable(err)
		}
		if len(raws) < size {
			return nil, nil
		}

		fresh, entries, err := s.freshEntries(ctx, raws)
		if err != nil {
			// Не теряем игроков: возвращаем всё в голову очереди.
			if pushErr := s.pushFront(ctx, key, raws); pushErr != nil {
				return nil, fmt.Errorf("%w (restore also failed: %v)", err, pushErr)
			}
			return nil, err
		}
		if len(fresh) == size {
			return entries, nil
		}
		if err := s.pushFront(ctx, key, fresh); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (s *Store) freshEntries(ctx context.Context, raws []string) ([]string, []models.QueueEntry, error) {
	entries := make([]models.QueueEntry, len(raws))
	keys := make([]string, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal([]byte(raw), &entries[i]); err != nil {
			return nil, nil, fmt.Errorf("failed to decode queue entry: %w", err)
		}
		keys[i] = reservationKey(entries[i].UserID)
	}
	current, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, unavailable(err)
	}

	fresh := make([]string, 0, len(raws))
	valid := make([]models.QueueEntry, 0, len(raws))
	for i, raw := range raws {
		if v, ok := current[i].(string); ok && v == raw {
			fresh = append(fresh, raw)
			valid = append(valid, entries[i])
		}
	}
	return fresh, valid, nil
}

func (s *Store) pushFront(ctx context.Context, key string, raws []string) error {
	if len(raws) == 0 {
		return nil
	}
	reversed := make([]interface{}, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		reversed = append(reversed, raws[i])
	}
	if err := s.rdb.LPush(ctx, key, reversed...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Requeue puts previously popped players back at the head of their queue with fresh reservations.
func (s *Store) Requeue(ctx context.Context, entries []models.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}
	raws := make([]string, 0, len(entries))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			raw, err := encodeEntry(e)
			if err != nil {
				return err
			}
			raws = append(raws, raw)
			pipe.Set(ctx, reservationKey(e.UserID), raw, s.opts.ReservationTTL)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return s.pushFront(ctx, queueKey(entries[0].Subject), raws)
}

// Leave removes every queue entry of the user and its reservation.
func (s *Store) Leave(ctx context.Context, userID int) (bool, error) {
	entry, err := s.Reservation(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return false, nil
		}
		return false, err
	}
	keys := []string{queueKey(entry.Subject), reservationKey(userID)}
	if err := leaveQueueScript.Run(ctx, s.rdb, keys, userID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return false, unavailable(err)
	}
	return true, nil
}

func encodeTeam(team *models.WaitingTeam) (string, error) {
	data, err := json.Marshal(team)
	if err != nil {
		return "", fmt.Errorf("failed to encode waiting team %s: %w", team.ID, err)
	}
	return string(data), nil
}

func decodeTeam(raw string) (*models.WaitingTeam, error) {
	var team models.WaitingTeam
	if err := json.Unmarshal([]byte(raw), &team); err != nil {
		return nil, fmt.Errorf("failed to decode waiting team: %w", err)
	}
	return &team, nil
}

// PairOrWait returns the opponent team that was waiting longest, or parks team
// on the waiting list and returns nil. A parked team sharing a player with team
// is never chosen.
func (s *Store) PairOrWait(ctx context.Context, team *models.WaitingTeam) (*models.WaitingTeam, error) {
	raw, err := encodeTeam(team)
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, 0, len(team.Players)+1)
	args = append(args, raw)
	for _, id := range team.Players {
		args = append(args, id)
	}
	opponent, err := pairOrWaitScript.Run(ctx, s.rdb, []string{waitingTeamsKey(team.Subject)}, args...).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	return decodeTeam(opponent)
}

// PushWaitingTeam parks a team; front puts it ahead of everyone else.
func (s *Store) PushWaitingTeam(ctx context.Context, team *models.WaitingTeam, front bool) error {
	raw, err := encodeTeam(team)
	if err != nil {
		return err
	}
	key := waitingTeamsKey(team.Subject)
	if front {
		err = s.rdb.LPush(ctx, key, raw).Err()
	} else {
		err = s.rdb.RPush(ctx, key, raw).Err()
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// PopWaitingPair atomically takes the oldest two parked teams that have no
// player in common, or none.
func (s *Store) PopWaitingPair(ctx context.Context, subject string) ([]*models.WaitingTeam, error) {
	raws, err := popPairScript.Run(ctx, s.rdb, []string{waitingTeamsKey(subject)}).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}
	if len(raws) < 2 {
		return nil, nil
	}
	teams := make([]*models.WaitingTeam, 0, 2)
	for _, raw := range raws {
		team, err := decodeTeam(raw)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, nil
}

// PendingTeamValue is the engagement marker value of a player whose team is
// parked on the waiting list.
func PendingTeamValue(teamID string) string {
	return "team:" + teamID
}

// ExpireWaitingTeams removes parked teams created before cutoff and returns the
// ones it removed. A player's engagement marker goes with the team only while
// it still points at that team.
func (s *Store) ExpireWaitingTeams(ctx context.Context, subject string, cutoff time.Time) ([]*models.WaitingTeam, error) {
	key := waitingTeamsKey(subject)
	raws, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	expired := make([]*models.WaitingTeam, 0)
	for _, raw := range raws {
		team, err := decodeTeam(raw)
		if err != nil {
			return nil, err
		}
		if !team.CreatedAt.Before(cutoff) {
			continue
		}
		keys := make([]string, 0, len(team.Players)+1)
		keys = append(keys, key)
		for _, id := range team.Players {
			keys = append(keys, engagementKey(id))
		}
		removed, err := expireTeamScript.Run(ctx, s.rdb, keys, raw, PendingTeamValue(team.ID)).Int64()
		if err != nil {
			return nil, unavailable(err)
		}
		if removed > 0 {
			expired = append(expired, team)
		}
	}
	return expired, nil
}

// SetEngaged marks users as bound to a pending or running match.
func (s *Store) SetEngaged(ctx context.Context, userIDs []int, value string, ttl time.Duration) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Set(ctx, engagementKey(id), value, ttl)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Engagement(ctx context.Context, userID int) (string, bool, error) {
	v, err := s.rdb.Get(ctx, engagementKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable(err)
	}
	return v, true, nil
}

func (s *Store) ClearEngaged(ctx context.Context, userIDs ...int) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, engagementKey(id))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
