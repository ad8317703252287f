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

var (
	ErrSessionNotFound     = errors.New("live session not found")
	ErrReservationNotFound = errors.New("matchmaking reservation not found")
	ErrConflict            = errors.New("concurrent live session update")
	ErrUnavailable         = errors.New("ephemeral store unavailable")
)

const maxUpdateRetries = 10

type Options struct {
	SessionTTL     time.Duration
	ReservationTTL time.Duration
}

// Store is the ephemeral session store. All multi-step sequences that must look
// atomic go through Lua scripts or WATCH/MULTI.
type Store struct {
	rdb  *redis.Client
	opts Options
}

func NewStore(rdb *redis.Client, opts Options) *Store {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.ReservationTTL <= 0 {
		opts.ReservationTTL = 5 * time.Minute
	}
	return &Store{rdb: rdb, opts: opts}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// SessionMutator reports whether it changed the session; unchanged sessions are not written back.
type SessionMutator func(sess *models.LiveSession) (bool, error)

func (s *Store) PutSession(ctx context.Context, sess *models.LiveSession) error {
	if sess.SchemaVersion == 0 {
		sess.SchemaVersion = models.SessionSchemaVersion
	}
	if sess.Version == 0 {
		sess.Version = 1
	}
	sess.UpdatedAt = time.Now().UTC()
	if err := sess.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode live session %d: %w", sess.MatchID, err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.MatchID), data, s.opts.SessionTTL).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, matchID int) (*models.LiveSession, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(matchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, unavailable(err)
	}
	return decodeSession(raw)
}

// UpdateSession applies fn under optimistic locking on the session key and
// refreshes its TTL on every write.
func (s *Store) UpdateSession(ctx context.Context, matchID int, fn SessionMutator) (*models.LiveSession, bool, error) {
	key := sessionKey(matchID)
	var (
		result  *models.LiveSession
		changed bool
		fnErr   error
	)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			return unavailable(err)
		}
		sess, err := decodeSession(raw)
		if err != nil {
			return err
		}
		changed, fnErr = fn(sess)
		if fnErr != nil {
			return fnErr
		}
		result = sess
		if !changed {
			return nil
		}
		sess.Version++
		sess.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to encode live session %d: %w", matchID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.opts.SessionTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		fnErr = nil
		err := s.rdb.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return result, changed, nil
		case fnErr != nil:
			return nil, false, fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrUnavailable), errors.Is(err, models.ErrSessionSchema):
			return nil, false, err
		default:
			return nil, false, unavailable(err)
		}
	}
	return nil, false, fmt.Errorf("%w: match %d after %d attempts", ErrConflict, matchID, maxUpdateRetries)
}

// DeleteSession removes the session together with its markers, counters and seen set.
// Without question ids (the session is already gone) answered markers are found by scan.
func (s *Store) DeleteSession(ctx context.Context, matchID int, players, teams, questions []int) error {
	keys := []string{sessionKey(matchID), seenKey(matchID)}
	for _, u := range players {
		keys = append(keys, userScoreKey(matchID, u))
		for _, q := range questions {
			keys = append(keys, answeredKey(matchID, q, u))
		}
	}
	if len(questions) == 0 {
		iter := s.rdb.Scan(ctx, 0, answeredPattern(matchID), 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return unavailable(err)
		}
	}
	for _, t := range teams {
		keys = append(keys, teamScoreKey(matchID, t))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func decodeSession(raw []byte) (*models.LiveSession, error) {
	var sess models.LiveSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSessionSchema, err)
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	return &sess, nil
}
