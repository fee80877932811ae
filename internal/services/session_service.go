package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/metrics"
	"github.com/brandonhuynh1/signage-api/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Player status labels
const (
	StatusOnline  = "Online"
	StatusOffline = "Offline"
)

// IsOnline reports whether a session with the given heartbeat counts as
// online. active must already account for ended_at being unset.
func IsOnline(lastActiveAt time.Time, active bool, now time.Time, threshold time.Duration) bool {
	if !active || lastActiveAt.IsZero() {
		return false
	}
	return now.Sub(lastActiveAt) <= threshold
}

// StatusLabel maps the online flag to its display label
func StatusLabel(online bool) string {
	if online {
		return StatusOnline
	}
	return StatusOffline
}

// SessionDurationSec is the live duration of an online session, or the
// closed duration (end or last heartbeat) of anything else.
func SessionDurationSec(start, end, lastActive *time.Time, online bool, now time.Time) int64 {
	if start == nil {
		return 0
	}
	var until time.Time
	switch {
	case online:
		until = now
	case end != nil:
		until = *end
	case lastActive != nil:
		until = *lastActive
	default:
		return 0
	}
	d := until.Sub(*start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// SessionService owns player session lifecycle and heartbeat reconciliation
type SessionService struct {
	db        *sqlx.DB
	events    *EventBus
	threshold time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// SessionResult is returned by Start
type SessionResult struct {
	Message string                `json:"message"`
	Session *models.PlayerSession `json:"session"`
}

// NewSessionService creates a new session service
func NewSessionService(db *sqlx.DB, events *EventBus, threshold time.Duration, logger zerolog.Logger) *SessionService {
	return &SessionService{
		db:        db,
		events:    events,
		threshold: threshold,
		logger:    logger.With().Str("service", "session").Logger(),
		now:       time.Now,
	}
}

// Threshold is the heartbeat window used for online status
func (s *SessionService) Threshold() time.Duration {
	return s.threshold
}

// IsOnline applies the configured threshold at the current time
func (s *SessionService) IsOnline(lastActiveAt time.Time, active bool) bool {
	return IsOnline(lastActiveAt, active, s.now(), s.threshold)
}

// ReconcileStale closes every active session whose last heartbeat is older
// than the threshold. The session is ended at its last heartbeat.
func (s *SessionService) ReconcileStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.threshold)

	var closed []struct {
		ID       int64 `db:"id"`
		PlayerID int64 `db:"player_id"`
	}
	err := s.db.SelectContext(ctx, &closed, `
		UPDATE player_sessions
		SET ended_at = last_active_at, is_active = FALSE, updated_at = NOW()
		WHERE is_active AND ended_at IS NULL AND last_active_at < $1
		RETURNING id, player_id
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile stale sessions: %w", err)
	}

	if len(closed) > 0 {
		metrics.SessionsReconciledTotal.Add(float64(len(closed)))
		s.logger.Info().Int("count", len(closed)).Msg("Closed stale sessions")
	}
	for _, c := range closed {
		s.events.Publish(ctx, PlayerEvent{Type: EventSessionReconciled, PlayerID: c.PlayerID, SessionID: c.ID, At: s.now()})
	}
	return len(closed), nil
}

// CountOnline returns the number of players with a live heartbeat
func (s *SessionService) CountOnline(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(DISTINCT player_id) FROM player_sessions
		WHERE is_active AND ended_at IS NULL AND last_active_at >= $1
	`, s.now().Add(-s.threshold))
	if err != nil {
		return 0, fmt.Errorf("failed to count online players: %w", err)
	}
	metrics.PlayersOnline.Set(float64(n))
	return n, nil
}

// RunSweeper reconciles stale sessions every interval until ctx ends
func (s *SessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.ReconcileStale(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Session sweep failed")
				continue
			}
			if _, err := s.CountOnline(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Failed to refresh online gauge")
			}
		case <-ctx.Done():
			return
		}
	}
}

// lockPlayerByCode locks the player row so session changes for one device
// are serialised
func lockPlayerByCode(ctx context.Context, tx *sqlx.Tx, deviceCode string) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `SELECT id FROM players WHERE device_code = $1 FOR UPDATE`, deviceCode)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, NotFound("Player not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock player: %w", err)
	}
	return id, nil
}

func activeSession(ctx context.Context, tx *sqlx.Tx, playerID int64) (*models.PlayerSession, error) {
	var session models.PlayerSession
	err := tx.GetContext(ctx, &session, `
		SELECT id, player_id, started_at, ended_at, last_active_at, is_active, created_at, updated_at
		FROM player_sessions
		WHERE player_id = $1 AND is_active AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return &session, nil
}

// Start opens a session for the device. A live session is kept and touched
// unless forceNew is set; a stale one is closed at its last heartbeat.
func (s *SessionService) Start(ctx context.Context, deviceCode string, forceNew bool) (*SessionResult, error) {
	now := s.now()
	var result SessionResult
	var ended *models.PlayerSession

	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		playerID, err := lockPlayerByCode(ctx, tx, deviceCode)
		if err != nil {
			return err
		}

		current, err := activeSession(ctx, tx, playerID)
		if err != nil {
			return err
		}

		if current != nil {
			live := IsOnline(current.LastActiveAt, true, now, s.threshold)
			if live && !forceNew {
				var touched models.PlayerSession
				err := tx.GetContext(ctx, &touched, `
					UPDATE player_sessions SET last_active_at = $2, updated_at = $2
					WHERE id = $1
					RETURNING id, player_id, started_at, ended_at, last_active_at, is_active, created_at, updated_at
				`, current.ID, now)
				if err != nil {
					return fmt.Errorf("failed to touch session: %w", err)
				}
				result = SessionResult{Message: "Session already active", Session: &touched}
				return nil
			}

			endAt := now
			if !live {
				endAt = current.LastActiveAt
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE player_sessions SET ended_at = $2, is_active = FALSE, updated_at = $3
				WHERE id = $1
			`, current.ID, endAt, now); err != nil {
				return fmt.Errorf("failed to end session: %w", err)
			}
			ended = current
		}

		var created models.PlayerSession
		err = tx.GetContext(ctx, &created, `
			INSERT INTO player_sessions (player_id, started_at, last_active_at, is_active, created_at, updated_at)
			VALUES ($1, $2, $2, TRUE, $2, $2)
			RETURNING id, player_id, started_at, ended_at, last_active_at, is_active, created_at, updated_at
		`, playerID, now)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		result = SessionResult{Message: "Session started", Session: &created}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ended != nil {
		s.events.Publish(ctx, PlayerEvent{Type: EventSessionEnded, PlayerID: ended.PlayerID, SessionID: ended.ID, At: now})
	}
	if result.Message == "Session started" {
		s.events.Publish(ctx, PlayerEvent{Type: EventSessionStarted, PlayerID: result.Session.PlayerID, SessionID: result.Session.ID, At: now})
	}
	return &result, nil
}

// End closes the device's active session, or all of them when endAll is set
func (s *SessionService) End(ctx context.Context, deviceCode string, endAll bool) (int64, error) {
	now := s.now()
	var playerID int64
	var endedIDs []int64

	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		playerID, err = lockPlayerByCode(ctx, tx, deviceCode)
		if err != nil {
			return err
		}

		query := `
			UPDATE player_sessions SET ended_at = $2, is_active = FALSE, updated_at = $2
			WHERE id = (
				SELECT id FROM player_sessions
				WHERE player_id = $1 AND is_active AND ended_at IS NULL
				ORDER BY started_at DESC LIMIT 1
			)
			RETURNING id`
		if endAll {
			query = `
				UPDATE player_sessions SET ended_at = $2, is_active = FALSE, updated_at = $2
				WHERE player_id = $1 AND is_active AND ended_at IS NULL
				RETURNING id`
		}
		if err := tx.SelectContext(ctx, &endedIDs, query, playerID, now); err != nil {
			return fmt.Errorf("failed to end sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range endedIDs {
		s.events.Publish(ctx, PlayerEvent{Type: EventSessionEnded, PlayerID: playerID, SessionID: id, At: now})
	}
	return int64(len(endedIDs)), nil
}

// touchActive records a heartbeat on the player's active session, if any
func (s *SessionService) touchActive(ctx context.Context, tx *sqlx.Tx, playerID int64, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE player_sessions SET last_active_at = $2, updated_at = $2
		WHERE id = (
			SELECT id FROM player_sessions
			WHERE player_id = $1 AND is_active AND ended_at IS NULL
			ORDER BY started_at DESC LIMIT 1
		)
	`, playerID, at)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}
