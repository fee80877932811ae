package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// URLSigner hands out time-limited download URLs for stored objects
type URLSigner interface {
	SignedURL(ctx context.Context, key string) (string, error)
}

// ObjectStore is the media bucket
type ObjectStore interface {
	URLSigner
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	DeleteMany(ctx context.Context, keys []string) error
}

// SortOrder is "asc" or "desc"
type SortOrder string

// Sort orders
const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSortOrder defaults to def on anything unrecognised
func ParseSortOrder(raw string, def SortOrder) SortOrder {
	switch strings.ToLower(raw) {
	case "asc":
		return Asc
	case "desc":
		return Desc
	}
	return def
}

// withTx runs fn in a transaction, committing on success
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// signedURL signs key, logging and returning nil on failure
func signedURL(ctx context.Context, signer URLSigner, logger zerolog.Logger, key string) *string {
	if signer == nil || key == "" {
		return nil
	}
	url, err := signer.SignedURL(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Failed to sign URL")
		return nil
	}
	return &url
}

func containsFold(s, substr string) bool {
	return substr == "" || strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}

// cmpInt64 reports whether a sorts before b in the given direction
func cmpInt64(a, b int64, order SortOrder) bool {
	if order == Desc {
		return a > b
	}
	return a < b
}

func cmpFloat(a, b float64, order SortOrder) bool {
	if order == Desc {
		return a > b
	}
	return a < b
}

func cmpString(a, b string, order SortOrder) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if order == Desc {
		return a > b
	}
	return a < b
}

func cmpTime(a, b time.Time, order SortOrder) bool {
	if order == Desc {
		return a.After(b)
	}
	return a.Before(b)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func inTimeWindow(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// page slices items to [offset, offset+limit)
func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ClampLimit bounds a page size to 1..max, using def for zero
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// uniqueIDs drops non-positive and repeated ids, keeping first-seen order
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
