// Package store is the relational persistence layer. It owns the four
// canonical tables, enforces the uniqueness invariants that make repeated
// ingestion idempotent, and derives the read-only analysis views.
//
// DuckDB is used through database/sql; a single handle is shared for the
// whole run. Rows are only ever inserted, never updated or deleted.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/mastoflow/mastoflow/internal/model"
)

// ErrUnknownRecord is returned when a record type has no destination table.
var ErrUnknownRecord = errors.New("store: unknown record type")

// Store wraps the shared DuckDB handle.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and ensures the canonical
// schema exists. An unreachable database is fatal for the caller: no
// partial state is recoverable without a live connection.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle for read-only consumers (export).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			post_id                VARCHAR PRIMARY KEY,
			collection_date        DATE,
			created_at             TIMESTAMP,
			language               VARCHAR,
			visibility             VARCHAR,
			replies_count          INTEGER DEFAULT 0,
			reblogs_count          INTEGER DEFAULT 0,
			favourites_count       INTEGER DEFAULT 0,
			engagement_total       INTEGER DEFAULT 0,
			has_media              BOOLEAN,
			media_count            INTEGER DEFAULT 0,
			has_poll               BOOLEAN,
			has_cw                 BOOLEAN,
			character_count        INTEGER DEFAULT 0,
			hashtag_count          INTEGER DEFAULT 0,
			mention_count          INTEGER DEFAULT 0,
			url_count              INTEGER DEFAULT 0,
			is_reply               BOOLEAN,
			is_reblog              BOOLEAN,
			hour_of_day            INTEGER,
			day_of_week            VARCHAR,
			account_id             VARCHAR,
			account_username       VARCHAR,
			account_followers      INTEGER DEFAULT 0,
			account_following      INTEGER DEFAULT 0,
			account_statuses_count INTEGER DEFAULT 0,
			source                 VARCHAR,
			imported_at            TIMESTAMP DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS hashtag_posts (
			post_id           VARCHAR,
			collection_date   DATE,
			collected_hashtag VARCHAR,
			created_at        TIMESTAMP,
			language          VARCHAR,
			engagement_score  INTEGER DEFAULT 0,
			replies_count     INTEGER DEFAULT 0,
			reblogs_count     INTEGER DEFAULT 0,
			favourites_count  INTEGER DEFAULT 0,
			all_hashtags      VARCHAR,
			account_id        VARCHAR,
			imported_at       TIMESTAMP DEFAULT current_timestamp,
			PRIMARY KEY (post_id, collected_hashtag)
		)`,
		`CREATE TABLE IF NOT EXISTS trending_tags (
			collection_date DATE,
			tag_name        VARCHAR,
			url             VARCHAR,
			total_uses      INTEGER DEFAULT 0,
			day_1_uses      INTEGER DEFAULT 0,
			day_2_uses      INTEGER DEFAULT 0,
			imported_at     TIMESTAMP DEFAULT current_timestamp,
			PRIMARY KEY (collection_date, tag_name)
		)`,
		`CREATE TABLE IF NOT EXISTS instance_stats (
			collection_date DATE PRIMARY KEY,
			"timestamp"     VARCHAR,
			user_count      BIGINT DEFAULT 0,
			status_count    BIGINT DEFAULT 0,
			domain_count    BIGINT DEFAULT 0,
			imported_at     TIMESTAMP DEFAULT current_timestamp
		)`,

		// Indexes on the natural query dimensions keep the view layer's
		// aggregates linear in result size.
		`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_language ON posts(language)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_source ON posts(source)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_collection_date ON posts(collection_date)`,
		`CREATE INDEX IF NOT EXISTS idx_hashtag_posts_tag ON hashtag_posts(collected_hashtag)`,
		`CREATE INDEX IF NOT EXISTS idx_hashtag_posts_date ON hashtag_posts(collection_date)`,
		`CREATE INDEX IF NOT EXISTS idx_trending_date ON trending_tags(collection_date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Batch is one family-level transaction. All row inserts within a family
// pass share it; the whole pass is committed once.
type Batch struct {
	tx *sql.Tx
}

// BeginBatch starts a family-level transaction.
func (s *Store) BeginBatch(ctx context.Context) (*Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch: %w", err)
	}
	return &Batch{tx: tx}, nil
}

// Commit commits the family pass.
func (b *Batch) Commit() error {
	return b.tx.Commit()
}

// Rollback abandons the family pass. Safe to call after Commit.
func (b *Batch) Rollback() error {
	err := b.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Insert performs an insert-if-absent for the record's entity. It reports
// true when a row was actually added, false when the uniqueness invariant
// absorbed it as a duplicate. Existing rows are never modified.
func (b *Batch) Insert(ctx context.Context, rec model.Record) (bool, error) {
	switch r := rec.(type) {
	case model.Post:
		return b.insertPost(ctx, r)
	case model.HashtagPost:
		return b.insertHashtagPost(ctx, r)
	case model.TrendingTag:
		return b.insertTrendingTag(ctx, r)
	case model.InstanceStats:
		return b.insertInstanceStats(ctx, r)
	default:
		return false, fmt.Errorf("%w: %T", ErrUnknownRecord, rec)
	}
}

func (b *Batch) insertPost(ctx context.Context, p model.Post) (bool, error) {
	res, err := b.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO posts (
			post_id, collection_date, created_at, language, visibility,
			replies_count, reblogs_count, favourites_count, engagement_total,
			has_media, media_count, has_poll, has_cw,
			character_count, hashtag_count, mention_count, url_count,
			is_reply, is_reblog, hour_of_day, day_of_week,
			account_id, account_username, account_followers,
			account_following, account_statuses_count, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PostID, p.CollectionDate, timestampOrNull(p.CreatedAt), p.Language, p.Visibility,
		p.RepliesCount, p.ReblogsCount, p.FavouritesCount, p.EngagementTotal,
		p.HasMedia, p.MediaCount, p.HasPoll, p.HasCW,
		p.CharacterCount, p.HashtagCount, p.MentionCount, p.URLCount,
		p.IsReply, p.IsReblog, nullableInt(p.HourOfDay), p.DayOfWeek,
		p.AccountID, p.AccountUsername, p.AccountFollowers,
		p.AccountFollowing, p.AccountStatusesCount, string(p.Source),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert post: %w", err)
	}
	return inserted(res)
}

func (b *Batch) insertHashtagPost(ctx context.Context, h model.HashtagPost) (bool, error) {
	res, err := b.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO hashtag_posts (
			post_id, collection_date, collected_hashtag, created_at,
			language, engagement_score, replies_count, reblogs_count,
			favourites_count, all_hashtags, account_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.PostID, h.CollectionDate, h.CollectedHashtag, timestampOrNull(h.CreatedAt),
		h.Language, h.EngagementScore, h.RepliesCount, h.ReblogsCount,
		h.FavouritesCount, h.AllHashtags, h.AccountID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert hashtag post: %w", err)
	}
	return inserted(res)
}

func (b *Batch) insertTrendingTag(ctx context.Context, tg model.TrendingTag) (bool, error) {
	res, err := b.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO trending_tags (
			collection_date, tag_name, url, total_uses, day_1_uses, day_2_uses
		) VALUES (?, ?, ?, ?, ?, ?)`,
		tg.CollectionDate, tg.TagName, tg.URL, tg.TotalUses, tg.Day1Uses, tg.Day2Uses,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert trending tag: %w", err)
	}
	return inserted(res)
}

func (b *Batch) insertInstanceStats(ctx context.Context, st model.InstanceStats) (bool, error) {
	res, err := b.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO instance_stats (
			collection_date, "timestamp", user_count, status_count, domain_count
		) VALUES (?, ?, ?, ?, ?)`,
		st.CollectionDate, st.Timestamp, st.UserCount, st.StatusCount, st.DomainCount,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert instance stats: %w", err)
	}
	return inserted(res)
}

// inserted distinguishes a genuine insert from a constraint no-op.
func inserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// timestampLayouts covers the formats the Mastodon API and the collector
// emit for created_at.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// timestampOrNull parses a raw created_at string. Unparseable values become
// NULL instead of failing the insert: a single bad timestamp must never
// poison the surrounding family transaction.
func timestampOrNull(s string) any {
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
