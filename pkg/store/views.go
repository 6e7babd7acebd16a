package store

import (
	"context"
	"database/sql"
	"fmt"
)

// The four analysis views are live queries over the canonical tables.
// They are created idempotently and never materialized: recomputing on
// every read avoids any cache invalidation problem.
var viewDefinitions = []string{
	`CREATE VIEW IF NOT EXISTS daily_stats AS
		SELECT
			collection_date,
			COUNT(*) AS total_posts,
			COUNT(DISTINCT account_id) AS unique_accounts,
			AVG(engagement_total) AS avg_engagement,
			SUM(replies_count) AS total_replies,
			SUM(reblogs_count) AS total_reblogs,
			SUM(favourites_count) AS total_favourites,
			SUM(CASE WHEN has_media THEN 1 ELSE 0 END) AS posts_with_media,
			AVG(character_count) AS avg_characters
		FROM posts
		GROUP BY collection_date
		ORDER BY collection_date`,

	`CREATE VIEW IF NOT EXISTS hashtag_performance AS
		SELECT
			collected_hashtag,
			COUNT(*) AS post_count,
			AVG(engagement_score) AS avg_engagement,
			SUM(engagement_score) AS total_engagement,
			COUNT(DISTINCT account_id) AS unique_users,
			COUNT(DISTINCT collection_date) AS days_active
		FROM hashtag_posts
		GROUP BY collected_hashtag
		ORDER BY total_engagement DESC`,

	`CREATE VIEW IF NOT EXISTS hourly_activity AS
		SELECT
			hour_of_day,
			COUNT(*) AS post_count,
			AVG(engagement_total) AS avg_engagement,
			COUNT(DISTINCT account_id) AS unique_accounts
		FROM posts
		WHERE hour_of_day IS NOT NULL
		GROUP BY hour_of_day
		ORDER BY hour_of_day`,

	`CREATE VIEW IF NOT EXISTS language_stats AS
		SELECT
			language,
			COUNT(*) AS post_count,
			AVG(engagement_total) AS avg_engagement,
			ROUND(COUNT(*) * 100.0 / (SELECT COUNT(*) FROM posts), 2) AS percentage
		FROM posts
		WHERE language IS NOT NULL AND language != ''
		GROUP BY language
		ORDER BY post_count DESC`,
}

// ViewNames lists the derived views in creation order.
func ViewNames() []string {
	return []string{"daily_stats", "hashtag_performance", "hourly_activity", "language_stats"}
}

// TableNames lists the canonical tables.
func TableNames() []string {
	return []string{"posts", "hashtag_posts", "trending_tags", "instance_stats"}
}

// CreateViews creates the four analysis views if they do not exist yet.
func (s *Store) CreateViews(ctx context.Context) error {
	for _, def := range viewDefinitions {
		if _, err := s.db.ExecContext(ctx, def); err != nil {
			return fmt.Errorf("failed to create view: %w", err)
		}
	}
	return nil
}

// DailyStats is one row of the daily_stats view.
type DailyStats struct {
	CollectionDate  string
	TotalPosts      int64
	UniqueAccounts  int64
	AvgEngagement   float64
	TotalReplies    int64
	TotalReblogs    int64
	TotalFavourites int64
	PostsWithMedia  int64
	AvgCharacters   float64
}

// DailyStats returns the per-day rollup, oldest day first.
func (s *Store) DailyStats(ctx context.Context) ([]DailyStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT CAST(collection_date AS VARCHAR), total_posts, unique_accounts,
		avg_engagement, total_replies, total_reblogs, total_favourites,
		posts_with_media, avg_characters FROM daily_stats`)
	if err != nil {
		return nil, fmt.Errorf("daily_stats query failed: %w", err)
	}
	defer rows.Close()

	var out []DailyStats
	for rows.Next() {
		var d DailyStats
		if err := rows.Scan(&d.CollectionDate, &d.TotalPosts, &d.UniqueAccounts,
			&d.AvgEngagement, &d.TotalReplies, &d.TotalReblogs, &d.TotalFavourites,
			&d.PostsWithMedia, &d.AvgCharacters); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// HashtagPerformance is one row of the hashtag_performance view.
type HashtagPerformance struct {
	CollectedHashtag string
	PostCount        int64
	AvgEngagement    float64
	TotalEngagement  int64
	UniqueUsers      int64
	DaysActive       int64
}

// HashtagPerformance returns per-hashtag rollups, highest total engagement
// first. limit <= 0 returns all rows.
func (s *Store) HashtagPerformance(ctx context.Context, limit int) ([]HashtagPerformance, error) {
	q := `SELECT collected_hashtag, post_count, avg_engagement, total_engagement,
		unique_users, days_active FROM hashtag_performance`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("hashtag_performance query failed: %w", err)
	}
	defer rows.Close()

	var out []HashtagPerformance
	for rows.Next() {
		var h HashtagPerformance
		if err := rows.Scan(&h.CollectedHashtag, &h.PostCount, &h.AvgEngagement,
			&h.TotalEngagement, &h.UniqueUsers, &h.DaysActive); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// HourlyActivity is one row of the hourly_activity view.
type HourlyActivity struct {
	HourOfDay      int
	PostCount      int64
	AvgEngagement  float64
	UniqueAccounts int64
}

// HourlyActivity returns per-hour rollups for rows with a known hour.
func (s *Store) HourlyActivity(ctx context.Context) ([]HourlyActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hour_of_day, post_count, avg_engagement, unique_accounts FROM hourly_activity`)
	if err != nil {
		return nil, fmt.Errorf("hourly_activity query failed: %w", err)
	}
	defer rows.Close()

	var out []HourlyActivity
	for rows.Next() {
		var h HourlyActivity
		if err := rows.Scan(&h.HourOfDay, &h.PostCount, &h.AvgEngagement, &h.UniqueAccounts); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// LanguageStats is one row of the language_stats view.
type LanguageStats struct {
	Language      string
	PostCount     int64
	AvgEngagement float64
	Percentage    float64
}

// LanguageStats returns per-language rollups, most posts first.
// limit <= 0 returns all rows.
func (s *Store) LanguageStats(ctx context.Context, limit int) ([]LanguageStats, error) {
	q := `SELECT language, post_count, avg_engagement, percentage FROM language_stats`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("language_stats query failed: %w", err)
	}
	defer rows.Close()

	var out []LanguageStats
	for rows.Next() {
		var l LanguageStats
		if err := rows.Scan(&l.Language, &l.PostCount, &l.AvgEngagement, &l.Percentage); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// TopHashtag is a hashtag ranked by occurrence count.
type TopHashtag struct {
	Tag   string
	Count int64
}

// TopHashtags returns the n most frequently collected hashtags.
func (s *Store) TopHashtags(ctx context.Context, n int) ([]TopHashtag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collected_hashtag, COUNT(*) AS count
		FROM hashtag_posts
		GROUP BY collected_hashtag
		ORDER BY count DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("top hashtags query failed: %w", err)
	}
	defer rows.Close()

	var out []TopHashtag
	for rows.Next() {
		var t TopHashtag
		if err := rows.Scan(&t.Tag, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TopLanguage is a language ranked by post count.
type TopLanguage struct {
	Language string
	Count    int64
}

// TopLanguages returns the n most common non-empty post languages.
func (s *Store) TopLanguages(ctx context.Context, n int) ([]TopLanguage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT language, COUNT(*) AS count
		FROM posts
		WHERE language IS NOT NULL AND language != ''
		GROUP BY language
		ORDER BY count DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("top languages query failed: %w", err)
	}
	defer rows.Close()

	var out []TopLanguage
	for rows.Next() {
		var t TopLanguage
		if err := rows.Scan(&t.Language, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Count returns the number of rows in a canonical table or view.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	// Table names come from TableNames/ViewNames, never user input.
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count of %s failed: %w", table, err)
	}
	return n, nil
}

// DateRange returns the earliest and latest post collection dates.
// ok is false when the posts table is empty.
func (s *Store) DateRange(ctx context.Context) (min, max string, ok bool, err error) {
	var lo, hi sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT CAST(MIN(collection_date) AS VARCHAR), CAST(MAX(collection_date) AS VARCHAR) FROM posts`).
		Scan(&lo, &hi)
	if err != nil {
		return "", "", false, fmt.Errorf("date range query failed: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return "", "", false, nil
	}
	return lo.String, hi.String, true, nil
}
