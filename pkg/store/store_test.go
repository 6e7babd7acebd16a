package store

import (
	"context"
	"testing"

	"github.com/mastoflow/mastoflow/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertOne(t *testing.T, s *Store, rec model.Record) bool {
	t.Helper()
	ctx := context.Background()
	b, err := s.BeginBatch(ctx)
	if err != nil {
		t.Fatalf("begin batch: %v", err)
	}
	ok, err := b.Insert(ctx, rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return ok
}

func testPost(id, date, language string, engagement int) model.Post {
	hour := 12
	return model.Post{
		PostID:          id,
		CollectionDate:  date,
		CreatedAt:       "2024-11-28T12:00:00Z",
		Language:        language,
		Visibility:      "public",
		EngagementTotal: engagement,
		HourOfDay:       &hour,
		AccountID:       "acct-" + id,
		Source:          model.SourceLocalTimeline,
	}
}

func TestInsertPost_Idempotent(t *testing.T) {
	s := openTestStore(t)

	if ok := insertOne(t, s, testPost("p1", "2024-11-28", "de", 5)); !ok {
		t.Fatal("first insert should add a row")
	}
	if ok := insertOne(t, s, testPost("p1", "2024-11-28", "de", 5)); ok {
		t.Fatal("second insert of same post_id must be a duplicate no-op")
	}

	n, err := s.Count(context.Background(), "posts")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("posts count = %d, want 1", n)
	}
}

func TestInsertPost_FirstWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertOne(t, s, testPost("p1", "2024-11-28", "de", 5))
	// Conflicting insert with different attributes must not alter the row.
	insertOne(t, s, testPost("p1", "2024-11-29", "en", 99))

	var language string
	var engagement int
	err := s.DB().QueryRowContext(ctx,
		`SELECT language, engagement_total FROM posts WHERE post_id = 'p1'`).
		Scan(&language, &engagement)
	if err != nil {
		t.Fatal(err)
	}
	if language != "de" || engagement != 5 {
		t.Errorf("row mutated by duplicate insert: language=%q engagement=%d", language, engagement)
	}
}

func TestInsertHashtagPost_PairUniqueness(t *testing.T) {
	s := openTestStore(t)

	base := model.HashtagPost{
		PostID:           "p1",
		CollectionDate:   "2024-11-28",
		CollectedHashtag: "golang",
		EngagementScore:  8,
		AccountID:        "a1",
	}

	if ok := insertOne(t, s, base); !ok {
		t.Fatal("first (post, hashtag) pair should insert")
	}

	// Same post under a second hashtag is a new row.
	other := base
	other.CollectedHashtag = "duckdb"
	if ok := insertOne(t, s, other); !ok {
		t.Fatal("same post under a different hashtag should insert")
	}

	// Identical pair collapses.
	if ok := insertOne(t, s, base); ok {
		t.Fatal("identical (post, hashtag) pair must be a duplicate")
	}

	n, _ := s.Count(context.Background(), "hashtag_posts")
	if n != 2 {
		t.Errorf("hashtag_posts count = %d, want 2", n)
	}
}

func TestInsertTrendingTag_OneSnapshotPerTagPerDay(t *testing.T) {
	s := openTestStore(t)

	tg := model.TrendingTag{CollectionDate: "2024-11-28", TagName: "fediverse", TotalUses: 10}
	if ok := insertOne(t, s, tg); !ok {
		t.Fatal("first snapshot should insert")
	}
	if ok := insertOne(t, s, tg); ok {
		t.Fatal("re-import of same day's snapshot must not create a second row")
	}

	next := tg
	next.CollectionDate = "2024-11-29"
	if ok := insertOne(t, s, next); !ok {
		t.Fatal("same tag on a later day is a new snapshot")
	}
}

func TestInsertInstanceStats_OncePerDay(t *testing.T) {
	s := openTestStore(t)

	st := model.InstanceStats{
		Timestamp:      "20241128_183042",
		CollectionDate: "2024-11-28",
		UserCount:      100,
	}
	if ok := insertOne(t, s, st); !ok {
		t.Fatal("first snapshot should insert")
	}
	st.Timestamp = "20241128_235959"
	if ok := insertOne(t, s, st); ok {
		t.Fatal("second snapshot for the same day must be absorbed")
	}
}

func TestDailyStatsView(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertOne(t, s, testPost("p1", "2024-11-28", "de", 2))
	insertOne(t, s, testPost("p2", "2024-11-28", "de", 4))
	insertOne(t, s, testPost("p3", "2024-11-28", "en", 6))

	if err := s.CreateViews(ctx); err != nil {
		t.Fatalf("create views: %v", err)
	}
	// Idempotent re-creation must not fail.
	if err := s.CreateViews(ctx); err != nil {
		t.Fatalf("second create views: %v", err)
	}

	days, err := s.DailyStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	d := days[0]
	if d.TotalPosts != 3 {
		t.Errorf("total_posts = %d, want 3", d.TotalPosts)
	}
	if d.AvgEngagement != 4 {
		t.Errorf("avg_engagement = %v, want 4", d.AvgEngagement)
	}
	if d.UniqueAccounts != 3 {
		t.Errorf("unique_accounts = %d, want 3", d.UniqueAccounts)
	}
}

func TestHourlyActivity_ExcludesUnsetHour(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	withHour := testPost("p1", "2024-11-28", "de", 3)
	noHour := testPost("p2", "2024-11-28", "de", 5)
	noHour.HourOfDay = nil

	insertOne(t, s, withHour)
	insertOne(t, s, noHour)

	if err := s.CreateViews(ctx); err != nil {
		t.Fatal(err)
	}

	hours, err := s.HourlyActivity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(hours) != 1 {
		t.Fatalf("expected 1 hour bucket, got %d", len(hours))
	}
	if hours[0].HourOfDay != 12 || hours[0].PostCount != 1 {
		t.Errorf("hour bucket = %+v", hours[0])
	}
}

func TestLanguageStats_OrderAndPercentage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertOne(t, s, testPost("p1", "2024-11-28", "de", 0))
	insertOne(t, s, testPost("p2", "2024-11-28", "de", 0))
	insertOne(t, s, testPost("p3", "2024-11-28", "en", 0))
	empty := testPost("p4", "2024-11-28", "", 0)
	insertOne(t, s, empty)

	if err := s.CreateViews(ctx); err != nil {
		t.Fatal(err)
	}

	langs, err := s.LanguageStats(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(langs) != 2 {
		t.Fatalf("empty language must be excluded; got %d rows", len(langs))
	}
	if langs[0].Language != "de" || langs[0].PostCount != 2 {
		t.Errorf("expected de first with 2 posts, got %+v", langs[0])
	}
	// Percentage is over all posts including the empty-language one.
	if langs[0].Percentage != 50 {
		t.Errorf("de percentage = %v, want 50", langs[0].Percentage)
	}
}

func TestHashtagPerformance_OrderedByTotalEngagement(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertOne(t, s, model.HashtagPost{
		PostID: "p1", CollectionDate: "2024-11-28", CollectedHashtag: "low",
		EngagementScore: 1, AccountID: "a1",
	})
	insertOne(t, s, model.HashtagPost{
		PostID: "p2", CollectionDate: "2024-11-28", CollectedHashtag: "high",
		EngagementScore: 50, AccountID: "a2",
	})

	if err := s.CreateViews(ctx); err != nil {
		t.Fatal(err)
	}

	perf, err := s.HashtagPerformance(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(perf) != 2 {
		t.Fatalf("expected 2 hashtags, got %d", len(perf))
	}
	if perf[0].CollectedHashtag != "high" {
		t.Errorf("expected high engagement first, got %q", perf[0].CollectedHashtag)
	}
}

func TestDateRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, _, ok, err := s.DateRange(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v, want ok=false", ok, err)
	}

	insertOne(t, s, testPost("p1", "2024-11-27", "de", 0))
	insertOne(t, s, testPost("p2", "2024-11-29", "de", 0))

	lo, hi, ok, err := s.DateRange(ctx)
	if err != nil || !ok {
		t.Fatalf("date range: ok=%v err=%v", ok, err)
	}
	if lo != "2024-11-27" || hi != "2024-11-29" {
		t.Errorf("date range = %q..%q", lo, hi)
	}
}
