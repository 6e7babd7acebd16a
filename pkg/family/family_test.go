package family

import (
	"errors"
	"testing"

	"github.com/mastoflow/mastoflow/internal/model"
)

func adapterByName(t *testing.T, name string) Adapter {
	t.Helper()
	for _, a := range All() {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("no adapter named %q", name)
	return Adapter{}
}

func TestAll_Patterns(t *testing.T) {
	want := map[string]string{
		"posts_analysis":   "posts_analysis_*.csv",
		"local_posts":      "local_posts_*.csv",
		"hashtag_analysis": "hashtag_analysis_*.csv",
		"trending_tags":    "trending_tags_*.csv",
		"instance_stats":   "instance_stats_*.csv",
	}
	for _, a := range All() {
		if got := a.Pattern(); got != want[a.Name] {
			t.Errorf("%s pattern = %q, want %q", a.Name, got, want[a.Name])
		}
	}
}

func TestNormalizePublicPost(t *testing.T) {
	a := adapterByName(t, "posts_analysis")

	rec, err := a.Normalize(Row{
		"post_id":       "111",
		"created_at":    "2024-11-28T18:30:42.000Z",
		"language":      "de",
		"visibility":    "public",
		"replies_count": "1",
		"reblogs_count": "2",
		"has_media":     "True",
		"hour_of_day":   "18",
		"is_reblog":     "False",
		"account_id":    "42",
	}, "2024-11-28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := rec.(model.Post)
	if !ok {
		t.Fatalf("expected model.Post, got %T", rec)
	}
	if p.Source != model.SourcePublicTimeline {
		t.Errorf("source = %q, want public_timeline", p.Source)
	}
	if p.CollectionDate != "2024-11-28" {
		t.Errorf("collection date = %q", p.CollectionDate)
	}
	if !p.HasMedia || p.IsReblog {
		t.Errorf("boolean coercion wrong: has_media=%v is_reblog=%v", p.HasMedia, p.IsReblog)
	}
	if p.HourOfDay == nil || *p.HourOfDay != 18 {
		t.Errorf("hour_of_day = %v, want 18", p.HourOfDay)
	}
	// Public rows carry no engagement total.
	if p.EngagementTotal != 0 {
		t.Errorf("engagement_total = %d, want 0", p.EngagementTotal)
	}
	// Missing numeric columns default to zero.
	if p.FavouritesCount != 0 || p.MediaCount != 0 {
		t.Errorf("missing columns should coerce to zero")
	}
}

func TestNormalizeLocalPost_UnweightedEngagement(t *testing.T) {
	a := adapterByName(t, "local_posts")

	rec, err := a.Normalize(Row{
		"post_id":    "222",
		"replies":    "1",
		"reblogs":    "2",
		"favourites": "3",
		"char_count": "140",
		"hashtags":   "2",
	}, "2024-11-28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := rec.(model.Post)
	if p.EngagementTotal != 6 {
		t.Errorf("engagement_total = %d, want 6 (unweighted)", p.EngagementTotal)
	}
	if p.Source != model.SourceLocalTimeline {
		t.Errorf("source = %q, want local_timeline", p.Source)
	}
	if p.HourOfDay != nil {
		t.Errorf("local rows must not report an hour, got %d", *p.HourOfDay)
	}
	if p.CharacterCount != 140 || p.HashtagCount != 2 {
		t.Errorf("char_count/hashtags mapping wrong: %d/%d", p.CharacterCount, p.HashtagCount)
	}
}

func TestNormalizeHashtagPost_WeightedEngagement(t *testing.T) {
	a := adapterByName(t, "hashtag_analysis")

	rec, err := a.Normalize(Row{
		"post_id":           "333",
		"collected_hashtag": "golang",
		"replies_count":     "1",
		"reblogs_count":     "2",
		"favourites_count":  "3",
		"all_hashtags":      "golang|duckdb|analytics",
	}, "2024-11-28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := rec.(model.HashtagPost)
	// Reblogs count double: 1 + 2*2 + 3.
	if h.EngagementScore != 8 {
		t.Errorf("engagement_score = %d, want 8 (weighted)", h.EngagementScore)
	}
	if h.AllHashtags != "golang|duckdb|analytics" {
		t.Errorf("all_hashtags = %q", h.AllHashtags)
	}
}

func TestNormalize_MissingKeyFields(t *testing.T) {
	tests := []struct {
		family string
		row    Row
	}{
		{"posts_analysis", Row{"created_at": "2024-11-28T10:00:00Z"}},
		{"local_posts", Row{"replies": "1"}},
		{"hashtag_analysis", Row{"post_id": "1"}}, // no collected_hashtag
		{"hashtag_analysis", Row{"collected_hashtag": "x"}},
		{"trending_tags", Row{"total_uses": "5"}},
	}

	for _, tt := range tests {
		a := adapterByName(t, tt.family)
		if _, err := a.Normalize(tt.row, "2024-11-28"); !errors.Is(err, ErrMissingKey) {
			t.Errorf("%s: expected ErrMissingKey, got %v", tt.family, err)
		}
	}
}

func TestNormalizeTrendingTag(t *testing.T) {
	a := adapterByName(t, "trending_tags")

	rec, err := a.Normalize(Row{
		"tag_name":   "fediverse",
		"url":        "https://example.social/tags/fediverse",
		"total_uses": "120",
		"day_1_uses": "80",
		"day_2_uses": "40",
	}, "2024-11-28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tg := rec.(model.TrendingTag)
	if tg.TotalUses != 120 || tg.Day1Uses != 80 || tg.Day2Uses != 40 {
		t.Errorf("usage mapping wrong: %+v", tg)
	}
	if tg.CollectionDate != "2024-11-28" {
		t.Errorf("collection date = %q", tg.CollectionDate)
	}
}

func TestNormalizeInstanceStats(t *testing.T) {
	a := adapterByName(t, "instance_stats")

	rec, err := a.Normalize(Row{
		"timestamp":    "20241128_183042",
		"user_count":   "1500",
		"status_count": "90000",
		"domain_count": "12000",
	}, "2024-11-28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := rec.(model.InstanceStats)
	if st.Timestamp != "20241128_183042" {
		t.Errorf("timestamp kept verbatim, got %q", st.Timestamp)
	}
	if st.UserCount != 1500 || st.StatusCount != 90000 || st.DomainCount != 12000 {
		t.Errorf("count mapping wrong: %+v", st)
	}
}
