package datefile

import (
	"errors"
	"testing"
)

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"posts_analysis_20241128_183042.csv", "2024-11-28"},
		{"local_posts_20250101_000000.csv", "2025-01-01"},
		{"trending_tags_20231231_235959.csv", "2023-12-31"},
		{"instance_stats_20240229_120000.csv", "2024-02-29"},
		// The HHMMSS segment is only 6 digits and must be ignored.
		{"hashtag_analysis_20240615_090000.csv", "2024-06-15"},
		// Full paths are accepted.
		{"/data/mastodon/posts_analysis_20241128_183042.csv", "2024-11-28"},
	}

	for _, tt := range tests {
		got, err := ExtractDate(tt.name)
		if err != nil {
			t.Errorf("ExtractDate(%q) unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractDate(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExtractDate_NoDate(t *testing.T) {
	tests := []string{
		"posts_analysis.csv",
		"posts_analysis_latest.csv",
		"notes.txt",
		// 8 digits but not a plausible calendar date.
		"posts_analysis_20249945_183042.csv",
		// 9-digit numeric segment is not a date token.
		"posts_analysis_202411281_18.csv",
	}

	for _, name := range tests {
		if _, err := ExtractDate(name); !errors.Is(err, ErrNoDate) {
			t.Errorf("ExtractDate(%q) = %v, want ErrNoDate", name, err)
		}
	}
}
