package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

const readmeTemplate = `# Mastodon/Fediverse Social Media Dataset

## Overview
This dataset contains posts collected from a Mastodon instance between
**{{.Earliest}}** and **{{.Latest}}**: {{.PostCount}} timeline posts with
engagement metrics, {{.HashtagCount}} hashtag-tracked posts, daily trending
hashtags, and instance-wide statistics.

## Files

### Core data
| File | Rows | Description |
|------|-----:|-------------|
| mastodon_posts.csv | {{.Rows.posts}} | Timeline posts with engagement, content and author metrics |
| mastodon_hashtag_posts.csv | {{.Rows.hashtag_posts}} | Posts tracked per hashtag with weighted engagement scores |
| mastodon_trending_tags.csv | {{.Rows.trending_tags}} | Daily trending hashtag snapshots |
| mastodon_instance_stats.csv | {{.Rows.instance_stats}} | Daily instance user/status/domain counts |

### Aggregated views
| File | Rows | Description |
|------|-----:|-------------|
| mastodon_daily_stats.csv | {{.Rows.daily_stats}} | Per-day post and engagement rollups |
| mastodon_hashtag_performance.csv | {{.Rows.hashtag_performance}} | Per-hashtag performance, ranked by total engagement |
| mastodon_hourly_activity.csv | {{.Rows.hourly_activity}} | Activity by hour of day (0-23) |
| mastodon_language_stats.csv | {{.Rows.language_stats}} | Language distribution with engagement comparison |

See ` + "`data_dictionary.csv`" + ` for column-level documentation and
` + "`mastodon_analysis.xlsx`" + ` for the views as a workbook.

## Notes
- ` + "`engagement_total`" + ` (timeline posts) is the plain sum of replies,
  reblogs and favourites.
- ` + "`engagement_score`" + ` (hashtag posts) weighs reblogs double:
  replies + reblogs*2 + favourites.
- Only public data is included.

## License
CC BY-SA 4.0

---
Generated {{.Generated}} | Total size {{.SizeMB}} MB
`

type readmeData struct {
	Earliest     string
	Latest       string
	PostCount    int64
	HashtagCount int64
	Rows         map[string]int64
	Generated    string
	SizeMB       string
}

func (e *Exporter) writeReadme(ctx context.Context, report *Report) error {
	data := readmeData{
		Rows:      make(map[string]int64),
		Generated: report.GeneratedAt.Format("2006-01-02"),
		SizeMB:    fmt.Sprintf("%.2f", float64(report.TotalSize())/(1024*1024)),
		Earliest:  "n/a",
		Latest:    "n/a",
	}
	for _, f := range report.Files {
		source := f.Name[len("mastodon_") : len(f.Name)-len(".csv")]
		data.Rows[source] = f.Rows
	}
	data.PostCount = data.Rows["posts"]
	data.HashtagCount = data.Rows["hashtag_posts"]

	if lo, hi, ok, err := e.store.DateRange(ctx); err != nil {
		return err
	} else if ok {
		data.Earliest, data.Latest = lo, hi
	}

	tmpl, err := template.New("readme").Parse(readmeTemplate)
	if err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(e.dir, "README.md"))
	if err != nil {
		return fmt.Errorf("failed to create README: %w", err)
	}
	defer file.Close()
	return tmpl.Execute(file, data)
}
