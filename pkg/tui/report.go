// Package tui renders run summaries for the terminal.
// Simple streaming output, no interactive widgets.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mastoflow/mastoflow/pkg/collector"
	"github.com/mastoflow/mastoflow/pkg/export"
	"github.com/mastoflow/mastoflow/pkg/ingest"
	"github.com/mastoflow/mastoflow/pkg/store"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#5A56E0")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
)

const rule = "  ─────────────────────────────────────"

// RenderImport formats an import result.
func RenderImport(res *ingest.Result) string {
	var b strings.Builder

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, accentStyle.Render("▸ IMPORT "+res.RunID[:8]))
	fmt.Fprintln(&b, mutedStyle.Render(rule))

	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Files:"),
		titleStyle.Render(fmt.Sprintf("%d processed, %d unchanged, %d skipped",
			res.FilesProcessed, res.FilesUnchanged, res.FilesSkipped)))

	for _, entity := range []string{"posts", "hashtag_posts", "trending_tags", "instance_stats"} {
		c, ok := res.Entities[entity]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %s %s\n",
			mutedStyle.Render(fmt.Sprintf("%-16s", entity+":")),
			titleStyle.Render(fmt.Sprintf("%d new, %d duplicates", c.Imported, c.Duplicates)))
	}
	if res.RowsDropped > 0 {
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Dropped rows:"),
			accentStyle.Render(fmt.Sprint(res.RowsDropped)))
	}

	if res.EarliestDate != "" {
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Date range:"),
			titleStyle.Render(res.EarliestDate+" .. "+res.LatestDate))
	}
	if len(res.TopHashtags) > 0 {
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Top hashtags:"),
			titleStyle.Render("#"+strings.Join(res.TopHashtags, " #")))
	}
	if len(res.TopLanguages) > 0 {
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Top languages:"),
			titleStyle.Render(strings.Join(res.TopLanguages, ", ")))
	}

	fmt.Fprintln(&b, mutedStyle.Render(rule))
	fmt.Fprintf(&b, "  %s %s\n",
		successStyle.Render("✓ done"),
		mutedStyle.Render("in "+res.Duration.Round(time.Millisecond).String()))
	return b.String()
}

// RenderCollection formats a collection summary.
func RenderCollection(sum *collector.Summary) string {
	var b strings.Builder

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, accentStyle.Render("▸ COLLECTION "+sum.CollectionTimestamp))
	fmt.Fprintln(&b, mutedStyle.Render(rule))
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Instance:"), titleStyle.Render(sum.InstanceURL))
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Public posts:"), titleStyle.Render(fmt.Sprint(sum.PublicPosts)))
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Local posts:"), titleStyle.Render(fmt.Sprint(sum.LocalPosts)))
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Hashtag posts:"), titleStyle.Render(fmt.Sprint(sum.HashtagPosts)))
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Trending tags:"), titleStyle.Render(fmt.Sprint(sum.TrendingTags)))
	fmt.Fprintln(&b, mutedStyle.Render(rule))
	fmt.Fprintf(&b, "  %s %s\n",
		successStyle.Render("✓ done"),
		mutedStyle.Render(fmt.Sprintf("%d files in %s", len(sum.FilesCreated), sum.DataDirectory)))
	return b.String()
}

// RenderExport formats an export report.
func RenderExport(rep *export.Report) string {
	var b strings.Builder

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, accentStyle.Render("▸ EXPORT"))
	fmt.Fprintln(&b, mutedStyle.Render(rule))
	for _, f := range rep.Files {
		fmt.Fprintf(&b, "  %s %s\n",
			mutedStyle.Render(fmt.Sprintf("%-36s", f.Name)),
			titleStyle.Render(fmt.Sprintf("%8d rows  %s", f.Rows, formatBytes(f.Size))))
	}
	fmt.Fprintln(&b, mutedStyle.Render(rule))
	fmt.Fprintf(&b, "  %s %s\n",
		successStyle.Render("✓ done"),
		mutedStyle.Render(fmt.Sprintf("%s total in %s", formatBytes(rep.TotalSize()), rep.Dir)))
	return b.String()
}

// StatsData feeds the stats view.
type StatsData struct {
	TableCounts  map[string]int64
	EarliestDate string
	LatestDate   string
	Hashtags     []store.HashtagPerformance
	Languages    []store.LanguageStats
}

// RenderStats formats database-level statistics.
func RenderStats(data StatsData) string {
	var b strings.Builder

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, accentStyle.Render("▸ DATABASE"))
	fmt.Fprintln(&b, mutedStyle.Render(rule))
	for _, table := range store.TableNames() {
		fmt.Fprintf(&b, "  %s %s\n",
			mutedStyle.Render(fmt.Sprintf("%-16s", table+":")),
			titleStyle.Render(fmt.Sprintf("%d rows", data.TableCounts[table])))
	}
	if data.EarliestDate != "" {
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Date range:"),
			titleStyle.Render(data.EarliestDate+" .. "+data.LatestDate))
	}

	if len(data.Hashtags) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, accentStyle.Render("▸ TOP HASHTAGS"))
		fmt.Fprintln(&b, mutedStyle.Render(rule))
		for _, h := range data.Hashtags {
			fmt.Fprintf(&b, "  %s %s\n",
				mutedStyle.Render(fmt.Sprintf("%-20s", "#"+h.CollectedHashtag)),
				titleStyle.Render(fmt.Sprintf("%5d posts  %6d engagement", h.PostCount, h.TotalEngagement)))
		}
	}

	if len(data.Languages) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, accentStyle.Render("▸ LANGUAGES"))
		fmt.Fprintln(&b, mutedStyle.Render(rule))
		for _, l := range data.Languages {
			fmt.Fprintf(&b, "  %s %s\n",
				mutedStyle.Render(fmt.Sprintf("%-8s", l.Language)),
				titleStyle.Render(fmt.Sprintf("%6d posts  %5.1f%%", l.PostCount, l.Percentage)))
		}
	}
	return b.String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
