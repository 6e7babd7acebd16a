// Package export builds a publishable dataset bundle from the database:
// one CSV per canonical table and view, a README, a data dictionary, and
// an XLSX workbook of the analysis views.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mastoflow/mastoflow/pkg/store"
)

// FileStat describes one exported file.
type FileStat struct {
	Name string
	Rows int64
	Size int64
}

// Report summarizes one export run.
type Report struct {
	Dir         string
	GeneratedAt time.Time
	Files       []FileStat
}

// TotalSize sums the exported file sizes in bytes.
func (r *Report) TotalSize() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.Size
	}
	return n
}

// Exporter writes dataset bundles from an open store.
type Exporter struct {
	store *store.Store
	dir   string
	log   *logrus.Entry
}

// New creates an exporter targeting dir.
func New(st *store.Store, dir string) *Exporter {
	return &Exporter{
		store: st,
		dir:   dir,
		log:   logrus.WithField("component", "export"),
	}
}

// Run exports every table and view plus the documentation files.
func (e *Exporter) Run(ctx context.Context) (*Report, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := e.store.CreateViews(ctx); err != nil {
		return nil, err
	}

	report := &Report{Dir: e.dir, GeneratedAt: time.Now()}

	sources := append(store.TableNames(), store.ViewNames()...)
	for _, src := range sources {
		stat, err := e.exportCSV(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("export of %s failed: %w", src, err)
		}
		report.Files = append(report.Files, stat)
		e.log.WithFields(logrus.Fields{
			"file": stat.Name,
			"rows": stat.Rows,
		}).Debug("exported")
	}

	if err := e.writeDataDictionary(ctx); err != nil {
		return nil, err
	}
	if err := e.writeReadme(ctx, report); err != nil {
		return nil, err
	}
	if err := e.writeWorkbook(ctx); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"dir":   e.dir,
		"files": len(report.Files),
		"bytes": report.TotalSize(),
	}).Info("export finished")
	return report, nil
}

// exportCSV streams one table or view to mastodon_<name>.csv through
// DuckDB's own CSV writer.
func (e *Exporter) exportCSV(ctx context.Context, source string) (FileStat, error) {
	name := "mastodon_" + source + ".csv"
	path := filepath.Join(e.dir, name)

	rows, err := e.store.Count(ctx, source)
	if err != nil {
		return FileStat{}, err
	}

	copySQL := fmt.Sprintf(`COPY (SELECT * FROM %s) TO '%s' (HEADER, DELIMITER ',')`,
		source, strings.ReplaceAll(path, "'", "''"))
	if _, err := e.store.DB().ExecContext(ctx, copySQL); err != nil {
		return FileStat{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileStat{}, err
	}
	return FileStat{Name: name, Rows: rows, Size: info.Size()}, nil
}

// writeDataDictionary documents the two post tables column by column.
func (e *Exporter) writeDataDictionary(ctx context.Context) error {
	path := filepath.Join(e.dir, "data_dictionary.csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create data dictionary: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintln(file, "table,column,type,description"); err != nil {
		return err
	}

	for _, table := range []string{"posts", "hashtag_posts"} {
		cols, err := e.tableColumns(ctx, table)
		if err != nil {
			return err
		}
		for _, col := range cols {
			desc := columnDescriptions[table][col.name]
			if _, err := fmt.Fprintf(file, "%s,%s,%s,%q\n", table, col.name, col.typ, desc); err != nil {
				return err
			}
		}
	}
	return nil
}

type columnInfo struct {
	name string
	typ  string
}

func (e *Exporter) tableColumns(ctx context.Context, table string) ([]columnInfo, error) {
	rows, err := e.store.DB().QueryContext(ctx,
		fmt.Sprintf(`PRAGMA table_info('%s')`, table))
	if err != nil {
		return nil, fmt.Errorf("table_info(%s) failed: %w", table, err)
	}
	defer rows.Close()

	var out []columnInfo
	for rows.Next() {
		var (
			cid     int
			col     columnInfo
			notNull bool
			dflt    sql.NullString
			pk      bool
		)
		if err := rows.Scan(&cid, &col.name, &col.typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, rows.Err()
}

var columnDescriptions = map[string]map[string]string{
	"posts": {
		"post_id":                "Unique identifier for the post",
		"collection_date":        "Date when this post was collected",
		"created_at":             "Timestamp when the post was created",
		"language":               "Language code (ISO 639-1) of the post content",
		"visibility":             "Post visibility setting (public, unlisted, private, direct)",
		"replies_count":          "Number of replies to this post",
		"reblogs_count":          "Number of times this post was reblogged",
		"favourites_count":       "Number of times this post was favourited",
		"engagement_total":       "Sum of replies, reblogs and favourites",
		"has_media":              "Whether the post has media attachments",
		"media_count":            "Number of media attachments",
		"has_poll":               "Whether the post contains a poll",
		"has_cw":                 "Whether the post carries a content warning",
		"character_count":        "Number of characters in the post content",
		"hashtag_count":          "Number of hashtags in the post",
		"mention_count":          "Number of user mentions in the post",
		"url_count":              "Number of link previews attached to the post",
		"is_reply":               "Whether the post replies to another post",
		"is_reblog":              "Whether the post is a reblog",
		"hour_of_day":            "Hour of day when posted (0-23)",
		"day_of_week":            "Day of week when posted (Monday..Sunday)",
		"account_id":             "Unique identifier of the posting account",
		"account_username":       "Username of the posting account",
		"account_followers":      "Follower count of the posting account",
		"account_following":      "Following count of the posting account",
		"account_statuses_count": "Total number of posts by the account",
		"source":                 "Data source (public_timeline or local_timeline)",
		"imported_at":            "Timestamp when the row was imported",
	},
	"hashtag_posts": {
		"post_id":           "Unique identifier for the post",
		"collection_date":   "Date when this post was collected",
		"collected_hashtag": "The hashtag this post was collected for",
		"created_at":        "Timestamp when the post was created",
		"language":          "Language code of the post",
		"engagement_score":  "Weighted engagement (replies + reblogs*2 + favourites)",
		"replies_count":     "Number of replies",
		"reblogs_count":     "Number of reblogs",
		"favourites_count":  "Number of favourites",
		"all_hashtags":      "All hashtags in the post, pipe-separated",
		"account_id":        "Account identifier",
		"imported_at":       "Timestamp when the row was imported",
	},
}
