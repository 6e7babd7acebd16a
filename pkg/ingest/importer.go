// Package ingest drives the import of export CSV files into the store.
//
// Files are discovered per family by filename pattern and imported in a
// fixed family order, one transaction per family. Rows that cannot be
// normalized are dropped, counted, and optionally written to a dead
// letter file; they never abort the surrounding file or family. Files
// that cannot be read at all are skipped and counted the same way
// undated files are. Only store errors abort the run.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mastoflow/mastoflow/pkg/checkpoint"
	"github.com/mastoflow/mastoflow/pkg/datefile"
	"github.com/mastoflow/mastoflow/pkg/family"
	"github.com/mastoflow/mastoflow/pkg/store"
)

// Options configures an import run.
type Options struct {
	// Ledger, when set, lets re-runs skip files already imported at the
	// same size. Ledger failures degrade to a re-parse, never to an error.
	Ledger checkpoint.Ledger

	// DLQDir, when set, receives a JSONL file of dropped rows.
	DLQDir string

	// Progress renders a per-family progress bar on stderr.
	Progress bool

	// TopN bounds the highlight lists in the result.
	TopN int
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{TopN: 5}
}

// Importer imports export files for all families into one store.
type Importer struct {
	store *store.Store
	opts  Options
	log   *logrus.Entry
}

// New creates an importer over an open store.
func New(st *store.Store, opts Options) *Importer {
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	return &Importer{
		store: st,
		opts:  opts,
		log:   logrus.WithField("component", "ingest"),
	}
}

// Run imports every recognizable export file under dataDir and refreshes
// the analysis views. Families are processed in dependency order so the
// result counters are stable across runs over the same directory.
func (i *Importer) Run(ctx context.Context, dataDir string) (*Result, error) {
	tracer := otel.Tracer("mastoflow/ingest")
	ctx, span := tracer.Start(ctx, "ingest.run")
	defer span.End()

	res := newResult()

	var dlq *DLQWriter
	if i.opts.DLQDir != "" {
		var err error
		dlq, err = NewDLQWriter(i.opts.DLQDir, res.RunID)
		if err != nil {
			return nil, err
		}
		defer dlq.Close()
	}

	for _, fam := range family.All() {
		if err := i.runFamily(ctx, dataDir, fam, res, dlq); err != nil {
			return nil, fmt.Errorf("family %s: %w", fam.Name, err)
		}
	}

	if err := i.store.CreateViews(ctx); err != nil {
		return nil, err
	}
	if err := i.enrich(ctx, res); err != nil {
		return nil, err
	}

	res.Duration = time.Since(res.StartedAt)
	span.SetAttributes(
		attribute.String("run.id", res.RunID),
		attribute.Int("files.processed", res.FilesProcessed),
		attribute.Int64("rows.imported", res.TotalImported()),
		attribute.Int64("rows.duplicates", res.TotalDuplicates()),
		attribute.Int64("rows.dropped", res.RowsDropped),
	)
	i.log.WithFields(logrus.Fields{
		"run_id":     res.RunID,
		"files":      res.FilesProcessed,
		"imported":   res.TotalImported(),
		"duplicates": res.TotalDuplicates(),
		"dropped":    res.RowsDropped,
		"duration":   res.Duration.Round(time.Millisecond),
	}).Info("import finished")
	return res, nil
}

// errUnreadable marks a file that could not be opened or whose header
// could not be parsed. Such files are skipped and counted; they never
// abort the run. Store errors stay fatal.
var errUnreadable = errors.New("unreadable file")

type importedFile struct {
	name string
	size int64
}

func (i *Importer) runFamily(ctx context.Context, dataDir string, fam family.Adapter, res *Result, dlq *DLQWriter) error {
	ctx, span := otel.Tracer("mastoflow/ingest").Start(ctx, "ingest.family."+fam.Name)
	defer span.End()

	files, err := filepath.Glob(filepath.Join(dataDir, fam.Pattern()))
	if err != nil {
		return fmt.Errorf("glob failed: %w", err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		i.log.WithField("family", fam.Name).Debug("no files found")
		return nil
	}

	var bar *progressbar.ProgressBar
	if i.opts.Progress {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription(fam.Name),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
	}

	batch, err := i.store.BeginBatch(ctx)
	if err != nil {
		return err
	}
	defer batch.Rollback()

	counts := res.entity(fam.Entity)
	var done []importedFile

	for _, path := range files {
		if bar != nil {
			bar.Add(1)
		}
		name := filepath.Base(path)

		date, err := datefile.ExtractDate(name)
		if err != nil {
			if errors.Is(err, datefile.ErrNoDate) {
				res.FilesSkipped++
				i.log.WithField("file", name).Warn("no collection date in filename, skipping")
				continue
			}
			return err
		}

		info, err := os.Stat(path)
		if err != nil {
			res.FilesSkipped++
			i.log.WithError(err).WithField("file", name).Warn("cannot stat file, skipping")
			continue
		}
		if i.opts.Ledger != nil {
			seen, err := i.opts.Ledger.Seen(ctx, name, info.Size())
			if err != nil {
				i.log.WithError(err).WithField("file", name).Warn("ledger lookup failed, re-parsing")
			} else if seen {
				res.FilesUnchanged++
				continue
			}
		}

		imported, dups, dropped, err := i.importFile(ctx, batch, fam, path, date, res.RunID, dlq)
		if err != nil {
			if errors.Is(err, errUnreadable) {
				res.FilesSkipped++
				i.log.WithError(err).WithField("file", name).Warn("unreadable file, skipping")
				continue
			}
			return fmt.Errorf("file %s: %w", name, err)
		}
		counts.Imported += imported
		counts.Duplicates += dups
		res.RowsDropped += dropped
		res.FilesProcessed++
		done = append(done, importedFile{name: name, size: info.Size()})

		i.log.WithFields(logrus.Fields{
			"file":       name,
			"imported":   imported,
			"duplicates": dups,
			"dropped":    dropped,
		}).Debug("file imported")
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	// Mark only after the commit: a marked file must actually be in the
	// database.
	if i.opts.Ledger != nil {
		for _, f := range done {
			if err := i.opts.Ledger.Mark(ctx, f.name, f.size); err != nil {
				i.log.WithError(err).WithField("file", f.name).Warn("ledger mark failed")
			}
		}
	}
	return nil
}

// importFile streams one CSV file through the family normalizer into the
// batch. It reports fresh inserts, duplicates absorbed by the store's
// uniqueness constraints, and rows dropped as unusable.
func (i *Importer) importFile(ctx context.Context, batch *store.Batch, fam family.Adapter, path, date, runID string, dlq *DLQWriter) (imported, dups, dropped int64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", errUnreadable, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, 0, 0, nil
	}
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: header: %v", errUnreadable, err)
	}

	name := filepath.Base(path)
	for rowNum := 2; ; rowNum++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			dropped++
			i.drop(dlq, DLQRecord{
				SourceFile: name, Family: fam.Name, RowNumber: rowNum,
				Reason: err.Error(), RunID: runID,
			})
			// A parse error is confined to one record; anything else
			// (an I/O failure) would repeat on every Read, so give up
			// on the rest of the file.
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				break
			}
			continue
		}

		row := make(family.Row, len(header))
		for col, h := range header {
			if col < len(fields) {
				row[h] = fields[col]
			}
		}

		rec, err := fam.Normalize(row, date)
		if err != nil {
			dropped++
			i.drop(dlq, DLQRecord{
				SourceFile: name, Family: fam.Name, RowNumber: rowNum,
				Row: row, Reason: err.Error(), RunID: runID,
			})
			continue
		}

		ok, err := batch.Insert(ctx, rec)
		if err != nil {
			return imported, dups, dropped, err
		}
		if ok {
			imported++
		} else {
			dups++
		}
	}
	return imported, dups, dropped, nil
}

func (i *Importer) drop(dlq *DLQWriter, rec DLQRecord) {
	if dlq == nil {
		return
	}
	if err := dlq.Write(rec); err != nil {
		i.log.WithError(err).Warn("DLQ write failed")
	}
}

func (i *Importer) enrich(ctx context.Context, res *Result) error {
	tags, err := i.store.TopHashtags(ctx, i.opts.TopN)
	if err != nil {
		return err
	}
	for _, t := range tags {
		res.TopHashtags = append(res.TopHashtags, t.Tag)
	}

	langs, err := i.store.TopLanguages(ctx, i.opts.TopN)
	if err != nil {
		return err
	}
	for _, l := range langs {
		res.TopLanguages = append(res.TopLanguages, l.Language)
	}

	lo, hi, ok, err := i.store.DateRange(ctx)
	if err != nil {
		return err
	}
	if ok {
		res.EarliestDate, res.LatestDate = lo, hi
	}
	return nil
}
