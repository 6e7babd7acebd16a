// Package collector gathers data from a Mastodon instance and writes it
// as timestamped export files: one CSV per family for analysis, plus raw
// JSON dumps of everything collected.
package collector

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RunOptions bounds one collection run.
type RunOptions struct {
	Hashtags  []string
	PageLimit int // statuses per request, API max 40
	MaxPages  int // pages per timeline
}

// Summary describes the outcome of one collection run. It is also
// written as collection_summary_<ts>.json next to the data files.
type Summary struct {
	CollectionTimestamp string   `json:"collection_timestamp"`
	CollectionDate      string   `json:"collection_date"`
	InstanceURL         string   `json:"instance_url"`
	DataDirectory       string   `json:"data_directory"`
	FilesCreated        []string `json:"files_created"`

	PublicPosts  int `json:"public_posts"`
	LocalPosts   int `json:"local_posts"`
	HashtagPosts int `json:"hashtag_posts"`
	TrendingTags int `json:"trending_tags"`
}

// Collector runs collections against one instance.
type Collector struct {
	client  *Client
	dataDir string
	log     *logrus.Entry
	now     func() time.Time
}

// New creates a collector writing into dataDir.
func New(client *Client, dataDir string) *Collector {
	return &Collector{
		client:  client,
		dataDir: dataDir,
		log:     logrus.WithField("component", "collector"),
		now:     time.Now,
	}
}

// Run performs one full collection. Individual endpoints failing are
// logged and skipped so a partial outage still yields a partial dataset;
// only filesystem problems abort the run.
func (c *Collector) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	now := c.now()
	sum := &Summary{
		CollectionTimestamp: now.Format("20060102_150405"),
		CollectionDate:      now.Format(time.RFC3339),
		InstanceURL:         c.client.BaseURL(),
		DataDirectory:       c.dataDir,
	}

	if err := c.collectInstance(ctx, sum); err != nil {
		c.log.WithError(err).Warn("instance stats collection failed")
	}
	if err := c.collectTrending(ctx, sum); err != nil {
		c.log.WithError(err).Warn("trending tags collection failed")
	}
	if err := c.collectPublic(ctx, sum, opts, false); err != nil {
		c.log.WithError(err).Warn("public timeline collection failed")
	}
	if err := c.collectPublic(ctx, sum, opts, true); err != nil {
		c.log.WithError(err).Warn("local timeline collection failed")
	}
	if err := c.collectHashtags(ctx, sum, opts); err != nil {
		c.log.WithError(err).Warn("hashtag collection failed")
	}

	if err := c.writeJSON(sum, "collection_summary", sum); err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{
		"files":         len(sum.FilesCreated),
		"public_posts":  sum.PublicPosts,
		"local_posts":   sum.LocalPosts,
		"hashtag_posts": sum.HashtagPosts,
	}).Info("collection finished")
	return sum, nil
}

func (c *Collector) collectInstance(ctx context.Context, sum *Summary) error {
	inst, raw, err := c.client.Instance(ctx)
	if err != nil {
		return err
	}
	if err := c.writeJSON(sum, "instance_info", raw); err != nil {
		return err
	}
	return c.writeCSV(sum, "instance_stats",
		[]string{"timestamp", "user_count", "status_count", "domain_count"},
		[][]string{{
			sum.CollectionTimestamp,
			strconv.FormatInt(inst.Stats.UserCount, 10),
			strconv.FormatInt(inst.Stats.StatusCount, 10),
			strconv.FormatInt(inst.Stats.DomainCount, 10),
		}})
}

func (c *Collector) collectTrending(ctx context.Context, sum *Summary) error {
	tags, raw, err := c.client.TrendingTags(ctx, 40)
	if err != nil {
		return err
	}
	if err := c.writeJSON(sum, "trending_tags", raw); err != nil {
		return err
	}

	rows := make([][]string, 0, len(tags))
	for _, tag := range tags {
		var total, day1, day2 int64
		for _, h := range tag.History {
			total += int64(h.Uses)
		}
		if len(tag.History) > 0 {
			day1 = int64(tag.History[0].Uses)
		}
		if len(tag.History) > 1 {
			day2 = int64(tag.History[1].Uses)
		}
		rows = append(rows, []string{
			tag.Name, tag.URL,
			strconv.FormatInt(total, 10),
			strconv.FormatInt(day1, 10),
			strconv.FormatInt(day2, 10),
		})
	}
	sum.TrendingTags = len(rows)
	return c.writeCSV(sum, "trending_tags",
		[]string{"tag_name", "url", "total_uses", "day_1_uses", "day_2_uses"}, rows)
}

func (c *Collector) collectPublic(ctx context.Context, sum *Summary, opts RunOptions, local bool) error {
	statuses, raws, err := c.client.PublicTimeline(ctx, opts.PageLimit, opts.MaxPages, local)
	if err != nil {
		return err
	}

	if local {
		sum.LocalPosts = len(statuses)
		if err := c.writeJSON(sum, "local_timeline", raws); err != nil {
			return err
		}
		rows := make([][]string, 0, len(statuses))
		for _, st := range statuses {
			rows = append(rows, localPostRow(st))
		}
		return c.writeCSV(sum, "local_posts", localPostHeader, rows)
	}

	sum.PublicPosts = len(statuses)
	if err := c.writeJSON(sum, "public_timeline", raws); err != nil {
		return err
	}
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, publicPostRow(st))
	}
	return c.writeCSV(sum, "posts_analysis", publicPostHeader, rows)
}

// collectHashtags fetches every configured hashtag timeline concurrently
// and merges the results in the configured hashtag order, so re-running
// with the same data yields the same CSV.
func (c *Collector) collectHashtags(ctx context.Context, sum *Summary, opts RunOptions) error {
	if len(opts.Hashtags) == 0 {
		return nil
	}

	perTag := make([][]Status, len(opts.Hashtags))
	perTagRaw := make([][]json.RawMessage, len(opts.Hashtags))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for idx, tag := range opts.Hashtags {
		idx, tag := idx, tag
		g.Go(func() error {
			statuses, raws, err := c.client.TagTimeline(gctx, tag, opts.PageLimit, opts.MaxPages)
			if err != nil {
				// One dead hashtag must not sink the others.
				c.log.WithError(err).WithField("hashtag", tag).Warn("hashtag timeline failed")
				return nil
			}
			perTag[idx] = statuses
			perTagRaw[idx] = raws
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var (
		rows [][]string
		raws []json.RawMessage
	)
	for idx, tag := range opts.Hashtags {
		for _, st := range perTag[idx] {
			rows = append(rows, hashtagPostRow(tag, st))
		}
		raws = append(raws, perTagRaw[idx]...)
	}
	sum.HashtagPosts = len(rows)
	if len(rows) == 0 {
		return nil
	}

	if err := c.writeJSON(sum, "hashtag_posts", raws); err != nil {
		return err
	}
	return c.writeCSV(sum, "hashtag_analysis", hashtagPostHeader, rows)
}

func (c *Collector) writeJSON(sum *Summary, family string, v any) error {
	name := fmt.Sprintf("%s_%s.json", family, sum.CollectionTimestamp)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(c.dataDir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	sum.FilesCreated = append(sum.FilesCreated, name)
	return nil
}

func (c *Collector) writeCSV(sum *Summary, family string, header []string, rows [][]string) error {
	name := fmt.Sprintf("%s_%s.csv", family, sum.CollectionTimestamp)
	file, err := os.Create(filepath.Join(c.dataDir, name))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	sum.FilesCreated = append(sum.FilesCreated, name)
	return nil
}

var publicPostHeader = []string{
	"post_id", "created_at", "language", "visibility",
	"replies_count", "reblogs_count", "favourites_count",
	"has_media", "media_count", "has_poll", "has_cw",
	"character_count", "hashtag_count", "mention_count",
	"url_count", "is_reply", "is_reblog", "hour_of_day",
	"day_of_week", "account_id", "account_followers",
	"account_following", "account_statuses_count",
}

func publicPostRow(st Status) []string {
	hour, weekday := createdAtParts(st.CreatedAt)
	return []string{
		st.ID, st.CreatedAt, st.Language, st.Visibility,
		strconv.Itoa(st.RepliesCount), strconv.Itoa(st.ReblogsCount), strconv.Itoa(st.FavouritesCount),
		formatBool(len(st.MediaAttachments) > 0), strconv.Itoa(len(st.MediaAttachments)),
		formatBool(len(st.Poll) > 0 && string(st.Poll) != "null"),
		formatBool(st.SpoilerText != ""),
		strconv.Itoa(utf8.RuneCountInString(st.Content)),
		strconv.Itoa(len(st.Tags)), strconv.Itoa(len(st.Mentions)),
		strconv.Itoa(urlCount(st.Card)),
		formatBool(st.InReplyToID != nil),
		formatBool(len(st.Reblog) > 0 && string(st.Reblog) != "null"),
		hour, weekday,
		st.Account.ID,
		strconv.Itoa(st.Account.FollowersCount),
		strconv.Itoa(st.Account.FollowingCount),
		strconv.Itoa(st.Account.StatusesCount),
	}
}

var localPostHeader = []string{
	"post_id", "created_at", "account_username", "language",
	"engagement_total", "replies", "reblogs", "favourites",
	"char_count", "hashtags", "has_media", "visibility",
}

func localPostRow(st Status) []string {
	return []string{
		st.ID, st.CreatedAt, st.Account.Username, st.Language,
		strconv.Itoa(st.RepliesCount + st.ReblogsCount + st.FavouritesCount),
		strconv.Itoa(st.RepliesCount), strconv.Itoa(st.ReblogsCount), strconv.Itoa(st.FavouritesCount),
		strconv.Itoa(utf8.RuneCountInString(st.Content)),
		strconv.Itoa(len(st.Tags)),
		formatBool(len(st.MediaAttachments) > 0),
		st.Visibility,
	}
}

var hashtagPostHeader = []string{
	"collected_hashtag", "post_id", "created_at", "language",
	"engagement_score", "replies_count", "reblogs_count",
	"favourites_count", "all_hashtags", "account_id",
}

func hashtagPostRow(collectedFor string, st Status) []string {
	// Reblogs weigh double: a boost spreads the post to new timelines.
	score := st.RepliesCount + st.ReblogsCount*2 + st.FavouritesCount

	tags := ""
	for i, t := range st.Tags {
		if i > 0 {
			tags += "|"
		}
		tags += t.Name
	}

	return []string{
		collectedFor, st.ID, st.CreatedAt, st.Language,
		strconv.Itoa(score),
		strconv.Itoa(st.RepliesCount), strconv.Itoa(st.ReblogsCount), strconv.Itoa(st.FavouritesCount),
		tags, st.Account.ID,
	}
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// createdAtParts derives the hour and weekday name from a raw created_at.
// Unparseable timestamps yield empty fields rather than failing the row.
func createdAtParts(raw string) (hour, weekday string) {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return strconv.Itoa(t.Hour()), t.Weekday().String()
		}
	}
	return "", ""
}

func urlCount(card *Card) int {
	if card != nil && card.URL != "" {
		return 1
	}
	return 0
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
