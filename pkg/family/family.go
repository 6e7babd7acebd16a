// Package family describes the five recognized export file families and
// how one raw CSV row of each family becomes a canonical record.
//
// Each family is an Adapter: a filename pattern for discovery plus a
// normalize function holding the family's field mapping and derived-field
// formulas. A single generic ingest loop consumes adapters, so the per-family
// differences live here and nowhere else.
package family

import (
	"errors"
	"fmt"

	"github.com/mastoflow/mastoflow/internal/coerce"
	"github.com/mastoflow/mastoflow/internal/model"
)

// ErrMissingKey marks a row whose identity field is absent. Such rows are
// dropped and counted by the importer; they never abort the file.
var ErrMissingKey = errors.New("family: row is missing its key field")

// Row is one parsed CSV row, keyed by header name. Missing columns read as
// empty strings; extra columns are ignored.
type Row map[string]string

// Adapter binds a file family to its normalization rule.
type Adapter struct {
	// Name is the family name and the filename prefix of its exports.
	Name string

	// Entity is the destination table.
	Entity string

	// Normalize converts one row into a canonical record. collectionDate
	// comes from the filename, never from row content.
	Normalize func(row Row, collectionDate string) (model.Record, error)
}

// Pattern returns the discovery glob for the family's export files.
func (a Adapter) Pattern() string {
	return a.Name + "_*.csv"
}

// All returns the five family adapters in import order.
func All() []Adapter {
	return []Adapter{
		{Name: "posts_analysis", Entity: "posts", Normalize: normalizePublicPost},
		{Name: "local_posts", Entity: "posts", Normalize: normalizeLocalPost},
		{Name: "hashtag_analysis", Entity: "hashtag_posts", Normalize: normalizeHashtagPost},
		{Name: "trending_tags", Entity: "trending_tags", Normalize: normalizeTrendingTag},
		{Name: "instance_stats", Entity: "instance_stats", Normalize: normalizeInstanceStats},
	}
}

// normalizePublicPost maps a posts_analysis row. The source is fixed by the
// family: these files are public-timeline snapshots.
func normalizePublicPost(row Row, collectionDate string) (model.Record, error) {
	if row["post_id"] == "" {
		return nil, fmt.Errorf("%w: post_id", ErrMissingKey)
	}

	hour := coerce.IntOrZero(row["hour_of_day"])
	return model.Post{
		PostID:               row["post_id"],
		CollectionDate:       collectionDate,
		CreatedAt:            row["created_at"],
		Language:             row["language"],
		Visibility:           row["visibility"],
		RepliesCount:         coerce.IntOrZero(row["replies_count"]),
		ReblogsCount:         coerce.IntOrZero(row["reblogs_count"]),
		FavouritesCount:      coerce.IntOrZero(row["favourites_count"]),
		HasMedia:             coerce.BoolOrFalse(row["has_media"]),
		MediaCount:           coerce.IntOrZero(row["media_count"]),
		HasPoll:              coerce.BoolOrFalse(row["has_poll"]),
		HasCW:                coerce.BoolOrFalse(row["has_cw"]),
		CharacterCount:       coerce.IntOrZero(row["character_count"]),
		HashtagCount:         coerce.IntOrZero(row["hashtag_count"]),
		MentionCount:         coerce.IntOrZero(row["mention_count"]),
		URLCount:             coerce.IntOrZero(row["url_count"]),
		IsReply:              coerce.BoolOrFalse(row["is_reply"]),
		IsReblog:             coerce.BoolOrFalse(row["is_reblog"]),
		HourOfDay:            &hour,
		DayOfWeek:            row["day_of_week"],
		AccountID:            row["account_id"],
		AccountFollowers:     coerce.IntOrZero(row["account_followers"]),
		AccountFollowing:     coerce.IntOrZero(row["account_following"]),
		AccountStatusesCount: coerce.IntOrZero(row["account_statuses_count"]),
		Source:               model.SourcePublicTimeline,
	}, nil
}

// normalizeLocalPost maps a local_posts row. Local exports carry no
// pre-computed total, so engagement_total is derived here as the unweighted
// sum. They also report no hour_of_day; the field stays unset.
func normalizeLocalPost(row Row, collectionDate string) (model.Record, error) {
	if row["post_id"] == "" {
		return nil, fmt.Errorf("%w: post_id", ErrMissingKey)
	}

	replies := coerce.IntOrZero(row["replies"])
	reblogs := coerce.IntOrZero(row["reblogs"])
	favourites := coerce.IntOrZero(row["favourites"])

	return model.Post{
		PostID:          row["post_id"],
		CollectionDate:  collectionDate,
		CreatedAt:       row["created_at"],
		AccountUsername: row["account_username"],
		Language:        row["language"],
		EngagementTotal: replies + reblogs + favourites,
		RepliesCount:    replies,
		ReblogsCount:    reblogs,
		FavouritesCount: favourites,
		CharacterCount:  coerce.IntOrZero(row["char_count"]),
		HashtagCount:    coerce.IntOrZero(row["hashtags"]),
		HasMedia:        coerce.BoolOrFalse(row["has_media"]),
		Visibility:      row["visibility"],
		Source:          model.SourceLocalTimeline,
	}, nil
}

// normalizeHashtagPost maps a hashtag_analysis row. The engagement score
// weights reblogs double (replies + 2*reblogs + favourites). This is a
// different formula from Post.EngagementTotal and must stay that way.
func normalizeHashtagPost(row Row, collectionDate string) (model.Record, error) {
	if row["post_id"] == "" {
		return nil, fmt.Errorf("%w: post_id", ErrMissingKey)
	}
	if row["collected_hashtag"] == "" {
		return nil, fmt.Errorf("%w: collected_hashtag", ErrMissingKey)
	}

	replies := coerce.IntOrZero(row["replies_count"])
	reblogs := coerce.IntOrZero(row["reblogs_count"])
	favourites := coerce.IntOrZero(row["favourites_count"])

	return model.HashtagPost{
		PostID:           row["post_id"],
		CollectionDate:   collectionDate,
		CollectedHashtag: row["collected_hashtag"],
		CreatedAt:        row["created_at"],
		Language:         row["language"],
		EngagementScore:  replies + 2*reblogs + favourites,
		RepliesCount:     replies,
		ReblogsCount:     reblogs,
		FavouritesCount:  favourites,
		AllHashtags:      row["all_hashtags"],
		AccountID:        row["account_id"],
	}, nil
}

// normalizeTrendingTag maps a trending_tags row.
func normalizeTrendingTag(row Row, collectionDate string) (model.Record, error) {
	if row["tag_name"] == "" {
		return nil, fmt.Errorf("%w: tag_name", ErrMissingKey)
	}

	return model.TrendingTag{
		CollectionDate: collectionDate,
		TagName:        row["tag_name"],
		URL:            row["url"],
		TotalUses:      coerce.IntOrZero(row["total_uses"]),
		Day1Uses:       coerce.IntOrZero(row["day_1_uses"]),
		Day2Uses:       coerce.IntOrZero(row["day_2_uses"]),
	}, nil
}

// normalizeInstanceStats maps an instance_stats row. The uniqueness key is
// the collection date itself, so there is no row-level key field to check.
func normalizeInstanceStats(row Row, collectionDate string) (model.Record, error) {
	return model.InstanceStats{
		Timestamp:      row["timestamp"],
		CollectionDate: collectionDate,
		UserCount:      coerce.IntOrZero(row["user_count"]),
		StatusCount:    coerce.IntOrZero(row["status_count"]),
		DomainCount:    coerce.IntOrZero(row["domain_count"]),
	}, nil
}
