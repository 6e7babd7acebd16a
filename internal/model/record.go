// Package model defines the canonical record shapes persisted by the store.
// One record type per entity family; all fields mirror the store schema.
package model

// Source identifies which timeline a post was collected from.
type Source string

const (
	SourcePublicTimeline Source = "public_timeline"
	SourceLocalTimeline  Source = "local_timeline"
)

// Record is implemented by every canonical record type. Entity names the
// destination table.
type Record interface {
	Entity() string
}

// Post is a single social-media post. Globally unique by PostID regardless
// of which file family produced it; first write wins.
type Post struct {
	PostID         string
	CollectionDate string
	CreatedAt      string
	Language       string
	Visibility     string

	RepliesCount    int
	ReblogsCount    int
	FavouritesCount int
	// EngagementTotal is the unweighted sum replies + reblogs + favourites.
	// Only local-timeline files carry enough context to derive it; public
	// rows keep zero.
	EngagementTotal int

	HasMedia   bool
	MediaCount int
	HasPoll    bool
	HasCW      bool

	CharacterCount int
	HashtagCount   int
	MentionCount   int
	URLCount       int

	IsReply  bool
	IsReblog bool

	// HourOfDay is nil for families that do not report it (local timeline);
	// the hourly view excludes those rows.
	HourOfDay *int
	DayOfWeek string

	AccountID            string
	AccountUsername      string
	AccountFollowers     int
	AccountFollowing     int
	AccountStatusesCount int

	Source Source
}

func (Post) Entity() string { return "posts" }

// HashtagPost is one occurrence of a post under a tracked hashtag. A post
// tracked under two hashtags yields two records; uniqueness is per
// (PostID, CollectedHashtag) pair.
type HashtagPost struct {
	PostID           string
	CollectionDate   string
	CollectedHashtag string
	CreatedAt        string
	Language         string

	// EngagementScore weights reblogs double: replies + 2*reblogs + favourites.
	// Deliberately distinct from Post.EngagementTotal.
	EngagementScore int
	RepliesCount    int
	ReblogsCount    int
	FavouritesCount int

	// AllHashtags is the pipe-delimited, order-preserving set of hashtags
	// the post carries.
	AllHashtags string
	AccountID   string
}

func (HashtagPost) Entity() string { return "hashtag_posts" }

// TrendingTag is the usage snapshot of a hashtag on a collection date.
// Unique per (CollectionDate, TagName).
type TrendingTag struct {
	CollectionDate string
	TagName        string
	URL            string
	TotalUses      int
	Day1Uses       int
	Day2Uses       int
}

func (TrendingTag) Entity() string { return "trending_tags" }

// InstanceStats is the aggregate state of the instance on a collection date.
// At most one snapshot per day.
type InstanceStats struct {
	// Timestamp is the raw collection timestamp as written by the
	// collector (YYYYMMDD_HHMMSS), kept verbatim.
	Timestamp      string
	CollectionDate string
	UserCount      int
	StatusCount    int
	DomainCount    int
}

func (InstanceStats) Entity() string { return "instance_stats" }
