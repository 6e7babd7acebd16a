package collector

import (
	"encoding/json"
	"strconv"
)

// Status is the subset of the Mastodon status payload the collector uses.
// Raw JSON dumps keep the full payload; these fields feed the CSVs.
type Status struct {
	ID               string            `json:"id"`
	CreatedAt        string            `json:"created_at"`
	Language         string            `json:"language"`
	Visibility       string            `json:"visibility"`
	RepliesCount     int               `json:"replies_count"`
	ReblogsCount     int               `json:"reblogs_count"`
	FavouritesCount  int               `json:"favourites_count"`
	SpoilerText      string            `json:"spoiler_text"`
	Content          string            `json:"content"`
	InReplyToID      *string           `json:"in_reply_to_id"`
	Reblog           json.RawMessage   `json:"reblog"`
	Poll             json.RawMessage   `json:"poll"`
	Card             *Card             `json:"card"`
	MediaAttachments []json.RawMessage `json:"media_attachments"`
	Mentions         []json.RawMessage `json:"mentions"`
	Tags             []StatusTag       `json:"tags"`
	Account          Account           `json:"account"`
}

// StatusTag is a hashtag attached to a status.
type StatusTag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Card is a link preview attached to a status.
type Card struct {
	URL string `json:"url"`
}

// Account is the author subset the CSVs need.
type Account struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
	StatusesCount  int    `json:"statuses_count"`
}

// TrendingTag is one entry of the trends/tags endpoint.
type TrendingTag struct {
	Name    string       `json:"name"`
	URL     string       `json:"url"`
	History []TagHistory `json:"history"`
}

// TagHistory is one day of tag usage. The API serializes the counts as
// strings, so they need a lenient decoder.
type TagHistory struct {
	Day      FlexInt `json:"day"`
	Uses     FlexInt `json:"uses"`
	Accounts FlexInt `json:"accounts"`
}

// Instance is the subset of the instance endpoint the stats CSV needs.
type Instance struct {
	URI   string        `json:"uri"`
	Title string        `json:"title"`
	Stats InstanceStats `json:"stats"`
}

// InstanceStats are the instance-wide counters.
type InstanceStats struct {
	UserCount   int64 `json:"user_count"`
	StatusCount int64 `json:"status_count"`
	DomainCount int64 `json:"domain_count"`
}

// FlexInt decodes JSON numbers that may arrive quoted.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}
