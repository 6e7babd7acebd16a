package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"resty.dev/v3"
)

// Client talks to the Mastodon v1 API. Only read endpoints are used; a
// token is optional and only widens rate limits.
type Client struct {
	client  *resty.Client
	baseURL string

	// pause between paginated requests, kept well under the API rate
	// limit of 300 requests per 5 minutes.
	pause time.Duration
}

// NewClient creates a client for one instance, e.g.
// "https://mastodon.social".
func NewClient(instanceURL, token string) *Client {
	base := strings.TrimRight(instanceURL, "/")
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "mastoflow")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Client{client: client, baseURL: base, pause: time.Second}
}

// BaseURL returns the instance URL this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetPause overrides the inter-page delay.
func (c *Client) SetPause(d time.Duration) {
	c.pause = d
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// Instance fetches instance metadata. The raw payload is returned
// alongside the typed one for the JSON dump.
func (c *Client) Instance(ctx context.Context) (*Instance, json.RawMessage, error) {
	res, err := c.r(ctx).Get("/api/v1/instance")
	if err != nil {
		return nil, nil, fmt.Errorf("instance request failed: %w", err)
	}
	if res.IsError() {
		return nil, nil, fmt.Errorf("instance request failed: %s", res.Status())
	}

	raw := json.RawMessage(res.Bytes())
	var inst Instance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, nil, fmt.Errorf("instance payload invalid: %w", err)
	}
	return &inst, raw, nil
}

// TrendingTags fetches the current trending hashtags.
func (c *Client) TrendingTags(ctx context.Context, limit int) ([]TrendingTag, json.RawMessage, error) {
	res, err := c.r(ctx).
		SetQueryParam("limit", fmt.Sprint(limit)).
		Get("/api/v1/trends/tags")
	if err != nil {
		return nil, nil, fmt.Errorf("trends request failed: %w", err)
	}
	if res.IsError() {
		return nil, nil, fmt.Errorf("trends request failed: %s", res.Status())
	}

	raw := json.RawMessage(res.Bytes())
	var tags []TrendingTag
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, nil, fmt.Errorf("trends payload invalid: %w", err)
	}
	return tags, raw, nil
}

// PublicTimeline pages through the public timeline. local restricts it
// to statuses originating on this instance.
func (c *Client) PublicTimeline(ctx context.Context, pageLimit, maxPages int, local bool) ([]Status, []json.RawMessage, error) {
	params := map[string]string{"limit": fmt.Sprint(pageLimit)}
	if local {
		params["local"] = "true"
	}
	return c.paginate(ctx, "/api/v1/timelines/public", params, maxPages)
}

// TagTimeline pages through the timeline of one hashtag (no "#").
func (c *Client) TagTimeline(ctx context.Context, tag string, pageLimit, maxPages int) ([]Status, []json.RawMessage, error) {
	params := map[string]string{"limit": fmt.Sprint(pageLimit)}
	return c.paginate(ctx, "/api/v1/timelines/tag/"+url.PathEscape(tag), params, maxPages)
}

// paginate follows the Link rel="next" header, collecting up to maxPages
// pages of statuses. An empty page or a missing next link ends the walk.
func (c *Client) paginate(ctx context.Context, endpoint string, params map[string]string, maxPages int) ([]Status, []json.RawMessage, error) {
	var (
		statuses []Status
		raws     []json.RawMessage
	)

	for page := 0; page < maxPages; page++ {
		res, err := c.r(ctx).SetQueryParams(params).Get(endpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("%s page %d failed: %w", endpoint, page+1, err)
		}
		if res.IsError() {
			return nil, nil, fmt.Errorf("%s page %d failed: %s", endpoint, page+1, res.Status())
		}

		var items []json.RawMessage
		if err := json.Unmarshal(res.Bytes(), &items); err != nil {
			return nil, nil, fmt.Errorf("%s payload invalid: %w", endpoint, err)
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			var st Status
			if err := json.Unmarshal(item, &st); err != nil {
				return nil, nil, fmt.Errorf("%s status invalid: %w", endpoint, err)
			}
			statuses = append(statuses, st)
			raws = append(raws, item)
		}

		maxID := nextMaxID(res.Header().Get("Link"))
		if maxID == "" {
			break
		}
		params["max_id"] = maxID

		if c.pause > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(c.pause):
			}
		}
	}
	return statuses, raws, nil
}

// nextMaxID extracts the max_id cursor from a Link header's rel="next"
// entry. Empty means the walk is done.
func nextMaxID(link string) string {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end <= start {
			return ""
		}
		u, err := url.Parse(part[start+1 : end])
		if err != nil {
			return ""
		}
		return u.Query().Get("max_id")
	}
	return ""
}
