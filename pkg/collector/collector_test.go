package collector

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func status(id, tag string) string {
	tags := "[]"
	if tag != "" {
		tags = fmt.Sprintf(`[{"name":%q,"url":"https://example.social/tags/%s"}]`, tag, tag)
	}
	return fmt.Sprintf(`{
		"id": %q,
		"created_at": "2024-11-28T18:30:42.000Z",
		"language": "de",
		"visibility": "public",
		"replies_count": 1,
		"reblogs_count": 2,
		"favourites_count": 3,
		"spoiler_text": "",
		"content": "hello",
		"in_reply_to_id": null,
		"reblog": null,
		"poll": null,
		"card": {"url": "https://example.com"},
		"media_attachments": [],
		"mentions": [],
		"tags": %s,
		"account": {
			"id": "a1", "username": "tester",
			"followers_count": 10, "following_count": 20, "statuses_count": 30
		}
	}`, id, tags)
}

// fakeInstance serves just enough of the Mastodon v1 API for a run.
func fakeInstance(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/instance", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"uri":"example.social","title":"Example",
			"stats":{"user_count":1500,"status_count":90000,"domain_count":12000}}`)
	})

	mux.HandleFunc("/api/v1/trends/tags", func(w http.ResponseWriter, r *http.Request) {
		// History counts arrive as strings.
		fmt.Fprint(w, `[{"name":"fediverse","url":"https://example.social/tags/fediverse",
			"history":[{"day":"1732752000","uses":"60","accounts":"50"},
			           {"day":"1732665600","uses":"40","accounts":"30"}]}]`)
	})

	mux.HandleFunc("/api/v1/timelines/public", func(w http.ResponseWriter, r *http.Request) {
		prefix := "pub"
		if r.URL.Query().Get("local") == "true" {
			prefix = "loc"
		}
		if r.URL.Query().Get("max_id") == "" {
			w.Header().Set("Link",
				fmt.Sprintf(`<http://example/api/v1/timelines/public?max_id=%s1>; rel="next"`, prefix))
			fmt.Fprintf(w, "[%s,%s]", status(prefix+"1", ""), status(prefix+"2", ""))
			return
		}
		fmt.Fprintf(w, "[%s]", status(prefix+"3", ""))
	})

	mux.HandleFunc("/api/v1/timelines/tag/", func(w http.ResponseWriter, r *http.Request) {
		tag := strings.TrimPrefix(r.URL.Path, "/api/v1/timelines/tag/")
		fmt.Fprintf(w, "[%s]", status(tag+"-1", tag))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := NewClient(srv.URL, "")
	c.SetPause(0)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPaginate_FollowsLinkHeader(t *testing.T) {
	srv := fakeInstance(t)
	c := testClient(t, srv)

	statuses, raws, err := c.PublicTimeline(context.Background(), 40, 5, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 3 || len(raws) != 3 {
		t.Fatalf("expected 3 statuses over 2 pages, got %d", len(statuses))
	}
	if statuses[2].ID != "pub3" {
		t.Errorf("last status = %q, want pub3", statuses[2].ID)
	}
}

func TestPaginate_StopsAtMaxPages(t *testing.T) {
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		w.Header().Set("Link", `<http://example/x?max_id=9>; rel="next"`)
		fmt.Fprintf(w, "[%s]", status(fmt.Sprint(pages), ""))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	statuses, _, err := c.PublicTimeline(context.Background(), 40, 2, false)
	if err != nil {
		t.Fatal(err)
	}
	if pages != 2 || len(statuses) != 2 {
		t.Errorf("pages = %d, statuses = %d, want 2 and 2", pages, len(statuses))
	}
}

func TestNextMaxID(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{`<https://m.s/api/v1/timelines/public?max_id=123>; rel="next", <https://m.s/x?min_id=9>; rel="prev"`, "123"},
		{`<https://m.s/x?min_id=9>; rel="prev"`, ""},
		{"", ""},
		{`garbage`, ""},
	}
	for _, tt := range tests {
		if got := nextMaxID(tt.link); got != tt.want {
			t.Errorf("nextMaxID(%q) = %q, want %q", tt.link, got, tt.want)
		}
	}
}

func TestRun_WritesAllFamilies(t *testing.T) {
	srv := fakeInstance(t)
	c := testClient(t, srv)

	dir := t.TempDir()
	col := New(c, dir)
	col.now = func() time.Time {
		return time.Date(2024, 11, 28, 18, 30, 42, 0, time.UTC)
	}

	sum, err := col.Run(context.Background(), RunOptions{
		Hashtags:  []string{"golang", "fediverse"},
		PageLimit: 40,
		MaxPages:  5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.CollectionTimestamp != "20241128_183042" {
		t.Errorf("timestamp = %q", sum.CollectionTimestamp)
	}

	wantFiles := []string{
		"instance_info_20241128_183042.json",
		"instance_stats_20241128_183042.csv",
		"trending_tags_20241128_183042.json",
		"trending_tags_20241128_183042.csv",
		"public_timeline_20241128_183042.json",
		"posts_analysis_20241128_183042.csv",
		"local_timeline_20241128_183042.json",
		"local_posts_20241128_183042.csv",
		"hashtag_posts_20241128_183042.json",
		"hashtag_analysis_20241128_183042.csv",
		"collection_summary_20241128_183042.json",
	}
	for _, name := range wantFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s", name)
		}
	}

	if sum.PublicPosts != 3 || sum.LocalPosts != 3 {
		t.Errorf("post counts = %d public / %d local, want 3 / 3", sum.PublicPosts, sum.LocalPosts)
	}
	// Two hashtags, one post each, merged in configured order.
	if sum.HashtagPosts != 2 {
		t.Errorf("hashtag posts = %d, want 2", sum.HashtagPosts)
	}
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestRun_CSVContents(t *testing.T) {
	srv := fakeInstance(t)
	c := testClient(t, srv)

	dir := t.TempDir()
	col := New(c, dir)
	col.now = func() time.Time {
		return time.Date(2024, 11, 28, 18, 30, 42, 0, time.UTC)
	}

	if _, err := col.Run(context.Background(), RunOptions{
		Hashtags: []string{"golang"}, PageLimit: 40, MaxPages: 5,
	}); err != nil {
		t.Fatal(err)
	}

	// Weighted engagement: 1 reply + 2*2 reblogs + 3 favourites.
	rows := readCSVFile(t, filepath.Join(dir, "hashtag_analysis_20241128_183042.csv"))
	if len(rows) != 2 {
		t.Fatalf("hashtag CSV rows = %d, want header + 1", len(rows))
	}
	if rows[1][0] != "golang" || rows[1][4] != "8" {
		t.Errorf("hashtag row = %v", rows[1])
	}

	// Unweighted engagement for local posts: 1 + 2 + 3.
	rows = readCSVFile(t, filepath.Join(dir, "local_posts_20241128_183042.csv"))
	if rows[1][4] != "6" {
		t.Errorf("local engagement_total = %q, want 6", rows[1][4])
	}

	// Public rows derive hour and weekday from created_at.
	rows = readCSVFile(t, filepath.Join(dir, "posts_analysis_20241128_183042.csv"))
	header := rows[0]
	idx := map[string]int{}
	for i, h := range header {
		idx[h] = i
	}
	if rows[1][idx["hour_of_day"]] != "18" || rows[1][idx["day_of_week"]] != "Thursday" {
		t.Errorf("derived time fields = %q / %q",
			rows[1][idx["hour_of_day"]], rows[1][idx["day_of_week"]])
	}
	if rows[1][idx["url_count"]] != "1" {
		t.Errorf("url_count = %q, want 1", rows[1][idx["url_count"]])
	}

	// Trending counts sum the (string-typed) history values.
	rows = readCSVFile(t, filepath.Join(dir, "trending_tags_20241128_183042.csv"))
	if rows[1][2] != "100" || rows[1][3] != "60" || rows[1][4] != "40" {
		t.Errorf("trending row = %v", rows[1])
	}
}
