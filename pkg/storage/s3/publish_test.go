package s3

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeAPI struct {
	puts map[string]string // key -> content type
}

func (f *fakeAPI) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if _, err := io.ReadAll(in.Body); err != nil {
		return nil, err
	}
	f.puts[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &awss3.PutObjectOutput{}, nil
}

func TestPublishDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"mastodon_posts.csv", "README.md", "mastodon_analysis.xlsx"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	fake := &fakeAPI{puts: make(map[string]string)}
	c := &Client{cfg: Config{Bucket: "b", Prefix: "mastoflow"}, api: fake}

	keys, err := c.PublishDir(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 {
		t.Fatalf("published %d keys, want 3", len(keys))
	}

	for key, ct := range fake.puts {
		if !strings.HasPrefix(key, "mastoflow/") {
			t.Errorf("key %q missing configured prefix", key)
		}
		switch {
		case strings.HasSuffix(key, ".csv") && ct != "text/csv":
			t.Errorf("%s content type = %q", key, ct)
		case strings.HasSuffix(key, ".md") && ct != "text/markdown":
			t.Errorf("%s content type = %q", key, ct)
		}
	}
}

func TestUpload_PrefixOptional(t *testing.T) {
	fake := &fakeAPI{puts: make(map[string]string)}
	c := &Client{cfg: Config{Bucket: "b"}, api: fake}

	if err := c.Upload(context.Background(), "a.csv", "text/csv", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.puts["a.csv"]; !ok {
		t.Errorf("keys = %v, want bare a.csv", fake.puts)
	}
}
