package s3

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var contentTypes = map[string]string{
	".csv":  "text/csv",
	".md":   "text/markdown",
	".json": "application/json",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// PublishDir uploads every regular file in dir under a dated key prefix
// and returns the keys written, e.g. "2024-11-28/mastodon_posts.csv".
func (c *Client) PublishDir(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	datePrefix := time.Now().Format("2006-01-02")
	log := logrus.WithField("component", "publish")

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var keys []string
	for _, name := range names {
		file, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return keys, err
		}

		ct := contentTypes[strings.ToLower(filepath.Ext(name))]
		if ct == "" {
			ct = "application/octet-stream"
		}
		key := datePrefix + "/" + name
		err = c.Upload(ctx, key, ct, file)
		file.Close()
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
		log.WithField("key", key).Debug("uploaded")
	}

	log.WithFields(logrus.Fields{"bucket": c.cfg.Bucket, "files": len(keys)}).
		Info("bundle published")
	return keys, nil
}
