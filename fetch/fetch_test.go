// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bep/loadimage"
	qt "github.com/frankban/quicktest"
)

var testData = []byte("\xff\xd8\xff\xe0 some JPEG bytes")

func TestFileFetcher(t *testing.T) {
	c := qt.New(t)

	filename := filepath.Join(c.TempDir(), "test.jpg")
	c.Assert(os.WriteFile(filename, testData, 0o644), qt.IsNil)

	ctx := context.Background()

	blob, err := FileFetcher{}.Fetch(ctx, filename, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(blob.Data, qt.DeepEquals, testData)
	c.Assert(blob.ContentType, qt.Equals, "image/jpeg")

	blob, err = FileFetcher{}.Fetch(ctx, "file://"+filepath.ToSlash(filename), 4)
	c.Assert(err, qt.IsNil)
	c.Assert(blob.Data, qt.DeepEquals, testData[:4])

	_, err = FileFetcher{}.Fetch(ctx, filepath.Join(c.TempDir(), "missing.jpg"), 0)
	c.Assert(errors.Is(err, os.ErrNotExist), qt.IsTrue)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = FileFetcher{}.Fetch(canceled, filename, 0)
	c.Assert(err, qt.Equals, context.Canceled)
}

func TestHTTPFetcher(t *testing.T) {
	c := qt.New(t)

	var (
		mu                  sync.Mutex
		gotRange, gotHeader string
	)
	requestHeaders := func() (string, string) {
		mu.Lock()
		defer mu.Unlock()
		return gotRange, gotHeader
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotRange = r.Header.Get("Range")
		gotHeader = r.Header.Get("X-Test")
		mu.Unlock()
		switch r.URL.Path {
		case "/ranged.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			http.ServeContent(w, r, "ranged.jpg", time.Time{}, bytes.NewReader(testData))
		case "/full.jpg":
			w.Write(testData)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &HTTPFetcher{Header: http.Header{"X-Test": []string{"foo"}}}
	ctx := context.Background()

	c.Run("Range", func(c *qt.C) {
		blob, err := f.Fetch(ctx, srv.URL+"/ranged.jpg", 6)
		c.Assert(err, qt.IsNil)
		rangeHeader, testHeader := requestHeaders()
		c.Assert(rangeHeader, qt.Equals, "bytes=0-5")
		c.Assert(testHeader, qt.Equals, "foo")
		c.Assert(blob.Data, qt.DeepEquals, testData[:6])
		c.Assert(blob.ContentType, qt.Equals, "image/jpeg")
	})

	c.Run("Range ignored", func(c *qt.C) {
		blob, err := f.Fetch(ctx, srv.URL+"/full.jpg", 6)
		c.Assert(err, qt.IsNil)
		c.Assert(blob.Data, qt.DeepEquals, testData[:6])
	})

	c.Run("Full", func(c *qt.C) {
		blob, err := f.Fetch(ctx, srv.URL+"/ranged.jpg", 0)
		c.Assert(err, qt.IsNil)
		rangeHeader, _ := requestHeaders()
		c.Assert(rangeHeader, qt.Equals, "")
		c.Assert(blob.Data, qt.DeepEquals, testData)
	})

	c.Run("Not found", func(c *qt.C) {
		_, err := f.Fetch(ctx, srv.URL+"/missing.jpg", 0)
		c.Assert(err, qt.ErrorMatches, `fetch: GET .*/missing.jpg: unexpected status 404 Not Found`)
	})
}

func TestMux(t *testing.T) {
	c := qt.New(t)

	filename := filepath.Join(c.TempDir(), "test.jpg")
	c.Assert(os.WriteFile(filename, testData, 0o644), qt.IsNil)

	m := NewMux()
	ctx := context.Background()

	blob, err := m.Fetch(ctx, filename, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(blob.Data, qt.DeepEquals, testData)

	_, err = m.Fetch(ctx, "s3://bucket/key.jpg", 0)
	c.Assert(errors.Is(err, ErrUnsupportedScheme), qt.IsTrue)

	m.Handle("mem", memFetcher{})
	blob, err = m.Fetch(ctx, "MEM://foo", 0)
	c.Assert(err, qt.IsNil)
	c.Assert(string(blob.Data), qt.Equals, "MEM://foo")
}

func TestParseS3URL(t *testing.T) {
	c := qt.New(t)

	bucket, key, err := parseS3URL("s3://images/a/b/c.jpg")
	c.Assert(err, qt.IsNil)
	c.Assert(bucket, qt.Equals, "images")
	c.Assert(key, qt.Equals, "a/b/c.jpg")

	_, _, err = parseS3URL("s3://images/")
	c.Assert(err, qt.ErrorMatches, `fetch: invalid S3 URL .*`)

	_, _, err = parseS3URL("https://images/a.jpg")
	c.Assert(errors.Is(err, ErrUnsupportedScheme), qt.IsTrue)
}

func TestNewS3Fetcher(t *testing.T) {
	c := qt.New(t)

	_, err := NewS3Fetcher(S3Config{Endpoint: "localhost:9000"})
	c.Assert(err, qt.ErrorMatches, `(?s)fetch: incomplete S3 config: .*`)

	f, err := NewS3Fetcher(S3Config{
		Endpoint:       "https://s3.example.org",
		AccessKey:      "key",
		SecretKey:      "secret",
		ForcePathStyle: true,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(f.client.EndpointURL().Host, qt.Equals, "s3.example.org")
	c.Assert(f.client.EndpointURL().Scheme, qt.Equals, "https")
	c.Assert(f.timeout > 0, qt.IsTrue)
}

type memFetcher struct{}

func (memFetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) (loadimage.Blob, error) {
	return loadimage.Blob{Data: []byte(rawURL)}, nil
}
