// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package fetch provides loadimage.Fetcher implementations for local files,
// HTTP and S3 compatible object storage.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bep/loadimage"
)

var (
	_ loadimage.Fetcher = (*Mux)(nil)
	_ loadimage.Fetcher = FileFetcher{}
	_ loadimage.Fetcher = (*HTTPFetcher)(nil)
	_ loadimage.Fetcher = (*S3Fetcher)(nil)
)

// ErrUnsupportedScheme is returned by Mux for a URL scheme with no registered Fetcher.
var ErrUnsupportedScheme = errors.New("fetch: unsupported URL scheme")

// Mux dispatches to a Fetcher by URL scheme.
// A URL without a scheme is treated as a file path.
type Mux struct {
	fetchers map[string]loadimage.Fetcher
}

// NewMux returns a Mux with a FileFetcher for "file" and a
// default HTTPFetcher for "http" and "https".
func NewMux() *Mux {
	m := &Mux{fetchers: make(map[string]loadimage.Fetcher)}
	m.Handle("file", FileFetcher{})
	httpFetcher := &HTTPFetcher{}
	m.Handle("http", httpFetcher)
	m.Handle("https", httpFetcher)
	return m
}

// Handle registers f for scheme.
func (m *Mux) Handle(scheme string, f loadimage.Fetcher) {
	m.fetchers[strings.ToLower(scheme)] = f
}

// Fetch implements loadimage.Fetcher.
func (m *Mux) Fetch(ctx context.Context, rawURL string, maxBytes int64) (loadimage.Blob, error) {
	scheme := "file"
	if u, err := url.Parse(rawURL); err == nil && len(u.Scheme) > 1 {
		scheme = strings.ToLower(u.Scheme)
	}
	f, found := m.fetchers[scheme]
	if !found {
		return loadimage.Blob{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return f.Fetch(ctx, rawURL, maxBytes)
}

// FileFetcher reads from the local file system.
// It accepts plain paths and file URLs.
type FileFetcher struct{}

// Fetch implements loadimage.Fetcher.
func (FileFetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) (loadimage.Blob, error) {
	if err := ctx.Err(); err != nil {
		return loadimage.Blob{}, err
	}

	filename := rawURL
	if strings.HasPrefix(rawURL, "file:") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return loadimage.Blob{}, err
		}
		filename = filepath.FromSlash(u.Path)
	}

	f, err := os.Open(filename)
	if err != nil {
		return loadimage.Blob{}, err
	}
	defer f.Close()

	return readBlob(f, maxBytes, "")
}

// HTTPFetcher fetches over HTTP(S).
// A prefix is requested with a Range header; servers that ignore it
// are read up to the prefix size only.
type HTTPFetcher struct {
	// Client defaults to a client with a 30 second timeout.
	Client *http.Client

	// Header is added to each request.
	Header http.Header
}

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// Fetch implements loadimage.Fetcher.
func (h *HTTPFetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) (loadimage.Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return loadimage.Blob{}, err
	}
	for k, vv := range h.Header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	if maxBytes > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", maxBytes-1))
	}

	client := h.Client
	if client == nil {
		client = defaultHTTPClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return loadimage.Blob{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	default:
		return loadimage.Blob{}, fmt.Errorf("fetch: GET %s: unexpected status %s", rawURL, resp.Status)
	}

	return readBlob(resp.Body, maxBytes, resp.Header.Get("Content-Type"))
}

func readBlob(r io.Reader, maxBytes int64, contentType string) (loadimage.Blob, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return loadimage.Blob{}, err
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(b)
	}
	return loadimage.Blob{Data: b, ContentType: contentType}, nil
}
