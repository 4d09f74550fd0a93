package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nao1215/hyperscrape/internal/crawler"
)

var (
	keyA = strings.Repeat("a", 64)
	keyB = strings.Repeat("b", 64)
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		uri      string
		wantKind Kind
		wantKey  string
		wantURL  string
		wantErr  bool
	}{
		{name: "http url", uri: "http://example.com/list.html", wantKind: KindHTTP, wantURL: "http://example.com/list.html"},
		{name: "https url uppercase scheme", uri: "HTTPS://example.com", wantKind: KindHTTP, wantURL: "HTTPS://example.com"},
		{name: "hyper address", uri: "hyper://" + keyA, wantKind: KindDrive, wantKey: keyA},
		{name: "hyper address with path", uri: "hyper://" + keyA + "/index.html", wantKind: KindDrive, wantKey: keyA},
		{name: "bare key", uri: keyB, wantKind: KindDrive, wantKey: keyB},
		{name: "bare key with whitespace", uri: " " + keyB + " ", wantKind: KindDrive, wantKey: keyB},
		{name: "bare key with path", uri: keyA + "/index.html", wantKind: KindDrive, wantKey: keyA},
		{name: "bare key with trailing hex", uri: keyA + "ff", wantKind: KindDrive, wantKey: keyA},
		{name: "short hyper address", uri: "hyper://abc", wantErr: true},
		{name: "ftp url", uri: "ftp://example.com", wantErr: true},
		{name: "garbage", uri: "hello", wantErr: true},
		{name: "uppercase key", uri: strings.ToUpper(keyA), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := Classify(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedSeed) {
					t.Errorf("expected ErrUnsupportedSeed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", s.Kind, tt.wantKind)
			}
			if s.Key.String() != tt.wantKey {
				t.Errorf("Key = %q, want %q", s.Key, tt.wantKey)
			}
			if s.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", s.URL, tt.wantURL)
			}
		})
	}
}

func TestClassifyAll(t *testing.T) {
	t.Parallel()

	t.Run("splits keys and urls in order", func(t *testing.T) {
		t.Parallel()

		keys, urls := ClassifyAll([]string{"https://a.example", keyA, "hyper://" + keyB, "http://b.example"}, nil)
		if len(keys) != 2 || keys[0].String() != keyA || keys[1].String() != keyB {
			t.Errorf("keys = %v", keys)
		}
		if len(urls) != 2 || urls[0] != "https://a.example" || urls[1] != "http://b.example" {
			t.Errorf("urls = %v", urls)
		}
	})

	t.Run("invalid seeds are dropped and logged", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

		keys, urls := ClassifyAll([]string{keyA, "not-a-key", "ftp://example.com", keyB + "/docs"}, logger)
		if len(keys) != 2 || keys[0].String() != keyA || keys[1].String() != keyB {
			t.Errorf("valid seeds must survive invalid neighbours: %v", keys)
		}
		if len(urls) != 0 {
			t.Errorf("urls = %v", urls)
		}
		if got := strings.Count(buf.String(), "ignoring invalid seed"); got != 2 {
			t.Errorf("expected 2 warnings, got %d:\n%s", got, buf.String())
		}
		if !strings.Contains(buf.String(), "not-a-key") {
			t.Errorf("warning should name the seed:\n%s", buf.String())
		}
	})

	t.Run("only invalid seeds", func(t *testing.T) {
		t.Parallel()

		keys, urls := ClassifyAll([]string{"nope"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if len(keys) != 0 || len(urls) != 0 {
			t.Errorf("keys = %v, urls = %v", keys, urls)
		}
	})

	if KindDrive.String() != "drive" || KindHTTP.String() != "http" || Kind(7).String() != "unknown" {
		t.Error("unexpected Kind.String() output")
	}
}

func TestFetcherScrape(t *testing.T) {
	t.Parallel()

	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/list.html":
			gotAgent = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, `<a href="hyper://%s">a</a> <a href="hyper://%s">b</a> hyper://%s <a href="/next.html">next</a>`, keyA, keyB, keyA)
		case "/latin1":
			w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
			_, _ = w.Write(append([]byte("caf\xe9 hyper://"), []byte(keyB)...))
		case "/big":
			fmt.Fprintf(w, "%s hyper://%s", strings.Repeat("x", 100), keyA)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	f := NewFetcher(server.Client(), WithUserAgent("test-agent"))

	t.Run("keys in order without duplicates", func(t *testing.T) {
		keys, err := f.Scrape(ctx, server.URL+"/list.html")
		if err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}
		if len(keys) != 2 || keys[0].String() != keyA || keys[1].String() != keyB {
			t.Errorf("keys = %v", keys)
		}
		if gotAgent != "test-agent" {
			t.Errorf("User-Agent = %q", gotAgent)
		}
	})

	t.Run("non utf-8 body", func(t *testing.T) {
		keys, err := f.Scrape(ctx, server.URL+"/latin1")
		if err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}
		if len(keys) != 1 || keys[0].String() != keyB {
			t.Errorf("keys = %v", keys)
		}
	})

	t.Run("body limit", func(t *testing.T) {
		small := NewFetcher(server.Client(), WithMaxBodySize(50))
		keys, err := small.Scrape(ctx, server.URL+"/big")
		if err != nil {
			t.Fatalf("Scrape() error = %v", err)
		}
		if len(keys) != 0 {
			t.Errorf("address past the body limit should not be found: %v", keys)
		}
	})

	t.Run("http error is a fetch error", func(t *testing.T) {
		_, err := f.Scrape(ctx, server.URL+"/missing")
		var opErr *crawler.OpError
		if !errors.As(err, &opErr) || opErr.Kind != crawler.KindFetch {
			t.Fatalf("expected fetch OpError, got %v", err)
		}
		if opErr.Path != server.URL+"/missing" {
			t.Errorf("Path = %q", opErr.Path)
		}
	})
}

func TestFetcherScrapeAll(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			fmt.Fprintf(w, "hyper://%s", keyA)
		case "/b":
			fmt.Fprintf(w, "hyper://%s", keyB)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), WithConcurrency(2))
	urls := []string{server.URL + "/a", server.URL + "/fail", server.URL + "/b"}
	results := f.ScrapeAll(context.Background(), urls)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil || len(results[0].Keys) != 1 || results[0].Keys[0].String() != keyA {
		t.Errorf("result a = %+v", results[0])
	}
	if results[1].Err == nil {
		t.Error("failing URL should carry an error")
	}
	if results[2].Err != nil || len(results[2].Keys) != 1 || results[2].Keys[0].String() != keyB {
		t.Errorf("result b = %+v", results[2])
	}
	for i, r := range results {
		if r.URL != urls[i] {
			t.Errorf("result %d URL = %q, want %q", i, r.URL, urls[i])
		}
	}
}
