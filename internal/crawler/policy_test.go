package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/hyperscrape/internal/model"
)

func TestPolicyIsExcludedPath(t *testing.T) {
	t.Parallel()

	p := NewPolicy()

	tests := []struct {
		path string
		want bool
	}{
		{"node_modules/b.js", true},
		{"a/node_modules/b.js", true},
		{"a/b/c/node_modules", true},
		{".git/config", true},
		{"src/.git/HEAD", true},
		{"b.js", false},
		{"my_node_modules/b.js", false},
		{"docs/.gitignore", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			if got := p.IsExcludedPath(tt.path); got != tt.want {
				t.Errorf("IsExcludedPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestPolicyIsScrapable(t *testing.T) {
	t.Parallel()

	p := NewPolicy()

	tests := []struct {
		path string
		want bool
	}{
		{"index.htm", true},
		{"index.html", true},
		{"README.md", true},
		{"feed.xml", true},
		{"dat.json", true},
		{"app.js", true},
		{"style.css", true},
		{"docs/INDEX.HTML", true},
		{"b.bin", false},
		{"image.png", false},
		{"Makefile", false},
		{"node_modules/c.js", false},
		{"a/node_modules/b.js", false},
		{".git/description.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			if got := p.IsScrapable(tt.path); got != tt.want {
				t.Errorf("IsScrapable(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestPolicyFilterScrapable(t *testing.T) {
	t.Parallel()

	p := NewPolicy()
	entries := []string{"a.html", "b.bin", "node_modules/c.js", "d/e.md", "d"}

	got := p.FilterScrapable(entries)
	want := []string{"a.html", "d/e.md"}
	if len(got) != len(want) {
		t.Fatalf("FilterScrapable() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPolicyOptions(t *testing.T) {
	t.Parallel()

	t.Run("custom extensions without dot", func(t *testing.T) {
		t.Parallel()

		p := NewPolicy(WithExtensions([]string{"txt", ".CSV"}))
		if !p.IsScrapable("notes.txt") || !p.IsScrapable("data.csv") {
			t.Error("custom extensions should be scrapable")
		}
		if p.IsScrapable("index.html") {
			t.Error("default extensions should be replaced")
		}
	})

	t.Run("custom exclusions", func(t *testing.T) {
		t.Parallel()

		p := NewPolicy(WithExclusions([]string{"vendor"}))
		if !p.IsExcludedPath("x/vendor/y.js") {
			t.Error("vendor should be excluded")
		}
		if p.IsExcludedPath("node_modules/y.js") {
			t.Error("default exclusions should be replaced")
		}
	})

	t.Run("ignore patterns", func(t *testing.T) {
		t.Parallel()

		p := NewPolicy(WithIgnorePatterns([]string{"drafts/*", "*.min.js", "/private.md"}))
		tests := []struct {
			path string
			want bool
		}{
			{"drafts/a.md", false},
			{"drafts/sub/b.md", false},
			{"assets/app.min.js", false},
			{"private.md", false},
			{"assets/app.js", true},
			{"published/a.md", true},
		}
		for _, tt := range tests {
			if got := p.IsScrapable(tt.path); got != tt.want {
				t.Errorf("IsScrapable(%q) = %v, want %v", tt.path, got, tt.want)
			}
		}
	})

	t.Run("image metadata is opt-in", func(t *testing.T) {
		t.Parallel()

		off := NewPolicy()
		if off.IsMetadataScrapable("photo.jpg") {
			t.Error("metadata scraping should be off by default")
		}
		if got := off.FilterMetadata([]string{"photo.jpg"}); got != nil {
			t.Errorf("FilterMetadata() = %v, want nil", got)
		}

		on := NewPolicy(WithImageMetadata(true))
		got := on.FilterMetadata([]string{"photo.JPG", "scan.tiff", "a.html", "node_modules/x.jpg"})
		if len(got) != 2 || got[0] != "photo.JPG" || got[1] != "scan.tiff" {
			t.Errorf("FilterMetadata() = %v", got)
		}
	})
}

func TestFilterMounts(t *testing.T) {
	t.Parallel()

	k2 := testKey('2')
	k3 := testKey('3')
	errStat := errors.New("stat failed")

	stat := func(_ context.Context, entry string) (model.Stat, error) {
		switch entry {
		case "mnt/two":
			return model.Stat{Mount: &model.Mount{Key: k2}}, nil
		case "broken":
			return model.Stat{}, errStat
		case "mnt/three":
			return model.Stat{Mount: &model.Mount{Key: k3}}, nil
		default:
			return model.Stat{}, nil
		}
	}

	keys, failures := FilterMounts(context.Background(), []string{"a.html", "mnt/two", "broken", "mnt/three"}, stat)

	if len(keys) != 2 || keys[0] != k2 || keys[1] != k3 {
		t.Errorf("FilterMounts() keys = %v", keys)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if failures[0].Kind != KindStat || failures[0].Path != "broken" || !errors.Is(failures[0], errStat) {
		t.Errorf("unexpected failure: %+v", failures[0])
	}
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"drafts/*", "drafts/a.md", true},
		{"drafts/*", "drafts", true},
		{"drafts/*", "other/a.md", false},
		{"*.min.js", "deep/dir/x.min.js", true},
		{"secret?.md", "secret1.md", true},
		{"secret?.md", "dir/secret2.md", true},
		{"a/b.md", "a/b.md", true},
		{"a/b.md", "c/a/b.md", false},
		{"[", "anything", false},
	}

	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}

func TestMetadataTextWithoutExif(t *testing.T) {
	t.Parallel()

	if got := MetadataText([]byte("plain text, not an image")); got != "" {
		t.Errorf("MetadataText() = %q, want empty", got)
	}
	if got := MetadataText(nil); got != "" {
		t.Errorf("MetadataText(nil) = %q, want empty", got)
	}
}
