package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"manual.pdf", false},
		{"manual.PDF", false},
		{"elements.json", false},
		{"notes.markdown", false},
		{"sheet.xlsx", true},
		{"noext", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if IsSupportedExtension(tt.name) == tt.wantErr {
			t.Errorf("IsSupportedExtension(%q) disagrees with ForFile", tt.name)
		}
	}
}

func TestParse_WrapsSourceUnavailableOnce(t *testing.T) {
	for _, name := range []string{"sheet.xlsx", "broken.json"} {
		_, err := Parse(context.Background(), strings.NewReader("not json"), name, Options{})
		if !errors.Is(err, ErrSourceUnavailable) {
			t.Fatalf("%s: expected ErrSourceUnavailable, got %v", name, err)
		}
		if n := strings.Count(err.Error(), ErrSourceUnavailable.Error()); n != 1 {
			t.Errorf("%s: expected one wrap, got %q", name, err)
		}
	}
}

func TestParse_CanceledContextPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, strings.NewReader("1. Intro\n\nbody"), "m.pdf", Options{})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected bare context.Canceled, got %v", err)
	}
}

func TestParseFile_MissingFileIsSourceUnavailable(t *testing.T) {
	_, err := ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), Options{})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestParseFile_MalformedFileIsSourceUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ParseFile(context.Background(), path, Options{})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestParseFile_DefaultsBaseDirToFileDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.json")
	content := `[{"type": "Image", "metadata": {"image_path": "img.png"}}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	elems, err := ParseFile(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elems[0].ImagePath != filepath.Join(dir, "img.png") {
		t.Errorf("expected image path under %s, got %q", dir, elems[0].ImagePath)
	}
}

func TestOptions_KeepPage(t *testing.T) {
	o := Options{FirstPage: 3, LastPage: 5}
	for page, want := range map[int]bool{0: true, 2: false, 3: true, 5: true, 6: false} {
		if got := o.keepPage(page); got != want {
			t.Errorf("keepPage(%d) = %v, want %v", page, got, want)
		}
	}
	if !(Options{}).keepPage(100) {
		t.Error("unbounded options must keep every page")
	}
}
