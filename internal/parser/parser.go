package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/manualrag/internal/document"
)

// ErrSourceUnavailable is returned when a manual cannot be opened or read.
var ErrSourceUnavailable = errors.New("source unavailable")

// Options tune partitioning.
type Options struct {
	FirstPage int    // first page kept, 1-based; 0 = from the start
	LastPage  int    // last page kept; 0 = to the end
	ImageDir  string // where a partitioner wrote extracted images
	BaseDir   string // resolves relative paths inside the document

	// PDFTextFallback shells out to pdftotext for pages the PDF library
	// cannot read.
	PDFTextFallback bool
	Log             *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Log == nil {
		return slog.Default()
	}
	return o.Log
}

// keepPage reports whether an element on page falls inside the range.
// Unknown pages are always kept.
func (o Options) keepPage(page int) bool {
	if page < 1 {
		return true
	}
	if o.FirstPage > 0 && page < o.FirstPage {
		return false
	}
	if o.LastPage > 0 && page > o.LastPage {
		return false
	}
	return true
}

// resolve makes a relative path absolute against BaseDir.
func (o Options) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || o.BaseDir == "" {
		return p
	}
	return filepath.Join(o.BaseDir, p)
}

// resolveImage resolves a partitioner's image path, preferring ImageDir.
func (o Options) resolveImage(p string) string {
	if p != "" && !filepath.IsAbs(p) && o.ImageDir != "" {
		return filepath.Join(o.ImageDir, p)
	}
	return o.resolve(p)
}

// Parser converts raw document bytes into an ordered element stream.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, filename string, opts Options) ([]document.Element, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
	".json":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".json":
		return &ElementsParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Parse partitions r with the parser registered for filename. Unsupported
// types and parse failures wrap ErrSourceUnavailable; cancellation is
// returned as is.
func Parse(ctx context.Context, r io.Reader, filename string, opts Options) ([]document.Element, error) {
	p, err := ForFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	elems, err := p.Parse(ctx, r, filename, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, filename, err)
	}
	return elems, nil
}

// ParseFile opens path and partitions it. BaseDir defaults to the file's
// directory.
func ParseFile(ctx context.Context, path string, opts Options) ([]document.Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	if opts.BaseDir == "" {
		opts.BaseDir = filepath.Dir(path)
	}
	return Parse(ctx, f, filepath.Base(path), opts)
}

// writeTemp copies r into a temp file for libraries that need a ReadSeeker
// plus size. The caller removes the returned path.
func writeTemp(r io.Reader, pattern string) (string, int64, error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	size, err := io.Copy(tmp, r)
	tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	return tmp.Name(), size, nil
}
