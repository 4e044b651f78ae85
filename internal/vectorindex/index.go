package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

var (
	// ErrIndexUnavailable is returned when the persisted index cannot be opened.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrModelMismatch is returned when the index was built with a different
	// embedding model than the one in use.
	ErrModelMismatch = errors.New("embedding model mismatch")
)

const (
	typeSection = "section"
	typeManual  = "manual"

	modelKey = "embed_model"
	pageSize = 500
)

// Record is one section stored in the index.
type Record struct {
	ID        string
	DocID     string
	Title     string
	Pages     string // comma-joined sorted page numbers
	Text      string
	Position  int // section order within its manual
	Embedding []float32
}

// Match is a Record returned by a similarity query.
type Match struct {
	Record
	Distance float64 // cosine distance, 0 = identical direction
	Rank     int     // 1-based
}

// Manual describes one ingested document.
type Manual struct {
	DocID      string    `json:"doc_id"`
	Filename   string    `json:"filename"`
	Sections   int       `json:"sections"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Index is the persisted section store. Embeddings and metadata live in a
// bleve index; similarity queries score every stored vector.
type Index struct {
	idx   bleve.Index
	model string
	mu    sync.RWMutex
}

func buildMapping() mapping.IndexMapping {
	keyword := bleve.NewKeywordFieldMapping()

	text := bleve.NewTextFieldMapping()
	text.Store = true

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	stored.Store = true
	stored.IncludeInAll = false
	stored.IncludeTermVectors = false
	stored.DocValues = false

	num := bleve.NewNumericFieldMapping()
	num.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("type", keyword)
	doc.AddFieldMappingsAt("doc_id", keyword)
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("pages", stored)
	doc.AddFieldMappingsAt("embedding", stored)
	doc.AddFieldMappingsAt("filename", stored)
	doc.AddFieldMappingsAt("ingested_at", stored)
	doc.AddFieldMappingsAt("position", num)
	doc.AddFieldMappingsAt("sections", num)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Open opens an existing index at dir. A model recorded in the index must
// equal model.
func Open(dir, model string) (*Index, error) {
	idx, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexUnavailable, dir, err)
	}
	return wrap(idx, model)
}

// OpenOrCreate opens the index at dir, creating it when absent.
func OpenOrCreate(dir, model string) (*Index, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		idx, err := bleve.New(dir, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ErrIndexUnavailable, dir, err)
		}
		return wrap(idx, model)
	}
	return Open(dir, model)
}

// NewMemory creates a non-persistent index.
func NewMemory(model string) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return wrap(idx, model)
}

func wrap(idx bleve.Index, model string) (*Index, error) {
	stored, err := idx.GetInternal([]byte(modelKey))
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("%w: read model: %v", ErrIndexUnavailable, err)
	}
	switch {
	case len(stored) == 0 && model != "":
		if err := idx.SetInternal([]byte(modelKey), []byte(model)); err != nil {
			idx.Close()
			return nil, fmt.Errorf("%w: record model: %v", ErrIndexUnavailable, err)
		}
	case len(stored) > 0 && model != "" && string(stored) != model:
		idx.Close()
		return nil, fmt.Errorf("%w: index built with %q, embedder is %q", ErrModelMismatch, stored, model)
	case len(stored) > 0:
		model = string(stored)
	}
	return &Index{idx: idx, model: model}, nil
}

// Model returns the embedding model the index was built with.
func (x *Index) Model() string {
	return x.model
}

// Close closes the index.
func (x *Index) Close() error {
	return x.idx.Close()
}

func sectionDoc(r Record) (map[string]any, error) {
	vec, err := json.Marshal(r.Embedding)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":      typeSection,
		"doc_id":    r.DocID,
		"title":     r.Title,
		"pages":     r.Pages,
		"text":      r.Text,
		"position":  r.Position,
		"embedding": string(vec),
	}, nil
}

func manualID(docID string) string {
	return "manual:" + docID
}

// Upsert stores records, replacing any with the same ID.
func (x *Index) Upsert(ctx context.Context, records []Record) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	batch := x.idx.NewBatch()
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := sectionDoc(r)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.ID, err)
		}
		if err := batch.Index(r.ID, doc); err != nil {
			return fmt.Errorf("batch %s: %w", r.ID, err)
		}
	}
	return x.idx.Batch(batch)
}

// ReplaceDocument swaps every section of m.DocID for records and writes the
// manual entry, in one batch.
func (x *Index) ReplaceDocument(ctx context.Context, m Manual, records []Record) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	old, err := x.docSectionIDs(m.DocID)
	if err != nil {
		return err
	}

	batch := x.idx.NewBatch()
	for _, id := range old {
		batch.Delete(id)
	}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := sectionDoc(r)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.ID, err)
		}
		if err := batch.Index(r.ID, doc); err != nil {
			return fmt.Errorf("batch %s: %w", r.ID, err)
		}
	}
	m.Sections = len(records)
	if m.IngestedAt.IsZero() {
		m.IngestedAt = time.Now().UTC()
	}
	if err := batch.Index(manualID(m.DocID), map[string]any{
		"type":        typeManual,
		"doc_id":      m.DocID,
		"filename":    m.Filename,
		"sections":    m.Sections,
		"ingested_at": m.IngestedAt.Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("batch manual: %w", err)
	}
	return x.idx.Batch(batch)
}

// DeleteDocument removes a manual and its sections. It returns the number of
// sections removed.
func (x *Index) DeleteDocument(ctx context.Context, docID string) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	ids, err := x.docSectionIDs(docID)
	if err != nil {
		return 0, err
	}
	batch := x.idx.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	batch.Delete(manualID(docID))
	if err := x.idx.Batch(batch); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func termQuery(field, value string) *query.TermQuery {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}

func (x *Index) docSectionIDs(docID string) ([]string, error) {
	q := bleve.NewConjunctionQuery(termQuery("type", typeSection), termQuery("doc_id", docID))
	var ids []string
	err := x.scan(q, nil, func(id string, _ map[string]any) {
		ids = append(ids, id)
	})
	return ids, err
}

// scan pages through every hit of q in ID order.
func (x *Index) scan(q query.Query, fields []string, fn func(id string, fields map[string]any)) error {
	for from := 0; ; from += pageSize {
		req := bleve.NewSearchRequestOptions(q, pageSize, from, false)
		req.Fields = fields
		req.SortBy([]string{"_id"})
		res, err := x.idx.Search(req)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		for _, hit := range res.Hits {
			fn(hit.ID, hit.Fields)
		}
		if len(res.Hits) < pageSize {
			return nil
		}
	}
}

// Count returns the number of stored sections.
func (x *Index) Count() (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(termQuery("type", typeSection), 0, 0, false)
	res, err := x.idx.Search(req)
	if err != nil {
		return 0, err
	}
	return int(res.Total), nil
}

var recordFields = []string{"doc_id", "title", "pages", "text", "position", "embedding"}

func recordFromFields(id string, f map[string]any) Record {
	r := Record{ID: id}
	r.DocID, _ = f["doc_id"].(string)
	r.Title, _ = f["title"].(string)
	r.Pages, _ = f["pages"].(string)
	r.Text, _ = f["text"].(string)
	if pos, ok := f["position"].(float64); ok {
		r.Position = int(pos)
	}
	if vec, ok := f["embedding"].(string); ok {
		_ = json.Unmarshal([]byte(vec), &r.Embedding)
	}
	return r
}

// Query returns the k stored sections nearest to vec by cosine distance,
// closest first. An empty index yields no matches.
func (x *Index) Query(ctx context.Context, vec []float32, k int) ([]Match, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	var matches []Match
	err := x.scan(termQuery("type", typeSection), recordFields, func(id string, f map[string]any) {
		r := recordFromFields(id, f)
		if len(r.Embedding) != len(vec) {
			return
		}
		matches = append(matches, Match{Record: r, Distance: CosineDistance(vec, r.Embedding)})
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches, nil
}

// Keyword runs a full-text query over section titles and bodies.
func (x *Index) Keyword(ctx context.Context, text string, k int) ([]Match, error) {
	if k < 1 {
		k = 5
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	inTitle := bleve.NewMatchQuery(text)
	inTitle.SetField("title")
	inText := bleve.NewMatchQuery(text)
	inText.SetField("text")
	q := bleve.NewConjunctionQuery(termQuery("type", typeSection), bleve.NewDisjunctionQuery(inTitle, inText))

	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = recordFields
	res, err := x.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	matches := make([]Match, 0, len(res.Hits))
	for i, hit := range res.Hits {
		r := recordFromFields(hit.ID, hit.Fields)
		r.Embedding = nil
		matches = append(matches, Match{Record: r, Rank: i + 1})
	}
	return matches, nil
}

// Sections returns the stored sections of one manual in document order.
func (x *Index) Sections(ctx context.Context, docID string) ([]Record, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	q := bleve.NewConjunctionQuery(termQuery("type", typeSection), termQuery("doc_id", docID))
	var out []Record
	err := x.scan(q, recordFields, func(id string, f map[string]any) {
		r := recordFromFields(id, f)
		r.Embedding = nil
		out = append(out, r)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// Manuals lists ingested manuals, newest first.
func (x *Index) Manuals(ctx context.Context) ([]Manual, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []Manual
	err := x.scan(termQuery("type", typeManual), []string{"doc_id", "filename", "sections", "ingested_at"}, func(id string, f map[string]any) {
		m := Manual{}
		m.DocID, _ = f["doc_id"].(string)
		m.Filename, _ = f["filename"].(string)
		if n, ok := f["sections"].(float64); ok {
			m.Sections = int(n)
		}
		if ts, ok := f["ingested_at"].(string); ok {
			m.IngestedAt, _ = time.Parse(time.RFC3339, ts)
		}
		out = append(out, m)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IngestedAt.After(out[j].IngestedAt) })
	return out, nil
}

// CosineDistance is 1 minus the cosine similarity of a and b. Zero vectors
// are maximally distant.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
