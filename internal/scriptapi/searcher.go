// Package scriptapi searches a local copy of the YouTrack scripting API package
// for documentation and code the generator can show to the model.
package scriptapi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/spf13/afero"

	"github.com/josephgoksu/ytflow/internal/utils"
)

// Snippet types.
const (
	TypeCommentWithCode = "comment_with_code"
	TypeCode            = "code"
	TypeIndexed         = "indexed"
)

const (
	linesAfterComment = 10
	contextLines      = 5
)

// Snippet is one search hit.
type Snippet struct {
	File      string  `json:"file"`
	FilePath  string  `json:"file_path"`
	Line      int     `json:"line"`
	Code      string  `json:"code"`
	Relevance float64 `json:"relevance"`
	Score     float64 `json:"score,omitempty"` // BM25 score of the hit's chunk
	Type      string  `json:"type"`
}

// Searcher scans the *.js files under an API directory.
// File contents are cached after the first read.
type Searcher struct {
	fs  afero.Fs
	dir string

	mu    sync.Mutex
	cache map[string][]string
	files []string
	index bleve.Index
}

// NewSearcher creates a searcher over dir. A missing directory is not an
// error: searches log a warning and return nothing.
func NewSearcher(fs afero.Fs, dir string) *Searcher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Searcher{fs: fs, dir: dir, cache: make(map[string][]string)}
}

// Dir returns the API directory.
func (s *Searcher) Dir() string { return s.dir }

// Available reports whether the API directory exists.
func (s *Searcher) Available() bool {
	ok, err := afero.DirExists(s.fs, s.dir)
	return err == nil && ok
}

// Search returns snippets matching any whitespace-separated term of query.
// Hits are ordered by the number of terms they contain, then by the BM25
// score of their chunk. When the line scan finds nothing the query is run
// against the BM25 index alone.
func (s *Searcher) Search(ctx context.Context, query string) ([]Snippet, error) {
	terms := utils.Words(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if !s.Available() {
		slog.Debug("scripting API directory not found", "dir", s.dir)
		return nil, nil
	}

	files, err := s.jsFiles()
	if err != nil {
		return nil, err
	}

	var results []Snippet
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines, err := s.lines(path)
		if err != nil {
			return nil, err
		}
		results = append(results, scanFile(path, lines, terms)...)
	}

	if len(results) == 0 {
		return s.searchIndex(query, 10)
	}

	if err := s.scoreHits(query, results); err != nil {
		slog.Warn("BM25 ranking skipped", "error", err)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// scoreHits sets Score on every hit from a BM25 query restricted to the
// chunks the hits fall in.
func (s *Searcher) scoreHits(query string, hits []Snippet) error {
	idx, _, err := s.buildIndex()
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, h := range hits {
		id := chunkID(h.FilePath, h.Line)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	q := bleve.NewConjunctionQuery(bleve.NewMatchQuery(query), bleve.NewDocIDQuery(ids))
	res, err := idx.Search(bleve.NewSearchRequestOptions(q, len(ids), 0, false))
	if err != nil {
		return fmt.Errorf("bleve search: %w", err)
	}
	scores := make(map[string]float64, len(res.Hits))
	for _, hit := range res.Hits {
		scores[hit.ID] = hit.Score
	}
	for i := range hits {
		hits[i].Score = scores[chunkID(hits[i].FilePath, hits[i].Line)]
	}
	return nil
}

func (s *Searcher) jsFiles() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files != nil {
		return s.files, nil
	}

	var files []string
	err := afero.Walk(s.fs, s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".js") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk scripting API dir: %w", err)
	}
	sort.Strings(files)
	s.files = files
	return files, nil
}

func (s *Searcher) lines(path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.cache[path]; ok {
		return l, nil
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	l := strings.Split(string(data), "\n")
	s.cache[path] = l
	return l, nil
}

// scanFile walks one file line by line. A JSDoc block that mentions a term
// yields the block plus the code right after it; any other line that
// mentions a term yields the surrounding lines.
func scanFile(path string, lines, terms []string) []Snippet {
	var out []Snippet
	var block []string
	blockStart := 0
	inComment := false

	for i, line := range lines {
		closed := false
		switch {
		case strings.Contains(line, "/**"):
			inComment = true
			block = []string{line}
			blockStart = i
			open := strings.Index(line, "/**")
			if strings.Contains(line[open+3:], "*/") {
				inComment = false
				closed = true
			}
		case strings.Contains(line, "*/") && inComment:
			inComment = false
			block = append(block, line)
			closed = true
		case inComment:
			block = append(block, line)
		}

		if closed {
			if rel := countTerms(strings.ToLower(strings.Join(block, "\n")), terms); rel > 0 {
				code := append([]string{}, block...)
				end := min(i+1+linesAfterComment, len(lines))
				code = append(code, lines[i+1:end]...)
				out = append(out, Snippet{
					File:      filepath.Base(path),
					FilePath:  path,
					Line:      blockStart + 1,
					Code:      strings.Join(code, "\n"),
					Relevance: float64(rel),
					Type:      TypeCommentWithCode,
				})
			}
			block = nil
		}

		if inComment {
			continue
		}
		if rel := countTerms(strings.ToLower(line), terms); rel > 0 {
			start := max(0, i-contextLines)
			end := min(len(lines), i+contextLines+1)
			out = append(out, Snippet{
				File:      filepath.Base(path),
				FilePath:  path,
				Line:      i + 1,
				Code:      strings.Join(lines[start:end], "\n"),
				Relevance: float64(rel),
				Type:      TypeCode,
			})
		}
	}
	return out
}

func countTerms(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

type indexedChunk struct {
	File string
	Line int
	Code string
}

// searchIndex runs a match query over 40-line chunks of every file.
func (s *Searcher) searchIndex(query string, k int) ([]Snippet, error) {
	idx, chunks, err := s.buildIndex()
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), k, 0, false)
	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	out := make([]Snippet, 0, len(res.Hits))
	for _, hit := range res.Hits {
		c, ok := chunks[hit.ID]
		if !ok {
			continue
		}
		out = append(out, Snippet{
			File:      filepath.Base(c.File),
			FilePath:  c.File,
			Line:      c.Line,
			Code:      c.Code,
			Relevance: hit.Score,
			Score:     hit.Score,
			Type:      TypeIndexed,
		})
	}
	return out, nil
}

const chunkLines = 40

// chunkID names the indexed chunk that holds the 1-based line.
func chunkID(path string, line int) string {
	start := (line-1)/chunkLines*chunkLines + 1
	return fmt.Sprintf("%s:%d", path, start)
}

func (s *Searcher) buildIndex() (bleve.Index, map[string]indexedChunk, error) {
	files, err := s.jsFiles()
	if err != nil {
		return nil, nil, err
	}

	chunks := make(map[string]indexedChunk)
	for _, path := range files {
		lines, err := s.lines(path)
		if err != nil {
			return nil, nil, err
		}
		for start := 0; start < len(lines); start += chunkLines {
			end := min(start+chunkLines, len(lines))
			id := chunkID(path, start+1)
			chunks[id] = indexedChunk{File: path, Line: start + 1, Code: strings.Join(lines[start:end], "\n")}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return s.index, chunks, nil
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, nil, fmt.Errorf("create bleve index: %w", err)
	}
	for id, c := range chunks {
		if err := idx.Index(id, c); err != nil {
			return nil, nil, fmt.Errorf("index %s: %w", id, err)
		}
	}
	s.index = idx
	return idx, chunks, nil
}

// Close releases the BM25 index, if one was built.
func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}
