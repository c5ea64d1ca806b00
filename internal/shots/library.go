// Package shots holds the library of example workflow scripts ("code shots")
// shown to the model as few-shot examples.
package shots

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/josephgoksu/ytflow/internal/utils"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Shot is one example script.
type Shot struct {
	ID          string   `yaml:"id" json:"id" validate:"required"`
	Title       string   `yaml:"title" json:"title" validate:"required"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags" json:"tags"`
	Code        string   `yaml:"code" json:"code" validate:"required"`
	Relevance   int      `yaml:"-" json:"relevance,omitempty"`
}

var validate = validator.New()

// Library is an immutable set of shots.
type Library struct {
	shots    []Shot
	source   string
	semantic *Reranker
}

// Defaults returns the built-in library.
func Defaults() *Library {
	shots, err := parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded shots: %v", err))
	}
	return &Library{shots: shots, source: "builtin"}
}

// Load reads a YAML or JSON shot file. An empty path, a missing file, or a
// file that fails to parse or validate yields the built-in library; the
// failure is logged, not returned.
func Load(fs afero.Fs, path string) *Library {
	if path == "" {
		return Defaults()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if !errors.Is(err, afero.ErrFileNotFound) {
			slog.Warn("read shots file, using built-in shots", "path", path, "error", err)
		}
		return Defaults()
	}
	shots, err := parse(data)
	if err != nil {
		slog.Warn("invalid shots file, using built-in shots", "path", path, "error", err)
		return Defaults()
	}
	return &Library{shots: shots, source: path}
}

// parse decodes a list of shots. JSON is valid YAML, so one decoder reads both.
func parse(data []byte) ([]Shot, error) {
	var shots []Shot
	if err := yaml.Unmarshal(data, &shots); err != nil {
		return nil, fmt.Errorf("decode shots: %w", err)
	}
	if len(shots) == 0 {
		return nil, errors.New("no shots defined")
	}
	for i := range shots {
		if err := validate.Struct(shots[i]); err != nil {
			return nil, fmt.Errorf("shot %d (%q): %w", i, shots[i].ID, err)
		}
		shots[i].Code = strings.TrimRight(shots[i].Code, "\n")
	}
	return shots, nil
}

// WithReranker enables embedding-based reranking.
func (l *Library) WithReranker(r *Reranker) *Library {
	l.semantic = r
	return l
}

// Source returns "builtin" or the file the shots came from.
func (l *Library) Source() string { return l.source }

// All returns a copy of every shot.
func (l *Library) All() []Shot {
	out := make([]Shot, len(l.shots))
	copy(out, l.shots)
	return out
}

// Retrieve returns shots relevant to query, most relevant first. Each query
// term found in the title scores 3 and in the description 1; each tag that
// appears in the query scores 2. Shots scoring 0 are dropped.
func (l *Library) Retrieve(ctx context.Context, query string) ([]Shot, error) {
	q := strings.ToLower(query)
	terms := utils.Words(query)

	var out []Shot
	for _, s := range l.shots {
		title := strings.ToLower(s.Title)
		desc := strings.ToLower(s.Description)

		rel := 0
		for _, t := range terms {
			if strings.Contains(title, t) {
				rel += 3
			}
		}
		for _, t := range terms {
			if strings.Contains(desc, t) {
				rel += 1
			}
		}
		for _, tag := range s.Tags {
			if strings.Contains(q, strings.ToLower(tag)) {
				rel += 2
			}
		}

		if rel > 0 {
			s.Relevance = rel
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })

	if l.semantic == nil {
		return out, nil
	}
	fused, err := l.semantic.Rerank(ctx, query, out)
	if err != nil {
		slog.Warn("semantic shot rerank failed, using lexical order", "error", err)
		return out, nil
	}
	return fused, nil
}
