package scriptapi

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const entitiesJS = `'use strict';

/**
 * Represents an issue in YouTrack.
 * @example
 * const summary = Issue.summary;
 */
class Issue {
  constructor() {}
}

Issue.onChange = function (ruleProperties) {
  return ruleProperties;
};

const priority = Issue.fields.Priority;
module.exports = { Issue };
`

const notificationsJS = `/**
 * Sends an email notification.
 */
function notify(to, subject) {
  return true;
}
`

func newTestSearcher(t *testing.T) *Searcher {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/api/entities.js", []byte(entitiesJS), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/api/sub/notifications.js", []byte(notificationsJS), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/api/README.md", []byte("issue issue issue"), 0o644))
	s := NewSearcher(fs, "/api")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSearch_CommentBlocksAndCode(t *testing.T) {
	s := newTestSearcher(t)

	hits, err := s.Search(context.Background(), "Issue onChange")
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	// "Issue.onChange = ..." matches both terms and sorts first.
	assert.Equal(t, float64(2), hits[0].Relevance)
	assert.Equal(t, TypeCode, hits[0].Type)
	assert.Contains(t, hits[0].Code, "Issue.onChange")

	var comment *Snippet
	for i := range hits {
		assert.NotEqual(t, "README.md", hits[i].File)
		if hits[i].Type == TypeCommentWithCode {
			comment = &hits[i]
		}
	}
	require.NotNil(t, comment)
	assert.Equal(t, 3, comment.Line)
	assert.Contains(t, comment.Code, "class Issue {")
	assert.Equal(t, float64(1), comment.Relevance)

	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Relevance, hits[i].Relevance)
	}
}

func TestSearch_LinesInsideCommentAreNotCodeHits(t *testing.T) {
	s := newTestSearcher(t)

	hits, err := s.Search(context.Background(), "email")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, TypeCommentWithCode, hits[0].Type)
	assert.Equal(t, "notifications.js", hits[0].File)
	assert.True(t, strings.HasPrefix(hits[0].Code, "/**"))
}

func TestSearch_SingleLineDocBlock(t *testing.T) {
	lines := strings.Split("/** Returns the project. */\nfunction project() {}\n", "\n")
	hits := scanFile("x.js", lines, []string{"project"})
	require.Len(t, hits, 3)
	assert.Equal(t, TypeCommentWithCode, hits[0].Type)
	assert.Contains(t, hits[0].Code, "function project()")
}

func TestSearch_MissingDir(t *testing.T) {
	s := NewSearcher(afero.NewMemMapFs(), "/nope")
	assert.False(t, s.Available())
	hits, err := s.Search(context.Background(), "issue")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_EmptyQuery(t *testing.T) {
	hits, err := newTestSearcher(t).Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestSearch_CachesFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/api/a.js", []byte("const issue = 1;"), 0o644))
	s := NewSearcher(fs, "/api")

	_, err := s.Search(context.Background(), "issue")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, "/api/a.js", []byte("const other = 1;"), 0o644))
	hits, err := s.Search(context.Background(), "issue")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearchEntity(t *testing.T) {
	s := newTestSearcher(t)

	info, err := s.SearchEntity(context.Background(), "Issue")
	require.NoError(t, err)
	assert.Equal(t, "Issue", info.Name)
	assert.Contains(t, info.Documentation, "class Issue")
	assert.NotEmpty(t, info.Examples)

	var methods, props []string
	for _, m := range info.Methods {
		methods = append(methods, m.Name)
	}
	for _, p := range info.Properties {
		props = append(props, p.Name)
	}
	assert.Contains(t, methods, "onChange")
	assert.Contains(t, props, "summary")
}

func TestSearchIndex(t *testing.T) {
	s := newTestSearcher(t)

	hits, err := s.searchIndex("email notification", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "notifications.js", hits[0].File)
	assert.Equal(t, TypeIndexed, hits[0].Type)
	assert.Equal(t, 1, hits[0].Line)
	assert.Greater(t, hits[0].Relevance, 0.0)
}

func TestSearch_BM25BreaksTies(t *testing.T) {
	fs := afero.NewMemMapFs()
	var noisy strings.Builder
	noisy.WriteString("const owner = fields['Owner'] || assignee;\n")
	for i := 0; i < 12; i++ {
		noisy.WriteString("// unrelated state transitions, comments, votes and attachments are handled elsewhere\n")
	}
	require.NoError(t, afero.WriteFile(fs, "/api/a_noisy.js", []byte(noisy.String()), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/api/b_focused.js", []byte("assignee = assignee || pick(assignee);\n"), 0o644))
	s := NewSearcher(fs, "/api")
	t.Cleanup(func() { _ = s.Close() })

	hits, err := s.Search(context.Background(), "assignee")
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// Both lines match the single term; the denser chunk wins.
	assert.Equal(t, hits[0].Relevance, hits[1].Relevance)
	assert.Equal(t, "b_focused.js", hits[0].File)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.Greater(t, hits[1].Score, 0.0)
}
