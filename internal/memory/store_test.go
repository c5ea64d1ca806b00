package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type testResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func TestRecorder_PersistsEveryStage(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	rec, err := store.NewSession(ctx)
	require.NoError(t, err)

	require.NoError(t, rec.AddUserPrompt(ctx, "notify assignee on critical issues"))
	got, err := store.Get(ctx, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "notify assignee on critical issues", got.UserPrompt)

	require.NoError(t, rec.AddCoTResult(ctx, map[string]any{"success": true}))
	require.NoError(t, rec.AddClarificationQuestions(ctx, []string{"Which priority?"}))
	require.NoError(t, rec.AddUserFeedback(ctx, map[string]string{"question_1": "Critical"}))
	require.NoError(t, rec.AddUpdatedPrompt(ctx, "enriched"))
	require.NoError(t, rec.AddPlan(ctx, map[string]any{"steps": []string{"a"}}))
	require.NoError(t, rec.AddSearchResults(ctx, []string{"snippet"}))
	require.NoError(t, rec.AddCodeShots(ctx, []string{"shot"}))

	got, err = store.Get(ctx, rec.ID())
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(got.CoTResult))
	assert.Equal(t, []string{"Which priority?"}, got.ClarificationQuestions)
	assert.Equal(t, "enriched", got.UpdatedPrompt)
	assert.JSONEq(t, `["shot"]`, string(got.CodeShots))
	assert.Nil(t, got.TestResult)
}

func TestRecorder_GenerationSlots(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	rec, err := store.NewSession(ctx)
	require.NoError(t, err)

	require.NoError(t, rec.AddGeneratedCode(ctx, "v1", false))
	require.NoError(t, rec.AddTestResult(ctx, testResult{Success: false, Message: "Validation failed"}))
	require.NoError(t, rec.AddGeneratedCode(ctx, "v2", true))
	require.NoError(t, rec.AddTestResult(ctx, testResult{Success: true, Message: "Validation passed"}))

	got, err := store.Get(ctx, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "v1", got.GeneratedCode)
	assert.Equal(t, "v2", got.RegeneratedCode)
	assert.Equal(t, "v2", got.LatestCode())

	var first, final testResult
	require.NoError(t, json.Unmarshal(got.TestResult, &first))
	require.NoError(t, json.Unmarshal(got.FinalTestResult, &final))
	assert.False(t, first.Success)
	assert.True(t, final.Success)

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Passed)
	assert.True(t, *list[0].Passed)
	assert.True(t, list[0].HasCode)
}

func TestStore_GetNotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.Get(context.Background(), "does-not-exist")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestStore_GetByPrefix(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	rec, err := store.NewSession(ctx)
	require.NoError(t, err)

	got, err := store.Get(ctx, rec.ID()[:8])
	require.NoError(t, err)
	assert.Equal(t, rec.ID(), got.ID)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	rec, err := store.NewSession(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, rec.ID()))
	assert.ErrorIs(t, store.Delete(ctx, rec.ID()), ErrSessionNotFound)

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_SimilarPrompts(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	prompts := []string{
		"Notify assignee when priority changes",
		"Add tag on creation",
		"Send email to reporter",
		"",
	}
	for i, p := range prompts {
		rec, err := store.NewSession(ctx)
		require.NoError(t, err)
		// distinct, increasing timestamps
		rec.session.Timestamp = time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC)
		require.NoError(t, rec.AddUserPrompt(ctx, p))
		require.NoError(t, rec.AddGeneratedCode(ctx, "code-"+p, false))
	}

	current, err := store.NewSession(ctx)
	require.NoError(t, err)
	require.NoError(t, current.AddUserPrompt(ctx, "notify the reporter"))

	similar, err := current.SimilarPrompts(ctx, "notify the reporter", 0)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	assert.Equal(t, "Send email to reporter", similar[0].Prompt)
	assert.Equal(t, "Notify assignee when priority changes", similar[1].Prompt)
	assert.Equal(t, "code-Send email to reporter", similar[0].GeneratedCode)

	limited, err := store.SimilarPrompts(ctx, "notify", "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := store.SimilarPrompts(ctx, "   ", "", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOpen_Directory(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	rec, err := store.NewSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, rec.AddUserPrompt(context.Background(), "persist me"))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "persist me", got.UserPrompt)
}
