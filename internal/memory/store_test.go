package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "agent_memory.json"), zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestNewFileStore_RequiresPath(t *testing.T) {
	_, err := NewFileStore("", nil)
	assert.Error(t, err)
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	store := newTestStore(t)

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NewState(), state)

	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err), "load must not create the file")
}

func TestFileStore_LoadEmptyFile(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("  \n"), 0600))

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, state.TotalRuns)
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", `{"total_runs": 1,`},
		{"wrong types", `{"total_runs": "three"}`},
		{"invariant broken", `{"total_runs": 2, "mistakes": [], "run_history": [], "learned_rules": []}`},
		{"threshold reached without rule", `{"total_runs": 2,
			"mistakes": [
				{"run_number": 1, "mistake_type": "skipped_required_tool", "explanation": "missing: news", "occurred": 1},
				{"run_number": 2, "mistake_type": "skipped_required_tool", "explanation": "missing: news", "occurred": 2}],
			"run_history": [
				{"run_number": 1, "query": "NVIDIA", "tools_used": [], "success": false, "violations": ["skipped_required_tool"]},
				{"run_number": 2, "query": "NVIDIA", "tools_used": [], "success": false, "violations": ["skipped_required_tool"]}],
			"learned_rules": []}`},
		{"rule below threshold", `{"total_runs": 1,
			"mistakes": [{"run_number": 1, "mistake_type": "wrong_tool_sequence", "explanation": "x", "occurred": 1}],
			"run_history": [{"run_number": 1, "query": "AMD", "tools_used": [], "success": false, "violations": ["wrong_tool_sequence"]}],
			"learned_rules": [{"rule": "collect_before_generate", "description": "d", "constraint": "c", "mistake_type": "wrong_tool_sequence", "created_at_run": 1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			require.NoError(t, os.WriteFile(store.Path(), []byte(tt.content), 0600))

			state, err := store.Load(context.Background())
			assert.Nil(t, state)
			assert.ErrorIs(t, err, ErrStorageCorrupt)
		})
	}
}

func TestFileStore_LoadUnreadable(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrStorageCorrupt)
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := buildState(t,
		[]policy.MistakeType{policy.MistakeWrongToolSequence},
		[]policy.MistakeType{policy.MistakeSkippedRequiredTool},
		[]policy.MistakeType{policy.MistakeSkippedRequiredTool},
		nil,
	)
	state.LearnedRules = append(state.LearnedRules, Rule{
		ID:            "must_use_all_required_tools",
		Description:   "ALWAYS use: overview, price, news, AND financials before report",
		Constraint:    "Never skip financial_metrics - it's mandatory",
		MistakeType:   policy.MistakeSkippedRequiredTool,
		CreatedAtRun:  3,
		RequiredTools: []string{"search_company_overview"},
	})

	require.NoError(t, store.Save(ctx, state))
	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)

	require.NoError(t, store.Save(ctx, loaded))
	second, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestFileStore_PersistedLayout(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(context.Background(), buildState(t, []policy.MistakeType{policy.MistakeSkippedRequiredTool})))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	for _, key := range []string{`"total_runs"`, `"mistakes"`, `"run_history"`, `"learned_rules"`,
		`"run_number"`, `"mistake_type"`, `"explanation"`, `"occurred"`, `"success"`, `"tools_used"`} {
		assert.Contains(t, string(data), key)
	}

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_SaveRejectsInvalidState(t *testing.T) {
	store := newTestStore(t)
	state := NewState()
	state.TotalRuns = 3

	err := store.Save(context.Background(), state)
	assert.ErrorIs(t, err, ErrInvariant)

	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStore_SaveFailureKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "agent_memory.json"), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, buildState(t, nil)))
	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	require.NoError(t, os.Chmod(dir, 0500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0700) })

	err = store.Save(ctx, buildState(t, nil, nil))
	assert.ErrorIs(t, err, ErrStorageIO)

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "agent_memory.json"), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(context.Background(), buildState(t, nil)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "agent_memory.json", entries[0].Name())
}

func TestFileStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, buildState(t, nil, nil)))

	state, err := store.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, state.TotalRuns)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.TotalRuns)
	assert.Empty(t, loaded.RunHistory)
}

func TestFileStore_CreatesParentDirectory(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "dir", "memory.json"), nil)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), NewState()))
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestFileStore_CanceledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Save(ctx, NewState()), context.Canceled)
}

func TestDecode_LegacyNullSlices(t *testing.T) {
	state, err := Decode([]byte(`{"total_runs": 0, "mistakes": null}`))
	require.NoError(t, err)
	assert.NotNil(t, state.Mistakes)
	assert.NotNil(t, state.LearnedRules)
}
