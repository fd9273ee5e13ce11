package parser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
	}{
		{
			name: "valid record",
			line: `{"timestamp":"2025-01-15T10:00:00Z","version":"1.0.30","message":{"model":"claude-sonnet-4-20250514","usage":{"input_tokens":100,"output_tokens":50}}}`,
			ok:   true,
		},
		{
			name: "valid with cache tokens and cost",
			line: `{"timestamp":"2025-01-15T10:00:00Z","costUSD":0.42,"message":{"model":"claude-sonnet-4-20250514","usage":{"input_tokens":100,"output_tokens":50,"cache_creation_input_tokens":20,"cache_read_input_tokens":300}}}`,
			ok:   true,
		},
		{
			name: "unparseable json",
			line: `{"timestamp":"2025-01-15T10:0`,
			ok:   false,
		},
		{
			name: "not json at all",
			line: `plain text line`,
			ok:   false,
		},
		{
			name: "missing usage block",
			line: `{"timestamp":"2025-01-15T10:00:00Z","message":{"model":"claude-sonnet-4-20250514"}}`,
			ok:   false,
		},
		{
			name: "missing input_tokens",
			line: `{"timestamp":"2025-01-15T10:00:00Z","message":{"usage":{"output_tokens":50}}}`,
			ok:   false,
		},
		{
			name: "non-numeric token count",
			line: `{"timestamp":"2025-01-15T10:00:00Z","message":{"usage":{"input_tokens":"lots","output_tokens":50}}}`,
			ok:   false,
		},
		{
			name: "negative token count",
			line: `{"timestamp":"2025-01-15T10:00:00Z","message":{"usage":{"input_tokens":-1,"output_tokens":50}}}`,
			ok:   false,
		},
		{
			name: "missing timestamp",
			line: `{"message":{"usage":{"input_tokens":100,"output_tokens":50}}}`,
			ok:   false,
		},
		{
			name: "unparseable timestamp",
			line: `{"timestamp":"yesterday","message":{"usage":{"input_tokens":100,"output_tokens":50}}}`,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseLine([]byte(tt.line))
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseLineFields(t *testing.T) {
	line := `{"timestamp":"2025-01-15T10:30:00Z","version":"1.0.30","costUSD":0.25,"message":{"model":"claude-sonnet-4-20250514","usage":{"input_tokens":100,"output_tokens":50,"cache_creation_input_tokens":20,"cache_read_input_tokens":300}}}`

	record, ok := ParseLine([]byte(line))
	require.True(t, ok)

	assert.Equal(t, time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), record.Timestamp.UTC())
	assert.Equal(t, "1.0.30", record.Version)
	assert.Equal(t, "claude-sonnet-4-20250514", record.Model)
	assert.Equal(t, int64(100), record.Usage.InputTokens)
	assert.Equal(t, int64(50), record.Usage.OutputTokens)
	assert.Equal(t, int64(20), record.Usage.CacheCreationTokens)
	assert.Equal(t, int64(300), record.Usage.CacheReadTokens)
	require.NotNil(t, record.CostUSD)
	assert.Equal(t, 0.25, *record.CostUSD)
}

func TestParseLineAbsentCacheAndCost(t *testing.T) {
	line := `{"timestamp":"2025-01-15T10:30:00Z","message":{"usage":{"input_tokens":1,"output_tokens":2}}}`

	record, ok := ParseLine([]byte(line))
	require.True(t, ok)

	assert.Equal(t, int64(0), record.Usage.CacheCreationTokens)
	assert.Equal(t, int64(0), record.Usage.CacheReadTokens)
	assert.Nil(t, record.CostUSD, "absent costUSD must stay distinguishable from zero")
}

func TestProjectPath(t *testing.T) {
	root := filepath.Join("home", "user", ".claude", "projects")

	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "file under project dir",
			path: filepath.Join(root, "myproject", "log.jsonl"),
			want: "myproject",
		},
		{
			name: "nested project dir",
			path: filepath.Join(root, "org", "repo", "log.jsonl"),
			want: "org/repo",
		},
		{
			name: "file directly in root",
			path: filepath.Join(root, "log.jsonl"),
			want: UnknownProject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProjectPath(tt.path, root))
		})
	}
}

func TestParseFileSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proj", "log.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	content := `{"timestamp":"2025-01-15T10:00:00Z","message":{"usage":{"input_tokens":1,"output_tokens":2}}}
garbage
{"timestamp":"2025-01-15T11:00:00Z","message":{"usage":{"input_tokens":3,"output_tokens":4}}}

{"timestamp":"bad","message":{"usage":{"input_tokens":5,"output_tokens":6}}}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := ParseFile(path, dir)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "proj", records[0].ProjectPath)
	assert.Equal(t, int64(3), records[1].Usage.InputTokens)
}

func TestParseFileUnreadable(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.jsonl"), t.TempDir())
	assert.Error(t, err)
}

func TestFindUsageFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "one.jsonl"), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.jsonl"), []byte("{}\n"), 0o644))

	files, err := FindUsageFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindUsageFilesMissingRoot(t *testing.T) {
	files, err := FindUsageFiles(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
