package parser

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/martin-buur/ccusage/internal/model"
)

// UnknownProject is the project path assigned to log files that sit directly
// in the data root rather than under a project directory.
const UnknownProject = "Unknown Project"

// rawEvent mirrors the JSON structure of one Claude Code JSONL line.
// Pointer fields distinguish missing values from zero values.
type rawEvent struct {
	Timestamp string   `json:"timestamp"`
	Version   string   `json:"version"`
	CostUSD   *float64 `json:"costUSD"`
	Message   struct {
		Model string    `json:"model"`
		Usage *rawUsage `json:"usage"`
	} `json:"message"`
}

type rawUsage struct {
	InputTokens         *int64 `json:"input_tokens"`
	OutputTokens        *int64 `json:"output_tokens"`
	CacheCreationTokens int64  `json:"cache_creation_input_tokens"`
	CacheReadTokens     int64  `json:"cache_read_input_tokens"`
}

// DefaultDataDir returns the standard Claude Code projects directory.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude", "projects"), nil
}

// FindUsageFiles finds all JSONL files under root. A missing root is not an
// error; it simply yields no files.
func FindUsageFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && filepath.Ext(path) == ".jsonl" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// ProjectPath derives the project path for a log file from its location
// relative to root: the containing directory, or UnknownProject for files
// sitting directly in root.
func ProjectPath(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	dir := filepath.Dir(rel)
	if dir == "." || dir == string(filepath.Separator) {
		return UnknownProject
	}
	return filepath.ToSlash(dir)
}

// ParseLine validates one JSONL line. It returns false for anything that does
// not match the expected shape: unparseable JSON, a missing usage block,
// non-numeric or negative token counts, or a bad timestamp. Callers skip such
// lines and keep going; usage logs are append-only and may contain partial
// writes.
func ParseLine(line []byte) (model.UsageRecord, bool) {
	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return model.UsageRecord{}, false
	}

	usage := raw.Message.Usage
	if usage == nil || usage.InputTokens == nil || usage.OutputTokens == nil {
		return model.UsageRecord{}, false
	}
	if *usage.InputTokens < 0 || *usage.OutputTokens < 0 ||
		usage.CacheCreationTokens < 0 || usage.CacheReadTokens < 0 {
		return model.UsageRecord{}, false
	}

	timestamp, err := time.Parse(time.RFC3339, raw.Timestamp)
	if err != nil {
		return model.UsageRecord{}, false
	}

	return model.UsageRecord{
		Timestamp: timestamp,
		Version:   raw.Version,
		Model:     raw.Message.Model,
		Usage: model.TokenUsage{
			InputTokens:         *usage.InputTokens,
			OutputTokens:        *usage.OutputTokens,
			CacheCreationTokens: usage.CacheCreationTokens,
			CacheReadTokens:     usage.CacheReadTokens,
		},
		CostUSD: raw.CostUSD,
	}, true
}

// ParseFile parses a single JSONL file, silently skipping malformed lines.
// The returned records carry the project path derived from the file's
// location under root. An unreadable file is an error; partial aggregation
// over an incomplete file set would be misleading.
func ParseFile(path, root string) ([]model.UsageRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	projectPath := ProjectPath(path, root)

	var records []model.UsageRecord
	scanner := bufio.NewScanner(file)

	// Increase buffer size for large lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		record, ok := ParseLine(line)
		if !ok {
			continue
		}
		record.ProjectPath = projectPath
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ParseAll parses every JSONL file under root.
func ParseAll(root string) ([]model.UsageRecord, error) {
	files, err := FindUsageFiles(root)
	if err != nil {
		return nil, err
	}

	var all []model.UsageRecord
	for _, file := range files {
		records, err := ParseFile(file, root)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}
