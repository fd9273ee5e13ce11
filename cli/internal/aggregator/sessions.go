package aggregator

import (
	"fmt"
	"sort"
	"time"

	"github.com/martin-buur/ccusage/internal/model"
)

// sessionWindow is how long a session may run after its first record before a
// new record starts a fresh session. The window is anchored at the session
// start, not at the most recent record.
const sessionWindow = 5 * time.Hour

// LoadSessions infers sessions from activity gaps across all projects and
// aggregates usage per session.
func LoadSessions(opts Options) ([]model.SessionUsage, error) {
	records, err := loadRecords(opts)
	if err != nil {
		return nil, err
	}

	rows := partitionSessions(records, opts.location())

	rows = applyRange(rows, opts, func(s model.SessionUsage) string { return s.LastActivity })
	sortRows(rows, opts.order(), func(s model.SessionUsage) string { return s.LastActivity })
	return rows, nil
}

// partitionSessions splits records into sessions. Records are considered in
// timestamp order; a record more than sessionWindow after the current
// session's start closes it and opens a new one.
func partitionSessions(records []costedRecord, loc *time.Location) []model.SessionUsage {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]costedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var sessions []model.SessionUsage
	var cur *sessionState

	for _, r := range sorted {
		if cur == nil || r.Timestamp.Sub(cur.start) > sessionWindow {
			if cur != nil {
				sessions = append(sessions, cur.finish(loc))
			}
			cur = newSessionState(r.Timestamp)
		}
		cur.add(r)
	}
	sessions = append(sessions, cur.finish(loc))
	return sessions
}

// sessionState accumulates one in-progress session.
type sessionState struct {
	start    time.Time
	last     time.Time
	usage    model.TokenUsage
	cost     float64
	projects map[string]struct{}
	versions map[string]struct{}
}

func newSessionState(start time.Time) *sessionState {
	return &sessionState{
		start:    start,
		projects: make(map[string]struct{}),
		versions: make(map[string]struct{}),
	}
}

func (s *sessionState) add(r costedRecord) {
	s.last = r.Timestamp
	s.usage.Add(r.Usage)
	s.cost += r.Cost
	if r.ProjectPath != "" {
		s.projects[r.ProjectPath] = struct{}{}
	}
	if r.Version != "" {
		s.versions[r.Version] = struct{}{}
	}
}

func (s *sessionState) finish(loc *time.Location) model.SessionUsage {
	return model.SessionUsage{
		SessionID:    s.start.In(loc).Format("2006-01-02T15:04:05"),
		ProjectPath:  projectDisplay(s.projects),
		Usage:        s.usage,
		TotalCost:    s.cost,
		LastActivity: s.last.In(loc).Format("2006-01-02"),
		Versions:     sortedKeys(s.versions),
	}
}

// projectDisplay shows a single project verbatim and collapses several into
// a count.
func projectDisplay(projects map[string]struct{}) string {
	switch len(projects) {
	case 0:
		return ""
	case 1:
		for p := range projects {
			return p
		}
	}
	return fmt.Sprintf("Multiple (%d)", len(projects))
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
