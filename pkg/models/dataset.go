package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Difficulty is the requested complexity bucket of a generated question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// AllDifficulties lists the buckets in output order.
var AllDifficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty normalizes a difficulty label. An empty label defaults to medium.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy, nil
	case "", "medium":
		return DifficultyMedium, nil
	case "hard":
		return DifficultyHard, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// Rank orders difficulties easy < medium < hard. Unknown values sort last.
func (d Difficulty) Rank() int {
	for i, v := range AllDifficulties {
		if v == d {
			return i
		}
	}
	return len(AllDifficulties)
}

// Quotas maps each difficulty to the number of items requested.
type Quotas map[Difficulty]int

// Total returns the sum of all quotas.
func (q Quotas) Total() int {
	total := 0
	for _, n := range q {
		total += n
	}
	return total
}

// SeedExample is a hand-authored question/SQL pair used as few-shot context.
type SeedExample struct {
	Question   string     `json:"question" yaml:"question"`
	Answer     string     `json:"answer,omitempty" yaml:"answer,omitempty"`
	SQL        string     `json:"sql" yaml:"sql"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
}

// GenerationRequest identifies one slot of requested output.
type GenerationRequest struct {
	Difficulty Difficulty
	Slot       int
}

func (r GenerationRequest) String() string {
	return fmt.Sprintf("%s#%d", r.Difficulty, r.Slot)
}

// GeneratedItem is an accepted question/answer/SQL tuple.
type GeneratedItem struct {
	Question         string     `json:"question"`
	Answer           string     `json:"answer"`
	SQL              string     `json:"sql"`
	Difficulty       Difficulty `json:"difficulty"`
	SQLValid         bool       `json:"sql_valid"`
	ValidationErrors []string   `json:"validation_errors"`
	Slot             int        `json:"slot"`
}

// Dataset is the ordered output of a run: difficulty first, then slot.
type Dataset struct {
	Items []GeneratedItem `json:"items"`
}

// CountByDifficulty returns the number of items in each bucket.
func (d *Dataset) CountByDifficulty() map[Difficulty]int {
	counts := make(map[Difficulty]int)
	for _, item := range d.Items {
		counts[item.Difficulty]++
	}
	return counts
}

// RunStatus is the terminal state of a generation run.
type RunStatus string

const (
	RunStatusComplete          RunStatus = "complete"
	RunStatusPartiallyComplete RunStatus = "partially_complete"
)

// SlotFailure records a slot that exhausted its retries.
type SlotFailure struct {
	Difficulty Difficulty `json:"difficulty"`
	Slot       int        `json:"slot"`
	Attempts   int        `json:"attempts"`
	Kind       string     `json:"kind"`
	LastError  string     `json:"last_error"`
}

// RunSummary reports what a run was asked for and what it delivered.
type RunSummary struct {
	RunID        uuid.UUID          `json:"run_id"`
	Status       RunStatus          `json:"status"`
	Requested    map[Difficulty]int `json:"requested"`
	Accepted     map[Difficulty]int `json:"accepted"`
	Failures     []SlotFailure      `json:"failures"`
	Aborted      bool               `json:"aborted"`
	AbortReason  string             `json:"abort_reason,omitempty"`
	BackendCalls int64              `json:"backend_calls"`
	CacheHits    int64              `json:"cache_hits"`
	CacheMisses  int64              `json:"cache_misses"`
	StartedAt    time.Time          `json:"started_at"`
	CompletedAt  time.Time          `json:"completed_at"`
}

// Shortfall returns the number of unfilled slots per difficulty. Buckets that
// were filled completely are omitted.
func (s *RunSummary) Shortfall() map[Difficulty]int {
	short := make(map[Difficulty]int)
	for d, n := range s.Requested {
		if missing := n - s.Accepted[d]; missing > 0 {
			short[d] = missing
		}
	}
	return short
}

// RunResult bundles the dataset with its summary.
type RunResult struct {
	Dataset Dataset    `json:"dataset"`
	Summary RunSummary `json:"summary"`
}
