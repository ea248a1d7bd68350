package persistence

import (
	"time"

	"github.com/google/uuid"
)

// Run is the terminal record of one document-generation run.
//
//nolint:govet // struct alignment optimization not critical for this type
type Run struct {
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
	InputTokens         int64     `json:"input_tokens"`
	OutputTokens        int64     `json:"output_tokens"`
	CacheCreationTokens int64     `json:"cache_creation_tokens"`
	CacheReadTokens     int64     `json:"cache_read_tokens"`
	CostUSD             float64   `json:"cost_usd"`
	ID                  string    `json:"id"`
	Prompt              string    `json:"prompt"`
	Model               string    `json:"model"`
	SourceMode          string    `json:"source_mode"`
	Status              string    `json:"status"`
	PaperDir            string    `json:"paper_dir,omitempty"`
	PaperName           string    `json:"paper_name,omitempty"`
	Title               string    `json:"title,omitempty"`
	Errors              string    `json:"errors,omitempty"` // newline-joined
	WordCount           int       `json:"word_count"`
	Figures             int       `json:"figures"`
	Citations           int       `json:"citations"`
	CompilationOK       bool      `json:"compilation_ok"`
}

// Run status constants.
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// GenerateRunID generates a new UUID for a run.
func GenerateRunID() string {
	return uuid.New().String()
}
