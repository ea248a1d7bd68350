package paper

import "time"

// Status is the terminal disposition of an authoring run.
type Status string

const (
	// StatusSuccess means a compiled final PDF was produced.
	StatusSuccess Status = "success"

	// StatusPartial means manuscript source exists but compilation did not
	// produce a final PDF.
	StatusPartial Status = "partial"

	// StatusFailed means no usable output was produced.
	StatusFailed Status = "failed"
)

// Inventory is the classified view of one output directory. Singular slots
// are empty strings when absent; list slots are never nil so the JSON form
// always carries arrays.
type Inventory struct {
	FinalPDF     string   `json:"pdf_final,omitempty"`
	FinalTeX     string   `json:"tex_final,omitempty"`
	DraftPDFs    []string `json:"pdf_drafts"`
	DraftTeXs    []string `json:"tex_drafts"`
	Bibliography string   `json:"bibliography,omitempty"`
	Figures      []string `json:"figures"`
	DataFiles    []string `json:"data"`
	ProgressLog  string   `json:"progress_log,omitempty"`
	Summary      string   `json:"summary,omitempty"`
}

// Metadata carries descriptive fields derived from the output directory and
// its primary manuscript.
type Metadata struct {
	Title     string    `json:"title"`
	Topic     string    `json:"topic"`
	WordCount int       `json:"word_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Citations summarizes the bibliography file, when one exists.
type Citations struct {
	Count int    `json:"count"`
	Style string `json:"style,omitempty"`
	File  string `json:"file,omitempty"`
}

// TokenUsage accumulates model token counts across one run.
type TokenUsage struct {
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadTokens     int64 `json:"cache_read_input_tokens"`

	// Estimated marks totals reconstructed from a tokenizer count because
	// the producer reported no usage of its own.
	Estimated bool `json:"estimated,omitempty"`
}

// Total returns the sum of all token counters.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheCreationTokens + u.CacheReadTokens
}

// Add accumulates another usage sample into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
}

// Result is the aggregate outcome of one authoring run.
type Result struct {
	Status             Status      `json:"status"`
	Directory          string      `json:"paper_directory,omitempty"`
	Name               string      `json:"paper_name,omitempty"`
	Metadata           Metadata    `json:"metadata"`
	Files              Inventory   `json:"files"`
	Citations          Citations   `json:"citations"`
	FiguresCount       int         `json:"figures_count"`
	CompilationSuccess bool        `json:"compilation_success"`
	Errors             []string    `json:"errors,omitempty"`
	TokenUsage         *TokenUsage `json:"token_usage,omitempty"`
}
