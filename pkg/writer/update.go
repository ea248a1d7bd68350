package writer

import (
	"paperwright/pkg/paper"
	"paperwright/pkg/progress"
)

// UpdateType discriminates the payload carried by an Update.
type UpdateType string

const (
	// UpdateText streams a fragment of the producer's live narration.
	UpdateText UpdateType = "text"

	// UpdateProgress reports a stage/message progress event.
	UpdateProgress UpdateType = "progress"

	// UpdateResult carries the terminal run outcome. It is always the last
	// element on the channel when present.
	UpdateResult UpdateType = "result"
)

// Update is the envelope delivered on a run's output channel. Type selects
// which payload field is populated; the others stay zero.
type Update struct {
	Type     UpdateType      `json:"type"`
	Text     string          `json:"content,omitempty"`
	Progress *progress.Event `json:"progress,omitempty"`
	Result   *paper.Result   `json:"result,omitempty"`
}

func textUpdate(content string) Update {
	return Update{Type: UpdateText, Text: content}
}

func progressUpdate(evt *progress.Event) Update {
	return Update{Type: UpdateProgress, Progress: evt}
}

func resultUpdate(res *paper.Result) Update {
	return Update{Type: UpdateResult, Result: res}
}
