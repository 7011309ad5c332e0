package pipeline

import "github.com/medicita/medicita-platform/internal/nlu"

// ProcessingResult is the outcome of one pipeline invocation for one inbound
// message.
type ProcessingResult struct {
	Success     bool         `json:"success"`
	Duplicate   bool         `json:"duplicate,omitempty"`
	Intent      nlu.Intent   `json:"intent"`
	Entities    nlu.Entities `json:"entities"`
	Stage       Stage        `json:"stage,omitempty"`
	Response    string       `json:"response"`
	ReplySent   bool         `json:"reply_sent"`
	NextActions []string     `json:"next_actions"`
	Confidence  float64      `json:"confidence"`
	Err         error        `json:"-"`
}

func validationFailure() ProcessingResult {
	return ProcessingResult{
		Success:     false,
		Intent:      nlu.IntentUnknown,
		Response:    "",
		NextActions: []string{ActionEscalateToHuman},
		Confidence:  0,
	}
}
