package censor

import (
	"time"
)

// Message is one unit of submitted content.
type Message struct {
	Content string `json:"content"`
	// Source identifies the origin channel (eg, a platform conversation id).
	Source string `json:"source"`
	// Unix seconds; defaults to creation time.
	Timestamp int64 `json:"timestamp"`
}

func NewMessage(content, source string) Message {
	return Message{
		Content:   content,
		Source:    source,
		Timestamp: time.Now().Unix(),
	}
}

// Result is the envelope returned for every submission.
//
// Everything except Extra is fixed once the result is created. Extra is left
// for the calling integration to attach platform metadata before persisting.
type Result struct {
	Message Message        `json:"message"`
	Risk    RiskLevel      `json:"risk_level"`
	Reason  ReasonSet      `json:"reason"`
	Extra   map[string]any `json:"extra,omitempty"`
}

func NewResult(msg Message, v Verdict, extra map[string]any) *Result {
	reasons := v.Reasons
	if reasons == nil {
		reasons = ReasonSet{}
	}
	return &Result{
		Message: msg,
		Risk:    v.Risk,
		Reason:  reasons,
		Extra:   extra,
	}
}

// SetExtra attaches caller metadata, allocating the map as needed.
func (r *Result) SetExtra(key string, val any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = val
}
