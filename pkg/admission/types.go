package admission

import (
	"time"
)

// Verdict is the outcome of an admission check.
type Verdict string

const (
	// VerdictAllow admits the message unconditionally.
	VerdictAllow Verdict = "allow"

	// VerdictAllowWithWarning admits the message but carries a warning
	// the caller should surface to the user.
	VerdictAllowWithWarning Verdict = "allow_with_warning"

	// VerdictDeny rejects the message.
	VerdictDeny Verdict = "deny"
)

// Request is a single admission check input.
type Request struct {
	// IdentityKey buckets rate-limit state (user ID or anonymized
	// session). Falls back to IP when empty.
	IdentityKey string `json:"identity_key"`

	// IP is the caller address, checked against the block set
	// independently of the identity key.
	IP string `json:"ip,omitempty"`

	// ConversationID scopes the rolling relevance ratio.
	ConversationID string `json:"conversation_id,omitempty"`

	// Message is the user message text.
	Message string `json:"message"`
}

// Result is the outcome of an admission check.
type Result struct {
	// Verdict is the three-way decision.
	Verdict Verdict `json:"verdict"`

	// Warning is a user-facing redirect message, set when Verdict is
	// AllowWithWarning.
	Warning string `json:"warning,omitempty"`

	// Reason is a user-facing denial message, set when Verdict is Deny.
	// It is always presentable text, never a raw internal error.
	Reason string `json:"reason,omitempty"`

	// RetryAfter hints how long to wait before retrying, when known.
	RetryAfter *time.Duration `json:"retry_after,omitempty"`

	// Relevant reports the topical classification of the message.
	Relevant bool `json:"relevant"`

	// Confidence is the classifier confidence for the relevance call.
	Confidence float64 `json:"confidence,omitempty"`

	// Warnings is the identity's warning count after this check.
	Warnings int `json:"warnings,omitempty"`
}

// Allowed returns true unless the verdict is Deny.
func (r *Result) Allowed() bool {
	return r.Verdict != VerdictDeny
}

// RelevanceSample is one classified message in a conversation's
// rolling relevance window.
type RelevanceSample struct {
	Relevant   bool      `json:"relevant"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}

// OnTopic reports whether the sample counts toward the on-topic side
// of the relevance ratio. High-confidence classifications count even
// when the relevance flag was ambiguous.
func (s RelevanceSample) OnTopic() bool {
	return s.Relevant || s.Confidence > 0.7
}

// Status is the read-only admin view of admission state.
type Status struct {
	// BlockedKeys is the current block set.
	BlockedKeys []string `json:"blocked_keys"`

	// BlockedCount is len(BlockedKeys).
	BlockedCount int `json:"blocked_count"`

	// WarningsIssued is the sum of all active warning counters.
	WarningsIssued int `json:"warnings_issued"`

	// RequestsLastHour is the total accepted requests across all
	// identities in the trailing hour.
	RequestsLastHour int `json:"requests_last_hour"`
}
