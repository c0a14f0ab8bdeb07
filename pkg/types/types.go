package types

import (
	"errors"
	"strings"
	"time"
)

// Validation errors
var (
	ErrEmptyID      = errors.New("id cannot be empty")
	ErrEmptyText    = errors.New("text cannot be empty")
	ErrEmptyScope   = errors.New("owner scope cannot be empty")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrInvalidLimit = errors.New("limit must be positive")
)

// RestrictedSentinel replaces medication and lab-test values that the viewer
// is not allowed to see.
const RestrictedSentinel = "Restricted (Different Hospital)"

// HiddenScope is a verification scope that matches no owner scope, so every
// restricted field is masked.
const HiddenScope = "HIDDEN"

// SourceLabel tags the provenance of a Match.
type SourceLabel string

const (
	// SourceSameScope marks matches from the viewer's own scope.
	SourceSameScope SourceLabel = "same-scope"
	// SourceTargetedScope marks matches from an explicitly targeted scope.
	SourceTargetedScope SourceLabel = "targeted-scope"
	// SourceGlobal marks matches from any other scope, and every masked match.
	SourceGlobal SourceLabel = "global"
)

// Insight is a clinical insight as persisted in the insight store.
type Insight struct {
	ID         string    `json:"id" msgpack:"id" yaml:"id"`
	Vector     []float32 `json:"vector,omitempty" msgpack:"vector" yaml:"-"`
	Text       string    `json:"text" msgpack:"text" yaml:"text"`
	Category   string    `json:"category" msgpack:"category" yaml:"category"`
	OwnerScope string    `json:"owner_scope" msgpack:"owner_scope" yaml:"owner_scope"`
	Medication string    `json:"medication,omitempty" msgpack:"medication" yaml:"medication"`
	LabTest    string    `json:"lab_test,omitempty" msgpack:"lab_test" yaml:"lab_test"`
	CreatedAt  time.Time `json:"created_at" msgpack:"created_at" yaml:"-"`
}

// Validate checks if the Insight has all required fields set.
func (i *Insight) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(i.Text) == "" {
		return ErrEmptyText
	}
	if strings.TrimSpace(i.OwnerScope) == "" {
		return ErrEmptyScope
	}
	return nil
}

// Match is a retrieval result. Values returned by the retrieval engine are
// already masked for the querying scope.
type Match struct {
	Score       float64     `json:"score"`
	ID          string      `json:"id"`
	Text        string      `json:"text"`
	Category    string      `json:"category,omitempty"`
	OwnerScope  string      `json:"owner_scope"`
	Medication  string      `json:"medication"`
	LabTest     string      `json:"lab_test"`
	SourceLabel SourceLabel `json:"source"`
}

// Masked reports whether the restricted fields were replaced by the sentinel.
func (m Match) Masked() bool {
	return m.Medication == RestrictedSentinel || m.LabTest == RestrictedSentinel
}

// Role is a chat message role.
type Role string

// Message is a single chat message sent to a language model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token accounting when the provider returns it.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a complete (non-streamed) model response.
type Response struct {
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}

// ContextKey is the type for request-scoped values stored in a context.
type ContextKey string

const (
	ContextKeyUserID        ContextKey = "user_id"
	ContextKeySessionID     ContextKey = "session_id"
	ContextKeyHospitalID    ContextKey = "hospital_id"
	ContextKeyRequestSource ContextKey = "request_source"
)
