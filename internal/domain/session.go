package domain

import (
	"time"

	"github.com/set-night/apexinspect/internal/protocol"
)

// DefaultTitle is the placeholder title a session keeps until its first user message.
const DefaultTitle = "New Inspection"

// TitleMaxLen is the number of characters kept when deriving a title from a message.
const TitleMaxLen = 30

type Session struct {
	ID        string
	Title     string
	ImagePath string
	Mode      protocol.Mode
	CreatedAt time.Time
}

// HasImage reports whether an image reference is recorded for the session.
func (s *Session) HasImage() bool {
	return s.ImagePath != ""
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Persistable reports whether messages with this role may be stored.
func (r Role) Persistable() bool {
	return r == RoleUser || r == RoleAssistant
}

type Message struct {
	ID        int64
	SessionID string
	Role      Role
	Content   string
	Usage     *UsageMetrics
	CreatedAt time.Time
}

// UsageMetrics is the token accounting and timing of one inference call.
type UsageMetrics struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Latency          float64 `json:"latency"`
	Throughput       float64 `json:"throughput"`
}

// ChatResult is a normalised response from the inference endpoint.
type ChatResult struct {
	Content string
	Usage   UsageMetrics
}

// DeriveTitle turns the first user message into a session title.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > TitleMaxLen {
		return string(runes[:TitleMaxLen]) + "..."
	}
	return content
}
