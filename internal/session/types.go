package session

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session doesn't exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session has expired
	ErrSessionExpired = errors.New("session expired")
)

// Session carries the conversational context of one episode: what the
// collaborator was told and what it answered, step by step. The runner feeds
// the recent window back into each prompt.
type Session struct {
	ID            string    `json:"id"`
	ExperimentID  string    `json:"experiment_id"`
	Configuration string    `json:"configuration"`
	Strategy      string    `json:"strategy"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Turns         []Turn    `json:"turns"`
}

// Turn is one prompt/answer exchange within an episode.
type Turn struct {
	Step      int       `json:"step"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Direction string    `json:"direction,omitempty"`
	UsedTool  bool      `json:"used_tool,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Recent returns the most recent turns, newest last.
func (s *Session) Recent(count int) []Turn {
	if count <= 0 || len(s.Turns) <= count {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-count:]
}

// Transcript renders turns as "role: content" lines for prompt inclusion.
func (s *Session) Transcript(count int) string {
	out := ""
	for _, t := range s.Recent(count) {
		if out != "" {
			out += "\n"
		}
		out += t.Role + ": " + t.Content
	}
	return out
}
