package conversation

import (
	"encoding/json"
	"fmt"
	"time"
)

// Speaker is who wrote a turn
type Speaker string

// Speakers
const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one message in a conversation
type Turn struct {
	Role      Speaker   `json:"role" validate:"required,oneof=user assistant"`
	Content   string    `json:"content" validate:"required,max=8000"`
	Timestamp time.Time `json:"timestamp"`
}

// Turns is an ordered list of turns stored as a JSON column
type Turns []Turn

// Encode serialises the turns for storage
func (t Turns) Encode() (string, error) {
	if t == nil {
		t = Turns{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeTurns parses a stored turns column. Postgres JSONB arrives as
// []byte, SQLite TEXT as string.
func DecodeTurns(raw interface{}) (Turns, error) {
	var b []byte
	switch v := raw.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		return Turns{}, nil
	default:
		return nil, fmt.Errorf("unexpected turns column type %T", raw)
	}
	var turns Turns
	if err := json.Unmarshal(b, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// Conversation is the stored record of one chat exchange and the history
// that preceded it
type Conversation struct {
	ID          int64      `json:"id"`
	AccountID   int64      `json:"userId"`
	Turns       Turns      `json:"messages"`
	Reviewed    bool       `json:"reviewed"`
	Approved    *bool      `json:"approved,omitempty"`
	ReviewerID  *int64     `json:"reviewedBy,omitempty"`
	ReviewNotes *string    `json:"reviewNotes,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	Flagged     bool       `json:"flagged"`
	FlagReason  *string    `json:"flagReason,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// LastReply returns the final assistant turn, or an empty string
func (c *Conversation) LastReply() string {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		if c.Turns[i].Role == SpeakerAssistant {
			return c.Turns[i].Content
		}
	}
	return ""
}

// Review is a moderator's verdict on a conversation
type Review struct {
	ReviewerID int64
	Approved   bool
	Notes      string
}

// Filter narrows conversation listings
type Filter struct {
	AccountID  *int64
	Unreviewed bool
	Flagged    bool
}
