package model

import (
	"time"
)

const (
	// UserSpeakerID is the canonical speaker id for the human participant.
	UserSpeakerID = "user"

	// NextSpeakerAny is the unconstrained sentinel: any participant may open.
	NextSpeakerAny = ""
)

// Bounds for the rolling collections. Oldest entries are evicted first.
const (
	MaxKeyPoints        = 5
	MaxRecentStatements = 2
	MaxMainPoints       = 10
	MaxPendingQuestions = 3
)

// TurnRecord is the canonical append-only record of who spoke, when, and
// which message. All turn-taking decisions are computed from this shape.
type TurnRecord struct {
	SpeakerID string    `json:"speakerId"`
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"messageId"`
}

// ParticipantContext is the rolling per-speaker summary.
type ParticipantContext struct {
	KeyPoints        []string `json:"keyPoints"`
	RecentStatements []string `json:"recentStatements"`
}

// ConversationContext is the per-conversation aggregate the turn engine
// maintains. Updates are copy-on-write: callers Clone, mutate the clone and
// persist it atomically.
type ConversationContext struct {
	ConversationID      string                         `json:"conversationId"`
	UserID              string                         `json:"userId"`
	Topic               string                         `json:"topic"`
	Experts             []string                       `json:"experts"` // registration order
	TurnHistory         []TurnRecord                   `json:"turnHistory"`
	ParticipantContexts map[string]*ParticipantContext `json:"participantContexts"`
	MainPoints          []string                       `json:"mainPoints"`
	PendingQuestions    []string                       `json:"pendingQuestions"`
	NextSpeaker         string                         `json:"nextSpeaker"`
	CreatedAt           time.Time                      `json:"createdAt"`
	UpdatedAt           time.Time                      `json:"updatedAt"`
}

func NewConversationContext(conversationID, userID, topic string) *ConversationContext {
	now := time.Now()
	return &ConversationContext{
		ConversationID:      conversationID,
		UserID:              userID,
		Topic:               topic,
		Experts:             make([]string, 0, 2),
		TurnHistory:         make([]TurnRecord, 0, 8),
		ParticipantContexts: make(map[string]*ParticipantContext),
		MainPoints:          make([]string, 0, MaxMainPoints),
		PendingQuestions:    make([]string, 0, MaxPendingQuestions),
		NextSpeaker:         NextSpeakerAny,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Clone deep-copies the context so updates never mutate a value shared across
// concurrent workers.
func (c *ConversationContext) Clone() *ConversationContext {
	cp := *c
	cp.Experts = append([]string(nil), c.Experts...)
	cp.TurnHistory = append([]TurnRecord(nil), c.TurnHistory...)
	cp.MainPoints = append([]string(nil), c.MainPoints...)
	cp.PendingQuestions = append([]string(nil), c.PendingQuestions...)
	cp.ParticipantContexts = make(map[string]*ParticipantContext, len(c.ParticipantContexts))
	for k, v := range c.ParticipantContexts {
		cp.ParticipantContexts[k] = &ParticipantContext{
			KeyPoints:        append([]string(nil), v.KeyPoints...),
			RecentStatements: append([]string(nil), v.RecentStatements...),
		}
	}
	return &cp
}

// HasTurn reports whether a message id was already recorded; RecordMessage is
// idempotent per message id.
func (c *ConversationContext) HasTurn(messageID string) bool {
	for _, t := range c.TurnHistory {
		if t.MessageID == messageID {
			return true
		}
	}
	return false
}

// RegisterExpert adds a speaker to the registration order exactly once.
func (c *ConversationContext) RegisterExpert(speakerID string) {
	if speakerID == UserSpeakerID || speakerID == "" {
		return
	}
	for _, e := range c.Experts {
		if e == speakerID {
			return
		}
	}
	c.Experts = append(c.Experts, speakerID)
}

// AppendTurn appends to the history (append-only, no reordering) and registers
// unseen expert speakers.
func (c *ConversationContext) AppendTurn(speakerID, messageID string, at time.Time) {
	c.TurnHistory = append(c.TurnHistory, TurnRecord{SpeakerID: speakerID, Timestamp: at, MessageID: messageID})
	c.RegisterExpert(speakerID)
}

func (c *ConversationContext) participant(speakerID string) *ParticipantContext {
	p, ok := c.ParticipantContexts[speakerID]
	if !ok {
		p = &ParticipantContext{}
		c.ParticipantContexts[speakerID] = p
	}
	return p
}

// AddKeyPoints records extracted points for one participant and mirrors them
// into the conversation-wide main points.
func (c *ConversationContext) AddKeyPoints(speakerID string, points ...string) {
	if len(points) == 0 {
		return
	}
	p := c.participant(speakerID)
	p.KeyPoints = trimTail(append(p.KeyPoints, points...), MaxKeyPoints)
	c.MainPoints = trimTail(append(c.MainPoints, points...), MaxMainPoints)
}

// AddStatement keeps the participant's most recent statements.
func (c *ConversationContext) AddStatement(speakerID, statement string) {
	p := c.participant(speakerID)
	p.RecentStatements = trimTail(append(p.RecentStatements, statement), MaxRecentStatements)
}

// AddPendingQuestions keeps the most recent unresolved user questions.
func (c *ConversationContext) AddPendingQuestions(questions ...string) {
	if len(questions) == 0 {
		return
	}
	c.PendingQuestions = trimTail(append(c.PendingQuestions, questions...), MaxPendingQuestions)
}

// RecomputeNextSpeaker refreshes the derived field from the turn history.
func (c *ConversationContext) RecomputeNextSpeaker() {
	c.NextSpeaker = NextSpeaker(c.TurnHistory, c.Experts)
}

// trimTail keeps the n most recent entries in original order.
func trimTail(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// NextSpeaker determines who speaks after the last recorded turn. It is a pure
// function of the turn history plus the expert registration order:
//
//   - empty history: unconstrained, anyone may open;
//   - one expert: strict alternation between the user and that expert;
//   - several experts: the user is always followed by the first expert, an
//     expert is followed by the next one in round-robin order, so no expert
//     speaks twice in a row.
//
// When no experts were registered explicitly, the first-appearance order in
// the history serves as the registration order.
func NextSpeaker(history []TurnRecord, experts []string) string {
	if len(history) == 0 {
		return NextSpeakerAny
	}
	if len(experts) == 0 {
		seen := make(map[string]bool)
		for _, t := range history {
			if t.SpeakerID == UserSpeakerID || seen[t.SpeakerID] {
				continue
			}
			seen[t.SpeakerID] = true
			experts = append(experts, t.SpeakerID)
		}
	}
	if len(experts) == 0 {
		return NextSpeakerAny
	}

	last := history[len(history)-1].SpeakerID
	if len(experts) == 1 {
		if last == UserSpeakerID {
			return experts[0]
		}
		return UserSpeakerID
	}
	if last == UserSpeakerID {
		return experts[0]
	}
	for i, e := range experts {
		if e == last {
			return experts[(i+1)%len(experts)]
		}
	}
	// Last speaker is unknown to the registration order; restart the rotation.
	return experts[0]
}
