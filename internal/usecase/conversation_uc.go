// File: internal/usecase/conversation_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/adapter"
	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/repository"
	"github.com/peterjabraham/debatable-sub001/internal/infra/logging"
	"github.com/peterjabraham/debatable-sub001/internal/llm"
	"github.com/peterjabraham/debatable-sub001/internal/retry"
)

// Compile-time check
var _ ConversationUseCase = (*conversationUC)(nil)

// RecordMessageInput is the canonical message shape the turn engine consumes,
// whether the message came from a completed job or directly from the user.
type RecordMessageInput struct {
	ConversationID string
	MessageID      string
	SpeakerID      string // model.UserSpeakerID or an expert name
	Content        string
	Timestamp      time.Time
}

type ConversationUseCase interface {
	Initialize(ctx context.Context, conversationID, userID, topic string) (*model.ConversationContext, error)
	// RecordMessage updates the rolling context and recomputes the next
	// speaker. Idempotent per message id. Extraction and persistence are
	// best-effort: they degrade context quality, never message delivery.
	RecordMessage(ctx context.Context, in RecordMessageInput) (*model.ConversationContext, error)
	// Summarize builds a local digest; no remote call involved.
	Summarize(ctx context.Context, conversationID string) (string, error)
	ListByUser(ctx context.Context, userID string) ([]*model.ConversationContext, error)
}

type conversationUC struct {
	repo      repository.ConversationRepository
	ai        adapter.AIServiceAdapter
	retryOpts retry.Options
	log       *zerolog.Logger
}

func NewConversationUseCase(repo repository.ConversationRepository, ai adapter.AIServiceAdapter, retryOpts retry.Options, logger *zerolog.Logger) *conversationUC {
	l := logger.With().Str("component", "ConversationUC").Logger()
	return &conversationUC{repo: repo, ai: ai, retryOpts: retryOpts, log: &l}
}

func (c *conversationUC) Initialize(ctx context.Context, conversationID, userID, topic string) (*model.ConversationContext, error) {
	if conversationID == "" {
		conversationID = ulid.Make().String()
	}
	cc := model.NewConversationContext(conversationID, userID, topic)
	if err := c.repo.Save(ctx, nil, cc); err != nil {
		return nil, fmt.Errorf("initialize conversation: %w", err)
	}
	return cc, nil
}

func (c *conversationUC) RecordMessage(ctx context.Context, in RecordMessageInput) (*model.ConversationContext, error) {
	defer logging.TraceDuration(c.log, "ConversationUC.RecordMessage")()

	cc, err := c.repo.FindByID(ctx, nil, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if cc.HasTurn(in.MessageID) {
		return cc, nil
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	// Copy-on-write: mutate a clone, persist it atomically.
	next := cc.Clone()
	next.AppendTurn(in.SpeakerID, in.MessageID, ts)

	if in.SpeakerID == model.UserSpeakerID {
		if questions := c.extractQuestions(ctx, in.Content); len(questions) > 0 {
			next.AddPendingQuestions(questions...)
		}
	} else {
		if points := c.extractKeyPoints(ctx, in.SpeakerID, in.Content); len(points) > 0 {
			next.AddKeyPoints(in.SpeakerID, points...)
		}
		next.AddStatement(in.SpeakerID, in.Content)
	}

	next.RecomputeNextSpeaker()

	if err := c.repo.Save(ctx, nil, next); err != nil {
		// Context updates must never block message delivery.
		c.log.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("context persist failed, continuing")
	}
	return next, nil
}

func (c *conversationUC) Summarize(ctx context.Context, conversationID string) (string, error) {
	cc, err := c.repo.FindByID(ctx, nil, conversationID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Discussion so far on %q:\n", cc.Topic)
	for _, p := range lastN(cc.MainPoints, 5) {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	if qs := lastN(cc.PendingQuestions, 3); len(qs) > 0 {
		b.WriteString("Open questions:\n")
		for _, q := range qs {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	if cc.NextSpeaker != model.NextSpeakerAny {
		fmt.Fprintf(&b, "Next to speak: %s\n", cc.NextSpeaker)
	}
	return b.String(), nil
}

func (c *conversationUC) ListByUser(ctx context.Context, userID string) ([]*model.ConversationContext, error) {
	return c.repo.ListByUser(ctx, nil, userID)
}

// extractQuestions delegates question spotting to the text capability.
// Failures are swallowed: they cost context richness, nothing else.
func (c *conversationUC) extractQuestions(ctx context.Context, content string) []string {
	reply, err := retry.Do(ctx, c.retryOpts, func(ctx context.Context) (string, error) {
		return c.ai.Generate(ctx,
			`Identify the open questions in the user's message. Respond with JSON: {"questions": ["..."]}. Return an empty list when there are none.`,
			[]adapter.Message{{Role: "user", Content: content}})
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("question extraction failed")
		return nil
	}
	var out struct {
		Questions []string `json:"questions"`
	}
	if err := llm.Decode(reply, &out); err != nil {
		c.log.Warn().Err(err).Msg("question extraction returned no JSON")
		return nil
	}
	return out.Questions
}

func (c *conversationUC) extractKeyPoints(ctx context.Context, speakerID, content string) []string {
	reply, err := retry.Do(ctx, c.retryOpts, func(ctx context.Context) (string, error) {
		return c.ai.Generate(ctx,
			fmt.Sprintf(`Extract the 2-3 key points %s makes in this statement. Respond with JSON: {"keyPoints": ["..."]}.`, speakerID),
			[]adapter.Message{{Role: "user", Content: content}})
	})
	if err != nil {
		c.log.Warn().Err(err).Str("speaker", speakerID).Msg("key point extraction failed")
		return nil
	}
	var out struct {
		KeyPoints []string `json:"keyPoints"`
	}
	if err := llm.Decode(reply, &out); err != nil {
		c.log.Warn().Err(err).Str("speaker", speakerID).Msg("key point extraction returned no JSON")
		return nil
	}
	return out.KeyPoints
}

func lastN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
