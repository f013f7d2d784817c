package worker

import (
	"fmt"
	"strings"

	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
)

// Source texts beyond this are truncated before topic extraction.
const maxSourceChars = 24000

func expertSystemPrompt(expert model.ExpertProfile, topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, debating the topic %q.\n", expert.Name, topic)
	if expert.Stance != "" {
		fmt.Fprintf(&b, "You argue the %s position.\n", expert.Stance)
	}
	if expert.Background != "" {
		fmt.Fprintf(&b, "Background: %s\n", expert.Background)
	}
	if expert.Expertise != "" {
		fmt.Fprintf(&b, "Expertise: %s\n", expert.Expertise)
	}
	b.WriteString("Reply with your next debate statement only.")
	return b.String()
}

func selectExpertsSystemPrompt(expertType string, count int) string {
	kind := "domain experts"
	if expertType == "historical" {
		kind = "historical figures"
	}
	return fmt.Sprintf(
		`Select %d %s with opposing stances for a debate on the user's topic. Respond with JSON: {"experts": [{"name": "...", "stance": "pro"|"con", "background": "...", "expertise": "..."}]}.`,
		count, kind)
}

func extractTopicsSystemPrompt(sourceType string, maxTopics int) string {
	return fmt.Sprintf(
		`Extract up to %d debatable topics from the following %s content. Respond with JSON: {"topics": [{"title": "...", "summary": "...", "arguments": ["..."]}]}.`,
		maxTopics, sourceType)
}

func summarySystemPrompt(topic string) string {
	return fmt.Sprintf(
		`Summarize this debate on %q. Respond with JSON: {"summary": "...", "keyPoints": ["..."]}.`,
		topic)
}

func renderTranscript(messages []model.ChatMessage) string {
	var b strings.Builder
	for _, m := range messages {
		name := m.Name
		if name == "" {
			name = m.Role
		}
		fmt.Fprintf(&b, "%s: %s\n", name, m.Content)
	}
	return b.String()
}
