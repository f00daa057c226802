package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/daehan-lim/humanhunter/internal/logging"
)

// fallbackMessage is committed when message generation fails outright.
const fallbackMessage = "hmm"

// fallbackSpeakChance is the probability of speaking when the speak
// decision cannot be decoded.
const fallbackSpeakChance = 0.3

// defaultVoteRetries bounds vote re-prompts when no count is configured.
const defaultVoteRetries = 3

// ModelCapability drives agent behavior through a chat-completion model.
type ModelCapability struct {
	client      ChatClient
	logger      *logging.Logger
	voteRetries int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewModelCapability creates a capability backed by the given client.
// voteRetries caps how often malformed vote output is re-prompted before
// the fallback random vote; zero or negative uses the default.
func NewModelCapability(client ChatClient, logger *logging.Logger, rng *rand.Rand, voteRetries int) *ModelCapability {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if voteRetries <= 0 {
		voteRetries = defaultVoteRetries
	}
	return &ModelCapability{client: client, logger: logger, rng: rng, voteRetries: voteRetries}
}

func (m *ModelCapability) randFloat() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64()
}

func (m *ModelCapability) randIndex(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Intn(n)
}

type speakDecision struct {
	ShouldRespond bool   `json:"should_respond"`
	Reason        string `json:"reason"`
}

type voteDecision struct {
	Vote   string `json:"vote"`
	Reason string `json:"reason"`
}

// ShouldSpeak asks the model for a conservative speak/hold decision. A
// transport or decode failure falls back to a 30% chance of speaking, so a
// flaky model thins out contributions instead of silencing the room.
func (m *ModelCapability) ShouldSpeak(ctx context.Context, dc DecisionContext) (bool, error) {
	prompt := buildSpeakPrompt(dc)
	raw, err := m.client.Complete(ctx, []ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		m.logger.Debug("speak decision failed, using random fallback",
			"agent", dc.AgentID, "error", err)
		return m.randFloat() < fallbackSpeakChance, nil
	}

	var d speakDecision
	if err := json.Unmarshal([]byte(extractJSON(raw)), &d); err != nil {
		m.logger.Debug("speak decision undecodable, using random fallback",
			"agent", dc.AgentID, "raw", raw)
		return m.randFloat() < fallbackSpeakChance, nil
	}
	return d.ShouldRespond, nil
}

// Compose asks the model for a chat message. Failure degrades to a short
// filler message rather than an error.
func (m *ModelCapability) Compose(ctx context.Context, dc DecisionContext) (string, error) {
	system, user := buildComposePrompt(dc)
	raw, err := m.client.Complete(ctx, []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		m.logger.Debug("message generation failed, using filler",
			"agent", dc.AgentID, "error", err)
		return fallbackMessage, nil
	}

	msg := strings.TrimSpace(raw)
	// Strip a leaked "Player N:" prefix if the model ignored instructions.
	if prefix := dc.AgentID + ":"; strings.HasPrefix(msg, prefix) {
		msg = strings.TrimSpace(strings.TrimPrefix(msg, prefix))
	}
	if msg == "" {
		msg = fallbackMessage
	}
	return msg, nil
}

// Vote asks the model to pick a suspect. Invalid output gets a stricter
// re-prompt; after the retries are exhausted the caller receives a random
// eligible target so voting can never hang on a broken model.
func (m *ModelCapability) Vote(ctx context.Context, vc VoteContext) (string, error) {
	if len(vc.Eligible) == 0 {
		return "", fmt.Errorf("no eligible vote targets for %s", vc.AgentID)
	}

	prompt := buildVotePrompt(vc)
	for attempt := 0; attempt < m.voteRetries; attempt++ {
		raw, err := m.client.Complete(ctx, []ChatMessage{{Role: "user", Content: prompt}})
		if err != nil {
			m.logger.Debug("vote generation failed",
				"agent", vc.AgentID, "attempt", attempt+1, "error", err)
			continue
		}
		var d voteDecision
		if err := json.Unmarshal([]byte(extractJSON(raw)), &d); err == nil {
			for _, id := range vc.Eligible {
				if d.Vote == id {
					return id, nil
				}
			}
		}
		prompt += "\nPrevious response invalid. Output ONLY valid JSON with 'vote' exactly from the allowed names."
	}

	target := vc.Eligible[m.randIndex(len(vc.Eligible))]
	m.logger.Warn("vote retries exhausted, casting random vote",
		"agent", vc.AgentID, "target", target)
	return target, nil
}

func buildSpeakPrompt(dc DecisionContext) string {
	history := renderHistory(dc.ChatTail)
	if history == "" {
		history = "No messages yet."
	}

	rate := 0.0
	if dc.Total > 0 {
		rate = float64(dc.Spoken) / float64(dc.Total) * 100
	}
	lastSpeaker := ""
	switch {
	case dc.LastAgent == dc.AgentID:
		lastSpeaker = " You were the last person to speak."
	case dc.LastAgent != "":
		lastSpeaker = fmt.Sprintf(" %s just spoke.", dc.LastAgent)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an AI agent in a group-chat with personality: %s.\n", dc.AgentID, dc.Persona)
	b.WriteString("Your goal is to act like a human user as much as possible and participate naturally in group conversations.\n\n")
	fmt.Fprintf(&b, "Current topic: %s\n", dc.Topic)
	fmt.Fprintf(&b, "You have sent %d out of %d total messages (%.0f%% participation).%s\n", dc.Spoken, dc.Total, rate, lastSpeaker)
	fmt.Fprintf(&b, "Time since last message: %.1fs.\n\n", dc.QuietFor.Seconds())
	b.WriteString("Decide conservatively whether you should respond now. Prefer NOT responding unless at least one of these is strongly true:\n")
	b.WriteString("- You can add new, relevant information or a natural follow-up.\n")
	b.WriteString("- You were directly addressed or asked a question.\n")
	b.WriteString("- The chat has been quiet for over ~10 seconds\n")
	b.WriteString("- You can engage/answer to what other players said, without providing too obvious or hoaky answers.\n")
	b.WriteString("- Your participation so far is too low (<10%) and you have a concise point.\n\n")
	b.WriteString("If you did not talk for more than 15 seconds, you MUST talk.")
	b.WriteString("Recent conversation:\n")
	b.WriteString(history)
	b.WriteString("\n\nReturn ONLY JSON: {\"should_respond\": true/false, \"reason\": \"brief reason\"}")
	return b.String()
}

func buildComposePrompt(dc DecisionContext) (system, user string) {
	history := renderHistory(dc.ChatTail)

	// Anchor hard to the topic early in a round or when the conversation
	// has drifted away from it.
	recent := dc.ChatTail
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	var recentText strings.Builder
	for _, line := range recent {
		recentText.WriteString(line.Body)
		recentText.WriteString(" ")
	}
	topicStem := strings.ToLower(strings.SplitN(dc.Topic, "?", 2)[0])
	mustAnchor := (dc.Round == 1 && len(dc.ChatTail) < 3) ||
		!strings.Contains(strings.ToLower(recentText.String()), topicStem)

	topicClause := fmt.Sprintf("Keep the current topic in mind: '%s'.", dc.Topic)
	if mustAnchor {
		topicClause = fmt.Sprintf(
			"The current topic is: '%s'. Your message must directly address this topic in a natural way. Do not ask what the topic is.",
			dc.Topic)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. ", dc.AgentID)
	b.WriteString("You are an AI Agent participating in a group-chat. ")
	fmt.Fprintf(&b, "Your personality is %s. Your two objectives are:\n", dc.Persona)
	b.WriteString("1. Act and chat like a human user as much as possible.\n")
	b.WriteString("2. Keep the conversation engaging and interesting.\n\n")
	b.WriteString(topicClause)
	b.WriteString("\n\nRespond as if in a real-time group chat, building on recent messages. Keep responses concise (1-2 short sentences).\n\n")
	b.WriteString("You may deliberately make typos and mistakes to sound more human. Do not reveal you are an AI.")
	fmt.Fprintf(&b, "IMPORTANT: Output ONLY the message text. Do not respond with the character name first. e.g., when you are %s, DON'T say '%s: hi.' Just output hi.", dc.AgentID, dc.AgentID)

	return b.String(), history + "\n\nNow, generate your response message ONLY:"
}

func buildVotePrompt(vc VoteContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. ", vc.AgentID)
	b.WriteString("Based on the chat history, who do you vote for as the AI?\n")
	b.WriteString("Respond ONLY with valid JSON: {\"vote\": \"<exact_name>\", \"reason\": \"Brief reason.\"}.\n")
	fmt.Fprintf(&b, "- The <exact_name> must be one of: %s.\n", strings.Join(vc.Eligible, ", "))
	fmt.Fprintf(&b, "- Do not vote for yourself ('%s').\n\n", vc.AgentID)
	b.WriteString("History:\n")
	b.WriteString(renderHistory(vc.ChatLog))
	return b.String()
}

func renderHistory(lines []ChatLine) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", line.Sender, line.Body)
	}
	return b.String()
}

// extractJSON trims markdown code fences and surrounding prose so that a
// completion like "```json\n{...}\n```" still decodes.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
