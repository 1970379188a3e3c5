// Package prompt assembles the message list sent upstream for one coach
// question.
package prompt

import (
	"strings"

	"github.com/namikmesic/coach-stream/internal/source"
)

// DefaultSystem is the coach persona. It asks the model to wrap its
// reasoning in the sentinels the splitter looks for.
const DefaultSystem = "You are an expert fitness and health coach. You analyze workout data " +
	"and provide personalized training recommendations. Be specific and " +
	"actionable in your advice. Consider exercise selection, volume, intensity, " +
	"and recovery when making recommendations.\n\n" +
	"When thinking through a problem, use <think> tags to show your reasoning process."

const historyIntro = "\n\nHere is the user's workout history:\n\n"

// Turn is one prior message of the conversation as the client kept it.
// Thinking is what the client displayed as reasoning; it is never replayed.
type Turn struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

// Build returns system, replayed turns, then the question. Turns with a role
// other than user or assistant are dropped.
func Build(system, historyMD string, turns []Turn, question string) source.Prompt {
	if system == "" {
		system = DefaultSystem
	}
	if historyMD != "" {
		system += historyIntro + historyMD
	}

	msgs := make([]source.Message, 0, len(turns)+2)
	msgs = append(msgs, source.Message{Role: "system", Content: system})
	for _, t := range turns {
		switch role := strings.ToLower(t.Role); role {
		case "user", "assistant":
			msgs = append(msgs, source.Message{Role: role, Content: t.Content})
		}
	}
	msgs = append(msgs, source.Message{Role: "user", Content: question})

	return source.Prompt{Messages: msgs}
}
