package app

import "strings"

// ParsedMessage is an agent reply split into its visible answer and, for the
// efficient persona mode, the reasoning section.
type ParsedMessage struct {
	Answer    string
	Reasoning string
	Mode      string
}

const (
	answerMarker    = "【回答】"
	reasoningMarker = "【思考】"
)

// ParseMessage splits raw agent output according to the agent's persona mode.
// Efficient mode looks for the 【回答】/【思考】 section markers; when the
// answer marker is absent the full content passes through as the answer.
// Other modes always pass through unchanged. Never fails.
func ParseMessage(content, personaMode string) ParsedMessage {
	if personaMode != "efficient" {
		return ParsedMessage{Answer: content, Mode: personaMode}
	}

	idx := strings.Index(content, answerMarker)
	if idx < 0 {
		return ParsedMessage{Answer: content, Mode: personaMode}
	}

	rest := content[idx+len(answerMarker):]
	if rIdx := strings.Index(rest, reasoningMarker); rIdx >= 0 {
		return ParsedMessage{
			Answer:    strings.TrimSpace(rest[:rIdx]),
			Reasoning: strings.TrimSpace(rest[rIdx+len(reasoningMarker):]),
			Mode:      personaMode,
		}
	}
	return ParsedMessage{Answer: strings.TrimSpace(rest), Mode: personaMode}
}
