package synthesizer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes a leading ```json or ``` fence and a trailing ``` fence.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	return strings.TrimSpace(text)
}

// ParseReply strips fences from a model reply and decodes it as a JSON object.
func ParseReply(text string) (map[string]any, error) {
	body := StripFences(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrLLMMalformedResponse)
	}

	var reply map[string]any

	err := json.Unmarshal([]byte(body), &reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMMalformedResponse, err)
	}

	if reply == nil {
		return nil, fmt.Errorf("%w: reply is not a JSON object", ErrLLMMalformedResponse)
	}

	return reply, nil
}
