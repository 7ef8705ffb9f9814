package conversation

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// ChatMessage is a single role-tagged entry of a chat-formatted prompt, as sent
// to the generation provider.
type ChatMessage struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content}
}

func (c ChatMessage) String() string {
	return fmt.Sprintf("[%s]: %s", c.Role, strings.TrimRight(c.Content, "\n"))
}

// Contents returns the raw message bodies of a chat-formatted history, dropping roles.
func Contents(messages []ChatMessage) []string {
	ret := make([]string, 0, len(messages))
	for _, m := range messages {
		ret = append(ret, m.Content)
	}
	return ret
}
