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

// Message is a single role-tagged turn of a conversation.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

func (m Message) String() string {
	return m.Content
}

// View renders the message for terminal output.
func (m Message) View() string {
	text := m.Content
	// If we are markdown, add a newline so that it becomes valid markdown to parse.
	if strings.HasPrefix(text, "```") {
		text = "\n" + text
	}
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(text, "\n"))
}
