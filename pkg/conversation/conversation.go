package conversation

import (
	"strings"

	"github.com/huandu/go-clone"
)

// Conversation is an ordered list of messages. By convention, the first
// message, if present, has RoleSystem.
type Conversation []Message

// Clone returns a deep copy that shares no backing array with c.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	return clone.Clone(c).(Conversation)
}

// SystemPrompt returns the content of the leading system message, if any.
func (c Conversation) SystemPrompt() (string, bool) {
	if len(c) == 0 || c[0].Role != RoleSystem {
		return "", false
	}
	return c[0].Content, true
}

// WithSystemPrompt returns a copy of c whose first message is a system
// message with the given prompt. An existing leading system message is
// overwritten; otherwise one is inserted. c is not modified.
func (c Conversation) WithSystemPrompt(prompt string) Conversation {
	if len(c) > 0 && c[0].Role == RoleSystem {
		ret := c.Clone()
		ret[0].Content = prompt
		return ret
	}
	ret := make(Conversation, 0, len(c)+1)
	ret = append(ret, NewSystemMessage(prompt))
	ret = append(ret, c.Clone()...)
	return ret
}

// ForModel returns the system message followed by the user and assistant
// turns, dropping any stray system messages further down the history.
func (c Conversation) ForModel() Conversation {
	ret := Conversation{}
	for i, m := range c {
		if m.Role == RoleSystem && i != 0 {
			continue
		}
		ret = append(ret, m)
	}
	return ret
}

// Last returns the final message of the conversation.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

// Text concatenates the content of all messages, as used for rough token
// accounting.
func (c Conversation) Text() string {
	var sb strings.Builder
	for _, m := range c {
		sb.WriteString(m.Content)
	}
	return sb.String()
}
