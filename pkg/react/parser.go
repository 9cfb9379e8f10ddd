package react

import (
	"regexp"
	"strings"
)

// Protocol markers. They are matched verbatim.
const (
	MarkerFinalAnswer = "Final Answer:"
	MarkerAction      = "Action:"
	MarkerActionInput = "Action Input:"
	MarkerObservation = "Observation:"
	MarkerThought     = "Thought:"
)

var (
	actionRegexp = regexp.MustCompile(`(?i)Action:\s*([^\n]+)`)
	// a JSON object (greedy to the last brace), a quoted string, or the rest
	actionInputRegexp = regexp.MustCompile(`(?i)Action Input:\s*(\{[\s\S]*\}|"[^"]*"|[\s\S]+)`)
)

type StepKind int

const (
	StepPlainReply StepKind = iota
	StepFinalAnswer
	StepToolInvocation
)

func (k StepKind) String() string {
	switch k {
	case StepFinalAnswer:
		return "final-answer"
	case StepToolInvocation:
		return "tool-invocation"
	default:
		return "plain-reply"
	}
}

// ParsedStep is the classification of one model reply. Exactly one of the
// three shapes applies, as told by Kind:
//
//   - StepFinalAnswer: Text holds the answer.
//   - StepToolInvocation: Tool, Input and Thought are set.
//   - StepPlainReply: Text holds the whole reply.
type ParsedStep struct {
	Kind    StepKind
	Text    string
	Thought string
	Tool    string
	Input   string
	// Ambiguous is set when the reply carries several actions or puts the
	// input before the action. The first action is still used.
	Ambiguous bool
}

// Parse classifies a model reply. A "Final Answer:" marker anywhere wins over
// an action; an action needs both an "Action:" line and an "Action Input:"
// span; anything else is a plain reply.
func Parse(content string) ParsedStep {
	if idx := strings.Index(content, MarkerFinalAnswer); idx >= 0 {
		return ParsedStep{
			Kind: StepFinalAnswer,
			Text: strings.TrimSpace(content[idx+len(MarkerFinalAnswer):]),
		}
	}

	actions := actionRegexp.FindAllStringSubmatchIndex(content, -1)
	input := actionInputRegexp.FindStringSubmatchIndex(content)
	if len(actions) == 0 || input == nil {
		return ParsedStep{Kind: StepPlainReply, Text: content}
	}

	first := actions[0]
	thought := content
	if idx := strings.Index(content, MarkerAction); idx >= 0 {
		thought = content[:idx]
	}

	return ParsedStep{
		Kind:      StepToolInvocation,
		Thought:   strings.TrimSpace(thought),
		Tool:      strings.TrimSpace(content[first[2]:first[3]]),
		Input:     strings.TrimSpace(content[input[2]:input[3]]),
		Ambiguous: len(actions) > 1 || input[0] < first[0],
	}
}
