package snapshot

import (
	"strings"
	"unicode/utf8"
)

// DefaultTokenBudget is the platform default applied when a snapshot request
// does not name a budget.
const DefaultTokenBudget = 4096

// TruncationMarker terminates snapshots cut down to the token budget.
const TruncationMarker = "(truncated)"

// Serialize renders the tree one node per line, indented two spaces per
// depth: [@ref role "name"] value (checked) (disabled).
func Serialize(root *Node) string {
	var sb strings.Builder
	writeNode(&sb, root, 0)
	return strings.TrimRight(sb.String(), "\n")
}

func writeNode(sb *strings.Builder, n *Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteByte('[')
	if n.Ref != "" {
		sb.WriteString(n.Ref)
		sb.WriteByte(' ')
	}
	sb.WriteString(n.Role)
	if n.Name != "" {
		sb.WriteString(` "`)
		sb.WriteString(n.Name)
		sb.WriteByte('"')
	}
	sb.WriteByte(']')
	if n.Value != "" {
		sb.WriteByte(' ')
		sb.WriteString(n.Value)
	}
	if n.Checked != nil {
		if *n.Checked {
			sb.WriteString(" (checked)")
		} else {
			sb.WriteString(" (unchecked)")
		}
	}
	if n.Disabled {
		sb.WriteString(" (disabled)")
	}
	sb.WriteByte('\n')

	for _, c := range n.Children {
		writeNode(sb, c, depth+1)
	}
}

// EstimateTokens approximates the token count as ceil(chars/4). Exact
// tokenization depends on the consumer's model; the tree itself is what must
// be correct, so a blunt estimate is fine here.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// ApplyBudget hard-truncates serialized text exceeding the budget and appends
// the truncation marker line. The cut lands on a rune boundary so multi-byte
// names never leave invalid UTF-8 ahead of the marker. A non-positive budget
// selects the default.
func ApplyBudget(text string, budget int) (string, bool) {
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	if EstimateTokens(text) <= budget {
		return text, false
	}
	remaining := budget * 4
	cut := len(text)
	for i := range text {
		if remaining == 0 {
			cut = i
			break
		}
		remaining--
	}
	return text[:cut] + "\n" + TruncationMarker, true
}
