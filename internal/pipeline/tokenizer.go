package pipeline

import (
	"strings"
	"unicode/utf8"
)

// Command is a parsed command invocation.
type Command struct {
	Name string
	Args []string
}

// Tokenize recognizes prefix commands. The name comes from the text after
// one stripped prefix character; the args come from the whole trimmed text
// minus its first token. The two passes disagree when whitespace follows the
// prefix (". ping x" gives name "ping" and args ["ping", "x"]); callers
// depend on that shape, so keep it.
func Tokenize(text, prefix string) (Command, bool) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}
	_, width := utf8.DecodeRuneInString(text)
	nameTokens := strings.Fields(strings.TrimSpace(text[width:]))
	if len(nameTokens) == 0 {
		return Command{}, false
	}
	name := strings.ToLower(nameTokens[0])
	if name == "" {
		return Command{}, false
	}
	args := []string{}
	if tokens := strings.Fields(strings.TrimSpace(text)); len(tokens) > 1 {
		args = tokens[1:]
	}
	return Command{Name: name, Args: args}, true
}
