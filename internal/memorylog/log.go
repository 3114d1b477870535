package memorylog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Entry is one chat line. Appends are no-ops when Root or Text is empty.
type Entry struct {
	Root        string
	Connector   string
	ChatID      string
	Direction   string
	ActorID     string
	DisplayName string
	Text        string
	Timestamp   time.Time
}

var pathSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// runs are concurrent per event; one writer at a time keeps header and body
// of an entry together.
var appendMu sync.Mutex

func Append(entry Entry) error {
	root := strings.TrimSpace(entry.Root)
	if root == "" {
		return nil
	}
	text := strings.TrimSpace(entry.Text)
	if text == "" {
		return nil
	}

	connector := sanitizeSegment(entry.Connector)
	if connector == "" {
		connector = "unknown"
	}
	chatID := sanitizeSegment(entry.ChatID)
	if chatID == "" {
		chatID = "unknown"
	}
	timestamp := entry.Timestamp.UTC()
	if entry.Timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	direction := strings.TrimSpace(strings.ToLower(entry.Direction))
	if direction == "" {
		direction = "inbound"
	}
	actor := strings.TrimSpace(entry.ActorID)
	if actor == "" {
		actor = "system"
	}
	displayName := strings.TrimSpace(entry.DisplayName)

	baseDir := filepath.Join(root, "logs", "chats", connector)
	logPath := filepath.Join(baseDir, chatID+".md")

	appendMu.Lock()
	defer appendMu.Unlock()
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}
	var builder strings.Builder
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintf(&builder, "# Chat Log\n\n- connector: `%s`\n- chat_id: `%s`\n\n", connector, strings.TrimSpace(entry.ChatID))
	}
	fmt.Fprintf(&builder, "## %s `%s`\n- actor: `%s`\n", timestamp.Format(time.RFC3339), strings.ToUpper(direction), actor)
	if displayName != "" {
		fmt.Fprintf(&builder, "- name: `%s`\n", displayName)
	}
	fmt.Fprintf(&builder, "\n%s\n\n", text)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(builder.String())
	return err
}

func sanitizeSegment(value string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.ReplaceAll(trimmed, " ", "-")
	trimmed = pathSanitizer.ReplaceAllString(trimmed, "-")
	trimmed = strings.Trim(trimmed, "-.")
	return strings.ToLower(trimmed)
}
