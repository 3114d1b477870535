package predicates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dwizi/chat-runtime/internal/message"
)

// Snapshot is the on-disk list format.
type Snapshot struct {
	BannedUsers    []string `yaml:"banned_users" json:"banned_users"`
	BannedChats    []string `yaml:"banned_chats" json:"banned_chats"`
	AdminOnlyChats []string `yaml:"admin_only_chats" json:"admin_only_chats"`
	AntiLinkChats  []string `yaml:"antilink_chats" json:"antilink_chats"`
	AntiBotChats   []string `yaml:"antibot_chats" json:"antibot_chats"`
}

type index map[string]struct{}

func newIndex(values []string) index {
	out := index{}
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out[strings.ToLower(message.Canonical(value))] = struct{}{}
	}
	return out
}

// has matches the full address or, for entries written without a server,
// the bare user part.
func (i index) has(subject string) bool {
	canonical := strings.ToLower(message.Canonical(subject))
	if canonical == "" {
		return false
	}
	if _, ok := i[canonical]; ok {
		return true
	}
	_, ok := i[message.UserPart(canonical)]
	return ok
}

type lists struct {
	bannedUsers index
	bannedChats index
	adminOnly   index
	antiLink    index
	antiBot     index
}

// FileSource answers predicates from a YAML file kept in memory. A missing
// file means every list is empty.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	current lists
}

func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	source := &FileSource{
		path:   strings.TrimSpace(path),
		logger: logger,
	}
	if err := source.Reload(); err != nil {
		return nil, err
	}
	return source, nil
}

func (s *FileSource) Path() string {
	return s.path
}

// Reload reads the file again. On a parse error the previous lists stay
// in effect.
func (s *FileSource) Reload() error {
	snapshot, err := readSnapshot(s.path)
	if err != nil {
		return err
	}
	next := lists{
		bannedUsers: newIndex(snapshot.BannedUsers),
		bannedChats: newIndex(snapshot.BannedChats),
		adminOnly:   newIndex(snapshot.AdminOnlyChats),
		antiLink:    newIndex(snapshot.AntiLinkChats),
		antiBot:     newIndex(snapshot.AntiBotChats),
	}
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	s.logger.Info(
		"predicates loaded",
		"path", s.path,
		"banned_users", len(next.bannedUsers),
		"banned_chats", len(next.bannedChats),
		"admin_only_chats", len(next.adminOnly),
		"antilink_chats", len(next.antiLink),
		"antibot_chats", len(next.antiBot),
	)
	return nil
}

func readSnapshot(path string) (Snapshot, error) {
	if path == "" {
		return Snapshot{}, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read predicates file: %w", err)
	}
	var snapshot Snapshot
	if err := yaml.Unmarshal(raw, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("parse predicates file %s: %w", path, err)
	}
	return snapshot, nil
}

func (s *FileSource) lookup(pick func(lists) index, subject string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pick(s.current).has(subject)
}

func (s *FileSource) IsAuthorBanned(ctx context.Context, author string) (bool, error) {
	return s.lookup(func(l lists) index { return l.bannedUsers }, author), nil
}

func (s *FileSource) IsChatBanned(ctx context.Context, chatID string) (bool, error) {
	return s.lookup(func(l lists) index { return l.bannedChats }, chatID), nil
}

func (s *FileSource) IsAdminOnly(ctx context.Context, chatID string) (bool, error) {
	return s.lookup(func(l lists) index { return l.adminOnly }, chatID), nil
}

func (s *FileSource) IsAntiLinkActive(ctx context.Context, chatID string) (bool, error) {
	return s.lookup(func(l lists) index { return l.antiLink }, chatID), nil
}

func (s *FileSource) IsAntiBotActive(ctx context.Context, chatID string) (bool, error) {
	return s.lookup(func(l lists) index { return l.antiBot }, chatID), nil
}
