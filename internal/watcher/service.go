package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dwizi/chat-runtime/internal/heartbeat"
)

const componentName = "watcher"

// Service reports changes to a fixed set of files. Parent directories are
// watched so that editors which replace files on save are still seen.
type Service struct {
	files    map[string]struct{}
	dirs     []string
	debounce time.Duration
	logger   *slog.Logger
	onChange func(context.Context, string)
	watcher  *fsnotify.Watcher
	reporter heartbeat.Reporter
}

func New(files []string, logger *slog.Logger, onChange func(context.Context, string)) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tracked := map[string]struct{}{}
	dirSet := map[string]struct{}{}
	dirs := []string{}
	for _, file := range files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		absolute, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("resolve watched file %s: %w", file, err)
		}
		tracked[absolute] = struct{}{}
		dir := filepath.Dir(absolute)
		if _, ok := dirSet[dir]; !ok {
			dirSet[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Service{
		files:    tracked,
		dirs:     dirs,
		debounce: 250 * time.Millisecond,
		logger:   logger,
		onChange: onChange,
		watcher:  fileWatcher,
	}, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

func (s *Service) Start(ctx context.Context) error {
	defer s.watcher.Close()

	for _, dir := range s.dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create watched dir %s: %w", dir, err)
		}
		if err := s.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch path %s: %w", dir, err)
		}
	}
	s.logger.Info("file watcher started", "dirs", strings.Join(s.dirs, ","), "files", len(s.files))
	if s.reporter != nil {
		s.reporter.Beat(componentName, "watching")
	}

	pending := map[string]struct{}{}
	timer := time.NewTimer(s.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("file watcher stopped")
			if s.reporter != nil {
				s.reporter.Stopped(componentName, "stopped")
			}
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if s.relevant(event) {
				if len(pending) == 0 {
					timer.Reset(s.debounce)
				}
				pending[filepath.Clean(event.Name)] = struct{}{}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				s.logger.Error("file watcher error", "error", err)
				if s.reporter != nil {
					s.reporter.Degrade(componentName, "watch error", err)
				}
			}
		case <-timer.C:
			for path := range pending {
				s.logger.Info("watched file changed", "path", path)
				s.onChange(ctx, path)
				delete(pending, path)
			}
			if s.reporter != nil {
				s.reporter.Beat(componentName, "change delivered")
			}
		}
	}
}

func (s *Service) relevant(event fsnotify.Event) bool {
	if _, ok := s.files[filepath.Clean(event.Name)]; !ok {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}
