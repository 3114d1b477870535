package app

import (
	"log/slog"
	"strings"

	"github.com/dwizi/chat-runtime/internal/config"
	"github.com/dwizi/chat-runtime/internal/pipeline"
	"github.com/dwizi/chat-runtime/internal/predicates"
)

// buildPredicates prefers the remote service when configured; otherwise the
// local YAML file is used and returned so it can be watched.
func buildPredicates(cfg config.Config, logger *slog.Logger) (pipeline.Predicates, *predicates.FileSource, error) {
	if strings.TrimSpace(cfg.PredicatesURL) != "" {
		remote, err := predicates.NewRemoteSource(predicates.RemoteConfig{
			BaseURL: cfg.PredicatesURL,
			Token:   cfg.PredicatesToken,
			Timeout: cfg.PredicatesTimeout(),
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using remote predicates", "url", cfg.PredicatesURL)
		return remote, nil, nil
	}
	file, err := predicates.NewFileSource(cfg.PredicatesFile, logger)
	if err != nil {
		return nil, nil, err
	}
	return file, file, nil
}
