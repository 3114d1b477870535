package predicates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	nameAuthorBanned = "author_banned"
	nameChatBanned   = "chat_banned"
	nameAdminOnly    = "admin_only"
	nameAntiLink     = "antilink"
	nameAntiBot      = "antibot"
)

type RemoteConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// RemoteSource asks an external service for each predicate:
// GET {base}/v1/predicates/{name}?subject=... returning {"active": bool}.
type RemoteSource struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewRemoteSource(cfg RemoteConfig) (*RemoteSource, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("predicates base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid predicates base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteSource{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.Token),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (s *RemoteSource) IsAuthorBanned(ctx context.Context, author string) (bool, error) {
	return s.query(ctx, nameAuthorBanned, author)
}

func (s *RemoteSource) IsChatBanned(ctx context.Context, chatID string) (bool, error) {
	return s.query(ctx, nameChatBanned, chatID)
}

func (s *RemoteSource) IsAdminOnly(ctx context.Context, chatID string) (bool, error) {
	return s.query(ctx, nameAdminOnly, chatID)
}

func (s *RemoteSource) IsAntiLinkActive(ctx context.Context, chatID string) (bool, error) {
	return s.query(ctx, nameAntiLink, chatID)
}

func (s *RemoteSource) IsAntiBotActive(ctx context.Context, chatID string) (bool, error) {
	return s.query(ctx, nameAntiBot, chatID)
}

func (s *RemoteSource) query(ctx context.Context, name, subject string) (bool, error) {
	endpoint := s.baseURL + "/v1/predicates/" + name + "?subject=" + url.QueryEscape(subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	res, err := s.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("predicate %s: %w", name, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiError)
		if strings.TrimSpace(apiError.Error) == "" {
			apiError.Error = res.Status
		}
		return false, fmt.Errorf("predicate %s: %s", name, apiError.Error)
	}
	var body struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("predicate %s: decode response: %w", name, err)
	}
	if body.Active == nil {
		return false, fmt.Errorf("predicate %s: response missing active field", name)
	}
	return *body.Active, nil
}
