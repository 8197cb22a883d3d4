package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/state"
	"go.uber.org/zap"
)

// ErrNotFound is returned when neither the local hangouts nor the server
// know the query.
var ErrNotFound = errors.New("hangout not found")

// Finder looks up contacts locally first and falls back to the server.
type Finder struct {
	endpoint string
	user     string
	client   *http.Client
	state    *state.Store
	logger   *zap.Logger
}

// NewFinder creates a finder. An empty endpoint disables the server fallback.
func NewFinder(endpoint, user string, st *state.Store, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{
		endpoint: endpoint,
		user:     user,
		client:   &http.Client{Timeout: 10 * time.Second},
		state:    st,
		logger:   logger,
	}
}

// Find returns the local hangouts whose username contains query. When none
// match it asks the server and records the outcome in the reducer.
func (f *Finder) Find(ctx context.Context, query string) ([]hangout.Hangout, error) {
	query = strings.TrimSpace(query)
	f.state.Dispatch(state.SearchInputChanged{Search: query})
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}

	if local := filter(f.state.Current().Hangouts, query); len(local) > 0 {
		return local, nil
	}
	if f.endpoint == "" {
		f.state.Dispatch(state.FetchHangoutSucceeded{})
		return nil, ErrNotFound
	}

	f.state.Dispatch(state.FetchHangoutStarted{})
	found, err := f.fetch(ctx, query)
	if err != nil {
		f.logger.Warn("hangout search failed", zap.String("query", query), zap.Error(err))
		f.state.Dispatch(state.FetchHangoutFailed{Err: err})
		return nil, err
	}
	f.state.Dispatch(state.FetchHangoutSucceeded{Hangouts: found})
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found, nil
}

func (f *Finder) fetch(ctx context.Context, query string) ([]hangout.Hangout, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	q := u.Query()
	q.Set("search", query)
	q.Set("username", f.user)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	return decode(body)
}

// decode accepts a list of hangouts, a single hangout or an empty body.
func decode(body []byte) ([]hangout.Hangout, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	if body[0] == '[' {
		var hs []hangout.Hangout
		if err := json.Unmarshal(body, &hs); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		return hs, nil
	}
	var h hangout.Hangout
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if h.Username == "" {
		return nil, nil
	}
	return []hangout.Hangout{h}, nil
}

func filter(hs []hangout.Hangout, query string) []hangout.Hangout {
	q := strings.ToLower(query)
	var out []hangout.Hangout
	for _, h := range hs {
		if strings.Contains(strings.ToLower(h.Username), q) {
			out = append(out, h)
		}
	}
	return out
}
