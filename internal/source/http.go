package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// HTTPOptions configures the HTTP transcript source.
type HTTPOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Client    *http.Client
}

// HTTPSource reads a transcript catalog over HTTP. The catalog layout is
// an index document listing episode ids plus one plain-text transcript per
// episode:
//
//	GET {base}/index.json       -> {"episodes": ["id", ...]}
//	GET {base}/{id}.txt         -> header block + body
type HTTPSource struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewHTTP creates an HTTPSource.
func NewHTTP(opts HTTPOptions) *HTTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "interview-cli/1.0"
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPSource{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		client:    client,
	}
}

type indexDoc struct {
	Episodes []string `json:"episodes"`
}

func (s *HTTPSource) ListTranscriptIDs(ctx context.Context) ([]string, error) {
	body, err := s.get(ctx, "index.json")
	if err != nil {
		return nil, eris.Wrap(err, "source: list transcripts")
	}

	var idx indexDoc
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, eris.Wrap(err, "source: parse index")
	}
	return idx.Episodes, nil
}

func (s *HTTPSource) FetchTranscriptHeader(ctx context.Context, id string) (*Header, error) {
	text, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	h := ParseHeader(text)
	if h == nil {
		zap.L().Warn("source: unparseable transcript header", zap.String("episode_id", id))
	}
	return h, nil
}

func (s *HTTPSource) FetchTranscriptBody(ctx context.Context, id string) (string, error) {
	text, err := s.fetch(ctx, id)
	if err != nil {
		return "", err
	}
	return Body(text), nil
}

func (s *HTTPSource) fetch(ctx context.Context, id string) (string, error) {
	body, err := s.get(ctx, url.PathEscape(id)+".txt")
	if err != nil {
		return "", eris.Wrapf(err, "source: fetch transcript %s", id)
	}
	return string(body), nil
}

func (s *HTTPSource) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return io.ReadAll(resp.Body)
}

var _ Source = (*HTTPSource)(nil)
