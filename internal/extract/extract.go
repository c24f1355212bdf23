// Package extract turns one transcript into a validated Intelligence
// record via the model gateway, with rate-limit-aware retry and backoff.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pmprep/interview-cli/internal/gateway"
	"github.com/pmprep/interview-cli/internal/model"
	"github.com/pmprep/interview-cli/internal/sanitize"
)

// maxTranscriptChars caps the transcript body sent to the model. Longer
// bodies are cut and marked so the model knows the tail is missing.
const maxTranscriptChars = 60000

const truncationMarker = "\n\n[TRANSCRIPT TRUNCATED]"

const systemPrompt = `You are an analyst extracting structured intelligence from podcast interview transcripts for a product-management interview training product.

Rules:
- Use ONLY what is explicitly said in the transcript. No external knowledge.
- Quotes must be exact, verbatim substrings of the transcript.
- If the transcript contains nothing for a category, return an empty array for it.
- Return a single JSON object and nothing else.`

const userPromptTemplate = `Episode: %s
Guest: %s

Transcript:
%s

Extract every company discussed, the concrete decisions and stated opinions attributed to each, named frameworks the guest explains, seeds for interview questions, and memorable quotes.

Return JSON matching exactly this schema:
{
  "companies": [{"name": "", "is_guest_company": false, "mention_context": "", "decisions": [{"what": "", "when": "", "why": "", "outcome": "", "quote": ""}], "opinions": [{"opinion": "", "quote": ""}], "metrics_mentioned": [""]}],
  "frameworks": [{"name": "", "creator": "", "category": "prioritization|strategy|growth|metrics|design|execution|leadership|ai_ml", "explanation": "", "when_to_use": "", "example": "", "quote": ""}],
  "question_seeds": [""],
  "memorable_quotes": [""]
}`

// Options tunes the retry loop. Zero values take the production defaults;
// tests shrink the backoff bases to keep runs fast.
type Options struct {
	MaxAttempts      int           // default 6
	MaxTokens        int64         // default 8192
	RateLimitBackoff time.Duration // base for exponential 429 backoff, default 1.5s
	RateLimitCap     time.Duration // ceiling for 429 backoff, default 30s
	EmptyBackoff     time.Duration // base for linear empty-response backoff, default 1s
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 6
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 8192
	}
	if o.RateLimitBackoff <= 0 {
		o.RateLimitBackoff = 1500 * time.Millisecond
	}
	if o.RateLimitCap <= 0 {
		o.RateLimitCap = 30 * time.Second
	}
	if o.EmptyBackoff <= 0 {
		o.EmptyBackoff = time.Second
	}
	return o
}

// Extractor drives intelligence extraction against a Gateway.
type Extractor struct {
	gw   gateway.Gateway
	opts Options
}

// New builds an Extractor.
func New(gw gateway.Gateway, opts Options) *Extractor {
	return &Extractor{gw: gw, opts: opts.withDefaults()}
}

// payload is the model-facing shape of an extraction. Absent arrays are
// permitted: the model is explicitly allowed to find nothing.
type payload struct {
	Companies       []model.Company   `json:"companies"`
	Frameworks      []model.Framework `json:"frameworks"`
	QuestionSeeds   []string          `json:"question_seeds"`
	MemorableQuotes []string          `json:"memorable_quotes"`
}

// Extract produces the Intelligence record for one transcript. The record
// is complete or absent; no partial write escapes this function.
func (e *Extractor) Extract(ctx context.Context, t model.Transcript) (*model.Intelligence, error) {
	body := t.Body
	if len(body) > maxTranscriptChars {
		body = body[:maxTranscriptChars] + truncationMarker
	}

	req := gateway.Request{
		MaxTokens: e.opts.MaxTokens,
		Messages: []gateway.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, t.EpisodeTitle, t.GuestName, body)},
		},
	}

	text, err := e.completeWithRetry(ctx, req, t.EpisodeID)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: episode %s", t.EpisodeID)
	}

	var p payload
	if err := sanitize.Parse(text, &p); err != nil {
		zap.L().Warn("extract: unrecoverable model response",
			zap.String("episode_id", t.EpisodeID),
			zap.Error(err),
		)
		return nil, eris.Wrapf(err, "extract: episode %s", t.EpisodeID)
	}

	return &model.Intelligence{
		EpisodeID:       t.EpisodeID,
		GuestName:       t.GuestName,
		EpisodeTitle:    t.EpisodeTitle,
		Companies:       emptyIfNil(p.Companies),
		Frameworks:      emptyIfNil(p.Frameworks),
		QuestionSeeds:   emptyIfNil(p.QuestionSeeds),
		MemorableQuotes: emptyIfNil(p.MemorableQuotes),
		ExtractedAt:     time.Now().UTC(),
	}, nil
}

// completeWithRetry runs the bounded attempt loop. Only two failure kinds
// are retried: 429 with exponential backoff, and empty completions with
// linear backoff. Everything else is terminal on the first occurrence.
func (e *Extractor) completeWithRetry(ctx context.Context, req gateway.Request, episodeID string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		text, err := e.gw.Complete(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", lastErr
		}

		var delay time.Duration
		switch gateway.KindOf(err) {
		case gateway.KindRateLimited:
			if attempt == e.opts.MaxAttempts {
				return "", lastErr
			}
			delay = e.opts.RateLimitBackoff * time.Duration(1<<(attempt-1))
			if delay > e.opts.RateLimitCap {
				delay = e.opts.RateLimitCap
			}
		case gateway.KindEmpty:
			if attempt == e.opts.MaxAttempts {
				return "", lastErr
			}
			delay = e.opts.EmptyBackoff * time.Duration(attempt)
		default:
			// 402, bad credential, other non-2xx: not transient.
			return "", lastErr
		}

		zap.L().Warn("extract: retrying after transient failure",
			zap.String("episode_id", episodeID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", lastErr
		case <-timer.C:
		}
	}
	return "", lastErr
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
