// Package assemble turns cached episode intelligence into bank questions.
// One invocation is a single flow of control: per episode, per
// (type, difficulty) pair, one paced gateway call. Retry policy stays out
// of this package; a failed pair is recorded and the loop moves on, except
// for systemic gateway failures which abort the remaining work.
package assemble

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pmprep/interview-cli/internal/gateway"
	"github.com/pmprep/interview-cli/internal/model"
	"github.com/pmprep/interview-cli/internal/sanitize"
	"github.com/pmprep/interview-cli/internal/store"
)

// Options configures one assembly run. Zero values take defaults.
type Options struct {
	Types        []model.InterviewType // default: all nine
	Difficulties []model.Difficulty    // default: all three
	MaxQuestions int                   // cap across the run; 0 means no cap
	MaxTokens    int64                 // per generation call
	Pace         time.Duration         // inter-call delay
}

func (o Options) withDefaults() Options {
	if len(o.Types) == 0 {
		o.Types = model.AllInterviewTypes()
	}
	if len(o.Difficulties) == 0 {
		o.Difficulties = model.AllDifficulties()
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 4096
	}
	if o.Pace == 0 {
		o.Pace = 500 * time.Millisecond
	}
	return o
}

// TripleError records one non-fatal per-pair failure.
type TripleError struct {
	Triple model.Triple `json:"triple"`
	Reason string       `json:"reason"`
}

// Result is the partial-success summary of one run. Aborted is set when a
// systemic gateway error (rate limit exhaustion, billing) cut the run
// short; everything generated before the abort is already persisted.
type Result struct {
	Generated   []model.Question `json:"generated"`
	Skipped     int              `json:"skipped"`
	Errors      []TripleError    `json:"errors"`
	Aborted     bool             `json:"aborted"`
	AbortReason string           `json:"abort_reason,omitempty"`
}

// Assembler generates and persists questions from intelligence records.
type Assembler struct {
	gw      gateway.Gateway
	st      store.Store
	opts    Options
	limiter *rate.Limiter
}

func New(gw gateway.Gateway, st store.Store, opts Options) *Assembler {
	opts = opts.withDefaults()
	return &Assembler{
		gw:      gw,
		st:      st,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.Pace), 1),
	}
}

// Assemble walks every record and fills the missing (type, difficulty)
// pairs for each. Existing triples are skipped against a set preloaded per
// episode, not a per-pair store round-trip; the store's unique constraint
// remains the final guard against a concurrent double-insert.
func (a *Assembler) Assemble(ctx context.Context, recs []model.Intelligence) (*Result, error) {
	res := &Result{}

	for i := range recs {
		rec := &recs[i]

		company := rec.RichestCompany()
		if company == nil {
			zap.L().Debug("assemble: no rich company, skipping episode",
				zap.String("episode_id", rec.EpisodeID))
			continue
		}

		existing, err := a.st.ListQuestionTriples(ctx, rec.EpisodeID)
		if err != nil {
			return res, eris.Wrapf(err, "assemble: load triples for %s", rec.EpisodeID)
		}
		have := make(map[model.Triple]struct{}, len(existing))
		for _, t := range existing {
			have[t] = struct{}{}
		}

		for _, typ := range a.opts.Types {
			for _, diff := range a.opts.Difficulties {
				if err := ctx.Err(); err != nil {
					return res, eris.Wrap(err, "assemble: cancelled")
				}
				if a.opts.MaxQuestions > 0 && len(res.Generated) >= a.opts.MaxQuestions {
					return res, nil
				}

				triple := model.Triple{EpisodeID: rec.EpisodeID, Type: typ, Difficulty: diff}
				if _, ok := have[triple]; ok {
					res.Skipped++
					continue
				}

				q, err := a.generate(ctx, rec, company, typ, diff)
				if err != nil {
					if gateway.IsSystemic(err) {
						res.Aborted = true
						res.AbortReason = eris.ToString(err, false)
						zap.L().Warn("assemble: systemic gateway error, aborting run",
							zap.String("episode_id", rec.EpisodeID),
							zap.Error(err))
						return res, nil
					}
					res.Errors = append(res.Errors, TripleError{
						Triple: triple,
						Reason: eris.ToString(err, false),
					})
					zap.L().Warn("assemble: question generation failed",
						zap.String("episode_id", rec.EpisodeID),
						zap.String("type", string(typ)),
						zap.String("difficulty", string(diff)),
						zap.Error(err))
					continue
				}

				if err := a.st.InsertQuestion(ctx, q); err != nil {
					if errors.Is(err, store.ErrDuplicateQuestion) {
						res.Skipped++
						continue
					}
					return res, eris.Wrapf(err, "assemble: persist question for %s", rec.EpisodeID)
				}
				res.Generated = append(res.Generated, *q)
			}
		}
	}
	return res, nil
}

// GenerateOne produces a single question outside the batch flow, for the
// on-demand serving fallback. One attempt, errors propagate directly; the
// question is persisted so the next request hits the bank fast path.
func (a *Assembler) GenerateOne(ctx context.Context, rec *model.Intelligence, typ model.InterviewType, diff model.Difficulty) (*model.Question, error) {
	company := rec.RichestCompany()
	if company == nil {
		return nil, eris.Errorf("assemble: episode %s has no rich company", rec.EpisodeID)
	}

	q, err := a.generate(ctx, rec, company, typ, diff)
	if err != nil {
		return nil, err
	}
	if err := a.st.InsertQuestion(ctx, q); err != nil && !errors.Is(err, store.ErrDuplicateQuestion) {
		return nil, eris.Wrapf(err, "assemble: persist question for %s", rec.EpisodeID)
	}
	return q, nil
}

func (a *Assembler) generate(ctx context.Context, rec *model.Intelligence, c *model.Company, typ model.InterviewType, diff model.Difficulty) (*model.Question, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "assemble: pacing wait")
	}

	raw, err := a.gw.Complete(ctx, gateway.Request{
		Messages: []gateway.Message{
			{Role: "system", Content: questionSystemPrompt},
			{Role: "user", Content: questionUserPrompt(rec, c, typ, diff)},
		},
		MaxTokens: a.opts.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var q model.Question
	if err := sanitize.Parse(raw, &q); err != nil {
		return nil, eris.Wrapf(err, "assemble: parse question for %s/%s/%s", rec.EpisodeID, typ, diff)
	}

	// The model's output is grounding, not identity: keys and provenance
	// are set here so the stored row always matches the requested triple.
	q.ID = uuid.NewString()
	q.EpisodeID = rec.EpisodeID
	q.Type = typ
	q.Difficulty = diff
	q.Company = c.Name
	q.Source = model.QuestionSource{
		EpisodeTitle: rec.EpisodeTitle,
		GuestName:    rec.GuestName,
	}
	q.CreatedAt = time.Now().UTC()
	if q.FollowUps == nil {
		q.FollowUps = []string{}
	}
	if q.ModelAnswer.FrameworksMentioned == nil {
		q.ModelAnswer.FrameworksMentioned = []string{}
	}
	return &q, nil
}
