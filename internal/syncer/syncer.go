// Package syncer reconciles the external transcript catalog against the
// local intelligence cache. One run is a pure set-diff: it processes
// exactly the ids the source knows and the cache does not, in bounded
// batches so one bad batch never blocks the rest.
package syncer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pmprep/interview-cli/internal/extract"
	"github.com/pmprep/interview-cli/internal/gateway"
	"github.com/pmprep/interview-cli/internal/model"
	"github.com/pmprep/interview-cli/internal/source"
	"github.com/pmprep/interview-cli/internal/store"
)

// Options configures one sync run.
type Options struct {
	BatchSize        int  // episodes per batch; default 10
	FetchConcurrency int  // parallel header/body fetches per batch; default 5
	SeedOnly         bool // cache header metadata only, no LLM extraction
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = 5
	}
	return o
}

// Failure records one episode that could not be processed this run.
type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Summary is the partial-success report of one run. A skipped episode had
// an unparseable header and stays uncached; a later run retries it.
type Summary struct {
	TotalKnown     int       `json:"total_known"`
	AlreadyCached  int       `json:"already_cached"`
	NewlyProcessed int       `json:"newly_processed"`
	Skipped        int       `json:"skipped"`
	Failed         []Failure `json:"failed,omitempty"`
	Aborted        bool      `json:"aborted"`
	AbortReason    string    `json:"abort_reason,omitempty"`
}

// Syncer drives extraction over the set of transcripts not yet cached.
type Syncer struct {
	src  source.Source
	st   store.Store
	ex   *extract.Extractor
	opts Options
}

func New(src source.Source, st store.Store, ex *extract.Extractor, opts Options) *Syncer {
	return &Syncer{src: src, st: st, ex: ex, opts: opts.withDefaults()}
}

// fetched is one episode pulled from the source, ready for extraction.
// A nil header means the transcript's header block could not be parsed.
type fetched struct {
	id     string
	header *source.Header
	body   string
	err    error
}

// SyncNew lists the catalog, diffs it against the cache, and processes
// only the difference. Source order is preserved so repeated runs walk a
// backlog front to back.
func (s *Syncer) SyncNew(ctx context.Context) (*Summary, error) {
	known, err := s.src.ListTranscriptIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "sync: list transcripts")
	}

	cachedIDs, err := s.st.ListIntelligenceIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "sync: list cached ids")
	}
	cached := make(map[string]struct{}, len(cachedIDs))
	for _, id := range cachedIDs {
		cached[id] = struct{}{}
	}

	summary := &Summary{TotalKnown: len(known)}
	var todo []string
	for _, id := range known {
		if _, ok := cached[id]; ok {
			summary.AlreadyCached++
			continue
		}
		todo = append(todo, id)
	}

	zap.L().Info("sync: plan computed",
		zap.Int("total_known", summary.TotalKnown),
		zap.Int("already_cached", summary.AlreadyCached),
		zap.Int("to_process", len(todo)))

	for start := 0; start < len(todo); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(todo))
		if err := s.processBatch(ctx, todo[start:end], summary); err != nil {
			return summary, err
		}
		if summary.Aborted {
			return summary, nil
		}
	}
	return summary, nil
}

// processBatch fetches a batch's transcripts concurrently (IO-bound,
// independent reads) and then extracts sequentially, so LLM retries for
// one episode never race another attempt at the same episode.
func (s *Syncer) processBatch(ctx context.Context, ids []string, summary *Summary) error {
	items := make([]fetched, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			items[i] = s.fetchOne(gctx, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "sync: fetch batch")
	}

	var batch []model.Intelligence
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "sync: cancelled")
		}

		switch {
		case it.err != nil:
			summary.Failed = append(summary.Failed, Failure{ID: it.id, Reason: eris.ToString(it.err, false)})
			zap.L().Warn("sync: fetch failed", zap.String("episode_id", it.id), zap.Error(it.err))
			continue
		case it.header == nil:
			summary.Skipped++
			zap.L().Warn("sync: skipping episode with unparseable header", zap.String("episode_id", it.id))
			continue
		}

		if s.opts.SeedOnly {
			batch = append(batch, model.Intelligence{
				EpisodeID:       it.id,
				GuestName:       it.header.GuestName,
				EpisodeTitle:    it.header.EpisodeTitle,
				Companies:       []model.Company{},
				Frameworks:      []model.Framework{},
				QuestionSeeds:   []string{},
				MemorableQuotes: []string{},
				ExtractedAt:     time.Now().UTC(),
			})
			continue
		}

		rec, err := s.ex.Extract(ctx, model.Transcript{
			EpisodeID:    it.id,
			GuestName:    it.header.GuestName,
			EpisodeTitle: it.header.EpisodeTitle,
			Body:         it.body,
		})
		if err != nil {
			if gateway.IsSystemic(err) {
				summary.Aborted = true
				summary.AbortReason = eris.ToString(err, false)
				zap.L().Warn("sync: systemic gateway error, aborting run",
					zap.String("episode_id", it.id), zap.Error(err))
				break
			}
			summary.Failed = append(summary.Failed, Failure{ID: it.id, Reason: eris.ToString(err, false)})
			continue
		}
		batch = append(batch, *rec)
	}

	if len(batch) == 0 {
		return nil
	}
	n, err := s.st.UpsertIntelligenceBatch(ctx, batch)
	summary.NewlyProcessed += n
	if err != nil {
		return eris.Wrap(err, "sync: persist batch")
	}
	return nil
}

func (s *Syncer) fetchOne(ctx context.Context, id string) fetched {
	it := fetched{id: id}
	it.header, it.err = s.src.FetchTranscriptHeader(ctx, id)
	if it.err != nil || it.header == nil || s.opts.SeedOnly {
		return it
	}
	it.body, it.err = s.src.FetchTranscriptBody(ctx, id)
	return it
}
