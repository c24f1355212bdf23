package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/pmprep/interview-cli/internal/model"
)

// upsertChunkSize bounds one batch write. A failed chunk fails alone;
// chunks already committed stay committed, and the idempotent upsert key
// lets a later run resume where this one stopped.
const upsertChunkSize = 50

// ErrDuplicateQuestion is returned by InsertQuestion when the
// (episode_id, type, difficulty) triple already exists. The unique
// constraint is the final guard against concurrent double-inserts; callers
// treat this as a skip, not a failure.
var ErrDuplicateQuestion = eris.New("store: question already exists for triple")

// QuestionFilter selects bank entries. Zero fields match everything.
type QuestionFilter struct {
	Type       model.InterviewType `json:"type,omitempty"`
	Difficulty model.Difficulty    `json:"difficulty,omitempty"`
	Company    string              `json:"company,omitempty"`
	Limit      int                 `json:"limit,omitempty"`
}

// Store is the durable home of extracted intelligence and assembled
// questions. Both record kinds are immutable-ish documents keyed by
// natural keys enforced at the store layer.
type Store interface {
	// Intelligence cache
	HasIntelligence(ctx context.Context, episodeID string) (bool, error)
	UpsertIntelligence(ctx context.Context, rec *model.Intelligence) error
	UpsertIntelligenceBatch(ctx context.Context, recs []model.Intelligence) (int, error)
	GetIntelligence(ctx context.Context, episodeID string) (*model.Intelligence, error)
	ListIntelligence(ctx context.Context) ([]model.Intelligence, error)
	ListIntelligenceIDs(ctx context.Context) ([]string, error)

	// Question bank
	ExistsQuestion(ctx context.Context, episodeID string, typ model.InterviewType, diff model.Difficulty) (bool, error)
	InsertQuestion(ctx context.Context, q *model.Question) error
	ListQuestionTriples(ctx context.Context, episodeID string) ([]model.Triple, error)
	QueryQuestions(ctx context.Context, filter QuestionFilter) ([]model.Question, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// chunk splits recs into upsertChunkSize groups.
func chunk(recs []model.Intelligence) [][]model.Intelligence {
	var out [][]model.Intelligence
	for len(recs) > upsertChunkSize {
		out = append(out, recs[:upsertChunkSize])
		recs = recs[upsertChunkSize:]
	}
	if len(recs) > 0 {
		out = append(out, recs)
	}
	return out
}
