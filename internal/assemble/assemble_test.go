package assemble

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmprep/interview-cli/internal/gateway"
	"github.com/pmprep/interview-cli/internal/model"
	"github.com/pmprep/interview-cli/internal/store"
)

const questionJSON = `{
	"suggested_time_minutes": 25,
	"situation_brief": "Acme had a dashboard nobody used.",
	"question": "How would you decide whether to sunset it?",
	"follow_ups": ["What metric confirms the call?"],
	"model_answer": {
		"what_happened": "They killed it.",
		"key_reasoning": "Usage did not justify maintenance cost.",
		"key_quote": "kill your darlings",
		"frameworks_mentioned": ["RICE"],
		"full_answer": "A complete answer."
	}
}`

// scriptedGateway returns questionJSON unless an error is scripted for a
// given call index (1-based).
type scriptedGateway struct {
	calls int
	errAt map[int]error
}

func (g *scriptedGateway) Complete(_ context.Context, _ gateway.Request) (string, error) {
	g.calls++
	if err, ok := g.errAt[g.calls]; ok {
		return "", err
	}
	return questionJSON, nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func fastOptions() Options {
	return Options{Pace: time.Nanosecond}
}

func record(episodeID string, companies ...model.Company) model.Intelligence {
	return model.Intelligence{
		EpisodeID:    episodeID,
		GuestName:    "Jane Doe",
		EpisodeTitle: "Scaling product teams",
		Companies:    companies,
		ExtractedAt:  time.Now().UTC(),
	}
}

func richCompany(name string, decisions, opinions int) model.Company {
	c := model.Company{Name: name, MentionContext: "discussed at length"}
	for i := 0; i < decisions; i++ {
		c.Decisions = append(c.Decisions, model.Decision{
			What: "made a call", Why: "it mattered", Outcome: "it worked", Quote: "we just did it",
		})
	}
	for i := 0; i < opinions; i++ {
		c.Opinions = append(c.Opinions, model.Opinion{Opinion: "strong view", Quote: "trust me"})
	}
	return c
}

func TestAssemble_FillsMissingPairs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// One of the four pairs already exists in the bank.
	existing := model.Question{
		ID: "q-existing", EpisodeID: "ep-001",
		Type: model.TypeStrategy, Difficulty: model.DifficultyMedium,
		Company: "Acme", Question: "old", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.InsertQuestion(ctx, &existing))

	gw := &scriptedGateway{}
	opts := fastOptions()
	opts.Types = []model.InterviewType{model.TypeStrategy, model.TypeMetrics}
	opts.Difficulties = []model.Difficulty{model.DifficultyMedium, model.DifficultyHard}

	asm := New(gw, st, opts)
	res, err := asm.Assemble(ctx, []model.Intelligence{record("ep-001", richCompany("Acme", 2, 1))})
	require.NoError(t, err)

	assert.Len(t, res.Generated, 3, "four pairs minus one existing triple")
	assert.Equal(t, 3, gw.calls, "no gateway call for the existing triple")
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Errors)
	assert.False(t, res.Aborted)

	triples, err := st.ListQuestionTriples(ctx, "ep-001")
	require.NoError(t, err)
	assert.Len(t, triples, 4)
}

func TestAssemble_PicksRichestCompany(t *testing.T) {
	st := newTestStore(t)
	gw := &scriptedGateway{}

	opts := fastOptions()
	opts.Types = []model.InterviewType{model.TypeProductSense}
	opts.Difficulties = []model.Difficulty{model.DifficultyMedium}

	rec := record("ep-001",
		richCompany("X", 2, 0), // score 2
		richCompany("Y", 1, 3), // score 4
	)

	asm := New(gw, st, opts)
	res, err := asm.Assemble(context.Background(), []model.Intelligence{rec})
	require.NoError(t, err)

	require.Len(t, res.Generated, 1)
	assert.Equal(t, "Y", res.Generated[0].Company)
}

func TestAssemble_SkipsEpisodeWithoutRichCompany(t *testing.T) {
	st := newTestStore(t)
	gw := &scriptedGateway{}

	rec := record("ep-001", model.Company{Name: "Hollow Inc"})

	asm := New(gw, st, fastOptions())
	res, err := asm.Assemble(context.Background(), []model.Intelligence{rec})
	require.NoError(t, err)

	assert.Empty(t, res.Generated)
	assert.Equal(t, 0, gw.calls, "an ungrounded episode must not reach the gateway")
}

func TestAssemble_SystemicErrorAborts(t *testing.T) {
	st := newTestStore(t)
	gw := &scriptedGateway{errAt: map[int]error{
		2: &gateway.Error{Kind: gateway.KindRateLimited, Status: 429},
	}}

	opts := fastOptions()
	opts.Types = []model.InterviewType{model.TypeStrategy}
	opts.Difficulties = model.AllDifficulties()

	asm := New(gw, st, opts)
	res, err := asm.Assemble(context.Background(), []model.Intelligence{
		record("ep-001", richCompany("Acme", 1, 1)),
	})
	require.NoError(t, err)

	assert.True(t, res.Aborted)
	assert.NotEmpty(t, res.AbortReason)
	assert.Len(t, res.Generated, 1, "work done before the abort is kept")
	assert.Equal(t, 2, gw.calls, "no further pairs are attempted after a systemic failure")
}

func TestAssemble_IsolatedErrorContinues(t *testing.T) {
	st := newTestStore(t)
	gw := &scriptedGateway{errAt: map[int]error{
		1: &gateway.Error{Kind: gateway.KindGateway, Status: 500},
	}}

	opts := fastOptions()
	opts.Types = []model.InterviewType{model.TypeStrategy}
	opts.Difficulties = model.AllDifficulties()

	asm := New(gw, st, opts)
	res, err := asm.Assemble(context.Background(), []model.Intelligence{
		record("ep-001", richCompany("Acme", 1, 1)),
	})
	require.NoError(t, err)

	assert.Len(t, res.Generated, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, model.DifficultyMedium, res.Errors[0].Triple.Difficulty)
	assert.False(t, res.Aborted)
}

func TestAssemble_MaxQuestionsCap(t *testing.T) {
	st := newTestStore(t)
	gw := &scriptedGateway{}

	opts := fastOptions()
	opts.MaxQuestions = 2

	asm := New(gw, st, opts)
	res, err := asm.Assemble(context.Background(), []model.Intelligence{
		record("ep-001", richCompany("Acme", 1, 1)),
	})
	require.NoError(t, err)

	assert.Len(t, res.Generated, 2)
	assert.Equal(t, 2, gw.calls)
}

func TestAssemble_StampsAuthoritativeFields(t *testing.T) {
	st := newTestStore(t)
	gw := &scriptedGateway{}

	opts := fastOptions()
	opts.Types = []model.InterviewType{model.TypeRCA}
	opts.Difficulties = []model.Difficulty{model.DifficultyExpert}

	asm := New(gw, st, opts)
	res, err := asm.Assemble(context.Background(), []model.Intelligence{
		record("ep-001", richCompany("Acme", 1, 0)),
	})
	require.NoError(t, err)

	require.Len(t, res.Generated, 1)
	q := res.Generated[0]
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, "ep-001", q.EpisodeID)
	assert.Equal(t, model.TypeRCA, q.Type)
	assert.Equal(t, model.DifficultyExpert, q.Difficulty)
	assert.Equal(t, "Acme", q.Company)
	assert.Equal(t, "Jane Doe", q.Source.GuestName)
	assert.Equal(t, 25, q.SuggestedTimeMinutes)
	assert.False(t, q.CreatedAt.IsZero())
}

func TestGenerateOne_PropagatesErrorDirectly(t *testing.T) {
	st := newTestStore(t)
	gw := &scriptedGateway{errAt: map[int]error{
		1: &gateway.Error{Kind: gateway.KindPaymentRequired, Status: 402},
	}}

	asm := New(gw, st, fastOptions())
	rec := record("ep-001", richCompany("Acme", 1, 0))

	_, err := asm.GenerateOne(context.Background(), &rec, model.TypeStrategy, model.DifficultyHard)
	require.Error(t, err)
	assert.Equal(t, gateway.KindPaymentRequired, gateway.KindOf(err))
	assert.Equal(t, 1, gw.calls)
}

func TestGenerateOne_NoRichCompany(t *testing.T) {
	st := newTestStore(t)
	gw := &scriptedGateway{}

	asm := New(gw, st, fastOptions())
	rec := record("ep-001", model.Company{Name: "Hollow Inc"})

	_, err := asm.GenerateOne(context.Background(), &rec, model.TypeStrategy, model.DifficultyHard)
	require.Error(t, err)
	assert.Equal(t, 0, gw.calls)
}

func TestDecisionSummary(t *testing.T) {
	tests := []struct {
		name string
		d    model.Decision
		want string
	}{
		{
			"all clauses",
			model.Decision{What: "killed the dashboard", Why: "nobody used it", Outcome: "focus shifted"},
			"killed the dashboard (Why: nobody used it) → focus shifted",
		},
		{
			"no why",
			model.Decision{What: "killed the dashboard", Outcome: "focus shifted"},
			"killed the dashboard → focus shifted",
		},
		{
			"no outcome",
			model.Decision{What: "killed the dashboard", Why: "nobody used it"},
			"killed the dashboard (Why: nobody used it)",
		},
		{
			"bare",
			model.Decision{What: "killed the dashboard"},
			"killed the dashboard",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decisionSummary(tt.d))
		})
	}
}

func TestPooledQuotes_CapAndOrder(t *testing.T) {
	c := richCompany("Acme", 4, 3) // 4 decision quotes, then 3 opinion quotes

	quotes := pooledQuotes(&c)
	require.Len(t, quotes, bundleLimit)
	assert.Equal(t, "we just did it", quotes[0])
	assert.Equal(t, "trust me", quotes[4], "opinion quotes fill the tail")
}

func TestTypeInstructions_CoverAllTypes(t *testing.T) {
	for _, typ := range model.AllInterviewTypes() {
		assert.NotEmpty(t, typeInstructions[typ], "missing instruction for %s", typ)
	}
}
