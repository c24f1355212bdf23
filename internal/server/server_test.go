package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmprep/interview-cli/internal/assemble"
	"github.com/pmprep/interview-cli/internal/gateway"
	"github.com/pmprep/interview-cli/internal/model"
	"github.com/pmprep/interview-cli/internal/store"
)

const generatedQuestion = `{
	"suggested_time_minutes": 25,
	"situation_brief": "Acme had a dashboard nobody used.",
	"question": "How would you decide whether to sunset it?",
	"follow_ups": [],
	"model_answer": {
		"what_happened": "They killed it.",
		"key_reasoning": "Low usage.",
		"key_quote": "kill your darlings",
		"frameworks_mentioned": [],
		"full_answer": "A complete answer."
	}
}`

type stubGateway struct {
	calls int
	err   error
}

func (g *stubGateway) Complete(context.Context, gateway.Request) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return generatedQuestion, nil
}

func newTestServer(t *testing.T, gw gateway.Gateway) (*httptest.Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	asm := assemble.New(gw, st, assemble.Options{Pace: time.Nanosecond})
	srv := httptest.NewServer(New(st, asm).Router())
	t.Cleanup(srv.Close)
	return srv, st
}

func seedQuestion(t *testing.T, st store.Store, episodeID string, typ model.InterviewType, diff model.Difficulty) {
	t.Helper()
	q := model.Question{
		ID:         episodeID + "-" + string(typ) + "-" + string(diff),
		EpisodeID:  episodeID,
		Type:       typ,
		Company:    "Acme",
		Difficulty: diff,
		Question:   "What would you do?",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, st.InsertQuestion(context.Background(), &q))
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListQuestions_Filtered(t *testing.T) {
	srv, st := newTestServer(t, &stubGateway{})
	seedQuestion(t, st, "ep-1", model.TypeStrategy, model.DifficultyHard)
	seedQuestion(t, st, "ep-2", model.TypeMetrics, model.DifficultyMedium)

	resp, err := http.Get(srv.URL + "/api/questions?type=strategy")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Questions []model.Question `json:"questions"`
		Count     int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Questions, 1)
	assert.Equal(t, "ep-1", body.Questions[0].EpisodeID)
}

func TestListQuestions_BadFilter(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})

	resp, err := http.Get(srv.URL + "/api/questions?type=trivia")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/questions?limit=zero")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRandomQuestion_BankFastPath(t *testing.T) {
	gw := &stubGateway{}
	srv, st := newTestServer(t, gw)
	seedQuestion(t, st, "ep-1", model.TypeStrategy, model.DifficultyHard)

	resp, err := http.Get(srv.URL + "/api/questions/random?type=strategy")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var q model.Question
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&q))
	assert.Equal(t, "ep-1", q.EpisodeID)
	assert.Equal(t, 0, gw.calls, "bank hits never touch the gateway")
}

func TestRandomQuestion_FallbackGeneration(t *testing.T) {
	gw := &stubGateway{}
	srv, st := newTestServer(t, gw)

	rec := model.Intelligence{
		EpisodeID:    "ep-1",
		GuestName:    "Jane Doe",
		EpisodeTitle: "Scaling product teams",
		Companies: []model.Company{{
			Name:      "Acme",
			Decisions: []model.Decision{{What: "killed the dashboard"}},
		}},
		ExtractedAt: time.Now().UTC(),
	}
	require.NoError(t, st.UpsertIntelligence(context.Background(), &rec))

	resp, err := http.Get(srv.URL + "/api/questions/random?type=rca&difficulty=expert")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var q model.Question
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&q))
	assert.Equal(t, model.TypeRCA, q.Type)
	assert.Equal(t, model.DifficultyExpert, q.Difficulty)
	assert.Equal(t, 1, gw.calls)

	// The generated question landed in the bank for the next request.
	exists, err := st.ExistsQuestion(context.Background(), "ep-1", model.TypeRCA, model.DifficultyExpert)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRandomQuestion_EmptyEverything(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})

	resp, err := http.Get(srv.URL + "/api/questions/random")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRandomQuestion_SystemicFailureSurfaces(t *testing.T) {
	gw := &stubGateway{err: &gateway.Error{Kind: gateway.KindPaymentRequired, Status: 402}}
	srv, st := newTestServer(t, gw)

	rec := model.Intelligence{
		EpisodeID: "ep-1",
		Companies: []model.Company{{
			Name:      "Acme",
			Decisions: []model.Decision{{What: "did a thing"}},
		}},
		ExtractedAt: time.Now().UTC(),
	}
	require.NoError(t, st.UpsertIntelligence(context.Background(), &rec))

	resp, err := http.Get(srv.URL + "/api/questions/random")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
