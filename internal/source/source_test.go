package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTranscript = `Guest: Jane Doe
Title: How we rebuilt onboarding
---
Welcome back to the show. Today we talk about onboarding.`

func TestParseHeader(t *testing.T) {
	h := ParseHeader(sampleTranscript)
	require.NotNil(t, h)
	assert.Equal(t, "Jane Doe", h.GuestName)
	assert.Equal(t, "How we rebuilt onboarding", h.EpisodeTitle)
}

func TestParseHeader_CaseInsensitiveKeys(t *testing.T) {
	h := ParseHeader("GUEST: Jane Doe\ntitle: A Show\n---\nbody")
	require.NotNil(t, h)
	assert.Equal(t, "Jane Doe", h.GuestName)
	assert.Equal(t, "A Show", h.EpisodeTitle)
}

func TestParseHeader_Unparseable(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no delimiter", "Guest: Jane Doe\nTitle: A Show\nbody starts here"},
		{"missing guest", "Title: A Show\n---\nbody"},
		{"missing title", "Guest: Jane Doe\n---\nbody"},
		{"empty", ""},
		{"prose only", "This transcript has no header at all, just talk."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ParseHeader(tt.text))
		})
	}
}

func TestBody(t *testing.T) {
	body := Body(sampleTranscript)
	assert.Equal(t, "Welcome back to the show. Today we talk about onboarding.", body)
}

func TestBody_NoDelimiter(t *testing.T) {
	assert.Equal(t, "just text", Body("just text"))
}

func TestBody_CRLFTranscript(t *testing.T) {
	crlf := "Guest: Jane Doe\r\nTitle: A Show\r\n---\r\nThe actual talk starts here.\r\nMore talk."

	require.NotNil(t, ParseHeader(crlf))
	body := Body(crlf)
	assert.NotContains(t, body, "Guest:", "header block must not leak into the body")
	assert.Contains(t, body, "The actual talk starts here.")
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"How we rebuilt onboarding", "how-we-rebuilt-onboarding"},
		{"Café culture & PMs", "cafe-culture-pms"},
		{"  spaces   everywhere  ", "spaces-everywhere"},
		{"Episode #42: The Answer", "episode-42-the-answer"},
	}
	for _, tt := range tests {
		got, err := Slugify(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

// --- DirSource ---

func newTranscriptDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ep-b.txt"), []byte(sampleTranscript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ep-a.txt"), []byte(sampleTranscript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("not a transcript"), 0o644))
	return dir
}

func TestDirSource_ListTranscriptIDs(t *testing.T) {
	src := NewDir(newTranscriptDir(t))

	ids, err := src.ListTranscriptIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ep-a", "ep-b"}, ids, "only .txt files, sorted")
}

func TestDirSource_FetchHeaderAndBody(t *testing.T) {
	src := NewDir(newTranscriptDir(t))
	ctx := context.Background()

	h, err := src.FetchTranscriptHeader(ctx, "ep-a")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "Jane Doe", h.GuestName)

	body, err := src.FetchTranscriptBody(ctx, "ep-a")
	require.NoError(t, err)
	assert.Contains(t, body, "onboarding")
}

func TestDirSource_SlugifiesMessyFilenames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Episode #42: The Answer.txt"), []byte(sampleTranscript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Café Culture & PMs.txt"), []byte(sampleTranscript), 0o644))
	src := NewDir(dir)

	ids, err := src.ListTranscriptIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cafe-culture-pms", "episode-42-the-answer"}, ids)

	h, err := src.FetchTranscriptHeader(context.Background(), "episode-42-the-answer")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "Jane Doe", h.GuestName)
}

func TestDirSource_MissingTranscript(t *testing.T) {
	src := NewDir(newTranscriptDir(t))

	_, err := src.FetchTranscriptBody(context.Background(), "ep-nope")
	require.Error(t, err)
}

// --- HTTPSource ---

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/index.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(indexDoc{Episodes: []string{"ep-1", "ep-2"}})
	})
	mux.HandleFunc("/ep-1.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleTranscript))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSource_ListTranscriptIDs(t *testing.T) {
	srv := newCatalogServer(t)
	src := NewHTTP(HTTPOptions{BaseURL: srv.URL})

	ids, err := src.ListTranscriptIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ep-1", "ep-2"}, ids)
}

func TestHTTPSource_FetchHeaderAndBody(t *testing.T) {
	srv := newCatalogServer(t)
	src := NewHTTP(HTTPOptions{BaseURL: srv.URL})
	ctx := context.Background()

	h, err := src.FetchTranscriptHeader(ctx, "ep-1")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "How we rebuilt onboarding", h.EpisodeTitle)

	body, err := src.FetchTranscriptBody(ctx, "ep-1")
	require.NoError(t, err)
	assert.Contains(t, body, "Welcome back")
}

func TestHTTPSource_NotFound(t *testing.T) {
	srv := newCatalogServer(t)
	src := NewHTTP(HTTPOptions{BaseURL: srv.URL})

	_, err := src.FetchTranscriptBody(context.Background(), "ep-404")
	require.Error(t, err)
}
