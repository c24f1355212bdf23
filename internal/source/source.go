// Package source provides access to the external transcript catalog. The
// pipeline only ever reads from a Source; transcripts are never written.
package source

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Header is the per-episode metadata parsed from the top of a transcript.
type Header struct {
	GuestName    string
	EpisodeTitle string
}

// Source lists and fetches transcripts by opaque episode id.
type Source interface {
	ListTranscriptIDs(ctx context.Context) ([]string, error)
	// FetchTranscriptHeader returns nil (no error) when the transcript
	// exists but its header block cannot be parsed.
	FetchTranscriptHeader(ctx context.Context, id string) (*Header, error)
	FetchTranscriptBody(ctx context.Context, id string) (string, error)
}

// headerDelimiter separates the header block from the transcript body.
const headerDelimiter = "---"

// ParseHeader reads the structured header block at the top of a transcript:
//
//	Guest: Jane Doe
//	Title: How we rebuilt onboarding
//	---
//	<body>
//
// Returns nil when either required key is missing or the delimiter never
// appears within the first lines.
func ParseHeader(text string) *Header {
	var h Header
	lines := strings.Split(text, "\n")
	const maxHeaderLines = 20

	for i, line := range lines {
		if i >= maxHeaderLines {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == headerDelimiter {
			if h.GuestName == "" || h.EpisodeTitle == "" {
				return nil
			}
			return &h
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "guest":
			h.GuestName = strings.TrimSpace(value)
		case "title":
			h.EpisodeTitle = strings.TrimSpace(value)
		}
	}
	return nil
}

// Body returns the transcript text after the first delimiter line, or the
// whole text when no delimiter is present. Lines are matched trimmed so
// CRLF transcripts drop their header block too.
func Body(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == headerDelimiter {
			return strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
	}
	return text
}

// stripMarks removes combining marks after NFKD decomposition, so accented
// titles produce plain-ASCII slugs.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives an opaque episode id from an episode title: accent-folded,
// lowercased, non-alphanumerics collapsed to single hyphens.
func Slugify(title string) (string, error) {
	folded, _, err := transform.String(stripMarks, title)
	if err != nil {
		return "", eris.Wrap(err, "source: fold title")
	}

	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-"), nil
}
