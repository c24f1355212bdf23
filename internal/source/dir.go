package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DirSource reads transcripts from a local directory. Every *.txt file is
// one episode; the episode id is the slugified filename stem, so messy
// local names ("Episode #42: The Answer.txt") get the same id shape the
// remote catalog uses.
type DirSource struct {
	dir string
}

// NewDir creates a DirSource rooted at dir.
func NewDir(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// index maps episode id to filename. ReadDir returns entries sorted by
// name, so on an id collision the first file wins deterministically.
func (s *DirSource) index() (map[string]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read dir %s", s.dir)
	}

	idx := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		id, err := Slugify(strings.TrimSuffix(e.Name(), ".txt"))
		if err != nil || id == "" {
			zap.L().Warn("source: cannot derive episode id from filename",
				zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		if prev, ok := idx[id]; ok {
			zap.L().Warn("source: duplicate episode id, keeping first file",
				zap.String("episode_id", id),
				zap.String("kept", prev),
				zap.String("ignored", e.Name()))
			continue
		}
		idx[id] = e.Name()
	}
	return idx, nil
}

func (s *DirSource) ListTranscriptIDs(_ context.Context) ([]string, error) {
	idx, err := s.index()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *DirSource) FetchTranscriptHeader(_ context.Context, id string) (*Header, error) {
	text, err := s.read(id)
	if err != nil {
		return nil, err
	}
	h := ParseHeader(text)
	if h == nil {
		zap.L().Warn("source: unparseable transcript header", zap.String("episode_id", id))
	}
	return h, nil
}

func (s *DirSource) FetchTranscriptBody(_ context.Context, id string) (string, error) {
	text, err := s.read(id)
	if err != nil {
		return "", err
	}
	return Body(text), nil
}

func (s *DirSource) read(id string) (string, error) {
	idx, err := s.index()
	if err != nil {
		return "", err
	}
	name, ok := idx[id]
	if !ok {
		return "", eris.Errorf("source: no transcript for episode %s", id)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return "", eris.Wrapf(err, "source: read transcript %s", id)
	}
	return string(data), nil
}

var _ Source = (*DirSource)(nil)
