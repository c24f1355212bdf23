package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/pmprep/interview-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS intelligence (
	episode_id    TEXT PRIMARY KEY,
	guest_name    TEXT NOT NULL,
	episode_title TEXT NOT NULL,
	data          TEXT NOT NULL,
	extracted_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id         TEXT PRIMARY KEY,
	episode_id TEXT NOT NULL,
	type       TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	company    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (episode_id, type, difficulty)
);

CREATE INDEX IF NOT EXISTS idx_questions_type ON questions(type);
CREATE INDEX IF NOT EXISTS idx_questions_difficulty ON questions(difficulty);
CREATE INDEX IF NOT EXISTS idx_questions_company ON questions(company);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) HasIntelligence(ctx context.Context, episodeID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM intelligence WHERE episode_id = ?`, episodeID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: has intelligence %s", episodeID)
	}
	return true, nil
}

func (s *SQLiteStore) UpsertIntelligence(ctx context.Context, rec *model.Intelligence) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal intelligence")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO intelligence (episode_id, guest_name, episode_title, data, extracted_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (episode_id) DO UPDATE SET
		   guest_name = excluded.guest_name,
		   episode_title = excluded.episode_title,
		   data = excluded.data,
		   extracted_at = excluded.extracted_at`,
		rec.EpisodeID, rec.GuestName, rec.EpisodeTitle, string(data), rec.ExtractedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert intelligence %s", rec.EpisodeID)
}

func (s *SQLiteStore) UpsertIntelligenceBatch(ctx context.Context, recs []model.Intelligence) (int, error) {
	written := 0
	for _, group := range chunk(recs) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return written, eris.Wrap(err, "sqlite: begin batch")
		}
		for i := range group {
			data, err := json.Marshal(&group[i])
			if err != nil {
				tx.Rollback()
				return written, eris.Wrap(err, "sqlite: marshal intelligence")
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO intelligence (episode_id, guest_name, episode_title, data, extracted_at)
				 VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT (episode_id) DO UPDATE SET
				   guest_name = excluded.guest_name,
				   episode_title = excluded.episode_title,
				   data = excluded.data,
				   extracted_at = excluded.extracted_at`,
				group[i].EpisodeID, group[i].GuestName, group[i].EpisodeTitle,
				string(data), group[i].ExtractedAt.UTC(),
			); err != nil {
				tx.Rollback()
				// Prior chunks stay committed; the caller resumes later.
				return written, eris.Wrapf(err, "sqlite: batch upsert %s", group[i].EpisodeID)
			}
		}
		if err := tx.Commit(); err != nil {
			return written, eris.Wrap(err, "sqlite: commit batch")
		}
		written += len(group)
	}
	return written, nil
}

func (s *SQLiteStore) GetIntelligence(ctx context.Context, episodeID string) (*model.Intelligence, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM intelligence WHERE episode_id = ?`, episodeID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get intelligence %s", episodeID)
	}
	var rec model.Intelligence
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal intelligence %s", episodeID)
	}
	return &rec, nil
}

func (s *SQLiteStore) ListIntelligence(ctx context.Context) ([]model.Intelligence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM intelligence ORDER BY extracted_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list intelligence")
	}
	defer rows.Close()

	var recs []model.Intelligence
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan intelligence")
		}
		var rec model.Intelligence
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal intelligence")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list intelligence iterate")
}

func (s *SQLiteStore) ListIntelligenceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT episode_id FROM intelligence`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list intelligence ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan episode id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list intelligence ids iterate")
}

func (s *SQLiteStore) ExistsQuestion(ctx context.Context, episodeID string, typ model.InterviewType, diff model.Difficulty) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM questions WHERE episode_id = ? AND type = ? AND difficulty = ?`,
		episodeID, string(typ), string(diff),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: exists question %s/%s/%s", episodeID, typ, diff)
	}
	return true, nil
}

func (s *SQLiteStore) InsertQuestion(ctx context.Context, q *model.Question) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal question")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO questions (id, episode_id, type, difficulty, company, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.EpisodeID, string(q.Type), string(q.Difficulty), q.Company,
		string(payload), q.CreatedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateQuestion
		}
		return eris.Wrapf(err, "sqlite: insert question %s", q.ID)
	}
	return nil
}

func (s *SQLiteStore) ListQuestionTriples(ctx context.Context, episodeID string) ([]model.Triple, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT episode_id, type, difficulty FROM questions WHERE episode_id = ?`, episodeID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list triples %s", episodeID)
	}
	defer rows.Close()

	var triples []model.Triple
	for rows.Next() {
		var tr model.Triple
		var typ, diff string
		if err := rows.Scan(&tr.EpisodeID, &typ, &diff); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan triple")
		}
		tr.Type = model.InterviewType(typ)
		tr.Difficulty = model.Difficulty(diff)
		triples = append(triples, tr)
	}
	return triples, eris.Wrap(rows.Err(), "sqlite: list triples iterate")
}

func (s *SQLiteStore) QueryQuestions(ctx context.Context, filter QuestionFilter) ([]model.Question, error) {
	query := `SELECT payload FROM questions WHERE 1=1`
	var args []any

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Difficulty != "" {
		query += ` AND difficulty = ?`
		args = append(args, string(filter.Difficulty))
	}
	if filter.Company != "" {
		query += ` AND company = ? COLLATE NOCASE`
		args = append(args, filter.Company)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query questions")
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan question")
		}
		var q model.Question
		if err := json.Unmarshal([]byte(payload), &q); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal question")
		}
		questions = append(questions, q)
	}
	return questions, eris.Wrap(rows.Err(), "sqlite: query questions iterate")
}

var _ Store = (*SQLiteStore)(nil)
