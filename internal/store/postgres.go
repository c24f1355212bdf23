package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/pmprep/interview-cli/internal/model"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-constraint error.
const uniqueViolation = "23505"

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS intelligence (
	episode_id    TEXT PRIMARY KEY,
	guest_name    TEXT NOT NULL,
	episode_title TEXT NOT NULL,
	data          JSONB NOT NULL,
	extracted_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id         TEXT PRIMARY KEY,
	episode_id TEXT NOT NULL,
	type       TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	company    TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (episode_id, type, difficulty)
);

CREATE INDEX IF NOT EXISTS idx_questions_type ON questions(type);
CREATE INDEX IF NOT EXISTS idx_questions_difficulty ON questions(difficulty);
CREATE INDEX IF NOT EXISTS idx_questions_company ON questions(lower(company));
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const upsertIntelligenceSQL = `INSERT INTO intelligence (episode_id, guest_name, episode_title, data, extracted_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (episode_id) DO UPDATE SET
	  guest_name = EXCLUDED.guest_name,
	  episode_title = EXCLUDED.episode_title,
	  data = EXCLUDED.data,
	  extracted_at = EXCLUDED.extracted_at`

func (s *PostgresStore) HasIntelligence(ctx context.Context, episodeID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM intelligence WHERE episode_id = $1`, episodeID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: has intelligence %s", episodeID)
	}
	return true, nil
}

func (s *PostgresStore) UpsertIntelligence(ctx context.Context, rec *model.Intelligence) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal intelligence")
	}
	_, err = s.pool.Exec(ctx, upsertIntelligenceSQL,
		rec.EpisodeID, rec.GuestName, rec.EpisodeTitle, data, rec.ExtractedAt.UTC())
	return eris.Wrapf(err, "postgres: upsert intelligence %s", rec.EpisodeID)
}

func (s *PostgresStore) UpsertIntelligenceBatch(ctx context.Context, recs []model.Intelligence) (int, error) {
	written := 0
	for _, group := range chunk(recs) {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return written, eris.Wrap(err, "postgres: begin batch")
		}
		for i := range group {
			data, err := json.Marshal(&group[i])
			if err != nil {
				tx.Rollback(ctx)
				return written, eris.Wrap(err, "postgres: marshal intelligence")
			}
			if _, err := tx.Exec(ctx, upsertIntelligenceSQL,
				group[i].EpisodeID, group[i].GuestName, group[i].EpisodeTitle,
				data, group[i].ExtractedAt.UTC(),
			); err != nil {
				tx.Rollback(ctx)
				return written, eris.Wrapf(err, "postgres: batch upsert %s", group[i].EpisodeID)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return written, eris.Wrap(err, "postgres: commit batch")
		}
		written += len(group)
	}
	return written, nil
}

func (s *PostgresStore) GetIntelligence(ctx context.Context, episodeID string) (*model.Intelligence, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM intelligence WHERE episode_id = $1`, episodeID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get intelligence %s", episodeID)
	}
	var rec model.Intelligence
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal intelligence %s", episodeID)
	}
	return &rec, nil
}

func (s *PostgresStore) ListIntelligence(ctx context.Context) ([]model.Intelligence, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM intelligence ORDER BY extracted_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list intelligence")
	}
	defer rows.Close()

	var recs []model.Intelligence
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan intelligence")
		}
		var rec model.Intelligence
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal intelligence")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list intelligence iterate")
}

func (s *PostgresStore) ListIntelligenceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT episode_id FROM intelligence`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list intelligence ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan episode id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list intelligence ids iterate")
}

func (s *PostgresStore) ExistsQuestion(ctx context.Context, episodeID string, typ model.InterviewType, diff model.Difficulty) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM questions WHERE episode_id = $1 AND type = $2 AND difficulty = $3`,
		episodeID, string(typ), string(diff),
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: exists question %s/%s/%s", episodeID, typ, diff)
	}
	return true, nil
}

func (s *PostgresStore) InsertQuestion(ctx context.Context, q *model.Question) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal question")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO questions (id, episode_id, type, difficulty, company, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		q.ID, q.EpisodeID, string(q.Type), string(q.Difficulty), q.Company,
		payload, q.CreatedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateQuestion
		}
		return eris.Wrapf(err, "postgres: insert question %s", q.ID)
	}
	return nil
}

func (s *PostgresStore) ListQuestionTriples(ctx context.Context, episodeID string) ([]model.Triple, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT episode_id, type, difficulty FROM questions WHERE episode_id = $1`, episodeID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list triples %s", episodeID)
	}
	defer rows.Close()

	var triples []model.Triple
	for rows.Next() {
		var tr model.Triple
		var typ, diff string
		if err := rows.Scan(&tr.EpisodeID, &typ, &diff); err != nil {
			return nil, eris.Wrap(err, "postgres: scan triple")
		}
		tr.Type = model.InterviewType(typ)
		tr.Difficulty = model.Difficulty(diff)
		triples = append(triples, tr)
	}
	return triples, eris.Wrap(rows.Err(), "postgres: list triples iterate")
}

func (s *PostgresStore) QueryQuestions(ctx context.Context, filter QuestionFilter) ([]model.Question, error) {
	query := `SELECT payload FROM questions WHERE 1=1`
	var args []any

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += ` AND type = ` + placeholder(len(args))
	}
	if filter.Difficulty != "" {
		args = append(args, string(filter.Difficulty))
		query += ` AND difficulty = ` + placeholder(len(args))
	}
	if filter.Company != "" {
		args = append(args, filter.Company)
		query += ` AND lower(company) = lower(` + placeholder(len(args)) + `)`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT ` + placeholder(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query questions")
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan question")
		}
		var q model.Question
		if err := json.Unmarshal(payload, &q); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal question")
		}
		questions = append(questions, q)
	}
	return questions, eris.Wrap(rows.Err(), "postgres: query questions iterate")
}

// placeholder returns the $n positional marker for the nth argument.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

var _ Store = (*PostgresStore)(nil)
