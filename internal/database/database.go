package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/aquatracking/aquatracking/internal/docstore"
)

func Connect(dsn string) (*sqlx.DB, error) {
	return sqlx.Connect("pgx", dsn)
}

const schema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT  NOT NULL,
	id         TEXT  NOT NULL,
	body       JSONB NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_body_gin ON documents USING GIN (body jsonb_path_ops);`

// PostgresStore keeps documents as JSONB rows of a single table.
type PostgresStore struct {
	db *sqlx.DB
}

var _ docstore.Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sqlx.DB) *PostgresStore { return &PostgresStore{db: db} }

// Migrate creates the documents table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) Insert(ctx context.Context, collection, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(collection, id, body) VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`,
		collection, id, body)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return docstore.ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents(collection, id, body) VALUES ($1,$2,$3)
		 ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body`,
		collection, id, body)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Replace(ctx context.Context, collection, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET body = $3 WHERE collection = $1 AND id = $2`,
		collection, id, body)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string, out any) error {
	var body []byte
	err := s.db.GetContext(ctx, &body,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal(body, out)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, collection string, filter docstore.Filter, out any) error {
	query, args, err := selectQuery("body", collection, filter)
	if err != nil {
		return err
	}
	var rows [][]byte
	if err := s.db.SelectContext(ctx, &rows, query+` ORDER BY id`, args...); err != nil {
		return fmt.Errorf("find %s: %w", collection, err)
	}
	docs := make([]json.RawMessage, len(rows))
	for i, r := range rows {
		docs[i] = r
	}
	return docstore.DecodeList(docs, out)
}

func (s *PostgresStore) Count(ctx context.Context, collection string, filter docstore.Filter) (int64, error) {
	query, args, err := selectQuery("count(*)", collection, filter)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// selectQuery builds a containment query; the filter becomes a JSON object
// matched with the @> operator.
func selectQuery(what, collection string, filter docstore.Filter) (string, []any, error) {
	query := `SELECT ` + what + ` FROM documents WHERE collection = $1`
	args := []any{collection}
	if len(filter) == 0 {
		return query, args, nil
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", nil, fmt.Errorf("encode filter: %w", err)
	}
	return query + ` AND body @> $2::jsonb`, append(args, string(raw)), nil
}
