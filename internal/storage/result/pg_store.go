// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package result

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS research_results (
	id          TEXT PRIMARY KEY,
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	example_id  TEXT,
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS research_results_question_idx ON research_results (question);`

// PgStore Postgres 实现：完整结果存 JSONB，常用字段单独成列便于检索
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore 连接数据库并确保表存在
func NewPgStore(ctx context.Context, dsn string) (*PgStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create research_results: %w", err)
	}
	return &PgStore{pool: pool}, nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Save upsert
func (s *PgStore) Save(ctx context.Context, r *trace.Result) error {
	if r == nil || r.ID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "result id is required")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO research_results (id, question, answer, status, example_id, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET answer = EXCLUDED.answer, status = EXCLUDED.status, payload = EXCLUDED.payload`,
		r.ID, r.Question, r.Answer, r.Status, nullStr(r.ExampleID), payload)
	return err
}

// Get 按 ID 获取
func (s *PgStore) Get(ctx context.Context, id string) (*trace.Result, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM research_results WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "result %s", id)
		}
		return nil, err
	}
	var r trace.Result
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("unmarshal result %s: %w", id, err)
	}
	return &r, nil
}

// List 最新在前
func (s *PgStore) List(ctx context.Context, limit int) ([]*trace.Result, error) {
	query := `SELECT payload FROM research_results ORDER BY created_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*trace.Result
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r trace.Result
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Questions 已有结果的问题集合
func (s *PgStore) Questions(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT question FROM research_results`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	qs := map[string]struct{}{}
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		qs[q] = struct{}{}
	}
	return qs, rows.Err()
}

// Close 关闭连接池
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}
