// Package taskstore 保存已提交 relay 任务的流水（sqlite）。
// 核心逻辑只通过 execution.Journal 边界读写，不直接碰存储。
package taskstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/betbot/swapcore/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS relay_tasks (
	task_id      TEXT PRIMARY KEY,
	attempt_id   TEXT NOT NULL,
	input_asset  TEXT NOT NULL,
	output_asset TEXT NOT NULL,
	input_amount TEXT NOT NULL,
	min_output   TEXT NOT NULL,
	state        TEXT NOT NULL,
	tx_id        TEXT,
	reason       TEXT,
	submitted_at TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_relay_tasks_state ON relay_tasks(state);
`

// Store relay 任务流水存储
type Store struct {
	db *sql.DB
}

// Open 打开（或创建）流水库
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("taskstore: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("taskstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close 关闭存储
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordSubmitted 记录一次成功提交（实现 execution.Journal）
func (s *Store) RecordSubmitted(ctx context.Context, result *domain.SwapResult, quote *domain.SwapQuote) error {
	now := time.Now().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO relay_tasks (task_id, attempt_id, input_asset, output_asset, input_amount, min_output, state, submitted_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(task_id) DO NOTHING
`, result.RelayTaskID, result.AttemptID, quote.InputAsset, quote.OutputAsset,
		quote.InputAmount.String(), quote.MinOutputAmount.String(),
		string(domain.TaskStatePending), result.SubmittedAt.Format(time.RFC3339Nano), now)
	return err
}

// RecordTaskState 记录轮询观察到的任务状态（实现 execution.Journal）
func (s *Store) RecordTaskState(ctx context.Context, taskID string, status *domain.TaskStatus) error {
	now := time.Now().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
UPDATE relay_tasks
SET state=?, tx_id=?, reason=?, updated_at=?
WHERE task_id=?
`, string(status.State), nullable(status.TransactionID), nullable(status.Reason), now, taskID)
	return err
}

// TaskRecord 流水行
type TaskRecord struct {
	TaskID      string
	AttemptID   string
	InputAsset  string
	OutputAsset string
	State       domain.TaskState
	TxID        string
	Reason      string
	SubmittedAt time.Time
}

// ListPending 列出仍未终态的任务（进程重启后调用方可续轮询）
func (s *Store) ListPending(ctx context.Context, limit int) ([]TaskRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT task_id, attempt_id, input_asset, output_asset, state, tx_id, reason, submitted_at
FROM relay_tasks
WHERE state = ?
ORDER BY submitted_at ASC
LIMIT ?
`, string(domain.TaskStatePending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var (
			r           TaskRecord
			state       string
			txID        sql.NullString
			reason      sql.NullString
			submittedAt string
		)
		if err := rows.Scan(&r.TaskID, &r.AttemptID, &r.InputAsset, &r.OutputAsset,
			&state, &txID, &reason, &submittedAt); err != nil {
			return nil, err
		}
		r.State = domain.TaskState(state)
		if txID.Valid {
			r.TxID = txID.String
		}
		if reason.Valid {
			r.Reason = reason.String
		}
		if t, err := time.Parse(time.RFC3339Nano, submittedAt); err == nil {
			r.SubmittedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PendingTaskIDs 返回未终态任务的 ID（实现 execution.PendingLister）
func (s *Store) PendingTaskIDs(ctx context.Context, limit int) ([]string, error) {
	records, err := s.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.TaskID)
	}
	return ids, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
