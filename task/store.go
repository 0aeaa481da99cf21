package task

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	priority     TEXT NOT NULL DEFAULT 'medium',
	assignee     TEXT NOT NULL DEFAULT '',
	role         TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	case_id      TEXT NOT NULL DEFAULT '',
	client_id    TEXT NOT NULL DEFAULT '',
	stage        TEXT NOT NULL DEFAULT '',
	due_date     DATETIME NOT NULL,
	source_kind  TEXT NOT NULL DEFAULT '',
	source_id    TEXT NOT NULL DEFAULT '',
	source_name  TEXT NOT NULL DEFAULT '',
	suggested    INTEGER NOT NULL DEFAULT 0,
	auto_created INTEGER NOT NULL DEFAULT 0,
	checklist    TEXT NOT NULL DEFAULT '[]',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	completed_at DATETIME
);
`

// SQLiteStore persists tasks in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the tasks table exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create persists a new task and sets its ID, CreatedAt, and UpdatedAt.
func (s *SQLiteStore) Create(t *Task) (string, error) {
	t.ID = uuid.NewString()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = StatusPending
	}

	checklist, _ := json.Marshal(t.Checklist)

	_, err := s.db.Exec(`
		INSERT INTO tasks
			(id, title, description, status, priority, assignee, role, category,
			 case_id, client_id, stage, due_date, source_kind, source_id, source_name,
			 suggested, auto_created, checklist, created_at, updated_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.Assignee, t.Role, t.Category,
		t.CaseID, t.ClientID, t.Stage, t.DueDate,
		string(t.Source.Kind), t.Source.ID, t.Source.Name,
		t.Suggested, t.AutoCreated, string(checklist),
		t.CreatedAt, t.UpdatedAt, nullTime(t.CompletedAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return t.ID, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(id string) (*Task, error) {
	row := s.db.QueryRow(`SELECT * FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return t, err
}

// Update saves changes to an existing task, updating UpdatedAt automatically.
func (s *SQLiteStore) Update(t *Task) error {
	t.UpdatedAt = time.Now().UTC()
	checklist, _ := json.Marshal(t.Checklist)

	res, err := s.db.Exec(`
		UPDATE tasks SET
			title=?, description=?, status=?, priority=?, assignee=?, role=?, category=?,
			case_id=?, client_id=?, stage=?, due_date=?,
			source_kind=?, source_id=?, source_name=?,
			suggested=?, auto_created=?, checklist=?,
			updated_at=?, completed_at=?
		WHERE id=?`,
		t.Title, t.Description, string(t.Status), string(t.Priority),
		t.Assignee, t.Role, t.Category,
		t.CaseID, t.ClientID, t.Stage, t.DueDate,
		string(t.Source.Kind), t.Source.ID, t.Source.Name,
		t.Suggested, t.AutoCreated, string(checklist),
		t.UpdatedAt, nullTime(t.CompletedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s not found", t.ID)
	}
	return nil
}

// List returns tasks matching the filter, most urgent first.
func (s *SQLiteStore) List(filter Filter) ([]*Task, error) {
	q := strings.Builder{}
	q.WriteString("SELECT * FROM tasks WHERE 1=1")
	args := []any{}

	if filter.Status != nil {
		q.WriteString(" AND status=?")
		args = append(args, string(*filter.Status))
	}
	if filter.Assignee != "" {
		q.WriteString(" AND assignee=?")
		args = append(args, filter.Assignee)
	}
	if filter.CaseID != "" {
		q.WriteString(" AND case_id=?")
		args = append(args, filter.CaseID)
	}
	if filter.Stage != "" {
		q.WriteString(" AND stage=?")
		args = append(args, filter.Stage)
	}
	q.WriteString(" ORDER BY due_date ASC, created_at ASC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			q.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	rows, err := s.db.Query(q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Delete removes a task by ID.
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM tasks WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var status, priority, sourceKind, checklistJSON string
	var completedAt sql.NullTime

	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &status, &priority,
		&t.Assignee, &t.Role, &t.Category,
		&t.CaseID, &t.ClientID, &t.Stage, &t.DueDate,
		&sourceKind, &t.Source.ID, &t.Source.Name,
		&t.Suggested, &t.AutoCreated, &checklistJSON,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.Priority = Priority(priority)
	t.Source.Kind = SourceKind(sourceKind)

	_ = json.Unmarshal([]byte(checklistJSON), &t.Checklist)

	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
