// Package store provides SQLite-backed persistence for skein.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/skein/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by updates that address a missing row.
var ErrNotFound = errors.New("not found")

// Store provides access to the skein SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY,
		parent_id INTEGER,
		depth INTEGER NOT NULL DEFAULT 0,
		state INTEGER NOT NULL,
		last_state INTEGER NOT NULL,
		label TEXT,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transitions (
		id TEXT PRIMARY KEY,
		task_id INTEGER NOT NULL,
		from_state INTEGER NOT NULL,
		to_state INTEGER NOT NULL,
		observed_at DATETIME NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(id)
	);

	CREATE TABLE IF NOT EXISTS imports (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		package TEXT,
		nvr TEXT,
		status TEXT NOT NULL,
		error TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS repo_requests (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		summary TEXT,
		url TEXT,
		owner TEXT,
		reason TEXT,
		state TEXT NOT NULL DEFAULT 'open',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pdr (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		subject TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_parent_id ON tasks(parent_id);
	CREATE INDEX IF NOT EXISTS idx_transitions_task_id ON transitions(task_id);
	CREATE INDEX IF NOT EXISTS idx_imports_status ON imports(status);
	CREATE INDEX IF NOT EXISTS idx_repo_requests_state ON repo_requests(state);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Task Operations ---

// SaveTask inserts or replaces the last known state of a watched task.
func (s *Store) SaveTask(task models.Task) error {
	var parent sql.NullInt64
	if task.ParentID != 0 {
		parent = sql.NullInt64{Int64: int64(task.ParentID), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, parent_id, depth, state, last_state, label, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET parent_id = excluded.parent_id, depth = excluded.depth, state = excluded.state,
		 last_state = excluded.last_state, label = excluded.label, updated_at = excluded.updated_at`,
		task.ID, parent, task.Depth, int(task.State), int(task.LastState), task.Label, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// GetTask retrieves a watched task by ID.
func (s *Store) GetTask(id int) (*models.Task, error) {
	row := s.db.QueryRow(
		`SELECT id, parent_id, depth, state, last_state, label, updated_at FROM tasks WHERE id = ?`, id,
	)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ListTasks returns watched tasks, optionally only those in the given state.
func (s *Store) ListTasks(state *models.TaskState) ([]models.Task, error) {
	query := `SELECT id, parent_id, depth, state, last_state, label, updated_at FROM tasks`
	var args []interface{}
	if state != nil {
		query += ` WHERE state = ?`
		args = append(args, int(*state))
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*models.Task, error) {
	var task models.Task
	var parent sql.NullInt64
	var label sql.NullString
	var state, last int
	if err := row.Scan(&task.ID, &parent, &task.Depth, &state, &last, &label, &task.UpdatedAt); err != nil {
		return nil, err
	}
	task.State = models.TaskState(state)
	task.LastState = models.TaskState(last)
	if parent.Valid {
		task.ParentID = int(parent.Int64)
	}
	if label.Valid {
		task.Label = label.String
	}
	return &task, nil
}

// RecordTransition appends an observed state change for a task.
func (s *Store) RecordTransition(taskID int, from, to models.TaskState) (*models.Transition, error) {
	tr := &models.Transition{
		ID:         uuid.New().String(),
		TaskID:     taskID,
		From:       from,
		To:         to,
		ObservedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO transitions (id, task_id, from_state, to_state, observed_at) VALUES (?, ?, ?, ?, ?)`,
		tr.ID, tr.TaskID, int(tr.From), int(tr.To), tr.ObservedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transition: %w", err)
	}
	return tr, nil
}

// GetTransitions returns the transitions of a task, oldest first.
func (s *Store) GetTransitions(taskID int) ([]models.Transition, error) {
	rows, err := s.db.Query(
		`SELECT id, task_id, from_state, to_state, observed_at FROM transitions WHERE task_id = ? ORDER BY observed_at, rowid`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []models.Transition
	for rows.Next() {
		var tr models.Transition
		var from, to int
		if err := rows.Scan(&tr.ID, &tr.TaskID, &from, &to, &tr.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.From = models.TaskState(from)
		tr.To = models.TaskState(to)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// --- Import Operations ---

// StartImport records the beginning of an import of the archive at path.
func (s *Store) StartImport(path string) (*models.ImportRecord, error) {
	rec := &models.ImportRecord{
		ID:        uuid.New().String(),
		Path:      path,
		Status:    models.ImportStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO imports (id, path, status, started_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Path, rec.Status, rec.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert import: %w", err)
	}
	return rec, nil
}

// FinishImport stores the outcome of an import.
func (s *Store) FinishImport(id, pkg, nvr string, status models.ImportStatus, errMsg string) error {
	res, err := s.db.Exec(
		`UPDATE imports SET package = ?, nvr = ?, status = ?, error = ?, ended_at = ? WHERE id = ?`,
		pkg, nvr, status, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update import: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("import %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListImports returns the import history, newest first, optionally filtered by status.
func (s *Store) ListImports(status string) ([]models.ImportRecord, error) {
	query := `SELECT id, path, package, nvr, status, error, started_at, ended_at FROM imports`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	var out []models.ImportRecord
	for rows.Next() {
		var rec models.ImportRecord
		var pkg, nvr, errMsg sql.NullString
		var endedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Path, &pkg, &nvr, &rec.Status, &errMsg, &rec.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		rec.Package = pkg.String
		rec.NVR = nvr.String
		rec.Error = errMsg.String
		if endedAt.Valid {
			rec.EndedAt = &endedAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Repo Request Operations ---

// CreateRequest stores a new open repository request.
func (s *Store) CreateRequest(name, summary, url, owner, reason string) (*models.RepoRequest, error) {
	req := &models.RepoRequest{
		ID:        uuid.New().String(),
		Name:      name,
		Summary:   summary,
		URL:       url,
		Owner:     owner,
		Reason:    reason,
		State:     models.RequestStateOpen,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO repo_requests (id, name, summary, url, owner, reason, state, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Name, req.Summary, req.URL, req.Owner, req.Reason, req.State, req.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}
	return req, nil
}

// GetRequest retrieves a repository request by ID.
func (s *Store) GetRequest(id string) (*models.RepoRequest, error) {
	req := &models.RepoRequest{}
	var summary, url, owner, reason sql.NullString
	err := s.db.QueryRow(
		`SELECT id, name, summary, url, owner, reason, state, created_at FROM repo_requests WHERE id = ?`, id,
	).Scan(&req.ID, &req.Name, &summary, &url, &owner, &reason, &req.State, &req.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query request: %w", err)
	}
	req.Summary, req.URL, req.Owner, req.Reason = summary.String, url.String, owner.String, reason.String
	return req, nil
}

// ListRequests returns repository requests in the given state, oldest first.
func (s *Store) ListRequests(state models.RequestState) ([]models.RepoRequest, error) {
	rows, err := s.db.Query(
		`SELECT id, name, summary, url, owner, reason, state, created_at FROM repo_requests WHERE state = ? ORDER BY created_at`,
		state,
	)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var out []models.RepoRequest
	for rows.Next() {
		var req models.RepoRequest
		var summary, url, owner, reason sql.NullString
		if err := rows.Scan(&req.ID, &req.Name, &summary, &url, &owner, &reason, &req.State, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		req.Summary, req.URL, req.Owner, req.Reason = summary.String, url.String, owner.String, reason.String
		out = append(out, req)
	}
	return out, rows.Err()
}

// CloseRequest marks a repository request as closed.
func (s *Store) CloseRequest(id string) error {
	res, err := s.db.Exec(`UPDATE repo_requests SET state = ? WHERE id = ?`, models.RequestStateClosed, id)
	if err != nil {
		return fmt.Errorf("close request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- PDR Operations ---

// WritePDR writes a Process Decision Record.
func (s *Store) WritePDR(action, inputsHash, outcome, subject, details string) (*models.PDREntry, error) {
	pdr := &models.PDREntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		Subject:    subject,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO pdr (id, action, inputs_hash, outcome, subject, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pdr.ID, pdr.Action, pdr.InputsHash, pdr.Outcome, pdr.Subject, pdr.Details, pdr.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pdr: %w", err)
	}
	return pdr, nil
}

// ListPDR returns the decision records for a subject, oldest first.
func (s *Store) ListPDR(subject string) ([]models.PDREntry, error) {
	rows, err := s.db.Query(
		`SELECT id, action, inputs_hash, outcome, subject, details, timestamp FROM pdr WHERE subject = ? ORDER BY timestamp, rowid`,
		subject,
	)
	if err != nil {
		return nil, fmt.Errorf("query pdr: %w", err)
	}
	defer rows.Close()

	var out []models.PDREntry
	for rows.Next() {
		var e models.PDREntry
		var subj, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.InputsHash, &e.Outcome, &subj, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pdr: %w", err)
		}
		e.Subject, e.Details = subj.String, details.String
		out = append(out, e)
	}
	return out, rows.Err()
}
