package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for scene persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Scene CRUD
	GetBySelector(ctx context.Context, selector string) (*Scene, error)
	List(ctx context.Context) ([]Scene, error)
	Save(ctx context.Context, scene *Scene) error
	Delete(ctx context.Context, selector string) error

	// Execution logging
	CreateExecution(ctx context.Context, exec *SceneExecution) error
	ListExecutions(ctx context.Context, selector string, limit int) ([]SceneExecution, error)
}

// sceneColumns is the SELECT column list for scene queries.
const sceneColumns = `selector, name, description, triggers, actions, created_at, updated_at`

const executionColumns = `id, scene_selector, root_id, status,
			stages_total, stages_run, actions_run, actions_failed,
			abort_stage, error, started_at, completed_at, duration_ms`

// timeLayout is a fixed-width RFC3339 layout so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetBySelector retrieves a scene by its selector.
func (r *SQLiteRepository) GetBySelector(ctx context.Context, selector string) (*Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes WHERE selector = ?`

	scene, err := scanSceneRow(r.db.QueryRowContext(ctx, query, selector))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSceneNotFound
		}
		return nil, fmt.Errorf("querying scene by selector: %w", err)
	}
	return scene, nil
}

// List retrieves all scenes ordered by selector.
func (r *SQLiteRepository) List(ctx context.Context) ([]Scene, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sceneColumns+` FROM scenes ORDER BY selector`)
	if err != nil {
		return nil, fmt.Errorf("querying scenes: %w", err)
	}
	defer rows.Close()

	var scenes []Scene
	for rows.Next() {
		scene, scanErr := scanSceneRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning scene: %w", scanErr)
		}
		scenes = append(scenes, *scene)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenes: %w", err)
	}
	return scenes, nil
}

// Save inserts a scene or replaces the one stored under the same selector.
// CreatedAt is preserved across replacements.
func (r *SQLiteRepository) Save(ctx context.Context, scene *Scene) error {
	triggersJSON, err := marshalTriggers(scene.Triggers)
	if err != nil {
		return fmt.Errorf("marshalling triggers: %w", err)
	}
	actionsJSON, err := marshalActions(scene.Actions)
	if err != nil {
		return fmt.Errorf("marshalling actions: %w", err)
	}

	now := time.Now().UTC()
	if scene.CreatedAt.IsZero() {
		scene.CreatedAt = now
	}
	scene.UpdatedAt = now

	query := `
		INSERT INTO scenes (
			selector, name, description, triggers, actions, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(selector) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			triggers = excluded.triggers,
			actions = excluded.actions,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		scene.Selector,
		scene.Name,
		nullableString(scene.Description),
		triggersJSON,
		actionsJSON,
		scene.CreatedAt.Format(timeLayout),
		scene.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving scene: %w", err)
	}
	return nil
}

// Delete removes a scene by selector.
func (r *SQLiteRepository) Delete(ctx context.Context, selector string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scenes WHERE selector = ?", selector)
	if err != nil {
		return fmt.Errorf("deleting scene: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSceneNotFound
	}
	return nil
}

// CreateExecution inserts an execution record.
func (r *SQLiteRepository) CreateExecution(ctx context.Context, exec *SceneExecution) error {
	query := `INSERT INTO scene_executions (` + executionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		exec.ID,
		exec.SceneSelector,
		exec.RootID,
		string(exec.Status),
		exec.StagesTotal,
		exec.StagesRun,
		exec.ActionsRun,
		exec.ActionsFailed,
		nullableInt(exec.AbortStage),
		nullableString(exec.Error),
		exec.StartedAt.UTC().Format(timeLayout),
		exec.CompletedAt.UTC().Format(timeLayout),
		exec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// ListExecutions retrieves the most recent executions of a scene, newest first.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, selector string, limit int) ([]SceneExecution, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := `SELECT ` + executionColumns + `
		FROM scene_executions
		WHERE scene_selector = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, selector, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var executions []SceneExecution
	for rows.Next() {
		exec, scanErr := scanExecutionRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning execution: %w", scanErr)
		}
		executions = append(executions, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return executions, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSceneRow(scanner rowScanner) (*Scene, error) {
	var s Scene
	var description sql.NullString
	var triggersJSON, actionsJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&s.Selector,
		&s.Name,
		&description,
		&triggersJSON,
		&actionsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		s.Description = &description.String
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)

	if triggersJSON != "" && triggersJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(triggersJSON), &s.Triggers); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling triggers: %w", jsonErr)
		}
	}
	if actionsJSON != "" && actionsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(actionsJSON), &s.Actions); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling actions: %w", jsonErr)
		}
	}
	if s.Actions == nil {
		s.Actions = [][]ActionSpec{}
	}

	return &s, nil
}

func scanExecutionRow(scanner rowScanner) (*SceneExecution, error) {
	var e SceneExecution
	var status, startedAt, completedAt string
	var abortStage sql.NullInt64
	var errMsg sql.NullString

	err := scanner.Scan(
		&e.ID,
		&e.SceneSelector,
		&e.RootID,
		&status,
		&e.StagesTotal,
		&e.StagesRun,
		&e.ActionsRun,
		&e.ActionsFailed,
		&abortStage,
		&errMsg,
		&startedAt,
		&completedAt,
		&e.DurationMS,
	)
	if err != nil {
		return nil, err
	}

	e.Status = ExecutionStatus(status)
	e.StartedAt = parseTime(startedAt)
	e.CompletedAt = parseTime(completedAt)
	if abortStage.Valid {
		stage := int(abortStage.Int64)
		e.AbortStage = &stage
	}
	if errMsg.Valid {
		e.Error = &errMsg.String
	}

	return &e, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func marshalTriggers(triggers []map[string]any) (string, error) {
	if len(triggers) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(triggers)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalActions(actions [][]ActionSpec) (string, error) {
	if len(actions) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
