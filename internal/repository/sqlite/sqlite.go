// Package sqlite implements repository.Store on a durable SQLite database,
// following the teacher's dedicated-connection BEGIN IMMEDIATE pattern for
// the two atomic multi-row operations. JSON blobs carry skill lists,
// embeddings, context vectors, and ridge-regression state since SQLite has
// no native array or matrix type.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/taskloop/assignengine/internal/model"
	"github.com/taskloop/assignengine/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 1,
	difficulty INTEGER NOT NULL DEFAULT 1,
	required_skills_json TEXT NOT NULL DEFAULT '[]',
	skill_embeddings_blob TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	assignee_id TEXT,
	creator_id TEXT NOT NULL DEFAULT '',
	due_date DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS employees (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	skills_json TEXT NOT NULL DEFAULT '[]',
	skill_embeddings_blob TEXT NOT NULL DEFAULT '[]',
	productivity_score REAL NOT NULL DEFAULT 0,
	workload INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS assignments (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	employee_id TEXT NOT NULL,
	assigner_id TEXT NOT NULL DEFAULT '',
	context_vector_blob TEXT NOT NULL DEFAULT '[]',
	rework_count INTEGER NOT NULL DEFAULT 0,
	assigned_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_open_task
	ON assignments(task_id) WHERE completed_at IS NULL;

CREATE TABLE IF NOT EXISTS feedback (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL UNIQUE,
	employee_id TEXT NOT NULL,
	r_completion REAL NOT NULL DEFAULT 0,
	r_ontime REAL NOT NULL DEFAULT 0,
	r_good_behaviour REAL NOT NULL DEFAULT 0,
	p_overdue REAL NOT NULL DEFAULT 0,
	p_rework REAL NOT NULL DEFAULT 0,
	p_failure REAL NOT NULL DEFAULT 0,
	overdue_days INTEGER NOT NULL DEFAULT 0,
	raw_reward REAL NOT NULL DEFAULT 0,
	reward_value REAL NOT NULL DEFAULT 0,
	context_vector_blob TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS bandit_state (
	arm_id TEXT PRIMARY KEY,
	a_blob TEXT NOT NULL,
	b_blob TEXT NOT NULL,
	update_count INTEGER NOT NULL DEFAULT 0
);
`

// Store is a SQLite-backed repository.Store, safe for concurrent use via
// database/sql's own connection pool.
type Store struct {
	db *sql.DB
}

// Open creates (if necessary) and opens a SQLite database at path, in WAL
// mode, and ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// withImmediateTx acquires a dedicated connection and runs fn inside a
// BEGIN IMMEDIATE transaction, rolling back unless fn returns nil. A
// dedicated connection is required because database/sql's BeginTx has no
// way to request IMMEDIATE mode and the sqlite3 driver's own BeginTx always
// opens DEFERRED; running the raw "BEGIN IMMEDIATE" statement ourselves is
// the only way to acquire the write lock up front and serialize concurrent
// Assign/Complete calls against each other.
func (s *Store) withImmediateTx(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("sqlite: begin immediate: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(ctx, conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, priority, difficulty, required_skills_json,
		       skill_embeddings_blob, status, assignee_id, creator_id, due_date,
		       created_at, updated_at
		FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (s *Store) PutTask(ctx context.Context, task model.Task) error {
	skillsJSON, embJSON, err := marshalTaskSkills(task)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, priority, difficulty, required_skills_json,
		                    skill_embeddings_blob, status, assignee_id, creator_id, due_date,
		                    created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, description=excluded.description, priority=excluded.priority,
			difficulty=excluded.difficulty, required_skills_json=excluded.required_skills_json,
			skill_embeddings_blob=excluded.skill_embeddings_blob, status=excluded.status,
			assignee_id=excluded.assignee_id, creator_id=excluded.creator_id,
			due_date=excluded.due_date, updated_at=excluded.updated_at`,
		task.ID, task.Title, task.Description, task.Priority, task.Difficulty, skillsJSON,
		embJSON, string(task.Status), nullString(task.AssigneeID), task.CreatorID,
		nullTime(task.DueDate), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: put task: %w", err)
	}
	return nil
}

func (s *Store) ListActiveEmployees(ctx context.Context) ([]model.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, skills_json, skill_embeddings_blob, productivity_score,
		       workload, active, created_at, updated_at
		FROM employees WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list active employees: %w", err)
	}
	defer rows.Close()

	var out []model.Employee
	for rows.Next() {
		e, err := scanEmployeeRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, id string) (model.Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, skills_json, skill_embeddings_blob, productivity_score,
		       workload, active, created_at, updated_at
		FROM employees WHERE id = ?`, id)
	return scanEmployee(row)
}

func (s *Store) PutEmployee(ctx context.Context, employee model.Employee) error {
	skillsJSON, embJSON, err := marshalEmployeeSkills(employee)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, skills_json, skill_embeddings_blob, productivity_score,
		                        workload, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, skills_json=excluded.skills_json,
			skill_embeddings_blob=excluded.skill_embeddings_blob,
			productivity_score=excluded.productivity_score, workload=excluded.workload,
			active=excluded.active, updated_at=excluded.updated_at`,
		employee.ID, employee.Name, skillsJSON, embJSON, employee.ProductivityScore,
		employee.Workload, boolToInt(employee.Active), employee.CreatedAt, employee.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: put employee: %w", err)
	}
	return nil
}

func (s *Store) GetBanditArm(ctx context.Context, employeeID string) (*model.BanditArm, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT arm_id, a_blob, b_blob, update_count FROM bandit_state WHERE arm_id = ?`, employeeID)
	arm, err := scanArm(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &arm, nil
}

func (s *Store) GetOpenAssignmentForTask(ctx context.Context, taskID string) (model.Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, employee_id, assigner_id, context_vector_blob, rework_count,
		       assigned_at, completed_at
		FROM assignments WHERE task_id = ? AND completed_at IS NULL`, taskID)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return model.Assignment{}, repository.ErrNotFound
	}
	return a, err
}

func (s *Store) GetFeedbackForTask(ctx context.Context, taskID string) (model.Feedback, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, employee_id, r_completion, r_ontime, r_good_behaviour,
		       p_overdue, p_rework, p_failure, overdue_days, raw_reward, reward_value,
		       context_vector_blob, created_at
		FROM feedback WHERE task_id = ?`, taskID)
	f, err := scanFeedback(row)
	if err == sql.ErrNoRows {
		return model.Feedback{}, repository.ErrNotFound
	}
	return f, err
}

func (s *Store) Assign(ctx context.Context, rec repository.AssignRecord) error {
	return s.withImmediateTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var exists int
		err := conn.QueryRowContext(ctx,
			`SELECT 1 FROM assignments WHERE task_id = ? AND completed_at IS NULL`, rec.Task.ID).Scan(&exists)
		if err == nil {
			return repository.ErrConflict
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("sqlite: check open assignment: %w", err)
		}

		skillsJSON, embJSON, err := marshalTaskSkills(rec.Task)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO tasks (id, title, description, priority, difficulty, required_skills_json,
			                    skill_embeddings_blob, status, assignee_id, creator_id, due_date,
			                    created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status=excluded.status, assignee_id=excluded.assignee_id, updated_at=excluded.updated_at`,
			rec.Task.ID, rec.Task.Title, rec.Task.Description, rec.Task.Priority, rec.Task.Difficulty,
			skillsJSON, embJSON, string(rec.Task.Status), nullString(rec.Task.AssigneeID),
			rec.Task.CreatorID, nullTime(rec.Task.DueDate), rec.Task.CreatedAt, rec.Task.UpdatedAt,
		); err != nil {
			return fmt.Errorf("sqlite: assign: upsert task: %w", err)
		}

		contextJSON, err := json.Marshal(rec.Assignment.Context)
		if err != nil {
			return fmt.Errorf("sqlite: marshal context: %w", err)
		}
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO assignments (id, task_id, employee_id, assigner_id, context_vector_blob,
			                          rework_count, assigned_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
			rec.Assignment.ID, rec.Assignment.TaskID, rec.Assignment.AssigneeID,
			rec.Assignment.AssignerID, string(contextJSON), rec.Assignment.ReworkCount,
			rec.Assignment.AssignedAt,
		); err != nil {
			return fmt.Errorf("sqlite: assign: insert assignment: %w", err)
		}

		if _, err := conn.ExecContext(ctx,
			`UPDATE employees SET workload = workload + 1, updated_at = ? WHERE id = ?`,
			rec.Assignment.AssignedAt, rec.Assignment.AssigneeID,
		); err != nil {
			return fmt.Errorf("sqlite: assign: increment workload: %w", err)
		}
		return nil
	})
}

func (s *Store) Complete(ctx context.Context, rec repository.CompletionRecord) error {
	return s.withImmediateTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var existingID string
		err := conn.QueryRowContext(ctx,
			`SELECT id FROM assignments WHERE id = ?`, rec.Assignment.ID).Scan(&existingID)
		if err == sql.ErrNoRows {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("sqlite: complete: lookup assignment: %w", err)
		}

		var feedbackExists int
		err = conn.QueryRowContext(ctx,
			`SELECT 1 FROM feedback WHERE task_id = ?`, rec.Task.ID).Scan(&feedbackExists)
		if err == nil {
			return repository.ErrConflict
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("sqlite: complete: check feedback: %w", err)
		}

		if _, err := conn.ExecContext(ctx,
			`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
			string(rec.Task.Status), rec.Task.UpdatedAt, rec.Task.ID,
		); err != nil {
			return fmt.Errorf("sqlite: complete: update task: %w", err)
		}

		if _, err := conn.ExecContext(ctx,
			`UPDATE assignments SET completed_at = ?, rework_count = ? WHERE id = ?`,
			rec.Assignment.CompletedAt, rec.Assignment.ReworkCount, rec.Assignment.ID,
		); err != nil {
			return fmt.Errorf("sqlite: complete: close assignment: %w", err)
		}

		contextJSON, err := json.Marshal(rec.Feedback.Context)
		if err != nil {
			return fmt.Errorf("sqlite: marshal feedback context: %w", err)
		}
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO feedback (id, task_id, employee_id, r_completion, r_ontime, r_good_behaviour,
			                       p_overdue, p_rework, p_failure, overdue_days, raw_reward,
			                       reward_value, context_vector_blob, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Feedback.ID, rec.Feedback.TaskID, rec.Feedback.EmployeeID, rec.Feedback.RCompletion,
			rec.Feedback.ROnTime, rec.Feedback.RGoodBehaviour, rec.Feedback.POverdue,
			rec.Feedback.PRework, rec.Feedback.PFailure, rec.Feedback.OverdueDays,
			rec.Feedback.RawReward, rec.Feedback.RewardValue, string(contextJSON), rec.Feedback.CreatedAt,
		); err != nil {
			return fmt.Errorf("sqlite: complete: insert feedback: %w", err)
		}

		aJSON, err := json.Marshal(rec.Arm.A)
		if err != nil {
			return fmt.Errorf("sqlite: marshal arm A: %w", err)
		}
		bJSON, err := json.Marshal(rec.Arm.B)
		if err != nil {
			return fmt.Errorf("sqlite: marshal arm b: %w", err)
		}
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO bandit_state (arm_id, a_blob, b_blob, update_count)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(arm_id) DO UPDATE SET
				a_blob=excluded.a_blob, b_blob=excluded.b_blob, update_count=excluded.update_count`,
			rec.Arm.EmployeeID, string(aJSON), string(bJSON), rec.Arm.UpdateCount,
		); err != nil {
			return fmt.Errorf("sqlite: complete: upsert bandit arm: %w", err)
		}

		if _, err := conn.ExecContext(ctx, `
			UPDATE employees SET workload = MAX(workload - 1, 0), updated_at = ? WHERE id = ?`,
			time.Now(), rec.Assignment.AssigneeID,
		); err != nil {
			return fmt.Errorf("sqlite: complete: decrement workload: %w", err)
		}
		return nil
	})
}

func (s *Store) MarkRework(ctx context.Context, taskID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE assignments SET rework_count = rework_count + 1
		WHERE task_id = ? AND completed_at IS NULL`, taskID)
	if err != nil {
		return fmt.Errorf("sqlite: mark rework: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: mark rework: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func marshalTaskSkills(task model.Task) (skillsJSON, embJSON string, err error) {
	sj, err := json.Marshal(task.RequiredSkills)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: marshal required skills: %w", err)
	}
	ej, err := json.Marshal(task.SkillEmbeddings)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: marshal skill embeddings: %w", err)
	}
	return string(sj), string(ej), nil
}

func marshalEmployeeSkills(e model.Employee) (skillsJSON, embJSON string, err error) {
	sj, err := json.Marshal(e.Skills)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: marshal skills: %w", err)
	}
	ej, err := json.Marshal(e.Embeddings)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: marshal embeddings: %w", err)
	}
	return string(sj), string(ej), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (model.Task, error) {
	var t model.Task
	var skillsJSON, embJSON string
	var status string
	var assigneeID sql.NullString
	var dueDate sql.NullTime

	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Difficulty, &skillsJSON,
		&embJSON, &status, &assigneeID, &t.CreatorID, &dueDate, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Task{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("sqlite: scan task: %w", err)
	}

	t.Status = model.TaskStatus(status)
	t.AssigneeID = assigneeID.String
	if dueDate.Valid {
		due := dueDate.Time
		t.DueDate = &due
	}
	if err := json.Unmarshal([]byte(skillsJSON), &t.RequiredSkills); err != nil {
		return model.Task{}, fmt.Errorf("sqlite: unmarshal required skills: %w", err)
	}
	if err := json.Unmarshal([]byte(embJSON), &t.SkillEmbeddings); err != nil {
		return model.Task{}, fmt.Errorf("sqlite: unmarshal skill embeddings: %w", err)
	}
	return t, nil
}

func scanEmployee(row scanner) (model.Employee, error) {
	var e model.Employee
	var skillsJSON, embJSON string
	var active int

	err := row.Scan(&e.ID, &e.Name, &skillsJSON, &embJSON, &e.ProductivityScore, &e.Workload,
		&active, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Employee{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Employee{}, fmt.Errorf("sqlite: scan employee: %w", err)
	}

	e.Active = active != 0
	if err := json.Unmarshal([]byte(skillsJSON), &e.Skills); err != nil {
		return model.Employee{}, fmt.Errorf("sqlite: unmarshal skills: %w", err)
	}
	if err := json.Unmarshal([]byte(embJSON), &e.Embeddings); err != nil {
		return model.Employee{}, fmt.Errorf("sqlite: unmarshal embeddings: %w", err)
	}
	return e, nil
}

func scanEmployeeRows(rows *sql.Rows) (model.Employee, error) {
	return scanEmployee(rows)
}

func scanAssignment(row scanner) (model.Assignment, error) {
	var a model.Assignment
	var contextJSON string
	var completedAt sql.NullTime

	err := row.Scan(&a.ID, &a.TaskID, &a.AssigneeID, &a.AssignerID, &contextJSON,
		&a.ReworkCount, &a.AssignedAt, &completedAt)
	if err != nil {
		return model.Assignment{}, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(contextJSON), &a.Context); err != nil {
		return model.Assignment{}, fmt.Errorf("sqlite: unmarshal assignment context: %w", err)
	}
	return a, nil
}

func scanFeedback(row scanner) (model.Feedback, error) {
	var f model.Feedback
	var contextJSON string

	err := row.Scan(&f.ID, &f.TaskID, &f.EmployeeID, &f.RCompletion, &f.ROnTime, &f.RGoodBehaviour,
		&f.POverdue, &f.PRework, &f.PFailure, &f.OverdueDays, &f.RawReward, &f.RewardValue,
		&contextJSON, &f.CreatedAt)
	if err != nil {
		return model.Feedback{}, err
	}
	if err := json.Unmarshal([]byte(contextJSON), &f.Context); err != nil {
		return model.Feedback{}, fmt.Errorf("sqlite: unmarshal feedback context: %w", err)
	}
	return f, nil
}

func scanArm(row scanner) (model.BanditArm, error) {
	var arm model.BanditArm
	var aJSON, bJSON string

	err := row.Scan(&arm.EmployeeID, &aJSON, &bJSON, &arm.UpdateCount)
	if err != nil {
		return model.BanditArm{}, err
	}
	if err := json.Unmarshal([]byte(aJSON), &arm.A); err != nil {
		return model.BanditArm{}, fmt.Errorf("sqlite: unmarshal arm A: %w", err)
	}
	if err := json.Unmarshal([]byte(bJSON), &arm.B); err != nil {
		return model.BanditArm{}, fmt.Errorf("sqlite: unmarshal arm b: %w", err)
	}
	return arm, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ repository.Store = (*Store)(nil)
