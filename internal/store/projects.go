package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Project struct {
	ID           string          `json:"id"`
	Task         string          `json:"task"`
	Status       string          `json:"status"`
	CurrentRound int             `json:"current_round"`
	Winners      json.RawMessage `json:"winners,omitempty"`
	PlanSource   string          `json:"plan_source,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

type Subtask struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	RoundNum    int       `json:"round_num"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func scanProject(scanner interface {
	Scan(dest ...any) error
}) (*Project, error) {
	p := &Project{}
	var winners, planSource *string
	err := scanner.Scan(&p.ID, &p.Task, &p.Status, &p.CurrentRound, &winners, &planSource, &p.CreatedAt, &p.CompletedAt)
	if err != nil {
		return nil, err
	}
	if winners != nil {
		p.Winners = json.RawMessage(*winners)
	}
	if planSource != nil {
		p.PlanSource = *planSource
	}
	return p, nil
}

const projectColumns = `id, task, status, current_round, winners, plan_source, created_at, completed_at`

func (s *Store) SaveProject(p *Project) error {
	_, err := s.db.Exec(`
		INSERT INTO projects (id, task, status, current_round, winners, plan_source)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			current_round = excluded.current_round,
			winners = excluded.winners,
			completed_at = CASE WHEN excluded.status IN ('completed', 'failed') THEN CURRENT_TIMESTAMP ELSE completed_at END`,
		p.ID, p.Task, p.Status, p.CurrentRound, nullableJSON(p.Winners), p.PlanSource)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(id string) (*Project, error) {
	row := s.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *Store) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (s *Store) UpdateProject(id string, status string, currentRound int, winners json.RawMessage) error {
	_, err := s.db.Exec(`
		UPDATE projects
		SET status = ?, current_round = ?, winners = ?,
		    completed_at = CASE WHEN ? IN ('completed', 'failed') THEN CURRENT_TIMESTAMP ELSE completed_at END
		WHERE id = ?`, status, currentRound, nullableJSON(winners), status, id)
	return err
}

func (s *Store) SaveSubtask(t *Subtask) error {
	_, err := s.db.Exec(`
		INSERT INTO subtasks (id, project_id, title, description, round_num, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status`,
		t.ID, t.ProjectID, t.Title, t.Description, t.RoundNum, t.Status)
	if err != nil {
		return fmt.Errorf("save subtask: %w", err)
	}
	return nil
}

func (s *Store) ListSubtasks(projectID string) ([]Subtask, error) {
	rows, err := s.db.Query(`
		SELECT id, project_id, title, description, round_num, status, created_at
		FROM subtasks WHERE project_id = ? ORDER BY round_num`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	var subtasks []Subtask
	for rows.Next() {
		var t Subtask
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.RoundNum, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		subtasks = append(subtasks, t)
	}
	return subtasks, rows.Err()
}

func (s *Store) UpdateSubtaskStatus(id string, status string) error {
	_, err := s.db.Exec(`UPDATE subtasks SET status = ? WHERE id = ?`, status, id)
	return err
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
