package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Round struct {
	ProjectID        string          `json:"project_id"`
	RoundNum         int             `json:"round_num"`
	SubtaskID        string          `json:"subtask_id"`
	Status           string          `json:"status"`
	Results          json.RawMessage `json:"results,omitempty"`
	Winner           string          `json:"winner,omitempty"`
	Commentary       string          `json:"commentary,omitempty"`
	CommentarySource string          `json:"commentary_source,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

func scanRound(scanner interface {
	Scan(dest ...any) error
}) (*Round, error) {
	r := &Round{}
	var results, winner, commentary, commentarySource *string
	err := scanner.Scan(&r.ProjectID, &r.RoundNum, &r.SubtaskID, &r.Status,
		&results, &winner, &commentary, &commentarySource, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if results != nil {
		r.Results = json.RawMessage(*results)
	}
	if winner != nil {
		r.Winner = *winner
	}
	if commentary != nil {
		r.Commentary = *commentary
	}
	if commentarySource != nil {
		r.CommentarySource = *commentarySource
	}
	return r, nil
}

const roundColumns = `project_id, round_num, subtask_id, status, results, winner, commentary, commentary_source, started_at, completed_at`

func (s *Store) SaveRound(r *Round) error {
	_, err := s.db.Exec(`
		INSERT INTO rounds (project_id, round_num, subtask_id, status, results, winner, commentary, commentary_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, round_num) DO UPDATE SET
			status = excluded.status,
			results = excluded.results,
			winner = excluded.winner,
			commentary = excluded.commentary,
			commentary_source = excluded.commentary_source,
			completed_at = CASE WHEN excluded.status IN ('completed', 'failed') THEN CURRENT_TIMESTAMP ELSE completed_at END`,
		r.ProjectID, r.RoundNum, r.SubtaskID, r.Status, nullableJSON(r.Results), r.Winner, r.Commentary, r.CommentarySource)
	if err != nil {
		return fmt.Errorf("save round: %w", err)
	}
	return nil
}

func (s *Store) GetRound(projectID string, roundNum int) (*Round, error) {
	row := s.db.QueryRow(`SELECT `+roundColumns+` FROM rounds WHERE project_id = ? AND round_num = ?`, projectID, roundNum)
	r, err := scanRound(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get round: %w", err)
	}
	return r, nil
}

func (s *Store) ListRounds(projectID string) ([]Round, error) {
	rows, err := s.db.Query(`SELECT `+roundColumns+` FROM rounds WHERE project_id = ? ORDER BY round_num`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, *r)
	}
	return rounds, rows.Err()
}
