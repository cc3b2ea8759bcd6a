package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Persona struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AgentID     string    `json:"agent_id,omitempty"`
	Personality string    `json:"personality,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Store) SavePersona(p *Persona) error {
	keywords, _ := json.Marshal(p.Keywords)
	_, err := s.db.Exec(`
		INSERT INTO personas (id, name, agent_id, personality, keywords, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			agent_id = excluded.agent_id,
			personality = excluded.personality,
			keywords = excluded.keywords,
			updated_at = CURRENT_TIMESTAMP`,
		p.ID, p.Name, p.AgentID, p.Personality, string(keywords))
	if err != nil {
		return fmt.Errorf("save persona: %w", err)
	}
	return nil
}

func (s *Store) GetPersona(id string) (*Persona, error) {
	p := &Persona{}
	var agentID, personality, keywords sql.NullString
	err := s.db.QueryRow(`SELECT id, name, agent_id, personality, keywords, created_at, updated_at FROM personas WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &agentID, &personality, &keywords, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get persona: %w", err)
	}
	p.AgentID = agentID.String
	p.Personality = personality.String
	if keywords.Valid {
		_ = json.Unmarshal([]byte(keywords.String), &p.Keywords)
	}
	return p, nil
}

func (s *Store) ListPersonas() ([]Persona, error) {
	rows, err := s.db.Query(`SELECT id, name, agent_id, personality, keywords, created_at, updated_at FROM personas ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	defer rows.Close()

	var personas []Persona
	for rows.Next() {
		var p Persona
		var agentID, personality, keywords sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &agentID, &personality, &keywords, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		p.AgentID = agentID.String
		p.Personality = personality.String
		if keywords.Valid {
			_ = json.Unmarshal([]byte(keywords.String), &p.Keywords)
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

func (s *Store) DeletePersonasNotIn(ids []string) error {
	if len(ids) == 0 {
		_, err := s.db.Exec(`DELETE FROM personas`)
		return err
	}
	query := `DELETE FROM personas WHERE id NOT IN (`
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = id
	}
	query += ")"
	_, err := s.db.Exec(query, args...)
	return err
}
