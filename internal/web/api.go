package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/agon/internal/scheduler"
	"github.com/mtzanidakis/agon/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Competition workflow
	mux.HandleFunc("POST /api/submit-project", s.submitProject)
	mux.HandleFunc("POST /api/create-agents", s.createAgents)
	mux.HandleFunc("POST /api/get-results", s.getResults)
	mux.HandleFunc("POST /api/retrieve-code", s.retrieveCode)
	mux.HandleFunc("GET /api/agent-stats", s.getAgentStats)

	// Projects
	mux.HandleFunc("GET /api/projects", s.listProjects)
	mux.HandleFunc("GET /api/projects/{id}", s.getProject)
	mux.HandleFunc("GET /api/projects/{id}/rounds/{num}", s.getProjectRound)
	mux.HandleFunc("GET /api/projects/{id}/export", s.exportProject)

	// Personas
	mux.HandleFunc("GET /api/personas", s.listPersonas)

	// Secrets
	s.registerSecretsAPI(mux)

	// Scheduled runs
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("POST /api/runs", s.createRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.deleteRun)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) submitProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Task string `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonFailure(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Task == "" {
		jsonFailure(w, "task is required", http.StatusBadRequest)
		return
	}

	project, err := s.runner.SubmitProject(r.Context(), body.Task)
	if err != nil {
		jsonFailure(w, err.Error(), http.StatusInternalServerError)
		return
	}

	subtasks, _ := s.store.ListSubtasks(project.ID)
	jsonResponse(w, map[string]any{
		"success":    true,
		"project_id": project.ID,
		"status":     project.Status,
		"subtasks":   subtasks,
	})
}

func (s *Server) createAgents(w http.ResponseWriter, r *http.Request) {
	if s.agents == nil {
		jsonFailure(w, "agent platform not configured", http.StatusServiceUnavailable)
		return
	}

	created := make(map[string]string)
	for _, def := range s.registry.Definitions() {
		prompt := fmt.Sprintf("You are %s, a software engineer competing in a coding arena. Personality: %s. Always answer with working code.", def.Name, def.Personality)
		agentID, err := s.registry.EnsureAgent(r.Context(), s.agents, def.Name, prompt)
		if err != nil {
			jsonFailure(w, fmt.Sprintf("provision %s: %v", def.Name, err), http.StatusBadGateway)
			return
		}
		created[def.Name] = agentID
	}

	jsonResponse(w, map[string]any{
		"success": true,
		"agents":  created,
	})
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonFailure(w, "invalid request body", http.StatusBadRequest)
		return
	}

	project, err := s.store.GetProject(body.ProjectID)
	if err != nil {
		jsonFailure(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if project == nil {
		jsonFailure(w, "project not found", http.StatusNotFound)
		return
	}

	rounds, _ := s.store.ListRounds(project.ID)
	if rounds == nil {
		rounds = []store.Round{}
	}
	subtasks, _ := s.store.ListSubtasks(project.ID)

	jsonResponse(w, map[string]any{
		"success":  true,
		"project":  project,
		"subtasks": subtasks,
		"rounds":   rounds,
	})
}

func (s *Server) retrieveCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID string `json:"project_id"`
		AgentName string `json:"agent_name"`
		Round     int    `json:"round"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonFailure(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.ProjectID == "" {
		jsonFailure(w, "project_id is required", http.StatusBadRequest)
		return
	}

	// No agent requested: serve the canonical baseline.
	if body.AgentName == "" {
		code, err := s.artifacts.CanonicalCode(body.ProjectID)
		if err != nil {
			jsonFailure(w, err.Error(), http.StatusInternalServerError)
			return
		}
		jsonResponse(w, map[string]any{
			"success": true,
			"source":  "canonical",
			"code":    code,
		})
		return
	}

	if body.Round > 0 {
		arts, err := s.artifacts.RoundArtifacts(body.ProjectID, body.Round)
		if err != nil {
			jsonFailure(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, a := range arts {
			if a.AgentName == body.AgentName {
				jsonResponse(w, map[string]any{
					"success": true,
					"source":  body.AgentName,
					"round":   a.RoundNum,
					"code":    a.Code,
					"summary": a.Summary,
				})
				return
			}
		}
		jsonFailure(w, "no artifact for agent in that round", http.StatusNotFound)
		return
	}

	// Latest round for the agent.
	finals, _, err := s.artifacts.FinalArtifacts(body.ProjectID)
	if err != nil {
		jsonFailure(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a, ok := finals[body.AgentName]
	if !ok {
		jsonFailure(w, "no artifacts for agent", http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]any{
		"success": true,
		"source":  body.AgentName,
		"round":   a.RoundNum,
		"code":    a.Code,
		"summary": a.Summary,
	})
}

func (s *Server) getAgentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetAgentMessageStats()
	if err != nil {
		jsonFailure(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(stats))
	for _, def := range s.registry.Definitions() {
		entry := map[string]any{
			"agent":         def.Name,
			"personality":   def.Personality,
			"message_count": 0,
		}
		if st, ok := stats[def.Name]; ok {
			entry["message_count"] = st.MessageCount
			entry["last_active"] = formatMessageTime(st.LastActive)
		}
		out = append(out, entry)
	}

	jsonResponse(w, map[string]any{
		"success": true,
		"stats":   out,
	})
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	jsonResponse(w, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, err := s.store.GetProject(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if project == nil {
		jsonError(w, "project not found", http.StatusNotFound)
		return
	}

	subtasks, _ := s.store.ListSubtasks(id)
	rounds, _ := s.store.ListRounds(id)

	jsonResponse(w, map[string]any{
		"project":  project,
		"subtasks": subtasks,
		"rounds":   rounds,
	})
}

func (s *Server) getProjectRound(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var num int
	if _, err := fmt.Sscanf(r.PathValue("num"), "%d", &num); err != nil {
		jsonError(w, "invalid round number", http.StatusBadRequest)
		return
	}

	round, err := s.store.GetRound(id, num)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if round == nil {
		jsonError(w, "round not found", http.StatusNotFound)
		return
	}

	arts, _ := s.artifacts.RoundArtifacts(id, num)
	jsonResponse(w, map[string]any{
		"round":     round,
		"artifacts": arts,
	})
}

func (s *Server) exportProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, err := s.store.GetProject(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if project == nil {
		jsonError(w, "project not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.tar.zst"`, id))
	if err := s.artifacts.Export(id, w); err != nil {
		// Headers are already written at this point.
		slog.Warn("artifact export failed", "project_id", id, "error", err)
	}
}

func (s *Server) listPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := s.registry.List()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if personas == nil {
		personas = []store.Persona{}
	}
	jsonResponse(w, personas)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListScheduledRuns()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.ScheduledRun{}
	}
	jsonResponse(w, runs)
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Schedule string `json:"schedule"`
		Task     string `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Schedule == "" || body.Task == "" {
		jsonError(w, "name, schedule and task are required", http.StatusBadRequest)
		return
	}
	if !scheduler.Validate(body.Schedule) {
		jsonError(w, "invalid cron expression", http.StatusBadRequest)
		return
	}

	next, err := scheduler.NextRun(body.Schedule)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	run := &store.ScheduledRun{
		ID:        uuid.NewString(),
		Name:      body.Name,
		Schedule:  body.Schedule,
		Task:      body.Task,
		Status:    "active",
		NextRunAt: &next,
	}
	if err := s.store.SaveScheduledRun(run); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, run)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteScheduledRun(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	projects, _ := s.store.ListProjects()

	running := 0
	for _, p := range projects {
		if p.Status == "running" {
			running++
		}
	}

	uptime := formatUptime(time.Since(s.startedAt))

	recentMsgs, _ := s.store.GetRecentMessages(10)
	recentOut := make([]map[string]string, 0, len(recentMsgs))
	for _, m := range recentMsgs {
		recentOut = append(recentOut, map[string]string{
			"id":    fmt.Sprintf("%d", m.ID),
			"agent": m.FromAgent,
			"type":  m.Type,
			"text":  m.Content,
			"time":  formatMessageTime(m.CreatedAt),
		})
	}

	natsStatus := "disabled"
	if s.bus != nil {
		natsStatus = fmt.Sprintf("ok (%d clients)", s.bus.NumClients())
	}

	status := map[string]any{
		"status":           "ok",
		"personas":         len(s.registry.Definitions()),
		"projects":         len(projects),
		"running_projects": running,
		"uptime":           uptime,
		"recent_messages":  recentOut,
		"nats":             natsStatus,
		"timestamp":        time.Now().UTC(),
		"version":          s.version,
	}

	jsonResponse(w, status)
}

func formatMessageTime(t time.Time) string {
	local := t.Local()
	now := time.Now()
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return local.Format("15:04")
	}
	return local.Format("Jan 2 15:04")
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// jsonFailure writes the workflow endpoints' success envelope with
// success set to false.
func jsonFailure(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
