package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/agon/internal/artifact"
	"github.com/mtzanidakis/agon/internal/broker"
	"github.com/mtzanidakis/agon/internal/letta"
	"github.com/mtzanidakis/agon/internal/memory"
	"github.com/mtzanidakis/agon/internal/natsbus"
	"github.com/mtzanidakis/agon/internal/store"
)

type Runner struct {
	client      letta.Messenger
	planner     Planner
	selector    Selector
	commentator *Commentator
	personas    []Persona
	db          *store.Store
	artifacts   *artifact.Manager
	msgs        *broker.Broker
	events      *natsbus.Client

	personaTimeout time.Duration
	roundTimeout   time.Duration
}

type RunnerOpts struct {
	Client         letta.Messenger
	Planner        Planner
	Selector       Selector
	Commentator    *Commentator
	Personas       []Persona
	Store          *store.Store
	Artifacts      *artifact.Manager
	Broker         *broker.Broker
	Events         *natsbus.Client
	PersonaTimeout time.Duration
	RoundTimeout   time.Duration
}

func NewRunner(opts RunnerOpts) *Runner {
	r := &Runner{
		client:         opts.Client,
		planner:        opts.Planner,
		selector:       opts.Selector,
		commentator:    opts.Commentator,
		personas:       opts.Personas,
		db:             opts.Store,
		artifacts:      opts.Artifacts,
		msgs:           opts.Broker,
		events:         opts.Events,
		personaTimeout: opts.PersonaTimeout,
		roundTimeout:   opts.RoundTimeout,
	}
	if r.selector == nil {
		r.selector = HeuristicSelector{}
	}
	if r.msgs == nil {
		r.msgs = broker.New(nil)
	}
	if r.personaTimeout == 0 {
		r.personaTimeout = 2 * time.Minute
	}
	if r.roundTimeout == 0 {
		r.roundTimeout = 15 * time.Minute
	}
	return r
}

// SubmitProject plans the project, persists it, and executes the rounds
// in the background so the HTTP request returns immediately.
func (r *Runner) SubmitProject(ctx context.Context, task string) (*store.Project, error) {
	project, plan, err := r.prepare(ctx, task)
	if err != nil {
		return nil, err
	}

	// Background context so the run outlives the HTTP request.
	go func() {
		if err := r.execute(context.Background(), project, plan); err != nil {
			slog.Error("project run failed", "project", project.ID, "error", err)
		}
	}()

	return project, nil
}

// RunProject executes synchronously, for the interactive CLI.
func (r *Runner) RunProject(ctx context.Context, task string) (*store.Project, error) {
	project, plan, err := r.prepare(ctx, task)
	if err != nil {
		return nil, err
	}
	if err := r.execute(ctx, project, plan); err != nil {
		return project, err
	}
	return r.db.GetProject(project.ID)
}

func (r *Runner) prepare(ctx context.Context, task string) (*store.Project, *Plan, error) {
	if strings.TrimSpace(task) == "" {
		return nil, nil, fmt.Errorf("empty project description")
	}
	if len(r.personas) == 0 {
		return nil, nil, fmt.Errorf("no personas configured")
	}

	plan, err := r.planner.Plan(ctx, task)
	if err != nil {
		return nil, nil, fmt.Errorf("plan project: %w", err)
	}

	project := &store.Project{
		ID:         uuid.New().String(),
		Task:       task,
		Status:     "running",
		PlanSource: plan.Source,
	}
	if err := r.db.SaveProject(project); err != nil {
		return nil, nil, fmt.Errorf("save project: %w", err)
	}

	for i := range plan.Subtasks {
		st := &plan.Subtasks[i]
		st.RoundNum = i + 1
		st.Status = StatusPending
		err := r.db.SaveSubtask(&store.Subtask{
			ID:          st.ID,
			ProjectID:   project.ID,
			Title:       st.Title,
			Description: st.Description,
			RoundNum:    st.RoundNum,
			Status:      st.Status,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("save subtask: %w", err)
		}
	}

	r.publishEvent(project.ID, "project_started", map[string]any{
		"task":        task,
		"rounds":      len(plan.Subtasks),
		"plan_source": plan.Source,
	})

	return project, plan, nil
}

func (r *Runner) execute(ctx context.Context, project *store.Project, plan *Plan) error {
	slog.Info("starting project", "project", project.ID, "rounds", len(plan.Subtasks), "personas", len(r.personas))

	mem := memory.New()
	mem.SetProjectContext(memory.ProjectContext{ProjectID: project.ID})

	var winners []string
	var subtaskTitles []string
	for _, st := range plan.Subtasks {
		subtaskTitles = append(subtaskTitles, st.Title)
	}

	for _, subtask := range plan.Subtasks {
		subtask.Status = StatusInProgress
		_ = r.db.UpdateSubtaskStatus(subtask.ID, StatusInProgress)
		r.publishEvent(project.ID, "round_started", map[string]any{
			"round":   subtask.RoundNum,
			"subtask": subtask.Title,
		})

		outcome, err := r.runRound(ctx, project.ID, subtask, mem)
		if err != nil {
			_ = r.db.UpdateProject(project.ID, "failed", subtask.RoundNum, marshalWinners(winners))
			r.publishEvent(project.ID, "project_failed", map[string]any{
				"round": subtask.RoundNum,
				"error": err.Error(),
			})
			return fmt.Errorf("round %d: %w", subtask.RoundNum, err)
		}

		winners = append(winners, outcome.Winner)
		_ = r.db.UpdateSubtaskStatus(subtask.ID, StatusCompleted)
		_ = r.db.UpdateProject(project.ID, "running", subtask.RoundNum, marshalWinners(winners))

		err = r.artifacts.SaveProjectMetadata(artifact.ProjectMetadata{
			ProjectID:    project.ID,
			Task:         project.Task,
			Subtasks:     subtaskTitles,
			Winners:      winners,
			CurrentRound: subtask.RoundNum,
		})
		if err != nil {
			slog.Warn("save project metadata failed", "project", project.ID, "error", err)
		}

		r.publishEvent(project.ID, "round_completed", map[string]any{
			"round":      subtask.RoundNum,
			"winner":     outcome.Winner,
			"commentary": outcome.Commentary,
		})
	}

	_ = r.db.UpdateProject(project.ID, "completed", len(plan.Subtasks), marshalWinners(winners))
	r.publishEvent(project.ID, "project_completed", map[string]any{
		"rounds":  len(plan.Subtasks),
		"winners": winners,
	})

	slog.Info("project finished", "project", project.ID, "winners", winners)
	return nil
}

// runRound executes one DISPATCH → COLLECT → ANALYZE → DECIDE → LEARN →
// PERSIST cycle for a single subtask.
func (r *Runner) runRound(ctx context.Context, projectID string, subtask Subtask, mem *memory.Memory) (*RoundOutcome, error) {
	canonical := mem.ProjectContext().CanonicalCode

	// DISPATCH + COLLECT
	results, err := r.dispatch(ctx, projectID, subtask, canonical)
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		r.msgs.Send(res.AgentName, "commentator", strings.Join(res.Progress, "\n"), "progress")
	}

	// ANALYZE
	commentary, commentarySource := r.commentator.Narrate(ctx, subtask, results, r.personas)
	r.publishEvent(projectID, "commentary", map[string]any{
		"round":  subtask.RoundNum,
		"text":   commentary,
		"source": commentarySource,
	})

	// DECIDE
	winnerIdx, err := r.selector.SelectWinner(ctx, subtask, results, commentary)
	if err != nil {
		return nil, fmt.Errorf("select winner: %w", err)
	}
	if winnerIdx < 0 || winnerIdx >= len(results) {
		winnerIdx = 0
	}
	winner := results[winnerIdx]

	// LEARN: best-effort broadcast, individual failures logged and skipped.
	learning := buildLearningMessage(winner, subtask)
	for _, p := range r.personas {
		sendCtx, cancel := context.WithTimeout(ctx, r.personaTimeout)
		_, err := r.client.SendMessage(sendCtx, p.AgentID, learning)
		cancel()
		if err != nil {
			slog.Warn("learning message failed", "persona", p.Name, "error", err)
		}
	}
	r.msgs.Broadcast("arena", fmt.Sprintf("%s won round %d (%s)", winner.AgentName, subtask.RoundNum, subtask.Title), "learning")

	// PERSIST
	pc := mem.ProjectContext()
	pc.CanonicalCode = winner.Code
	pc.CurrentRound = subtask.RoundNum
	mem.SetProjectContext(pc)

	for _, res := range results {
		meta := artifact.RoundMetadata{
			AgentID: res.AgentID,
			Subtask: subtask.Title,
			Status:  res.Status,
		}
		summary := fmt.Sprintf("# %s — round %d\n\n%s\n", res.AgentName, subtask.RoundNum, strings.Join(res.Progress, "\n"))
		if err := r.artifacts.SaveAgentRound(projectID, res.AgentName, subtask.RoundNum, res.Code, meta, summary); err != nil {
			slog.Warn("save round artifact failed", "persona", res.AgentName, "error", err)
		}
	}
	if err := r.artifacts.SaveCanonicalCode(projectID, winner.Code); err != nil {
		slog.Warn("save canonical code failed", "project", projectID, "error", err)
	}

	resultsJSON, _ := json.Marshal(results)
	err = r.db.SaveRound(&store.Round{
		ProjectID:        projectID,
		RoundNum:         subtask.RoundNum,
		SubtaskID:        subtask.ID,
		Status:           "completed",
		Results:          resultsJSON,
		Winner:           winner.AgentName,
		Commentary:       commentary,
		CommentarySource: commentarySource,
	})
	if err != nil {
		slog.Warn("save round failed", "project", projectID, "round", subtask.RoundNum, "error", err)
	}

	return &RoundOutcome{
		ProjectID:        projectID,
		RoundNum:         subtask.RoundNum,
		Subtask:          subtask,
		Results:          results,
		WinnerIndex:      winnerIdx,
		Winner:           winner.AgentName,
		Commentary:       commentary,
		CommentarySource: commentarySource,
	}, nil
}

// dispatch fans the identical prompt out to every persona and joins the
// results, classifying each one as ok or error after the join. A failed
// call becomes an error result; it never aborts the round.
func (r *Runner) dispatch(ctx context.Context, projectID string, subtask Subtask, canonical string) ([]WorkResult, error) {
	results := make([]WorkResult, len(r.personas))
	var wg sync.WaitGroup

	for i, p := range r.personas {
		wg.Add(1)
		go func(i int, p Persona) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, r.personaTimeout)
			defer cancel()

			prompt := buildWorkPrompt(p, subtask, canonical)
			reply, err := r.client.SendMessage(callCtx, p.AgentID, prompt)
			if err != nil {
				results[i] = errorResult(p, err)
				return
			}

			code, progress := parseWorkReply(reply)
			results[i] = WorkResult{
				AgentName: p.Name,
				AgentID:   p.AgentID,
				Code:      code,
				Progress:  progress,
				Status:    ResultOK,
				CreatedAt: time.Now().UTC(),
			}

			r.publishEvent(projectID, "persona_completed", map[string]any{
				"round":   subtask.RoundNum,
				"persona": p.Name,
				"bytes":   len(code),
			})
		}(i, p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(r.roundTimeout):
		return nil, fmt.Errorf("round timed out after %s", r.roundTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Classify: every persona must have an entry.
	for i, p := range r.personas {
		if results[i].AgentName == "" {
			results[i] = errorResult(p, fmt.Errorf("no result"))
		}
		if results[i].Status == ResultError {
			slog.Warn("persona failed", "persona", p.Name, "error", results[i].Err)
			r.publishEvent(projectID, "persona_failed", map[string]any{
				"round":   subtask.RoundNum,
				"persona": p.Name,
				"error":   results[i].Err,
			})
		}
	}

	return results, nil
}

func errorResult(p Persona, err error) WorkResult {
	return WorkResult{
		AgentName: p.Name,
		AgentID:   p.AgentID,
		Code:      fmt.Sprintf("// Error: %v", err),
		Progress:  append([]string(nil), cannedProgress...),
		Status:    ResultError,
		Err:       err.Error(),
		CreatedAt: time.Now().UTC(),
	}
}

func (r *Runner) publishEvent(projectID, eventType string, data map[string]any) {
	if r.events == nil {
		return
	}

	event := map[string]any{
		"type":       eventType,
		"project_id": projectID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"data":       data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = r.events.Publish(natsbus.TopicProjectEvents(projectID), payload)
}

func marshalWinners(winners []string) json.RawMessage {
	if len(winners) == 0 {
		return nil
	}
	data, _ := json.Marshal(winners)
	return data
}
