// Package engine wires the orchestration components together behind one
// facade: the store, the lock manager, the assessor, the router, the
// lifecycle manager, and the background sweepers.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/codefleet/foreman/internal/assess"
	"github.com/codefleet/foreman/internal/config"
	"github.com/codefleet/foreman/internal/escalate"
	"github.com/codefleet/foreman/internal/events"
	"github.com/codefleet/foreman/internal/fleet"
	"github.com/codefleet/foreman/internal/lifecycle"
	"github.com/codefleet/foreman/internal/locks"
	"github.com/codefleet/foreman/internal/router"
	"github.com/codefleet/foreman/internal/state"
	"github.com/codefleet/foreman/pkg/models"
)

// Engine is the orchestration facade the CLI and API layer talk to.
type Engine struct {
	cfg     *config.Config
	store   state.Store
	emitter *events.Emitter
	logger  *DebugLogger

	Locks     *locks.Manager
	Assessor  *assess.Assessor
	Router    *router.Router
	Lifecycle *lifecycle.Manager
	Sweeper   *escalate.Sweeper

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options tune engine construction.
type Options struct {
	// DBPath overrides the configured database path.
	DBPath string
	// LogPath enables file-based debug logging.
	LogPath string
}

// New opens the store, runs migrations, and wires all components.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	logger, err := NewDebugLogger(opts.LogPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	emitter := events.NewEmitter(256)

	assessorOpts := []assess.Option{
		assess.WithSecondaryTimeout(cfg.Assessor.SecondaryTimeout),
	}
	if cfg.Assessor.SecondaryEnabled {
		secondary, err := assess.NewAnthropicAssessor(assess.AnthropicConfig{
			Model:         anthropic.Model(cfg.Anthropic.Model),
			APIKey:        cfg.Anthropic.APIKey,
			UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			logger.Close()
			db.Close()
			return nil, fmt.Errorf("secondary assessor: %w", err)
		}
		assessorOpts = append(assessorOpts, assess.WithSecondary(secondary))
	}
	assessor := assess.New(assessorOpts...)

	e := &Engine{
		cfg:       cfg,
		store:     db,
		emitter:   emitter,
		logger:    logger,
		Locks:     locks.NewManager(db, emitter),
		Assessor:  assessor,
		Router:    router.New(db, assessor, emitter),
		Lifecycle: lifecycle.NewManager(db, emitter),
		Sweeper:   escalate.NewSweeper(db, emitter),
	}

	if cfg.Fleet.ManifestPath != "" {
		manifest, err := fleet.LoadManifest(cfg.Fleet.ManifestPath)
		if err != nil {
			e.closeResources()
			return nil, err
		}
		if err := manifest.Register(db); err != nil {
			e.closeResources()
			return nil, err
		}
		logger.Log("registered %d agent(s) from %s", len(manifest.Agents), cfg.Fleet.ManifestPath)
	}

	return e, nil
}

// Start launches the background sweeps. They run until Stop is called.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.Locks.RunSweeper(ctx, e.cfg.Locks.SweepInterval)
	}()
	go func() {
		defer e.wg.Done()
		e.Sweeper.Run(ctx, e.cfg.Escalation.SweepInterval)
	}()

	e.logger.Log("engine started (lock sweep %s, escalation sweep %s)",
		e.cfg.Locks.SweepInterval, e.cfg.Escalation.SweepInterval)
}

// Stop halts the sweeps and releases all resources.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	return e.closeResources()
}

func (e *Engine) closeResources() error {
	e.emitter.Close()
	e.logger.Close()
	return e.store.Close()
}

// Events exposes the engine's event stream.
func (e *Engine) Events() <-chan events.Event {
	return e.emitter.Events()
}

// Store exposes the persistence layer for read paths.
func (e *Engine) Store() state.Store {
	return e.store
}

// NewTaskParams describes a task to create.
type NewTaskParams struct {
	Title              string
	Description        string
	Kind               models.TaskKind
	RequiredCapability models.Capability
	Priority           int
	MaxIterations      int
}

// CreateTask validates the parameters and creates a pending task.
func (e *Engine) CreateTask(p NewTaskParams) (*models.Task, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}
	if p.Kind == "" {
		p.Kind = models.TaskKindCode
	}
	if !p.Kind.Valid() {
		return nil, fmt.Errorf("unknown task kind %q", p.Kind)
	}
	if p.RequiredCapability != "" && !p.RequiredCapability.Valid() {
		return nil, fmt.Errorf("unknown capability %q", p.RequiredCapability)
	}
	if p.Priority == 0 {
		p.Priority = e.cfg.Defaults.Priority
	}
	if p.Priority < 1 || p.Priority > 10 {
		return nil, fmt.Errorf("priority %d out of range [1,10]", p.Priority)
	}
	if p.MaxIterations == 0 {
		p.MaxIterations = e.cfg.Defaults.MaxIterations
	}

	task := &models.Task{
		ID:                  uuid.New().String(),
		Title:               p.Title,
		Description:         p.Description,
		Kind:                p.Kind,
		RequiredCapability:  p.RequiredCapability,
		Priority:            p.Priority,
		Status:              models.TaskStatusPending,
		MaxIterations:       p.MaxIterations,
		HumanTimeoutMinutes: e.cfg.Escalation.HumanTimeoutMinutes,
		CreatedAt:           time.Now().UTC(),
	}
	if err := e.store.CreateTask(task); err != nil {
		return nil, err
	}
	e.logger.Log("created task %s (%s, priority %d)", task.ID, task.Kind, task.Priority)
	return task, nil
}

// PendingQueue returns the pending backlog.
func (e *Engine) PendingQueue() ([]models.Task, error) {
	return e.store.ListTasksByStatus(models.TaskStatusPending)
}

// Assign binds a specific pending task to a specific idle agent.
func (e *Engine) Assign(taskID, agentID string) error {
	return e.Lifecycle.AssignTask(taskID, agentID)
}

// AutoAssign gives the named idle agent the next pending task.
func (e *Engine) AutoAssign(agentID string) (*models.Task, error) {
	task, err := e.store.NextPendingTask()
	if err != nil {
		return nil, err
	}
	if err := e.Lifecycle.AssignTask(task.ID, agentID); err != nil {
		return nil, err
	}
	return task, nil
}

// SmartAssign routes and assigns the next pending task in one step.
func (e *Engine) SmartAssign(ctx context.Context) (*models.RoutingDecision, error) {
	decision, err := e.Router.AutoAssignNext(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Log("smart-assign: task %s -> agent %s (%s, %s)",
		decision.TaskID, decision.AgentID, decision.Tier, decision.Reason)
	return decision, nil
}

// RouteRecommendation routes a task without committing the assignment.
func (e *Engine) RouteRecommendation(ctx context.Context, taskID string) (*models.RoutingDecision, error) {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	return e.Router.Route(ctx, task)
}
