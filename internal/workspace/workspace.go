// Package workspace coordinates a user's open projects: every mutation is
// sent to the persistence gateway first and applied to the in-memory graph
// only after the gateway accepts it.
package workspace

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/internal/events"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway"
	"github.com/wuzhiguocarter/Aletheia/internal/graph"
	"github.com/wuzhiguocarter/Aletheia/internal/insight"
	"github.com/wuzhiguocarter/Aletheia/internal/observability"
	"github.com/wuzhiguocarter/Aletheia/internal/persona"
)

// Session identifies who is working on which project. It is passed on every
// call; the workspace keeps no notion of a current user.
type Session struct {
	UserID    shared.UserID    `json:"user_id"`
	ProjectID shared.ProjectID `json:"project_id"`
	Mode      project.WorkMode `json:"mode"`
}

// HasProject reports whether a project is selected.
func (s Session) HasProject() bool { return s.ProjectID != "" }

// ErrNoProject is returned by graph operations on a session without a project.
var ErrNoProject = errors.Validation(errors.CodeProjectNotOpen.String(), "no project selected").Build()

// Config tunes the workspace.
type Config struct {
	// DefaultAudience is recorded on exports that do not name one.
	DefaultAudience string
	// UpdateAttempts bounds the retries of an unpinned block update that
	// keeps losing the version race.
	UpdateAttempts int
	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration
	// SessionIdle evicts a session's graph after this long without use.
	// Zero keeps graphs until CloseProject.
	SessionIdle time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		DefaultAudience: project.DefaultAudience,
		UpdateAttempts:  3,
		RetryBackoff:    100 * time.Millisecond,
		SessionIdle:     30 * time.Minute,
	}
}

type sessionKey struct {
	user    shared.UserID
	project shared.ProjectID
}

type openProject struct {
	mu      sync.RWMutex
	project project.Project
	store   *graph.Store

	// guarded by Workspace.mu
	lastUsed time.Time
}

func (o *openProject) info() project.Project {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.project
}

func (o *openProject) setInfo(p project.Project) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.project = p
}

// Workspace is safe for concurrent use.
type Workspace struct {
	gw        gateway.Gateway
	responder persona.Responder
	analyzer  *insight.Analyzer
	publisher events.Publisher
	metrics   *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
	cfg       Config

	mu        sync.Mutex
	open      map[sessionKey]*openProject
	lastSweep time.Time
	loading   singleflight.Group
}

// Option customises a Workspace.
type Option func(*Workspace)

func WithPublisher(p events.Publisher) Option { return func(w *Workspace) { w.publisher = p } }

func WithMetrics(c *observability.Collector) Option { return func(w *Workspace) { w.metrics = c } }

func WithTracer(t trace.Tracer) Option { return func(w *Workspace) { w.tracer = t } }

func WithAnalyzer(a *insight.Analyzer) Option { return func(w *Workspace) { w.analyzer = a } }

func WithClock(now func() time.Time) Option { return func(w *Workspace) { w.now = now } }

func WithConfig(cfg Config) Option { return func(w *Workspace) { w.cfg = cfg } }

// New builds a workspace over gw, answering persona prompts with responder.
func New(gw gateway.Gateway, responder persona.Responder, logger *zap.Logger, opts ...Option) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workspace{
		gw:        gw,
		responder: responder,
		analyzer:  insight.NewAnalyzer(),
		publisher: events.Noop{},
		tracer:    noop.NewTracerProvider().Tracer("workspace"),
		logger:    logger.Named("workspace"),
		now:       time.Now,
		cfg:       DefaultConfig(),
		open:      make(map[sessionKey]*openProject),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.cfg.UpdateAttempts < 1 {
		w.cfg.UpdateAttempts = 1
	}
	if w.cfg.DefaultAudience == "" {
		w.cfg.DefaultAudience = project.DefaultAudience
	}
	return w
}

// ============================================================================
// SESSIONS
// ============================================================================

// OpenProject loads the project's blocks and relationships into a fresh
// graph for the session, replacing any graph already open for it.
func (w *Workspace) OpenProject(ctx context.Context, s Session) (project.Project, error) {
	ctx, span := w.startSpan(ctx, "workspace.OpenProject", s)
	defer span.End()

	if !s.HasProject() {
		return project.Project{}, w.fail(span, ErrNoProject)
	}
	op, err := w.load(ctx, s)
	if err != nil {
		return project.Project{}, w.fail(span, err)
	}
	return op.info(), nil
}

// CloseProject drops the session's graph.
func (w *Workspace) CloseProject(s Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.open, sessionKey{s.UserID, s.ProjectID})
	w.trackOpen()
}

// OpenSessions reports how many graphs are held in memory.
func (w *Workspace) OpenSessions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.open)
}

func (w *Workspace) load(ctx context.Context, s Session) (*openProject, error) {
	key := sessionKey{s.UserID, s.ProjectID}
	v, err, _ := w.loading.Do(string(s.UserID)+"/"+string(s.ProjectID), func() (any, error) {
		p, err := w.ownedProject(ctx, s)
		if err != nil {
			return nil, err
		}

		var (
			blocks []block.Block
			rels   []relationship.Relationship
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			blocks, err = w.gw.ListBlocks(gctx, s.ProjectID)
			return err
		})
		g.Go(func() error {
			var err error
			rels, err = w.gw.ListRelationships(gctx, s.ProjectID)
			return err
		})
		if err := g.Wait(); err != nil {
			w.logger.Error("failed to load project graph", zap.String("project_id", s.ProjectID.String()), zap.Error(err))
			return nil, err
		}

		store := graph.NewStore(s.ProjectID, graph.WithClock(w.now))
		if dropped := store.Load(blocks, rels, nil); dropped > 0 {
			w.logger.Warn("dropped relationships with missing endpoints",
				zap.String("project_id", s.ProjectID.String()),
				zap.Int("dropped", dropped),
			)
		}

		op := &openProject{project: p, store: store}
		w.mu.Lock()
		now := w.now()
		op.lastUsed = now
		w.open[key] = op
		w.sweepLocked(now)
		w.trackOpen()
		w.mu.Unlock()

		w.logger.Info("project opened",
			zap.String("project_id", s.ProjectID.String()),
			zap.String("user_id", s.UserID.String()),
			zap.Int("blocks", len(blocks)),
			zap.Int("relationships", len(rels)),
		)
		return op, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*openProject), nil
}

// session returns the open graph for s, loading it on first use.
func (w *Workspace) session(ctx context.Context, s Session) (*openProject, error) {
	if !s.HasProject() {
		return nil, ErrNoProject
	}
	if s.UserID == "" {
		return nil, shared.ErrEmptyUserID
	}
	w.mu.Lock()
	now := w.now()
	w.sweepLocked(now)
	op, ok := w.open[sessionKey{s.UserID, s.ProjectID}]
	if ok {
		op.lastUsed = now
	}
	w.mu.Unlock()
	if ok {
		return op, nil
	}
	return w.load(ctx, s)
}

// resync reloads the session's graph after a local lookup reported err.
// Only NotFound triggers a reload: another instance may have written what
// the local copy lacks. The bool reports whether a fresh graph is returned.
func (w *Workspace) resync(ctx context.Context, s Session, err error) (*openProject, bool) {
	if !errors.IsNotFound(err) {
		return nil, false
	}
	op, lerr := w.load(ctx, s)
	if lerr != nil {
		w.logger.Warn("failed to reload project graph",
			zap.String("project_id", s.ProjectID.String()),
			zap.Error(lerr),
		)
		return nil, false
	}
	return op, true
}

// sweepLocked evicts graphs idle longer than SessionIdle. It scans at most
// once per quarter of that period.
func (w *Workspace) sweepLocked(now time.Time) {
	idle := w.cfg.SessionIdle
	if idle <= 0 || now.Sub(w.lastSweep) < idle/4 {
		return
	}
	w.lastSweep = now
	evicted := 0
	for key, op := range w.open {
		if now.Sub(op.lastUsed) > idle {
			delete(w.open, key)
			evicted++
		}
	}
	if evicted > 0 {
		w.trackOpen()
		w.logger.Debug("evicted idle project graphs", zap.Int("evicted", evicted), zap.Int("open", len(w.open)))
	}
}

func (w *Workspace) trackOpen() {
	if w.metrics != nil {
		w.metrics.OpenGraphs.Set(float64(len(w.open)))
	}
}

func (w *Workspace) ownedProject(ctx context.Context, s Session) (project.Project, error) {
	p, err := w.gw.GetProject(ctx, s.ProjectID)
	if err != nil {
		return project.Project{}, err
	}
	if !p.OwnedBy(s.UserID) {
		return project.Project{}, errors.From(shared.ErrProjectForbidden).
			WithUserID(s.UserID.String()).
			WithResource(s.ProjectID.String()).
			Build()
	}
	return p, nil
}

// SetDefaultAudience changes the audience recorded on exports that do not
// name one. An empty value restores the built-in default.
func (w *Workspace) SetDefaultAudience(audience string) {
	if audience == "" {
		audience = project.DefaultAudience
	}
	w.mu.Lock()
	w.cfg.DefaultAudience = audience
	w.mu.Unlock()
}

func (w *Workspace) defaultAudience() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg.DefaultAudience
}

// Graph reloads the session's project from the gateway and returns a
// consistent copy of its blocks and relationships.
func (w *Workspace) Graph(ctx context.Context, s Session) (graph.Snapshot, error) {
	op, err := w.fresh(ctx, s)
	if err != nil {
		return graph.Snapshot{}, err
	}
	return op.store.Snapshot(), nil
}

// fresh reloads the session's graph so views reflect writes made through
// other instances sharing the gateway.
func (w *Workspace) fresh(ctx context.Context, s Session) (*openProject, error) {
	if !s.HasProject() {
		return nil, ErrNoProject
	}
	if s.UserID == "" {
		return nil, shared.ErrEmptyUserID
	}
	return w.load(ctx, s)
}

// ============================================================================
// HELPERS
// ============================================================================

func (w *Workspace) startSpan(ctx context.Context, name string, s Session, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("user.id", s.UserID.String()),
		attribute.String("project.id", s.ProjectID.String()),
	)
	return w.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (w *Workspace) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// remoteFailed logs a gateway error that aborted a mutation.
func (w *Workspace) remoteFailed(op string, s Session, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("operation", op),
		zap.String("project_id", s.ProjectID.String()),
		zap.Error(err),
	)
	if errors.IsGatewayFailure(err) {
		w.logger.Error("gateway rejected mutation; local graph unchanged", fields...)
		return
	}
	w.logger.Debug("mutation rejected", fields...)
}

func (w *Workspace) publish(ctx context.Context, evs ...events.Event) {
	if len(evs) == 0 {
		return
	}
	if err := w.publisher.Publish(ctx, evs...); err != nil {
		w.logger.Warn("failed to publish events", zap.Int("count", len(evs)), zap.Error(err))
	}
}

func (w *Workspace) event(eventType string, s Session, aggregateID string) events.Event {
	e := events.New(eventType, s.ProjectID.String(), aggregateID, s.UserID.String())
	e.OccurredAt = w.now().UTC()
	return e
}
