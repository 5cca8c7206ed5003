package gateway

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

// ============================================================================
// RESILIENT DECORATOR - circuit breaker plus retry with exponential backoff
// ============================================================================

// RetryConfig configures retries for idempotent operations.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// DefaultRetryConfig returns three retries starting at 100ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// BreakerConfig configures the circuit breaker in front of the backend.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig trips at 80% failures over at least five calls.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.Unavailable(errors.CodeGatewayUnavailable.String(), "persistence gateway temporarily unavailable").
	WithRetryable(true).
	WithRetryAfter(5 * time.Second).
	Build()

// Resilient guards a Gateway with a circuit breaker and retries reads.
// Writes are attempted once: an insert that timed out may still have landed,
// and a second attempt would report a duplicate instead of the real outcome.
type Resilient struct {
	inner   Gateway
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
	logger  *zap.Logger

	randMu sync.Mutex
	rand   *rand.Rand
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ Gateway = (*Resilient)(nil)

// NewResilient wraps inner.
func NewResilient(inner Gateway, retry RetryConfig, breaker BreakerConfig, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resilient{
		inner:  inner,
		retry:  retry,
		logger: logger.Named("resilient_gateway"),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepContext,
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breaker.Name,
		MaxRequests: breaker.MaxRequests,
		Interval:    breaker.Interval,
		Timeout:     breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breaker.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Domain outcomes such as NotFound or VersionConflict mean the backend answered.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.IsGatewayFailure(err)
		},
	})
	return r
}

// State reports the breaker state.
func (r *Resilient) State() gobreaker.State {
	return r.breaker.State()
}

func (r *Resilient) execute(ctx context.Context, operation string, fn func() error, idempotent bool) error {
	maxRetries := r.retry.MaxRetries
	if !idempotent {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := r.breaker.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		if err == nil {
			if attempt > 0 {
				r.logger.Info("operation succeeded after retry",
					zap.String("operation", operation),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}

		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			return errors.From(ErrUnavailable).WithOperation(operation).WithCause(err).Build()
		}

		lastErr = err
		if attempt >= maxRetries || !errors.IsGatewayFailure(err) {
			break
		}

		delay := r.delay(attempt)
		r.logger.Warn("retrying operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func (r *Resilient) delay(attempt int) time.Duration {
	d := float64(r.retry.InitialDelay) * math.Pow(r.retry.BackoffFactor, float64(attempt))
	if r.retry.MaxDelay > 0 && d > float64(r.retry.MaxDelay) {
		d = float64(r.retry.MaxDelay)
	}
	if r.retry.JitterFactor > 0 {
		r.randMu.Lock()
		jitter := (r.rand.Float64()*2 - 1) * r.retry.JitterFactor * d
		r.randMu.Unlock()
		d += jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// read and write adapt value-returning calls to execute.
func read[T any](r *Resilient, ctx context.Context, op string, fn func() (T, error)) (T, error) {
	var out T
	err := r.execute(ctx, op, func() error {
		var err error
		out, err = fn()
		return err
	}, true)
	return out, err
}

func write[T any](r *Resilient, ctx context.Context, op string, fn func() (T, error)) (T, error) {
	var out T
	err := r.execute(ctx, op, func() error {
		var err error
		out, err = fn()
		return err
	}, false)
	return out, err
}

func (r *Resilient) Ping(ctx context.Context) error {
	return r.execute(ctx, "Ping", func() error { return r.inner.Ping(ctx) }, true)
}

func (r *Resilient) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	return write(r, ctx, "CreateProject", func() (project.Project, error) { return r.inner.CreateProject(ctx, p) })
}

func (r *Resilient) ListProjects(ctx context.Context, owner shared.UserID) ([]project.Project, error) {
	return read(r, ctx, "ListProjects", func() ([]project.Project, error) { return r.inner.ListProjects(ctx, owner) })
}

func (r *Resilient) GetProject(ctx context.Context, id shared.ProjectID) (project.Project, error) {
	return read(r, ctx, "GetProject", func() (project.Project, error) { return r.inner.GetProject(ctx, id) })
}

func (r *Resilient) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	return write(r, ctx, "UpdateProject", func() (project.Project, error) { return r.inner.UpdateProject(ctx, p) })
}

func (r *Resilient) DeleteProject(ctx context.Context, id shared.ProjectID) error {
	return r.execute(ctx, "DeleteProject", func() error { return r.inner.DeleteProject(ctx, id) }, false)
}

func (r *Resilient) InsertBlock(ctx context.Context, b block.Block) (block.Block, error) {
	return write(r, ctx, "InsertBlock", func() (block.Block, error) { return r.inner.InsertBlock(ctx, b) })
}

func (r *Resilient) ListBlocks(ctx context.Context, projectID shared.ProjectID) ([]block.Block, error) {
	return read(r, ctx, "ListBlocks", func() ([]block.Block, error) { return r.inner.ListBlocks(ctx, projectID) })
}

func (r *Resilient) UpdateBlock(ctx context.Context, b block.Block, expectedVersion int) (block.Block, error) {
	return write(r, ctx, "UpdateBlock", func() (block.Block, error) { return r.inner.UpdateBlock(ctx, b, expectedVersion) })
}

func (r *Resilient) ReviseBlock(ctx context.Context, b block.Block, prior block.Version) (block.Block, error) {
	return write(r, ctx, "ReviseBlock", func() (block.Block, error) { return r.inner.ReviseBlock(ctx, b, prior) })
}

func (r *Resilient) DeleteBlock(ctx context.Context, projectID shared.ProjectID, id shared.BlockID) error {
	return r.execute(ctx, "DeleteBlock", func() error { return r.inner.DeleteBlock(ctx, projectID, id) }, false)
}

func (r *Resilient) InsertRelationship(ctx context.Context, rel relationship.Relationship) (relationship.Relationship, error) {
	return write(r, ctx, "InsertRelationship", func() (relationship.Relationship, error) {
		return r.inner.InsertRelationship(ctx, rel)
	})
}

func (r *Resilient) ListRelationships(ctx context.Context, projectID shared.ProjectID) ([]relationship.Relationship, error) {
	return read(r, ctx, "ListRelationships", func() ([]relationship.Relationship, error) {
		return r.inner.ListRelationships(ctx, projectID)
	})
}

func (r *Resilient) DeleteRelationship(ctx context.Context, projectID shared.ProjectID, id shared.RelationshipID) error {
	return r.execute(ctx, "DeleteRelationship", func() error { return r.inner.DeleteRelationship(ctx, projectID, id) }, false)
}

func (r *Resilient) DeleteRelationshipsForBlock(ctx context.Context, projectID shared.ProjectID, blockID shared.BlockID) ([]shared.RelationshipID, error) {
	return write(r, ctx, "DeleteRelationshipsForBlock", func() ([]shared.RelationshipID, error) {
		return r.inner.DeleteRelationshipsForBlock(ctx, projectID, blockID)
	})
}

func (r *Resilient) InsertBlockVersion(ctx context.Context, v block.Version) (block.Version, error) {
	return write(r, ctx, "InsertBlockVersion", func() (block.Version, error) { return r.inner.InsertBlockVersion(ctx, v) })
}

func (r *Resilient) ListBlockVersions(ctx context.Context, blockID shared.BlockID) ([]block.Version, error) {
	return read(r, ctx, "ListBlockVersions", func() ([]block.Version, error) { return r.inner.ListBlockVersions(ctx, blockID) })
}

func (r *Resilient) InsertInteraction(ctx context.Context, i project.Interaction) (project.Interaction, error) {
	return write(r, ctx, "InsertInteraction", func() (project.Interaction, error) { return r.inner.InsertInteraction(ctx, i) })
}

func (r *Resilient) ListInteractions(ctx context.Context, projectID shared.ProjectID) ([]project.Interaction, error) {
	return read(r, ctx, "ListInteractions", func() ([]project.Interaction, error) {
		return r.inner.ListInteractions(ctx, projectID)
	})
}

func (r *Resilient) InsertExport(ctx context.Context, e project.Export) (project.Export, error) {
	return write(r, ctx, "InsertExport", func() (project.Export, error) { return r.inner.InsertExport(ctx, e) })
}

func (r *Resilient) ListExports(ctx context.Context, projectID shared.ProjectID) ([]project.Export, error) {
	return read(r, ctx, "ListExports", func() ([]project.Export, error) { return r.inner.ListExports(ctx, projectID) })
}
