package gateway_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway/memory"
	"github.com/wuzhiguocarter/Aletheia/internal/observability"
)

func fastRetry() gateway.RetryConfig {
	return gateway.RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func seededProject(t *testing.T, g gateway.Gateway) project.Project {
	t.Helper()
	p, err := project.New("owner-1", "Thesis", "", time.Time{})
	require.NoError(t, err)
	p, err = g.CreateProject(context.Background(), p)
	require.NoError(t, err)
	return p
}

func TestResilient(t *testing.T) {
	ctx := context.Background()

	t.Run("RetriesReads", func(t *testing.T) {
		inner := memory.New()
		p := seededProject(t, inner)
		r := gateway.NewResilient(inner, fastRetry(), gateway.DefaultBreakerConfig("test"), zap.NewNop())

		inner.SetError("ListBlocks", stderrors.New("connection reset"))
		_, err := r.ListBlocks(ctx, p.ID)
		require.Error(t, err)
		assert.True(t, errors.IsGatewayFailure(err))
		assert.Equal(t, 3, inner.Calls("ListBlocks"))
	})

	t.Run("WritesAttemptedOnce", func(t *testing.T) {
		inner := memory.New()
		p := seededProject(t, inner)
		r := gateway.NewResilient(inner, fastRetry(), gateway.DefaultBreakerConfig("test"), zap.NewNop())

		inner.SetError("InsertBlock", stderrors.New("timeout"))
		b, err := block.New(p.ID, "owner-1", block.TypeData, shared.Position{}, time.Time{})
		require.NoError(t, err)
		_, err = r.InsertBlock(ctx, b)
		require.Error(t, err)
		assert.Equal(t, 1, inner.Calls("InsertBlock"))
	})

	t.Run("DomainErrorsNotRetried", func(t *testing.T) {
		inner := memory.New()
		r := gateway.NewResilient(inner, fastRetry(), gateway.DefaultBreakerConfig("test"), zap.NewNop())

		_, err := r.GetProject(ctx, shared.NewProjectID())
		assert.True(t, errors.IsNotFound(err))
		assert.Equal(t, 1, inner.Calls("GetProject"))
	})

	t.Run("BreakerOpens", func(t *testing.T) {
		inner := memory.New()
		p := seededProject(t, inner)
		breaker := gateway.DefaultBreakerConfig("test")
		breaker.MinRequests = 2
		retry := fastRetry()
		retry.MaxRetries = 0
		r := gateway.NewResilient(inner, retry, breaker, zap.NewNop())

		inner.SetError("ListRelationships", stderrors.New("down"))
		for i := 0; i < 2; i++ {
			_, err := r.ListRelationships(ctx, p.ID)
			require.Error(t, err)
		}
		assert.Equal(t, gobreaker.StateOpen, r.State())

		_, err := r.ListRelationships(ctx, p.ID)
		assert.True(t, errors.HasCode(err, errors.CodeGatewayUnavailable))
		assert.Equal(t, 2, inner.Calls("ListRelationships"))
	})

	t.Run("NotFoundKeepsBreakerClosed", func(t *testing.T) {
		inner := memory.New()
		breaker := gateway.DefaultBreakerConfig("test")
		breaker.MinRequests = 1
		r := gateway.NewResilient(inner, fastRetry(), breaker, zap.NewNop())

		for i := 0; i < 5; i++ {
			_, _ = r.GetProject(ctx, shared.NewProjectID())
		}
		assert.Equal(t, gobreaker.StateClosed, r.State())
	})

	t.Run("CancelledContext", func(t *testing.T) {
		inner := memory.New()
		r := gateway.NewResilient(inner, fastRetry(), gateway.DefaultBreakerConfig("test"), nil)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := r.Ping(cctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, inner.Calls("Ping"))
	})
}

func TestInstrumented(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	p := seededProject(t, inner)
	metrics := observability.NewCollector("test")
	g := gateway.NewInstrumented(inner, metrics)

	_, err := g.ListBlocks(ctx, p.ID)
	require.NoError(t, err)
	_, err = g.GetProject(ctx, shared.NewProjectID())
	require.Error(t, err)
	inner.SetError("ListExports", stderrors.New("boom"))
	_, err = g.ListExports(ctx, p.ID)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GatewayOperations.WithLabelValues("ListBlocks", gateway.TableBlocks, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GatewayOperations.WithLabelValues("GetProject", gateway.TableProjects, "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GatewayOperations.WithLabelValues("ListExports", gateway.TableExports, "error")))
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "ok"},
		{"not found", shared.ErrBlockNotFound, "not_found"},
		{"version conflict", shared.VersionConflict(shared.NewBlockID(), 1, 2), "conflict"},
		{"validation", shared.ErrInvalidBlockType, "invalid"},
		{"unavailable", gateway.ErrUnavailable, "unavailable"},
		{"raw", stderrors.New("x"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gateway.Status(tt.err))
		})
	}
}
