package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

type recorded struct {
	method string
	table  string
	query  map[string]string
}

// fakePostgREST answers each request with the body registered for its
// method and table.
type fakePostgREST struct {
	mu        sync.Mutex
	requests  []recorded
	responses map[string][]string
	status    int
	failures  map[string]string
}

// fail makes every request for method and table answer 409 with pgCode.
func (f *fakePostgREST) fail(method, table, pgCode string) {
	f.failures[method+" "+table] = pgCode
}

func (f *fakePostgREST) respond(method, table string, bodies ...string) {
	f.responses[method+" "+table] = append(f.responses[method+" "+table], bodies...)
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	table := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	q := map[string]string{}
	for k, v := range r.URL.Query() {
		q[k] = v[0]
	}
	f.requests = append(f.requests, recorded{method: r.Method, table: table, query: q})

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"code":"XX000","message":"internal error"}`))
		return
	}
	key := r.Method + " " + table
	if code, ok := f.failures[key]; ok {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"` + code + `","message":"duplicate key value violates unique constraint"}`))
		return
	}
	queue := f.responses[key]
	body := "[]"
	if len(queue) > 0 {
		body, f.responses[key] = queue[0], queue[1:]
	}
	_, _ = w.Write([]byte(body))
}

func newTestGateway(t *testing.T) (*Gateway, *fakePostgREST) {
	t.Helper()
	fake := &fakePostgREST{responses: map[string][]string{}, failures: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return New(postgrest.NewClient(srv.URL, "public", nil), zap.NewNop()), fake
}

const blockRow = `[{"id":"b1","project_id":"p1","creator_id":"u1","block_type":"evidence",` +
	`"content":"Sea levels rose\nsince 1900","metadata":{"tags":["climate"]},` +
	`"position":{"x":10,"y":20},"version":3,` +
	`"created_at":"2024-05-01T12:00:00.123456+00:00","updated_at":"2024-05-02T12:00:00+00:00"}]`

func TestListBlocks(t *testing.T) {
	g, fake := newTestGateway(t)
	fake.respond(http.MethodGet, "knowledge_blocks", blockRow)

	blocks, err := g.ListBlocks(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	b := blocks[0]
	assert.Equal(t, shared.BlockID("b1"), b.ID)
	assert.Equal(t, block.TypeEvidence, b.Type)
	assert.Equal(t, "Sea levels rose", b.Title())
	assert.Equal(t, []string{"climate"}, b.Tags())
	assert.Equal(t, shared.Position{X: 10, Y: 20}, b.Position)
	assert.Equal(t, 3, b.Version)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "eq.p1", req.query["project_id"])
	assert.True(t, strings.HasPrefix(req.query["order"], "created_at.desc"))
}

func TestUpdateBlock(t *testing.T) {
	ctx := context.Background()
	b := block.Block{ID: "b1", ProjectID: "p1", Type: block.TypeEvidence, Content: "new", Version: 4}

	t.Run("Applied", func(t *testing.T) {
		g, fake := newTestGateway(t)
		fake.respond(http.MethodPatch, "knowledge_blocks", strings.Replace(blockRow, `"version":3`, `"version":4`, 1))

		out, err := g.UpdateBlock(ctx, b, 3)
		require.NoError(t, err)
		assert.Equal(t, 4, out.Version)
		assert.Equal(t, "eq.3", fake.requests[0].query["version"])
	})

	t.Run("VersionMoved", func(t *testing.T) {
		g, fake := newTestGateway(t)
		fake.respond(http.MethodPatch, "knowledge_blocks", "[]")
		fake.respond(http.MethodGet, "knowledge_blocks", `[{"version":5}]`)

		_, err := g.UpdateBlock(ctx, b, 3)
		assert.True(t, errors.IsVersionConflict(err))
	})

	t.Run("Missing", func(t *testing.T) {
		g, fake := newTestGateway(t)
		fake.respond(http.MethodPatch, "knowledge_blocks", "[]")
		fake.respond(http.MethodGet, "knowledge_blocks", "[]")

		_, err := g.UpdateBlock(ctx, b, 3)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("Unconditional", func(t *testing.T) {
		g, fake := newTestGateway(t)
		fake.respond(http.MethodPatch, "knowledge_blocks", blockRow)

		_, err := g.UpdateBlock(ctx, b, 0)
		require.NoError(t, err)
		_, pinned := fake.requests[0].query["version"]
		assert.False(t, pinned)
	})
}

func TestReviseBlock(t *testing.T) {
	ctx := context.Background()
	next := block.Block{ID: "b1", ProjectID: "p1", Type: block.TypeEvidence, Content: "new", Version: 4}
	prior := block.Version{BlockID: "b1", Version: 3, Content: "Sea levels rose\nsince 1900"}
	revised := strings.Replace(blockRow, `"version":3`, `"version":4`, 1)

	t.Run("SwapsThenArchives", func(t *testing.T) {
		g, fake := newTestGateway(t)
		fake.respond(http.MethodGet, "knowledge_blocks", blockRow)
		fake.respond(http.MethodPatch, "knowledge_blocks", revised)
		fake.respond(http.MethodPost, "block_versions", `[{"id":"v1","block_id":"b1","version":3}]`)

		out, err := g.ReviseBlock(ctx, next, prior)
		require.NoError(t, err)
		assert.Equal(t, 4, out.Version)

		methods := make([]string, 0, len(fake.requests))
		for _, r := range fake.requests {
			methods = append(methods, r.method+" "+r.table)
		}
		assert.Equal(t, []string{"GET knowledge_blocks", "PATCH knowledge_blocks", "POST block_versions"}, methods)
	})

	t.Run("StaleVersionWritesNothing", func(t *testing.T) {
		g, fake := newTestGateway(t)
		fake.respond(http.MethodGet, "knowledge_blocks", revised)

		_, err := g.ReviseBlock(ctx, next, prior)
		assert.True(t, errors.IsVersionConflict(err))
		assert.Contains(t, err.Error(), "found 4")
		assert.Len(t, fake.requests, 1)
	})

	t.Run("ArchiveFailureRestoresBlock", func(t *testing.T) {
		g, fake := newTestGateway(t)
		fake.respond(http.MethodGet, "knowledge_blocks", blockRow)
		fake.respond(http.MethodPatch, "knowledge_blocks", revised, blockRow)
		fake.fail(http.MethodPost, "block_versions", pgUniqueViolation)

		_, err := g.ReviseBlock(ctx, next, prior)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeDuplicateRecord))

		require.Len(t, fake.requests, 4)
		restore := fake.requests[3]
		assert.Equal(t, http.MethodPatch, restore.method)
		assert.Equal(t, "eq.4", restore.query["version"])
	})
}

func TestDeletes(t *testing.T) {
	ctx := context.Background()

	t.Run("BlockMissing", func(t *testing.T) {
		g, _ := newTestGateway(t)
		err := g.DeleteBlock(ctx, "p1", "b1")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("RelationshipsForBlock", func(t *testing.T) {
		g, fake := newTestGateway(t)
		fake.respond(http.MethodDelete, "block_relationships", `[{"id":"r1"},{"id":"r2"}]`)

		ids, err := g.DeleteRelationshipsForBlock(ctx, "p1", "b1")
		require.NoError(t, err)
		assert.Equal(t, []shared.RelationshipID{"r1", "r2"}, ids)
		assert.Contains(t, fake.requests[0].query["or"], "source_block_id.eq.b1")
	})
}

func TestInsertStampsDefaults(t *testing.T) {
	g, _ := newTestGateway(t)
	g.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	v, err := g.InsertBlockVersion(context.Background(), block.Version{BlockID: "b1", Version: 2, Content: "old"})
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, block.DefaultChangeSummary, v.ChangeSummary)
	assert.Equal(t, 2024, v.CreatedAt.Year())
}

func TestServerErrorIsGatewayFailure(t *testing.T) {
	g, fake := newTestGateway(t)
	fake.status = http.StatusInternalServerError

	_, err := g.ListRelationships(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, errors.IsGatewayFailure(err))
}
