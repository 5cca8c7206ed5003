// Package memory provides an in-process implementation of the persistence
// gateway. It backs local development and tests, and can be told to fail
// specific methods to exercise error paths.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway"
)

type row[T any] struct {
	seq int
	v   T
}

// Gateway keeps every table in maps guarded by one lock.
type Gateway struct {
	mu  sync.RWMutex
	now func() time.Time
	seq int

	projects     map[shared.ProjectID]row[project.Project]
	blocks       map[shared.BlockID]row[block.Block]
	rels         map[shared.RelationshipID]row[relationship.Relationship]
	versions     map[shared.BlockID][]row[block.Version]
	interactions []row[project.Interaction]
	exports      []row[project.Export]

	// For testing error scenarios
	shouldFailOn map[string]error
	calls        map[string]int
}

var _ gateway.Gateway = (*Gateway)(nil)

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock overrides the clock used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New returns an empty gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		now:          time.Now,
		projects:     make(map[shared.ProjectID]row[project.Project]),
		blocks:       make(map[shared.BlockID]row[block.Block]),
		rels:         make(map[shared.RelationshipID]row[relationship.Relationship]),
		versions:     make(map[shared.BlockID][]row[block.Version]),
		shouldFailOn: make(map[string]error),
		calls:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetError makes every later call to method fail with err.
func (g *Gateway) SetError(method string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shouldFailOn[method] = err
}

// ClearErrors removes all configured errors.
func (g *Gateway) ClearErrors() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shouldFailOn = make(map[string]error)
}

// Calls reports how many times method was invoked, failed calls included.
func (g *Gateway) Calls(method string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.calls[method]
}

// begin records the call and returns the configured failure, if any.
// Callers must hold the write lock.
func (g *Gateway) begin(method, table string) error {
	g.calls[method]++
	if err, ok := g.shouldFailOn[method]; ok {
		return gateway.Failure(err, method, table)
	}
	return nil
}

func (g *Gateway) nextSeq() int {
	g.seq++
	return g.seq
}

func (g *Gateway) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return g.now().UTC()
	}
	return t
}

func (g *Gateway) Ping(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.begin("Ping", "")
}

// Projects

func (g *Gateway) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("CreateProject", gateway.TableProjects); err != nil {
		return project.Project{}, err
	}

	if p.ID.IsEmpty() {
		p.ID = shared.NewProjectID()
	}
	if _, exists := g.projects[p.ID]; exists {
		return project.Project{}, gateway.Duplicate(gateway.TableProjects, p.ID.String())
	}
	p.CreatedAt = g.stamp(p.CreatedAt)
	p.UpdatedAt = g.stamp(p.UpdatedAt)
	p = cloneProject(p)
	g.projects[p.ID] = row[project.Project]{seq: g.nextSeq(), v: p}
	return cloneProject(p), nil
}

func (g *Gateway) ListProjects(ctx context.Context, owner shared.UserID) ([]project.Project, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("ListProjects", gateway.TableProjects); err != nil {
		return nil, err
	}

	rows := make([]row[project.Project], 0)
	for _, r := range g.projects {
		if r.v.OwnerID == owner {
			rows = append(rows, r)
		}
	}
	sortNewestFirst(rows, func(p project.Project) time.Time { return p.UpdatedAt })

	out := make([]project.Project, len(rows))
	for i, r := range rows {
		out[i] = cloneProject(r.v)
	}
	return out, nil
}

func (g *Gateway) GetProject(ctx context.Context, id shared.ProjectID) (project.Project, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("GetProject", gateway.TableProjects); err != nil {
		return project.Project{}, err
	}

	r, ok := g.projects[id]
	if !ok {
		return project.Project{}, shared.ProjectNotFound(id)
	}
	return cloneProject(r.v), nil
}

func (g *Gateway) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("UpdateProject", gateway.TableProjects); err != nil {
		return project.Project{}, err
	}

	r, ok := g.projects[p.ID]
	if !ok {
		return project.Project{}, shared.ProjectNotFound(p.ID)
	}
	p.CreatedAt = r.v.CreatedAt
	p.UpdatedAt = g.stamp(p.UpdatedAt)
	r.v = cloneProject(p)
	g.projects[p.ID] = r
	return cloneProject(p), nil
}

func (g *Gateway) DeleteProject(ctx context.Context, id shared.ProjectID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("DeleteProject", gateway.TableProjects); err != nil {
		return err
	}

	if _, ok := g.projects[id]; !ok {
		return shared.ProjectNotFound(id)
	}
	delete(g.projects, id)
	for bid, r := range g.blocks {
		if r.v.ProjectID == id {
			delete(g.blocks, bid)
			delete(g.versions, bid)
		}
	}
	for rid, r := range g.rels {
		if r.v.ProjectID == id {
			delete(g.rels, rid)
		}
	}
	g.interactions = filterRows(g.interactions, func(i project.Interaction) bool { return i.ProjectID != id })
	g.exports = filterRows(g.exports, func(e project.Export) bool { return e.ProjectID != id })
	return nil
}

// Blocks

func (g *Gateway) InsertBlock(ctx context.Context, b block.Block) (block.Block, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("InsertBlock", gateway.TableBlocks); err != nil {
		return block.Block{}, err
	}

	if b.ID.IsEmpty() {
		b.ID = shared.NewBlockID()
	}
	if _, exists := g.blocks[b.ID]; exists {
		return block.Block{}, gateway.Duplicate(gateway.TableBlocks, b.ID.String())
	}
	if b.Version == 0 {
		b.Version = block.InitialVersion
	}
	b.CreatedAt = g.stamp(b.CreatedAt)
	b.UpdatedAt = g.stamp(b.UpdatedAt)
	g.blocks[b.ID] = row[block.Block]{seq: g.nextSeq(), v: b.Clone()}
	return b.Clone(), nil
}

func (g *Gateway) ListBlocks(ctx context.Context, projectID shared.ProjectID) ([]block.Block, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("ListBlocks", gateway.TableBlocks); err != nil {
		return nil, err
	}

	rows := make([]row[block.Block], 0)
	for _, r := range g.blocks {
		if r.v.ProjectID == projectID {
			rows = append(rows, r)
		}
	}
	sortNewestFirst(rows, func(b block.Block) time.Time { return b.CreatedAt })

	out := make([]block.Block, len(rows))
	for i, r := range rows {
		out[i] = r.v.Clone()
	}
	return out, nil
}

func (g *Gateway) UpdateBlock(ctx context.Context, b block.Block, expectedVersion int) (block.Block, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("UpdateBlock", gateway.TableBlocks); err != nil {
		return block.Block{}, err
	}
	return g.swapBlock(b, expectedVersion)
}

// ReviseBlock swaps the block and archives prior under one lock hold.
func (g *Gateway) ReviseBlock(ctx context.Context, b block.Block, prior block.Version) (block.Block, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("ReviseBlock", gateway.TableBlocks); err != nil {
		return block.Block{}, err
	}
	if g.hasVersion(prior.BlockID, prior.Version) {
		return block.Block{}, gateway.Duplicate(gateway.TableVersions, fmt.Sprintf("%s@%d", prior.BlockID, prior.Version))
	}
	stored, err := g.swapBlock(b, prior.Version)
	if err != nil {
		return block.Block{}, err
	}
	g.appendVersion(prior)
	return stored, nil
}

func (g *Gateway) swapBlock(b block.Block, expectedVersion int) (block.Block, error) {
	r, ok := g.blocks[b.ID]
	if !ok || r.v.ProjectID != b.ProjectID {
		return block.Block{}, shared.BlockNotFound(b.ID)
	}
	if expectedVersion > 0 && r.v.Version != expectedVersion {
		return block.Block{}, gateway.Conflict(b.ID, expectedVersion, r.v.Version)
	}
	b.CreatedAt = r.v.CreatedAt
	b.UpdatedAt = g.stamp(b.UpdatedAt)
	r.v = b.Clone()
	g.blocks[b.ID] = r
	return b.Clone(), nil
}

func (g *Gateway) DeleteBlock(ctx context.Context, projectID shared.ProjectID, id shared.BlockID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("DeleteBlock", gateway.TableBlocks); err != nil {
		return err
	}

	r, ok := g.blocks[id]
	if !ok || r.v.ProjectID != projectID {
		return shared.BlockNotFound(id)
	}
	delete(g.blocks, id)
	return nil
}

// Relationships

func (g *Gateway) InsertRelationship(ctx context.Context, rel relationship.Relationship) (relationship.Relationship, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("InsertRelationship", gateway.TableRelationships); err != nil {
		return relationship.Relationship{}, err
	}

	if rel.ID == "" {
		rel.ID = shared.NewRelationshipID()
	}
	if _, exists := g.rels[rel.ID]; exists {
		return relationship.Relationship{}, gateway.Duplicate(gateway.TableRelationships, rel.ID.String())
	}
	for _, end := range []shared.BlockID{rel.SourceBlockID, rel.TargetBlockID} {
		if b, ok := g.blocks[end]; !ok || b.v.ProjectID != rel.ProjectID {
			return relationship.Relationship{}, shared.BlockNotFound(end)
		}
	}
	if rel.Strength == 0 {
		rel.Strength = relationship.DefaultStrength
	}
	rel.CreatedAt = g.stamp(rel.CreatedAt)
	g.rels[rel.ID] = row[relationship.Relationship]{seq: g.nextSeq(), v: rel}
	return rel, nil
}

func (g *Gateway) ListRelationships(ctx context.Context, projectID shared.ProjectID) ([]relationship.Relationship, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("ListRelationships", gateway.TableRelationships); err != nil {
		return nil, err
	}

	rows := make([]row[relationship.Relationship], 0)
	for _, r := range g.rels {
		if r.v.ProjectID == projectID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]relationship.Relationship, len(rows))
	for i, r := range rows {
		out[i] = r.v
	}
	return out, nil
}

func (g *Gateway) DeleteRelationship(ctx context.Context, projectID shared.ProjectID, id shared.RelationshipID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("DeleteRelationship", gateway.TableRelationships); err != nil {
		return err
	}

	r, ok := g.rels[id]
	if !ok || r.v.ProjectID != projectID {
		return shared.RelationshipNotFound(id)
	}
	delete(g.rels, id)
	return nil
}

func (g *Gateway) DeleteRelationshipsForBlock(ctx context.Context, projectID shared.ProjectID, blockID shared.BlockID) ([]shared.RelationshipID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("DeleteRelationshipsForBlock", gateway.TableRelationships); err != nil {
		return nil, err
	}

	rows := make([]row[relationship.Relationship], 0)
	for _, r := range g.rels {
		if r.v.ProjectID == projectID && r.v.Touches(blockID) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	removed := make([]shared.RelationshipID, 0, len(rows))
	for _, r := range rows {
		delete(g.rels, r.v.ID)
		removed = append(removed, r.v.ID)
	}
	return removed, nil
}

// Versions

func (g *Gateway) InsertBlockVersion(ctx context.Context, v block.Version) (block.Version, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("InsertBlockVersion", gateway.TableVersions); err != nil {
		return block.Version{}, err
	}

	if g.hasVersion(v.BlockID, v.Version) {
		return block.Version{}, gateway.Duplicate(gateway.TableVersions, fmt.Sprintf("%s@%d", v.BlockID, v.Version))
	}
	return g.appendVersion(v), nil
}

func (g *Gateway) hasVersion(id shared.BlockID, version int) bool {
	for _, r := range g.versions[id] {
		if r.v.Version == version {
			return true
		}
	}
	return false
}

func (g *Gateway) appendVersion(v block.Version) block.Version {
	if v.ID == "" {
		v.ID = shared.NewRecordID()
	}
	v.CreatedAt = g.stamp(v.CreatedAt)
	g.versions[v.BlockID] = append(g.versions[v.BlockID], row[block.Version]{seq: g.nextSeq(), v: v})
	return v
}

func (g *Gateway) ListBlockVersions(ctx context.Context, blockID shared.BlockID) ([]block.Version, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("ListBlockVersions", gateway.TableVersions); err != nil {
		return nil, err
	}

	rows := g.versions[blockID]
	out := make([]block.Version, len(rows))
	for i, r := range rows {
		out[i] = r.v
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// Archive

func (g *Gateway) InsertInteraction(ctx context.Context, in project.Interaction) (project.Interaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("InsertInteraction", gateway.TableInteractions); err != nil {
		return project.Interaction{}, err
	}

	if in.ID == "" {
		in.ID = shared.NewRecordID()
	}
	in.CreatedAt = g.stamp(in.CreatedAt)
	g.interactions = append(g.interactions, row[project.Interaction]{seq: g.nextSeq(), v: in})
	return in, nil
}

func (g *Gateway) ListInteractions(ctx context.Context, projectID shared.ProjectID) ([]project.Interaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("ListInteractions", gateway.TableInteractions); err != nil {
		return nil, err
	}

	rows := filterRows(g.interactions, func(i project.Interaction) bool { return i.ProjectID == projectID })
	sortNewestFirst(rows, func(i project.Interaction) time.Time { return i.CreatedAt })
	return values(rows), nil
}

func (g *Gateway) InsertExport(ctx context.Context, e project.Export) (project.Export, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("InsertExport", gateway.TableExports); err != nil {
		return project.Export{}, err
	}

	if e.ID == "" {
		e.ID = shared.NewRecordID()
	}
	if e.Audience == "" {
		e.Audience = project.DefaultAudience
	}
	e.CreatedAt = g.stamp(e.CreatedAt)
	g.exports = append(g.exports, row[project.Export]{seq: g.nextSeq(), v: e})
	return e, nil
}

func (g *Gateway) ListExports(ctx context.Context, projectID shared.ProjectID) ([]project.Export, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("ListExports", gateway.TableExports); err != nil {
		return nil, err
	}

	rows := filterRows(g.exports, func(e project.Export) bool { return e.ProjectID == projectID })
	sortNewestFirst(rows, func(e project.Export) time.Time { return e.CreatedAt })
	return values(rows), nil
}

// sortNewestFirst orders by descending timestamp, later inserts first on ties.
func sortNewestFirst[T any](rows []row[T], at func(T) time.Time) {
	sort.Slice(rows, func(i, j int) bool {
		ti, tj := at(rows[i].v), at(rows[j].v)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return rows[i].seq > rows[j].seq
	})
}

func filterRows[T any](rows []row[T], keep func(T) bool) []row[T] {
	out := make([]row[T], 0, len(rows))
	for _, r := range rows {
		if keep(r.v) {
			out = append(out, r)
		}
	}
	return out
}

func values[T any](rows []row[T]) []T {
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.v
	}
	return out
}

func cloneProject(p project.Project) project.Project {
	p.Metadata.Tags = shared.CopyStrings(p.Metadata.Tags)
	return p
}
