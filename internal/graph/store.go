// Package graph holds the in-memory knowledge graph of one open project.
//
// Store is the authority for which blocks and relationships exist while a
// project is open. Every read returns copies, so a caller iterating over a
// snapshot never observes later mutations. Mutations either succeed
// completely or leave the store untouched.
package graph

import (
	"sync"
	"time"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

// Snapshot is a point-in-time copy of the graph.
type Snapshot struct {
	ProjectID     shared.ProjectID            `json:"project_id"`
	Blocks        []block.Block               `json:"blocks"`
	Relationships []relationship.Relationship `json:"relationships"`
}

// Store holds the blocks and relationships of a single project.
type Store struct {
	mu sync.RWMutex

	projectID shared.ProjectID
	now       func() time.Time

	// order and relOrder keep ids in insertion order.
	order  []shared.BlockID
	blocks map[shared.BlockID]block.Block

	relOrder []shared.RelationshipID
	rels     map[shared.RelationshipID]relationship.Relationship

	history map[shared.BlockID][]block.Version
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store for projectID.
func NewStore(projectID shared.ProjectID, opts ...Option) *Store {
	s := &Store{
		projectID: projectID,
		now:       time.Now,
		blocks:    make(map[shared.BlockID]block.Block),
		rels:      make(map[shared.RelationshipID]relationship.Relationship),
		history:   make(map[shared.BlockID][]block.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProjectID returns the project this store holds.
func (s *Store) ProjectID() shared.ProjectID { return s.projectID }

// Load replaces the store contents, typically with records fetched from the
// persistence gateway when a project is opened. Relationships whose
// endpoints are missing are dropped so the graph never holds dangling edges.
func (s *Store) Load(blocks []block.Block, rels []relationship.Relationship, versions []block.Version) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.blocks = make(map[shared.BlockID]block.Block, len(blocks))
	s.relOrder = s.relOrder[:0]
	s.rels = make(map[shared.RelationshipID]relationship.Relationship, len(rels))
	s.history = make(map[shared.BlockID][]block.Version)

	for _, b := range blocks {
		if _, dup := s.blocks[b.ID]; dup {
			continue
		}
		s.order = append(s.order, b.ID)
		s.blocks[b.ID] = b.Clone()
	}

	dropped := 0
	for _, r := range rels {
		_, okSrc := s.blocks[r.SourceBlockID]
		_, okDst := s.blocks[r.TargetBlockID]
		if !okSrc || !okDst {
			dropped++
			continue
		}
		if _, dup := s.rels[r.ID]; dup {
			continue
		}
		s.relOrder = append(s.relOrder, r.ID)
		s.rels[r.ID] = r
	}

	for _, v := range versions {
		s.history[v.BlockID] = append(s.history[v.BlockID], v)
	}
	return dropped
}

// ============================================================================
// BLOCK OPERATIONS
// ============================================================================

// CreateBlock places a new placeholder block of type t at pos.
func (s *Store) CreateBlock(t block.Type, pos shared.Position, creator shared.UserID) (block.Block, error) {
	b, err := block.New(s.projectID, creator, t, pos, s.now())
	if err != nil {
		return block.Block{}, err
	}
	if err := s.PutBlock(b); err != nil {
		return block.Block{}, err
	}
	return b.Clone(), nil
}

// PutBlock installs a block built elsewhere, for example one returned by the
// gateway after an insert. An existing block with the same id is replaced.
func (s *Store) PutBlock(b block.Block) error {
	if b.ProjectID != s.projectID {
		return shared.ErrBlockOutsideProject
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blocks[b.ID]; !exists {
		s.order = append(s.order, b.ID)
	}
	s.blocks[b.ID] = b.Clone()
	return nil
}

// Block returns a copy of the block with id.
func (s *Store) Block(id shared.BlockID) (block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[id]
	if !ok {
		return block.Block{}, shared.BlockNotFound(id)
	}
	return b.Clone(), nil
}

// HasBlock reports whether id is present.
func (s *Store) HasBlock(id shared.BlockID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[id]
	return ok
}

// PrepareUpdate computes the result of applying patch to block id without
// committing it. expectedVersion of zero skips the version check.
func (s *Store) PrepareUpdate(id shared.BlockID, expectedVersion int, patch block.Patch, changedBy shared.UserID) (block.Block, block.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prepareLocked(id, expectedVersion, patch, changedBy)
}

func (s *Store) prepareLocked(id shared.BlockID, expectedVersion int, patch block.Patch, changedBy shared.UserID) (block.Block, block.Version, error) {
	current, ok := s.blocks[id]
	if !ok {
		return block.Block{}, block.Version{}, shared.BlockNotFound(id)
	}
	if expectedVersion > 0 && current.Version != expectedVersion {
		return block.Block{}, block.Version{}, shared.VersionConflict(id, expectedVersion, current.Version)
	}
	return current.Apply(patch, changedBy, s.now())
}

// UpdateBlock applies patch, bumps the version by one and records the prior
// state in the block's history.
func (s *Store) UpdateBlock(id shared.BlockID, patch block.Patch, changedBy shared.UserID) (block.Block, error) {
	return s.UpdateBlockIfVersion(id, 0, patch, changedBy)
}

// UpdateBlockIfVersion is UpdateBlock guarded by a compare-and-swap on the
// current version. It fails with a version conflict when another update got
// there first.
func (s *Store) UpdateBlockIfVersion(id shared.BlockID, expectedVersion int, patch block.Patch, changedBy shared.UserID) (block.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, prior, err := s.prepareLocked(id, expectedVersion, patch, changedBy)
	if err != nil {
		return block.Block{}, err
	}
	s.blocks[id] = next
	s.history[id] = append(s.history[id], prior)
	return next.Clone(), nil
}

// CommitUpdate installs an update whose result was computed by PrepareUpdate
// and accepted by the gateway. It re-checks that the stored version is still
// the one the update was prepared from.
func (s *Store) CommitUpdate(next block.Block, prior block.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.blocks[next.ID]
	if !ok {
		return shared.BlockNotFound(next.ID)
	}
	if current.Version != prior.Version {
		return shared.VersionConflict(next.ID, prior.Version, current.Version)
	}
	s.blocks[next.ID] = next.Clone()
	s.history[next.ID] = append(s.history[next.ID], prior)
	return nil
}

// DeleteBlock removes the block and every relationship touching it. The ids
// of the removed relationships are returned.
func (s *Store) DeleteBlock(id shared.BlockID) ([]shared.RelationshipID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blocks[id]; !ok {
		return nil, shared.BlockNotFound(id)
	}

	delete(s.blocks, id)
	delete(s.history, id)
	s.order = removeID(s.order, id)

	var removed []shared.RelationshipID
	kept := s.relOrder[:0]
	for _, rid := range s.relOrder {
		if s.rels[rid].Touches(id) {
			removed = append(removed, rid)
			delete(s.rels, rid)
			continue
		}
		kept = append(kept, rid)
	}
	s.relOrder = kept
	return removed, nil
}

// RelationshipsTouching lists the relationships that a delete of id would cascade to.
func (s *Store) RelationshipsTouching(id shared.BlockID) []relationship.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []relationship.Relationship
	for _, rid := range s.relOrder {
		if r := s.rels[rid]; r.Touches(id) {
			out = append(out, r)
		}
	}
	return out
}

// Blocks returns copies of all blocks in insertion order.
func (s *Store) Blocks() []block.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocksLocked()
}

func (s *Store) blocksLocked() []block.Block {
	out := make([]block.Block, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.blocks[id].Clone())
	}
	return out
}

// History returns the recorded versions of a block, oldest first.
func (s *Store) History(id shared.BlockID) ([]block.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.blocks[id]; !ok {
		return nil, shared.BlockNotFound(id)
	}
	out := make([]block.Version, len(s.history[id]))
	copy(out, s.history[id])
	return out, nil
}

// ============================================================================
// RELATIONSHIP OPERATIONS
// ============================================================================

// CreateRelationship links two existing blocks. Both endpoints must be
// present; duplicates of an existing link are allowed.
func (s *Store) CreateRelationship(source, target shared.BlockID, t relationship.Type) (relationship.Relationship, error) {
	if err := s.CheckEndpoints(source, target); err != nil {
		return relationship.Relationship{}, err
	}
	r, err := relationship.New(s.projectID, source, target, t, s.now())
	if err != nil {
		return relationship.Relationship{}, err
	}
	if err := s.PutRelationship(r); err != nil {
		return relationship.Relationship{}, err
	}
	return r, nil
}

// CheckEndpoints fails with not found when either block is absent.
func (s *Store) CheckEndpoints(source, target shared.BlockID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.blocks[source]; !ok {
		return shared.BlockNotFound(source)
	}
	if _, ok := s.blocks[target]; !ok {
		return shared.BlockNotFound(target)
	}
	return nil
}

// PutRelationship installs a relationship built elsewhere. Endpoints are
// re-checked under the write lock so a concurrent delete cannot leave it dangling.
func (s *Store) PutRelationship(r relationship.Relationship) error {
	if r.ProjectID != s.projectID {
		return shared.ErrBlockOutsideProject
	}
	if r.SourceBlockID == r.TargetBlockID {
		return shared.ErrSelfRelationship
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blocks[r.SourceBlockID]; !ok {
		return shared.BlockNotFound(r.SourceBlockID)
	}
	if _, ok := s.blocks[r.TargetBlockID]; !ok {
		return shared.BlockNotFound(r.TargetBlockID)
	}
	if _, exists := s.rels[r.ID]; !exists {
		s.relOrder = append(s.relOrder, r.ID)
	}
	s.rels[r.ID] = r
	return nil
}

// Relationship returns the relationship with id.
func (s *Store) Relationship(id shared.RelationshipID) (relationship.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rels[id]
	if !ok {
		return relationship.Relationship{}, shared.RelationshipNotFound(id)
	}
	return r, nil
}

// DeleteRelationship removes one relationship.
func (s *Store) DeleteRelationship(id shared.RelationshipID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rels[id]; !ok {
		return shared.RelationshipNotFound(id)
	}
	delete(s.rels, id)
	s.relOrder = removeID(s.relOrder, id)
	return nil
}

// Relationships returns copies of all relationships in insertion order.
func (s *Store) Relationships() []relationship.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relationshipsLocked()
}

func (s *Store) relationshipsLocked() []relationship.Relationship {
	out := make([]relationship.Relationship, 0, len(s.relOrder))
	for _, id := range s.relOrder {
		out = append(out, s.rels[id])
	}
	return out
}

// Snapshot copies blocks and relationships under one read lock, so the two
// lists are mutually consistent.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		ProjectID:     s.projectID,
		Blocks:        s.blocksLocked(),
		Relationships: s.relationshipsLocked(),
	}
}

// Len returns the number of blocks and relationships.
func (s *Store) Len() (blocks, relationships int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks), len(s.rels)
}

func removeID[T comparable](ids []T, id T) []T {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
