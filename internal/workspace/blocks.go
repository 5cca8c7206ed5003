package workspace

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/internal/events"
	"github.com/wuzhiguocarter/Aletheia/internal/graph"
)

// NewBlock describes a block to create. Empty content yields the placeholder.
type NewBlock struct {
	Type     block.Type
	Position shared.Position
	Content  string
	Metadata block.Metadata
}

// CreateBlock persists a new block and adds it to the session's graph.
func (w *Workspace) CreateBlock(ctx context.Context, s Session, in NewBlock) (block.Block, error) {
	ctx, span := w.startSpan(ctx, "workspace.CreateBlock", s, attribute.String("block.type", in.Type.String()))
	defer span.End()

	op, err := w.session(ctx, s)
	if err != nil {
		return block.Block{}, w.fail(span, err)
	}

	b, err := block.New(s.ProjectID, s.UserID, in.Type, in.Position, w.now().UTC())
	if err != nil {
		return block.Block{}, w.fail(span, err)
	}
	if in.Content != "" {
		if err := shared.ValidateContent(in.Content); err != nil {
			return block.Block{}, w.fail(span, err)
		}
		b.Content = in.Content
	}
	meta := in.Metadata.Clone()
	if err := meta.Validate(); err != nil {
		return block.Block{}, w.fail(span, err)
	}
	b.Metadata = meta

	stored, err := w.gw.InsertBlock(ctx, b)
	if err != nil {
		w.remoteFailed("CreateBlock", s, err, zap.String("block_id", b.ID.String()))
		return block.Block{}, w.fail(span, err)
	}
	if err := op.store.PutBlock(stored); err != nil {
		return block.Block{}, w.fail(span, err)
	}

	if w.metrics != nil {
		w.metrics.BlocksCreated.Inc()
	}
	w.publish(ctx, w.event(events.TypeBlockCreated, s, stored.ID.String()).With("block_type", stored.Type.String()))
	w.logger.Info("block created",
		zap.String("block_id", stored.ID.String()),
		zap.String("block_type", stored.Type.String()),
		zap.String("project_id", s.ProjectID.String()),
	)
	return stored, nil
}

// UpdateBlock applies patch to a block. With expectedVersion > 0 the update
// fails with a version conflict unless the block is still at that version.
// With expectedVersion == 0 the update is retried against the latest stored
// version when a concurrent writer wins the race.
func (w *Workspace) UpdateBlock(ctx context.Context, s Session, id shared.BlockID, expectedVersion int, patch block.Patch) (block.Block, error) {
	ctx, span := w.startSpan(ctx, "workspace.UpdateBlock", s,
		attribute.String("block.id", id.String()),
		attribute.Int("block.expected_version", expectedVersion),
	)
	defer span.End()

	op, err := w.session(ctx, s)
	if err != nil {
		return block.Block{}, w.fail(span, err)
	}
	if err := patch.Validate(); err != nil {
		return block.Block{}, w.fail(span, err)
	}

	updated, err := w.updateWithRetry(ctx, s, op.store, id, expectedVersion, patch)
	if err != nil {
		return block.Block{}, w.fail(span, err)
	}

	if w.metrics != nil {
		w.metrics.BlocksUpdated.Inc()
	}
	w.publish(ctx, w.event(events.TypeBlockUpdated, s, id.String()).With("version", updated.Version))
	return updated, nil
}

func (w *Workspace) updateWithRetry(ctx context.Context, s Session, store *graph.Store, id shared.BlockID, expectedVersion int, patch block.Patch) (block.Block, error) {
	backoff := w.cfg.RetryBackoff
	var lastErr error

	if !store.HasBlock(id) {
		if err := w.refreshBlock(ctx, store, s.ProjectID, id); err != nil {
			return block.Block{}, err
		}
	}

	for attempt := 0; attempt < w.cfg.UpdateAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return block.Block{}, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
			if err := w.refreshBlock(ctx, store, s.ProjectID, id); err != nil {
				return block.Block{}, err
			}
		}

		updated, err := w.tryUpdate(ctx, s, store, id, expectedVersion, patch)
		if err == nil {
			return updated, nil
		}
		if !errors.IsVersionConflict(err) {
			return block.Block{}, err
		}

		if w.metrics != nil {
			w.metrics.VersionConflicts.Inc()
		}
		lastErr = err
		if expectedVersion > 0 {
			return block.Block{}, err
		}
		w.logger.Warn("block update lost version race, retrying",
			zap.String("block_id", id.String()),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
		)
	}
	return block.Block{}, lastErr
}

// tryUpdate makes one remote-then-local update attempt: swap the block and
// archive the prior version in one gateway call, then commit locally.
func (w *Workspace) tryUpdate(ctx context.Context, s Session, store *graph.Store, id shared.BlockID, expectedVersion int, patch block.Patch) (block.Block, error) {
	next, prior, err := store.PrepareUpdate(id, expectedVersion, patch, s.UserID)
	if err != nil {
		return block.Block{}, err
	}

	stored, err := w.gw.ReviseBlock(ctx, next, prior)
	if err != nil {
		w.remoteFailed("UpdateBlock", s, err, zap.String("block_id", id.String()))
		return block.Block{}, err
	}

	if err := store.CommitUpdate(stored, prior); err != nil {
		// A concurrent local update committed first; the gateway copy wins.
		w.logger.Warn("local graph moved during update; installing stored block",
			zap.String("block_id", id.String()),
			zap.Error(err),
		)
		if err := store.PutBlock(stored); err != nil {
			return block.Block{}, err
		}
	}

	w.logger.Info("block updated",
		zap.String("block_id", id.String()),
		zap.Int("version", stored.Version),
	)
	return stored, nil
}

// refreshBlock reloads one block from the gateway into the local graph.
func (w *Workspace) refreshBlock(ctx context.Context, store *graph.Store, projectID shared.ProjectID, id shared.BlockID) error {
	blocks, err := w.gw.ListBlocks(ctx, projectID)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if b.ID == id {
			return store.PutBlock(b)
		}
	}
	if _, err := store.DeleteBlock(id); err != nil {
		return err
	}
	return shared.BlockNotFound(id)
}

// DeleteBlock removes a block and every relationship touching it, first in
// the gateway and then locally.
func (w *Workspace) DeleteBlock(ctx context.Context, s Session, id shared.BlockID) ([]shared.RelationshipID, error) {
	ctx, span := w.startSpan(ctx, "workspace.DeleteBlock", s, attribute.String("block.id", id.String()))
	defer span.End()

	op, err := w.session(ctx, s)
	if err != nil {
		return nil, w.fail(span, err)
	}
	if !op.store.HasBlock(id) {
		fresh, ok := w.resync(ctx, s, shared.BlockNotFound(id))
		if !ok || !fresh.store.HasBlock(id) {
			return nil, w.fail(span, shared.BlockNotFound(id))
		}
		op = fresh
	}

	if _, err := w.gw.DeleteRelationshipsForBlock(ctx, s.ProjectID, id); err != nil {
		w.remoteFailed("DeleteBlock", s, err, zap.String("block_id", id.String()))
		return nil, w.fail(span, err)
	}
	if err := w.gw.DeleteBlock(ctx, s.ProjectID, id); err != nil {
		// The relationships are already gone remotely; drop the cached
		// graph so the next call reloads what the gateway holds.
		w.CloseProject(s)
		w.remoteFailed("DeleteBlock", s, err, zap.String("block_id", id.String()))
		return nil, w.fail(span, err)
	}

	removed, err := op.store.DeleteBlock(id)
	if err != nil {
		return nil, w.fail(span, err)
	}

	if w.metrics != nil {
		w.metrics.BlocksDeleted.Inc()
		w.metrics.RelationshipsDeleted.Add(float64(len(removed)))
	}
	evs := make([]events.Event, 0, len(removed)+1)
	for _, rid := range removed {
		evs = append(evs, w.event(events.TypeRelationshipDeleted, s, rid.String()).With("cascade_from", id.String()))
	}
	evs = append(evs, w.event(events.TypeBlockDeleted, s, id.String()))
	w.publish(ctx, evs...)

	w.logger.Info("block deleted",
		zap.String("block_id", id.String()),
		zap.Int("relationships_removed", len(removed)),
	)
	return removed, nil
}

// History returns the archived versions of a block, newest first.
func (w *Workspace) History(ctx context.Context, s Session, id shared.BlockID) ([]block.Version, error) {
	ctx, span := w.startSpan(ctx, "workspace.History", s, attribute.String("block.id", id.String()))
	defer span.End()

	op, err := w.session(ctx, s)
	if err != nil {
		return nil, w.fail(span, err)
	}
	if !op.store.HasBlock(id) {
		return nil, w.fail(span, shared.BlockNotFound(id))
	}
	versions, err := w.gw.ListBlockVersions(ctx, id)
	if err != nil {
		return nil, w.fail(span, err)
	}
	return versions, nil
}

// RestoreVersion writes an archived version's content back as a new version.
func (w *Workspace) RestoreVersion(ctx context.Context, s Session, id shared.BlockID, version int) (block.Block, error) {
	versions, err := w.History(ctx, s, id)
	if err != nil {
		return block.Block{}, err
	}
	for _, v := range versions {
		if v.Version != version {
			continue
		}
		content := v.Content
		restored, err := w.UpdateBlock(ctx, s, id, 0, block.Patch{Content: &content})
		if err != nil {
			return block.Block{}, err
		}
		w.publish(ctx, w.event(events.TypeBlockRestored, s, id.String()).With("from_version", version))
		return restored, nil
	}
	return block.Block{}, errors.From(shared.ErrVersionNotFound).
		WithResource(id.String()).
		WithDetails("version " + strconv.Itoa(version)).
		Build()
}
