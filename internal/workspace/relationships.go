package workspace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/events"
)

// NewRelationship describes a directed link between two blocks. Zero
// strength takes the default.
type NewRelationship struct {
	Source   shared.BlockID
	Target   shared.BlockID
	Type     relationship.Type
	Strength float64
	Notes    string
}

// CreateRelationship links two blocks of the session's project.
func (w *Workspace) CreateRelationship(ctx context.Context, s Session, in NewRelationship) (relationship.Relationship, error) {
	ctx, span := w.startSpan(ctx, "workspace.CreateRelationship", s,
		attribute.String("relationship.source", in.Source.String()),
		attribute.String("relationship.target", in.Target.String()),
	)
	defer span.End()

	op, err := w.session(ctx, s)
	if err != nil {
		return relationship.Relationship{}, w.fail(span, err)
	}

	r, err := relationship.New(s.ProjectID, in.Source, in.Target, in.Type, w.now().UTC())
	if err != nil {
		return relationship.Relationship{}, w.fail(span, err)
	}
	if in.Strength != 0 {
		r.Strength = in.Strength
	}
	r.Notes = in.Notes
	if err := op.store.CheckEndpoints(r.SourceBlockID, r.TargetBlockID); err != nil {
		fresh, ok := w.resync(ctx, s, err)
		if !ok {
			return relationship.Relationship{}, w.fail(span, err)
		}
		op = fresh
		if err := op.store.CheckEndpoints(r.SourceBlockID, r.TargetBlockID); err != nil {
			return relationship.Relationship{}, w.fail(span, err)
		}
	}

	stored, err := w.gw.InsertRelationship(ctx, r)
	if err != nil {
		w.remoteFailed("CreateRelationship", s, err, zap.String("relationship_id", r.ID.String()))
		return relationship.Relationship{}, w.fail(span, err)
	}
	if err := op.store.PutRelationship(stored); err != nil {
		// An endpoint was deleted locally while the insert was in flight.
		w.logger.Warn("relationship stored remotely but endpoint vanished locally",
			zap.String("relationship_id", stored.ID.String()),
			zap.Error(err),
		)
		return relationship.Relationship{}, w.fail(span, err)
	}

	if w.metrics != nil {
		w.metrics.RelationshipsCreated.Inc()
	}
	w.publish(ctx, w.event(events.TypeRelationshipCreated, s, stored.ID.String()).
		With("source_block_id", stored.SourceBlockID.String()).
		With("target_block_id", stored.TargetBlockID.String()).
		With("relationship_type", string(stored.Type)))
	w.logger.Info("relationship created",
		zap.String("relationship_id", stored.ID.String()),
		zap.String("type", string(stored.Type)),
	)
	return stored, nil
}

// DeleteRelationship removes one relationship.
func (w *Workspace) DeleteRelationship(ctx context.Context, s Session, id shared.RelationshipID) error {
	ctx, span := w.startSpan(ctx, "workspace.DeleteRelationship", s, attribute.String("relationship.id", id.String()))
	defer span.End()

	op, err := w.session(ctx, s)
	if err != nil {
		return w.fail(span, err)
	}
	if _, err := op.store.Relationship(id); err != nil {
		fresh, ok := w.resync(ctx, s, err)
		if !ok {
			return w.fail(span, err)
		}
		op = fresh
		if _, err := op.store.Relationship(id); err != nil {
			return w.fail(span, err)
		}
	}

	if err := w.gw.DeleteRelationship(ctx, s.ProjectID, id); err != nil {
		w.remoteFailed("DeleteRelationship", s, err, zap.String("relationship_id", id.String()))
		return w.fail(span, err)
	}
	if err := op.store.DeleteRelationship(id); err != nil {
		return w.fail(span, err)
	}

	if w.metrics != nil {
		w.metrics.RelationshipsDeleted.Inc()
	}
	w.publish(ctx, w.event(events.TypeRelationshipDeleted, s, id.String()))
	w.logger.Info("relationship deleted", zap.String("relationship_id", id.String()))
	return nil
}
