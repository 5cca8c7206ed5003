package workspace

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/events"
	"github.com/wuzhiguocarter/Aletheia/internal/export"
	"github.com/wuzhiguocarter/Aletheia/internal/insight"
	"github.com/wuzhiguocarter/Aletheia/internal/persona"
)

// Insights analyzes the session's blocks as currently stored.
func (w *Workspace) Insights(ctx context.Context, s Session) ([]insight.Insight, error) {
	op, err := w.fresh(ctx, s)
	if err != nil {
		return nil, err
	}
	return w.analyzer.Analyze(op.store.Blocks()), nil
}

// ExportResult is a rendered export ready for download.
type ExportResult struct {
	FileName    string         `json:"file_name"`
	ContentType string         `json:"content_type"`
	Content     string         `json:"content"`
	Record      project.Export `json:"record"`
	// Archived is false when the gateway could not store the record.
	Archived bool `json:"archived"`
}

// Export renders the session's graph in format and archives the result.
// Archiving is best effort; the rendered text is returned either way.
func (w *Workspace) Export(ctx context.Context, s Session, format, audience string) (ExportResult, error) {
	ctx, span := w.startSpan(ctx, "workspace.Export", s, attribute.String("export.format", format))
	defer span.End()

	f, err := export.ParseFormat(format)
	if err != nil {
		return ExportResult{}, w.fail(span, err)
	}
	op, err := w.fresh(ctx, s)
	if err != nil {
		return ExportResult{}, w.fail(span, err)
	}

	snap := op.store.Snapshot()
	info := op.info()
	content, err := export.Render(export.Document{
		Title:         info.Title,
		Blocks:        snap.Blocks,
		Relationships: snap.Relationships,
	}, f)
	if err != nil {
		return ExportResult{}, w.fail(span, err)
	}

	if strings.TrimSpace(audience) == "" {
		audience = w.defaultAudience()
	}
	result := ExportResult{
		FileName:    export.FileName(info.Title, f),
		ContentType: export.ContentType(f),
		Content:     content,
		Record: project.Export{
			ProjectID: s.ProjectID,
			CreatorID: s.UserID,
			Format:    string(f),
			Audience:  audience,
			Content:   content,
			CreatedAt: w.now().UTC(),
		},
	}

	stored, err := w.gw.InsertExport(ctx, result.Record)
	if err != nil {
		w.logger.Error("failed to archive export",
			zap.String("project_id", s.ProjectID.String()),
			zap.String("format", string(f)),
			zap.Error(err),
		)
		span.RecordError(err)
	} else {
		result.Record = stored
		result.Archived = true
	}

	if w.metrics != nil {
		w.metrics.ExportsRendered.WithLabelValues(string(f)).Inc()
	}
	w.publish(ctx, w.event(events.TypeExportCreated, s, result.Record.ID).With("format", string(f)))
	return result, nil
}

// ListExports returns the archived exports of the session's project.
func (w *Workspace) ListExports(ctx context.Context, s Session) ([]project.Export, error) {
	if _, err := w.GetProject(ctx, s); err != nil {
		return nil, err
	}
	return w.gw.ListExports(ctx, s.ProjectID)
}

// Answer is a persona's reply to a prompt.
type Answer struct {
	Persona  persona.Persona `json:"persona"`
	Response string          `json:"response"`
	// Fallback is set when the responder failed and Response is the
	// fixed fallback text.
	Fallback bool `json:"fallback"`
}

// Ask sends prompt to a persona and archives the exchange. Responder
// failures never surface as errors: the caller gets the fallback text.
// Without a selected project the reply is the no-project text.
func (w *Workspace) Ask(ctx context.Context, s Session, who persona.Persona, prompt string) (Answer, error) {
	ctx, span := w.startSpan(ctx, "workspace.Ask", s, attribute.String("persona", who.String()))
	defer span.End()

	if !s.HasProject() {
		return Answer{Persona: who, Response: persona.NoProjectResponse, Fallback: true}, nil
	}
	p, err := persona.ParsePersona(who.String())
	if err != nil {
		return Answer{}, w.fail(span, err)
	}
	if _, err := w.session(ctx, s); err != nil {
		return Answer{}, w.fail(span, err)
	}

	answer := Answer{Persona: p}
	outcome := "ok"
	response, err := w.responder.Respond(ctx, p, prompt)
	if err != nil {
		w.logger.Warn("persona responder failed; using fallback",
			zap.String("persona", p.String()),
			zap.Error(err),
		)
		span.RecordError(err)
		response = persona.FallbackResponse
		answer.Fallback = true
		outcome = "fallback"
	}
	answer.Response = response
	if w.metrics != nil {
		w.metrics.PersonaRequests.WithLabelValues(p.String(), outcome).Inc()
	}

	if answer.Fallback {
		return answer, nil
	}
	_, err = w.gw.InsertInteraction(ctx, project.Interaction{
		ProjectID: s.ProjectID,
		UserID:    s.UserID,
		Persona:   p.String(),
		Prompt:    prompt,
		Response:  response,
		CreatedAt: w.now().UTC(),
	})
	if err != nil {
		w.logger.Error("failed to archive interaction",
			zap.String("project_id", s.ProjectID.String()),
			zap.String("persona", p.String()),
			zap.Error(err),
		)
	}
	return answer, nil
}

// ListInteractions returns the archived persona exchanges of the session's
// project, newest first.
func (w *Workspace) ListInteractions(ctx context.Context, s Session) ([]project.Interaction, error) {
	if _, err := w.GetProject(ctx, s); err != nil {
		return nil, err
	}
	return w.gw.ListInteractions(ctx, s.ProjectID)
}
