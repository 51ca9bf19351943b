// internal/verification/service.go
package verification

import (
	"context"
	"strings"
	"time"

	"template-verifier/internal/assets"
	"template-verifier/internal/common/errors"
	"template-verifier/internal/common/logger"
	"template-verifier/internal/common/metrics"
	"template-verifier/internal/events"
	"template-verifier/internal/extraction"
	"template-verifier/internal/matching"
	"template-verifier/internal/models"
	"template-verifier/internal/search"
	"template-verifier/internal/templates"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MatchRecorder receives one call per match decision.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, status string, lowConfidence bool, duration time.Duration)
}

// Service is the operation surface the workers call. The repository is the
// source of truth; the search index, the asset store and event sinks follow
// it. Updates and deletes of one template are serialized so those side
// effects never interleave.
type Service struct {
	repo      templates.Repository
	engine    *matching.Engine
	extractor extraction.Extractor
	assets    assets.Store
	index     search.Index
	publisher events.Publisher
	recorder  MatchRecorder
	rules     matching.AssessmentRules
	locks     *templates.LockSet
	tracer    trace.Tracer
	logger    logger.Logger
}

type Option func(*Service)

func WithExtractor(e extraction.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

func WithAssetStore(a assets.Store) Option {
	return func(s *Service) { s.assets = a }
}

func WithIndex(i search.Index) Option {
	return func(s *Service) { s.index = i }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMatchRecorder(r MatchRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithAssessmentRules(r matching.AssessmentRules) Option {
	return func(s *Service) { s.rules = r }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("template-verifier/verification") }
}

func NewService(repo templates.Repository, engine *matching.Engine, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		engine:    engine,
		publisher: events.NopPublisher{},
		rules:     matching.DefaultAssessmentRules(),
		locks:     templates.NewLockSet(),
		tracer:    otel.Tracer("template-verifier/verification"),
		logger:    log.WithFields(map[string]interface{}{"component": "verification"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterTemplate stores a new reference template. A supplied field set is
// used as is; otherwise the image is extracted first.
func (s *Service) RegisterTemplate(ctx context.Context, req RegisterRequest) (*models.TemplateRecord, error) {
	ctx, span := s.tracer.Start(ctx, "verification.RegisterTemplate")
	defer span.End()

	draft := templates.Draft{Board: req.Board, Program: req.Program, Metadata: req.Metadata}.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, s.spanError(span, err)
	}

	imagePath := strings.TrimSpace(req.ImagePath)
	switch {
	case req.FieldSet != nil:
		draft.FieldSet = req.FieldSet.Clone()
	case imagePath != "":
		fs, err := s.extract(ctx, imagePath)
		if err != nil {
			return nil, s.spanError(span, err)
		}
		draft.FieldSet = fs
	}
	draft = draft.Normalize()

	if req.StoreImage && imagePath != "" {
		if s.assets == nil {
			return nil, s.spanError(span, errors.NewValidationError("no asset store configured for storeImage", "storeImage"))
		}
		handle, err := s.assets.Import(ctx, imagePath)
		if err != nil {
			return nil, s.spanError(span, err)
		}
		draft.AssetHandle = handle
	}

	rec, err := s.repo.Add(ctx, draft)
	metrics.TemplateStoreOperations.WithLabelValues("add", metrics.Outcome(err)).Inc()
	if err != nil {
		if draft.AssetHandle != "" {
			s.deleteAsset(ctx, draft.AssetHandle)
		}
		return nil, s.spanError(span, err)
	}

	span.SetAttributes(attribute.String("template.id", rec.ID))
	s.reindex(ctx, *rec)
	s.publish(ctx, events.New(events.TypeTemplateRegistered, rec.ID, rec.Summary()))
	s.logger.Info("template registered", map[string]interface{}{
		"templateId":    rec.ID,
		"board":         rec.Board,
		"program":       rec.Program,
		"presentFields": rec.ExtractedFieldSet.PresentFields(),
		"hasAsset":      rec.AssetHandle != "",
	})
	return rec, nil
}

// GetTemplate returns (nil, nil) for an unknown id.
func (s *Service) GetTemplate(ctx context.Context, id string) (*models.TemplateRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewValidationError("templateId is required", "templateId")
	}
	rec, err := s.repo.GetByID(ctx, id)
	metrics.TemplateStoreOperations.WithLabelValues("get", metrics.Outcome(err)).Inc()
	return rec, err
}

// ListTemplates summarizes every template, or the ones whose labels contain
// the given filters.
func (s *Service) ListTemplates(ctx context.Context, board, program string) ([]models.TemplateSummary, error) {
	recs, err := s.FindCandidates(ctx, board, program)
	if err != nil {
		return nil, err
	}
	out := make([]models.TemplateSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Summary())
	}
	return out, nil
}

func (s *Service) FindCandidates(ctx context.Context, board, program string) ([]models.TemplateRecord, error) {
	var (
		recs []models.TemplateRecord
		err  error
	)
	if strings.TrimSpace(board) == "" && strings.TrimSpace(program) == "" {
		recs, err = s.repo.ListAll(ctx)
	} else {
		recs, err = s.repo.FindCandidates(ctx, board, program)
	}
	metrics.TemplateStoreOperations.WithLabelValues("list", metrics.Outcome(err)).Inc()
	return recs, err
}

// matchCandidates applies the caller's board/program filter. A filter that
// excludes every template falls back to the whole repository, so only an
// empty repository ends in NO_TEMPLATES_AVAILABLE.
func (s *Service) matchCandidates(ctx context.Context, board, program string) ([]models.TemplateRecord, error) {
	recs, err := s.FindCandidates(ctx, board, program)
	if err != nil || len(recs) > 0 {
		return recs, err
	}
	if strings.TrimSpace(board) == "" && strings.TrimSpace(program) == "" {
		return recs, nil
	}
	s.logger.Debug("candidate filter matched no templates, using all", map[string]interface{}{
		"board":   board,
		"program": program,
	})
	return s.FindCandidates(ctx, "", "")
}

func (s *Service) UpdateTemplate(ctx context.Context, id string, update templates.Update) (*models.TemplateRecord, error) {
	ctx, span := s.tracer.Start(ctx, "verification.UpdateTemplate", trace.WithAttributes(attribute.String("template.id", id)))
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, s.spanError(span, errors.NewValidationError("templateId is required", "templateId"))
	}
	if update.IsEmpty() {
		return nil, s.spanError(span, errors.NewValidationError("update carries no attributes", "update"))
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.spanError(span, err)
	}
	if current == nil {
		return nil, s.spanError(span, errors.NewTemplateNotFoundError(id))
	}

	rec, err := s.repo.Update(ctx, id, update)
	metrics.TemplateStoreOperations.WithLabelValues("update", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, s.spanError(span, err)
	}
	if current.AssetHandle != "" && current.AssetHandle != rec.AssetHandle {
		s.deleteAsset(ctx, current.AssetHandle)
	}

	s.reindex(ctx, *rec)
	s.publish(ctx, events.New(events.TypeTemplateUpdated, rec.ID, rec.Summary()))
	s.logger.Info("template updated", map[string]interface{}{"templateId": rec.ID})
	return rec, nil
}

// DeleteTemplate removes the record, then its asset and index entry.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "verification.DeleteTemplate", trace.WithAttributes(attribute.String("template.id", id)))
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return s.spanError(span, errors.NewValidationError("templateId is required", "templateId"))
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return s.spanError(span, err)
	}
	if rec == nil {
		return s.spanError(span, errors.NewTemplateNotFoundError(id))
	}

	err = s.repo.Delete(ctx, id)
	metrics.TemplateStoreOperations.WithLabelValues("delete", metrics.Outcome(err)).Inc()
	if err != nil {
		return s.spanError(span, err)
	}

	if rec.AssetHandle != "" {
		s.deleteAsset(ctx, rec.AssetHandle)
	}
	if s.index != nil {
		if err := s.index.Remove(ctx, id); err != nil {
			s.logger.WithError(err).Warn("failed to remove template from index", map[string]interface{}{"templateId": id})
		}
	}
	s.publish(ctx, events.New(events.TypeTemplateDeleted, id, nil))
	s.logger.Info("template deleted", map[string]interface{}{"templateId": id})
	return nil
}

// MatchDocument scores a document against the stored templates. A poor best
// score is a NOT_MATCHED result; an empty candidate set is an error.
func (s *Service) MatchDocument(ctx context.Context, req MatchRequest) (*models.MatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.MatchDocument")
	defer span.End()
	start := time.Now()

	doc, err := s.resolveFieldSet(ctx, req.FieldSet, req.ImagePath)
	if err != nil {
		return nil, s.spanError(span, err)
	}

	candidates, err := s.matchCandidates(ctx, req.Board, req.Program)
	if err != nil {
		return nil, s.spanError(span, err)
	}

	result, err := s.engine.Match(ctx, doc, candidates)
	if err != nil {
		return nil, s.spanError(span, err)
	}

	metrics.TemplateMatches.WithLabelValues(string(result.Status), boolLabel(result.LowConfidence)).Inc()
	metrics.TemplateMatchScore.Observe(result.Score)
	metrics.TemplateCandidatesScored.Observe(float64(result.CandidatesConsidered))
	if s.recorder != nil {
		s.recorder.RecordMatch(ctx, string(result.Status), result.LowConfidence, time.Since(start))
	}
	span.SetAttributes(
		attribute.String("match.template_id", result.TemplateID),
		attribute.Float64("match.score", result.Score),
		attribute.String("match.status", string(result.Status)),
	)

	s.publish(ctx, events.New(events.TypeDocumentMatched, result.TemplateID, map[string]interface{}{
		"score":         result.Score,
		"status":        result.Status,
		"lowConfidence": result.LowConfidence,
	}))
	s.logger.Info("document matched", map[string]interface{}{
		"templateId":    result.TemplateID,
		"score":         result.Score,
		"status":        result.Status,
		"candidates":    result.CandidatesConsidered,
		"lowConfidence": result.LowConfidence,
		"durationMs":    time.Since(start).Milliseconds(),
	})
	return result, nil
}

// SearchTemplates queries the search index. Without one, the repository is
// scanned into a throwaway in-memory index.
func (s *Service) SearchTemplates(ctx context.Context, q search.Query) (*search.Result, error) {
	if s.index != nil {
		return s.index.Search(ctx, q)
	}
	recs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	idx := search.NewMemoryIndex()
	for _, rec := range recs {
		idx.Index(ctx, rec)
	}
	return idx.Search(ctx, q)
}

// AssessExtraction reports how usable an extraction is before it is matched
// or registered.
func (s *Service) AssessExtraction(ctx context.Context, req AssessRequest) (*AssessResult, error) {
	fs, err := s.resolveFieldSet(ctx, req.FieldSet, req.ImagePath)
	if err != nil {
		return nil, err
	}
	return &AssessResult{Assessment: matching.AssessExtraction(fs, s.rules), FieldSet: fs}, nil
}

func (s *Service) resolveFieldSet(ctx context.Context, fs *models.ExtractedFieldSet, imagePath string) (models.ExtractedFieldSet, error) {
	if fs != nil {
		return fs.Normalize(), nil
	}
	imagePath = strings.TrimSpace(imagePath)
	if imagePath == "" {
		return models.ExtractedFieldSet{}, errors.NewValidationError("extractedFieldSet or imagePath is required", "extractedFieldSet", "imagePath")
	}
	return s.extract(ctx, imagePath)
}

func (s *Service) extract(ctx context.Context, imagePath string) (models.ExtractedFieldSet, error) {
	if s.extractor == nil {
		return models.ExtractedFieldSet{}, errors.NewValidationError("no extractor configured for imagePath", "imagePath")
	}
	fs, err := s.extractor.Extract(ctx, imagePath)
	if err != nil {
		return models.ExtractedFieldSet{}, err
	}
	return fs.Normalize(), nil
}

func (s *Service) reindex(ctx context.Context, rec models.TemplateRecord) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, rec); err != nil {
		s.logger.WithError(err).Warn("failed to index template", map[string]interface{}{"templateId": rec.ID})
	}
}

func (s *Service) deleteAsset(ctx context.Context, handle string) {
	if s.assets == nil {
		return
	}
	if err := s.assets.Delete(ctx, handle); err != nil {
		s.logger.WithError(err).Warn("failed to delete template asset", map[string]interface{}{"assetHandle": handle})
	}
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.WithError(err).Warn("failed to publish event", map[string]interface{}{
			"eventType":  evt.Type,
			"templateId": evt.TemplateID,
		})
	}
}

func (s *Service) spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
