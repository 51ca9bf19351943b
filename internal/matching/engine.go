// internal/matching/engine.go
package matching

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"

	"template-verifier/internal/common/errors"
	"template-verifier/internal/models"

	"github.com/sourcegraph/conc/iter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultRelevanceThreshold flags candidates worth showing to a reviewer.
	DefaultRelevanceThreshold = 0.6
	// DefaultMatchThreshold is the final MATCHED decision boundary.
	DefaultMatchThreshold = 0.65
	// DefaultLowConfidenceCoverage is the share of weighted fields below
	// which a result is annotated as low confidence.
	DefaultLowConfidenceCoverage = 0.5
)

// Names of the scored field pairs, as reported in ComparedFields.
const (
	PairBoard       = "board"
	PairProgram     = "program"
	PairStudentName = "studentName"
	PairIdentifier  = "identifier"
	PairExamYear    = "examYear"
	PairSubjects    = "subjects"
	PairRawText     = "rawText"
)

type Weights struct {
	Board       float64 `mapstructure:"board"`
	Program     float64 `mapstructure:"program"`
	StudentName float64 `mapstructure:"student_name"`
	Identifier  float64 `mapstructure:"identifier"`
	ExamYear    float64 `mapstructure:"exam_year"`
	Subjects    float64 `mapstructure:"subjects"`
	RawText     float64 `mapstructure:"raw_text"`
}

func DefaultWeights() Weights {
	return Weights{
		Board:       0.20,
		Program:     0.20,
		StudentName: 0.10,
		Identifier:  0.05,
		ExamYear:    0.10,
		Subjects:    0.30,
		RawText:     0.20,
	}
}

type Config struct {
	Weights               Weights
	RelevanceThreshold    float64
	MatchThreshold        float64
	LowConfidenceCoverage float64
	// Parallelism bounds the scoring fan-out; 0 means GOMAXPROCS.
	Parallelism int
}

func DefaultConfig() Config {
	return Config{
		Weights:               DefaultWeights(),
		RelevanceThreshold:    DefaultRelevanceThreshold,
		MatchThreshold:        DefaultMatchThreshold,
		LowConfidenceCoverage: DefaultLowConfidenceCoverage,
	}
}

func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"relevance_threshold":     c.RelevanceThreshold,
		"match_threshold":         c.MatchThreshold,
		"low_confidence_coverage": c.LowConfidenceCoverage,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	w := c.Weights
	for name, v := range map[string]float64{
		"board": w.Board, "program": w.Program, "student_name": w.StudentName,
		"identifier": w.Identifier, "exam_year": w.ExamYear, "subjects": w.Subjects,
		"raw_text": w.RawText,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative, got %v", name, v)
		}
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}
	return nil
}

// fieldPair scores one field of a document against the same field of a
// template. A pair is compared only when both sides carry the field.
type fieldPair struct {
	name    string
	weight  float64
	bonus   bool
	present func(models.ExtractedFieldSet) bool
	compare func(doc, tmpl models.ExtractedFieldSet) float64
}

// Breakdown is the detailed score of one document/template pair.
type Breakdown struct {
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
	Compared   []string           `json:"compared"`
	// Coverage counts weighted (non-bonus) pairs only.
	Coverage float64 `json:"coverage"`
}

// Engine scores documents against reference templates. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	cfg      Config
	patterns PatternSet
	pairs    []fieldPair
	tracer   trace.Tracer
}

type Option func(*Engine)

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer("template-verifier/matching")
	}
}

func NewEngine(cfg Config, patterns PatternSet, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}
	if patterns.Len() == 0 {
		patterns = DefaultPatternSet()
	}
	e := &Engine{
		cfg:      cfg,
		patterns: patterns,
		tracer:   otel.Tracer("template-verifier/matching"),
	}
	e.pairs = e.buildPairs()
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Patterns() PatternSet { return e.patterns }

func (e *Engine) buildPairs() []fieldPair {
	w := e.cfg.Weights
	hasText := func(get func(models.ExtractedFieldSet) string) func(models.ExtractedFieldSet) bool {
		return func(f models.ExtractedFieldSet) bool { return strings.TrimSpace(get(f)) != "" }
	}
	board := func(f models.ExtractedFieldSet) string { return f.Board }
	program := func(f models.ExtractedFieldSet) string { return f.Program }
	name := func(f models.ExtractedFieldSet) string { return f.StudentName }
	ident := func(f models.ExtractedFieldSet) string { return f.Identifier() }
	year := func(f models.ExtractedFieldSet) string { return f.ExamYear }
	text := func(f models.ExtractedFieldSet) string { return f.RawText }

	return []fieldPair{
		{name: PairBoard, weight: w.Board, present: hasText(board),
			compare: func(d, t models.ExtractedFieldSet) float64 { return LabelSimilarity(d.Board, t.Board) }},
		{name: PairProgram, weight: w.Program, present: hasText(program),
			compare: func(d, t models.ExtractedFieldSet) float64 { return LabelSimilarity(d.Program, t.Program) }},
		{name: PairStudentName, weight: w.StudentName, present: hasText(name),
			compare: func(d, t models.ExtractedFieldSet) float64 {
				return NameFormatSimilarity(d.StudentName, t.StudentName)
			}},
		{name: PairIdentifier, weight: w.Identifier, present: hasText(ident),
			compare: func(d, t models.ExtractedFieldSet) float64 {
				return IdentifierFormatSimilarity(d.Identifier(), t.Identifier())
			}},
		{name: PairExamYear, weight: w.ExamYear, present: hasText(year),
			compare: func(d, t models.ExtractedFieldSet) float64 { return ExamYearSimilarity(d.ExamYear, t.ExamYear) }},
		{name: PairSubjects, weight: w.Subjects,
			present: func(f models.ExtractedFieldSet) bool { return len(f.Subjects) > 0 },
			compare: func(d, t models.ExtractedFieldSet) float64 {
				return SubjectStructureSimilarity(d.Subjects, t.Subjects)
			}},
		{name: PairRawText, weight: w.RawText, bonus: true, present: hasText(text),
			compare: func(d, t models.ExtractedFieldSet) float64 {
				return e.patterns.RawTextSimilarity(d.RawText, t.RawText)
			}},
	}
}

// Score computes the weighted similarity of a document and a template field
// set. Pairs missing on either side are left out of both sums; a comparator
// that panics scores 0 for its pair.
func (e *Engine) Score(doc, tmpl models.ExtractedFieldSet) Breakdown {
	return e.score(doc.Normalize(), tmpl.Normalize())
}

// score expects both sides to be normalized already.
func (e *Engine) score(doc, tmpl models.ExtractedFieldSet) Breakdown {
	b := Breakdown{Components: make(map[string]float64, len(e.pairs))}
	var sum, denom float64
	weighted, compared := 0, 0
	for _, p := range e.pairs {
		if p.weight <= 0 {
			continue
		}
		if !p.bonus {
			weighted++
		}
		if !p.present(doc) || !p.present(tmpl) {
			continue
		}
		s := safeCompare(func() float64 { return p.compare(doc, tmpl) })
		b.Components[p.name] = s
		b.Compared = append(b.Compared, p.name)
		sum += p.weight * s
		denom += p.weight
		if !p.bonus {
			compared++
		}
	}
	if denom > 0 {
		b.Score = clamp01(sum / denom)
	}
	if weighted > 0 {
		b.Coverage = float64(compared) / float64(weighted)
	}
	return b
}

// Narrow keeps candidates whose board, then program, resembles the document's.
// When nothing survives, the full list comes back and narrowed is false.
func (e *Engine) Narrow(doc models.ExtractedFieldSet, candidates []models.TemplateRecord) ([]models.TemplateRecord, bool) {
	pool := candidates
	if strings.TrimSpace(doc.Board) != "" {
		pool = filterByLabel(pool, doc.Board, func(t models.TemplateRecord) (string, string) {
			return t.Board, t.ExtractedFieldSet.Board
		})
	}
	if strings.TrimSpace(doc.Program) != "" {
		pool = filterByLabel(pool, doc.Program, func(t models.TemplateRecord) (string, string) {
			return t.Program, t.ExtractedFieldSet.Program
		})
	}
	if len(pool) == 0 {
		return candidates, false
	}
	return pool, len(pool) < len(candidates)
}

func filterByLabel(in []models.TemplateRecord, label string, labels func(models.TemplateRecord) (string, string)) []models.TemplateRecord {
	var out []models.TemplateRecord
	for _, t := range in {
		recordLabel, sampleLabel := labels(t)
		if LabelSimilarity(label, recordLabel) > 0 || LabelSimilarity(label, sampleLabel) > 0 {
			out = append(out, t)
		}
	}
	return out
}

type scoredCandidate struct {
	record    models.TemplateRecord
	breakdown Breakdown
}

// Match scores doc against every candidate and picks the best one. An empty
// candidate list is reported as NO_TEMPLATES_AVAILABLE; a poor best score is a
// normal NOT_MATCHED result.
func (e *Engine) Match(ctx context.Context, doc models.ExtractedFieldSet, candidates []models.TemplateRecord) (*models.MatchResult, error) {
	ctx, span := e.tracer.Start(ctx, "matching.Match", trace.WithAttributes(
		attribute.Int("candidates.total", len(candidates)),
		attribute.String("patterns.version", e.patterns.Version()),
	))
	defer span.End()

	if len(candidates) == 0 {
		err := errors.NewNoTemplatesAvailableError()
		span.SetStatus(codes.Error, err.Message)
		return nil, err
	}

	doc = doc.Normalize()
	pool, narrowed := e.Narrow(doc, candidates)
	span.SetAttributes(attribute.Int("candidates.scored", len(pool)), attribute.Bool("candidates.narrowed", narrowed))

	scored := e.scoreAll(pool, doc)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		si, sj := scored[i].breakdown.Score, scored[j].breakdown.Score
		if si != sj {
			return si > sj
		}
		return scored[i].record.CreatedBefore(scored[j].record)
	})

	result := e.buildResult(doc, scored, narrowed)
	span.SetAttributes(
		attribute.String("match.template_id", result.TemplateID),
		attribute.Float64("match.score", result.Score),
		attribute.Bool("match.matched", result.Matched),
	)
	return result, nil
}

func (e *Engine) scoreAll(pool []models.TemplateRecord, doc models.ExtractedFieldSet) []scoredCandidate {
	workers := e.cfg.Parallelism
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	mapper := iter.Mapper[models.TemplateRecord, scoredCandidate]{MaxGoroutines: workers}
	return mapper.Map(pool, func(t *models.TemplateRecord) scoredCandidate {
		return scoredCandidate{record: *t, breakdown: e.score(doc, t.ExtractedFieldSet.Normalize())}
	})
}

func (e *Engine) buildResult(doc models.ExtractedFieldSet, scored []scoredCandidate, narrowed bool) *models.MatchResult {
	ranked := make([]models.RankedCandidate, len(scored))
	for i, s := range scored {
		ranked[i] = models.RankedCandidate{
			TemplateID:     s.record.ID,
			Board:          s.record.Board,
			Program:        s.record.Program,
			Score:          s.breakdown.Score,
			Relevant:       s.breakdown.Score > e.cfg.RelevanceThreshold,
			ComparedFields: s.breakdown.Compared,
		}
	}

	best := scored[0]
	matched := best.breakdown.Score > e.cfg.MatchThreshold
	result := &models.MatchResult{
		TemplateID:           best.record.ID,
		TemplateName:         best.record.DisplayName(),
		Score:                best.breakdown.Score,
		Matched:              matched,
		Status:               models.MatchStatusNotMatched,
		RankedCandidates:     ranked,
		Coverage:             best.breakdown.Coverage,
		ComparedFields:       best.breakdown.Compared,
		PatternSetVersion:    e.patterns.Version(),
		CandidatesConsidered: len(scored),
		Narrowed:             narrowed,
	}
	if matched {
		result.Status = models.MatchStatusMatched
		result.Message = fmt.Sprintf("Matched with template: %s (Score: %.2f)", result.TemplateName, result.Score)
	} else {
		result.Message = fmt.Sprintf("No good match found. Best candidate: %s (Score: %.2f)", result.TemplateName, result.Score)
	}

	if doc.IsEmpty() {
		result.Warnings = append(result.Warnings, "document field set is empty")
	}
	if best.breakdown.Coverage < e.cfg.LowConfidenceCoverage {
		result.LowConfidence = true
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%s: low confidence due to incomplete data (%.0f%% of weighted fields compared)",
			errors.ErrCodePartialExtraction, best.breakdown.Coverage*100))
	}
	return result
}

func safeCompare(fn func() float64) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			score = 0
		}
	}()
	return clamp01(fn())
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
