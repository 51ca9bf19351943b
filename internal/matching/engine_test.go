// internal/matching/engine_test.go
package matching

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"template-verifier/internal/common/errors"
	"template-verifier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig(), DefaultPatternSet(), opts...)
	require.NoError(t, err)
	return e
}

func template(id, board, program string, created time.Duration, fs models.ExtractedFieldSet) models.TemplateRecord {
	return models.TemplateRecord{
		ID:                id,
		Board:             board,
		Program:           program,
		ExtractedFieldSet: fs,
		CreatedAt:         baseTime.Add(created),
		UpdatedAt:         baseTime.Add(created),
	}
}

func maharashtraSubjects() []interface{} {
	rows := make([]interface{}, 0, 5)
	for _, name := range []string{"English", "Marathi", "Hindi", "Mathematics", "Science"} {
		rows = append(rows, map[string]interface{}{"name": name, "marks": 80.0})
	}
	return rows
}

func fullFieldSet() models.ExtractedFieldSet {
	return models.NewFieldSetBuilder().
		StudentName("RAHUL SHARMA").
		Board("Maharashtra State Board").
		Program("SSC").
		SeatNumber("B123456").
		ExamYear("2023").
		Subjects(maharashtraSubjects()).
		RawText("MAHARASHTRA STATE BOARD SECONDARY SCHOOL CERTIFICATE EXAMINATION\nSTUDENT NAME RAHUL SHARMA\nSEAT NO B123456\nTOTAL MARKS 450 PERCENTAGE 90 RESULT PASS").
		Build()
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MatchThreshold = 1.5
	_, err := NewEngine(cfg, DefaultPatternSet())
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Weights.Subjects = -0.1
	_, err = NewEngine(cfg, DefaultPatternSet())
	assert.Error(t, err)
}

func TestNewEngine_EmptyPatternSetFallsBackToDefault(t *testing.T) {
	e, err := NewEngine(DefaultConfig(), PatternSet{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPatternSetVersion, e.Patterns().Version())
	assert.Equal(t, len(defaultAnchorPhrases), e.Patterns().Len())
}

func TestScore_IdentityScoresOne(t *testing.T) {
	e := newTestEngine(t)

	var decoded models.ExtractedFieldSet
	require.NoError(t, json.Unmarshal([]byte(`{
		"board": "Maharashtra State Board",
		"seatNumber": "B123456",
		"subjects": [{}, {"name": "English", "marks": 72}]
	}`), &decoded))

	sets := map[string]models.ExtractedFieldSet{
		"full":       fullFieldSet(),
		"board only": {Board: "CBSE"},
		"roll number": models.NewFieldSetBuilder().
			StudentName("priya patil").
			RollNumber("12/4567").
			Subjects(map[string]interface{}{"English": 60.0}).
			Build(),
		"struct literal subjects": {
			Board: "CBSE",
			Subjects: []models.Subject{
				{Name: "Math", ObtainedMarks: "90", MaxMarks: "100"},
				{Name: "Science"},
			},
		},
		"struct literal empty row": {
			Program:  "SSC",
			Subjects: []models.Subject{{}},
		},
		"decoded json with empty row": decoded,
	}

	for name, fs := range sets {
		t.Run(name, func(t *testing.T) {
			b := e.Score(fs, fs)
			assert.InDelta(t, 1.0, b.Score, 1e-9, "components=%v", b.Components)
		})
	}
}

func TestScore_StructLiteralMatchesBuiltFieldSet(t *testing.T) {
	e := newTestEngine(t)

	literal := models.ExtractedFieldSet{
		Board:    "CBSE",
		Subjects: []models.Subject{{Name: "Math", ObtainedMarks: "90"}, {Name: "Science", ObtainedMarks: "81"}},
	}
	built := models.NewFieldSetBuilder().
		Board("CBSE").
		Subjects([]interface{}{
			map[string]interface{}{"name": "Math", "obtainedMarks": "90"},
			map[string]interface{}{"name": "Science", "obtainedMarks": "81"},
		}).
		Build()

	b := e.Score(literal, built)
	assert.InDelta(t, 1.0, b.Score, 1e-9, "components=%v", b.Components)
}

func TestScore_MissingSubjectsSkippedForEveryInputShape(t *testing.T) {
	e := newTestEngine(t)

	var decoded models.ExtractedFieldSet
	require.NoError(t, json.Unmarshal([]byte(`{"board": "CBSE", "program": "AISSE"}`), &decoded))

	docs := map[string]models.ExtractedFieldSet{
		"struct literal": {Board: "CBSE", Program: "AISSE"},
		"decoded json":   decoded,
	}
	tmpl := models.ExtractedFieldSet{
		Board:    "CBSE",
		Program:  "AISSE",
		Subjects: []models.Subject{{Name: "English"}},
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			b := e.Score(doc, tmpl)
			assert.NotContains(t, b.Compared, PairSubjects)
			assert.InDelta(t, 1.0, b.Score, 1e-9)
		})
	}
}

func TestScore_MissingPairsAreSkipped(t *testing.T) {
	e := newTestEngine(t)

	doc := fullFieldSet()
	doc.Subjects = nil
	tmpl := fullFieldSet()

	b := e.Score(doc, tmpl)

	assert.NotContains(t, b.Compared, PairSubjects)
	assert.NotContains(t, b.Components, PairSubjects)
	assert.InDelta(t, 1.0, b.Score, 1e-9)
	assert.InDelta(t, 5.0/6.0, b.Coverage, 1e-9)
}

func TestScore_NothingComparableScoresZero(t *testing.T) {
	e := newTestEngine(t)

	b := e.Score(models.ExtractedFieldSet{Board: "CBSE"}, models.ExtractedFieldSet{Program: "SSC"})

	assert.Zero(t, b.Score)
	assert.Empty(t, b.Compared)
	assert.Zero(t, b.Coverage)
}

func TestScore_ZeroWeightPairIgnored(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Subjects = 0
	e, err := NewEngine(cfg, DefaultPatternSet())
	require.NoError(t, err)

	doc := fullFieldSet()
	tmpl := fullFieldSet()
	tmpl.Subjects = tmpl.Subjects[:1]

	b := e.Score(doc, tmpl)
	assert.NotContains(t, b.Compared, PairSubjects)
	assert.InDelta(t, 1.0, b.Score, 1e-9)
	assert.InDelta(t, 1.0, b.Coverage, 1e-9)
}

func TestScore_RawTextAnchorsAreMonotonic(t *testing.T) {
	e := newTestEngine(t)

	tmpl := models.ExtractedFieldSet{
		Board:   "Maharashtra State Board",
		RawText: strings.Join(defaultAnchorPhrases, "\n"),
	}

	prev := -1.0
	for k := 0; k <= len(defaultAnchorPhrases); k++ {
		doc := models.ExtractedFieldSet{
			Board:   "Maharashtra State Board",
			RawText: "MARKSHEET\n" + strings.Join(defaultAnchorPhrases[:k], "\n"),
		}
		score := e.Score(doc, tmpl).Score
		assert.GreaterOrEqual(t, score, prev, "score dropped after adding anchor %d", k)
		prev = score
	}
	assert.InDelta(t, 1.0, prev, 1e-9)
}

func TestMatch_NoCandidates(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Match(context.Background(), fullFieldSet(), nil)

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNoTemplatesAvailable))
}

func TestMatch_MaharashtraMarksheet(t *testing.T) {
	e := newTestEngine(t)

	doc := models.NewFieldSetBuilder().
		Board("MAHARASHTRA STATE BOARD").
		Program("SSC").
		Subjects(maharashtraSubjects()).
		Build()
	reference := template("maharashtra_state_board_ssc_1", "Maharashtra State Board", "SSC", 0,
		models.NewFieldSetBuilder().
			Board("Maharashtra State Board").
			Program("SSC").
			Subjects(maharashtraSubjects()).
			Build())

	result, err := e.Match(context.Background(), doc, []models.TemplateRecord{reference})
	require.NoError(t, err)

	assert.Equal(t, reference.ID, result.TemplateID)
	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.True(t, result.Matched)
	assert.Equal(t, models.MatchStatusMatched, result.Status)
	assert.Equal(t, "Matched with template: Maharashtra State Board - SSC (Score: 1.00)", result.Message)
	assert.False(t, result.LowConfidence)
	assert.Equal(t, DefaultPatternSetVersion, result.PatternSetVersion)
	require.Len(t, result.RankedCandidates, 1)
	assert.True(t, result.RankedCandidates[0].Relevant)
}

func TestMatch_DifferentBoardIsNotMatched(t *testing.T) {
	e := newTestEngine(t)

	doc := models.ExtractedFieldSet{Board: "CBSE"}
	reference := template("maharashtra_state_board_ssc_1", "Maharashtra State Board", "SSC", 0,
		models.ExtractedFieldSet{Board: "Maharashtra State Board", Program: "SSC"})

	result, err := e.Match(context.Background(), doc, []models.TemplateRecord{reference})
	require.NoError(t, err)

	assert.Equal(t, reference.ID, result.TemplateID)
	assert.Zero(t, result.Score)
	assert.False(t, result.Matched)
	assert.Equal(t, models.MatchStatusNotMatched, result.Status)
	assert.Equal(t, "No good match found. Best candidate: Maharashtra State Board - SSC (Score: 0.00)", result.Message)
	assert.False(t, result.Narrowed)
	assert.False(t, result.RankedCandidates[0].Relevant)
}

func TestMatch_TiesBreakOnCreationTime(t *testing.T) {
	e := newTestEngine(t)

	docRows := []interface{}{
		map[string]interface{}{"name": "English", "marks": 70.0},
		map[string]interface{}{"name": "Maths", "marks": 80.0},
	}
	tmplRows := []interface{}{
		map[string]interface{}{"subject": "English", "score": 70.0},
		map[string]interface{}{"subject": "Maths", "score": 80.0},
	}
	doc := models.NewFieldSetBuilder().Board("Maharashtra State Board").Subjects(docRows).Build()
	sample := models.NewFieldSetBuilder().Board("Maharashtra State Board").Subjects(tmplRows).Build()

	newer := template("a_newer", "Maharashtra State Board", "SSC", time.Hour, sample)
	older := template("z_older", "Maharashtra State Board", "SSC", 0, sample)

	result, err := e.Match(context.Background(), doc, []models.TemplateRecord{newer, older})
	require.NoError(t, err)

	require.Len(t, result.RankedCandidates, 2)
	assert.InDelta(t, 0.70, result.RankedCandidates[0].Score, 1e-9)
	assert.InDelta(t, 0.70, result.RankedCandidates[1].Score, 1e-9)
	assert.Equal(t, "z_older", result.TemplateID)
	assert.Equal(t, "a_newer", result.RankedCandidates[1].TemplateID)
}

func TestMatch_LowCoverageIsFlagged(t *testing.T) {
	e := newTestEngine(t)

	doc := models.ExtractedFieldSet{Board: "Maharashtra State Board"}
	reference := template("maharashtra_state_board_ssc_1", "Maharashtra State Board", "SSC", 0, fullFieldSet())

	result, err := e.Match(context.Background(), doc, []models.TemplateRecord{reference})
	require.NoError(t, err)

	assert.True(t, result.Matched)
	assert.True(t, result.LowConfidence)
	assert.InDelta(t, 1.0/6.0, result.Coverage, 1e-9)
	assert.Equal(t, []string{PairBoard}, result.ComparedFields)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], string(errors.ErrCodePartialExtraction))
}

func TestMatch_EmptyDocument(t *testing.T) {
	e := newTestEngine(t)

	reference := template("cbse_ssc_1", "CBSE", "SSC", 0, fullFieldSet())

	result, err := e.Match(context.Background(), models.ExtractedFieldSet{}, []models.TemplateRecord{reference})
	require.NoError(t, err)

	assert.Equal(t, "cbse_ssc_1", result.TemplateID)
	assert.Zero(t, result.Score)
	assert.False(t, result.Matched)
	assert.True(t, result.LowConfidence)
	assert.Contains(t, result.Warnings, "document field set is empty")
}

func TestMatch_NarrowsByBoardAndProgram(t *testing.T) {
	e := newTestEngine(t)

	doc := models.ExtractedFieldSet{Board: "Maharashtra State Board", Program: "SSC"}
	candidates := []models.TemplateRecord{
		template("cbse_ssc", "CBSE", "SSC", 0, models.ExtractedFieldSet{Board: "CBSE", Program: "SSC"}),
		template("msb_hsc", "Maharashtra State Board", "HSC", 0, models.ExtractedFieldSet{Board: "Maharashtra State Board", Program: "HSC"}),
		template("msb_ssc", "Maharashtra State Board", "SSC", 0, models.ExtractedFieldSet{Board: "Maharashtra State Board", Program: "SSC"}),
	}

	pool, narrowed := e.Narrow(doc, candidates)
	assert.True(t, narrowed)
	require.Len(t, pool, 1)
	assert.Equal(t, "msb_ssc", pool[0].ID)

	result, err := e.Match(context.Background(), doc, candidates)
	require.NoError(t, err)
	assert.True(t, result.Narrowed)
	assert.Equal(t, 1, result.CandidatesConsidered)
	assert.Equal(t, "msb_ssc", result.TemplateID)
}

func TestMatch_RankingIndependentOfParallelism(t *testing.T) {
	var candidates []models.TemplateRecord
	for i := 0; i < 40; i++ {
		fs := fullFieldSet()
		fs.Subjects = fs.Subjects[:1+i%5]
		if i%3 == 0 {
			fs.ExamYear = "23"
		}
		candidates = append(candidates, template(fmt.Sprintf("tpl_%02d", i), "Maharashtra State Board", "SSC", time.Duration(i%7)*time.Minute, fs))
	}
	doc := fullFieldSet()

	rank := func(parallelism int) []models.RankedCandidate {
		cfg := DefaultConfig()
		cfg.Parallelism = parallelism
		e, err := NewEngine(cfg, DefaultPatternSet())
		require.NoError(t, err)
		result, err := e.Match(context.Background(), doc, candidates)
		require.NoError(t, err)
		return result.RankedCandidates
	}

	sequential := rank(1)
	assert.Equal(t, sequential, rank(8))
	for i := 1; i < len(sequential); i++ {
		assert.GreaterOrEqual(t, sequential[i-1].Score, sequential[i].Score)
	}
}

func TestMatch_CancelledContext(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Match(ctx, fullFieldSet(), []models.TemplateRecord{template("x", "CBSE", "SSC", 0, fullFieldSet())})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatch_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	e := newTestEngine(t, WithTracerProvider(tp))

	_, err := e.Match(context.Background(), fullFieldSet(), []models.TemplateRecord{template("x", "CBSE", "SSC", 0, fullFieldSet())})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "matching.Match", spans[0].Name())
}

func TestSafeCompare(t *testing.T) {
	assert.Zero(t, safeCompare(func() float64 { panic("malformed subject row") }))
	assert.Zero(t, safeCompare(func() float64 { return -0.3 }))
	assert.Equal(t, 1.0, safeCompare(func() float64 { return 1.7 }))
	assert.Equal(t, 0.4, safeCompare(func() float64 { return 0.4 }))
}
