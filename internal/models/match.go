// internal/models/match.go
package models

type MatchStatus string

const (
	MatchStatusMatched    MatchStatus = "MATCHED"
	MatchStatusNotMatched MatchStatus = "NOT_MATCHED"
)

// RankedCandidate is one scored template. Relevant marks candidates above the
// relevance threshold even when none clears the match threshold.
type RankedCandidate struct {
	TemplateID     string   `json:"templateId"`
	Board          string   `json:"board"`
	Program        string   `json:"program"`
	Score          float64  `json:"score"`
	Relevant       bool     `json:"relevant"`
	ComparedFields []string `json:"comparedFields,omitempty"`
}

// MatchResult is returned for every scored document, matched or not. The top
// candidate is always populated when at least one template was scored.
type MatchResult struct {
	TemplateID           string            `json:"templateId"`
	TemplateName         string            `json:"templateName,omitempty"`
	Score                float64           `json:"score"`
	Matched              bool              `json:"matched"`
	Status               MatchStatus       `json:"status"`
	Message              string            `json:"message"`
	RankedCandidates     []RankedCandidate `json:"rankedCandidates"`
	Coverage             float64           `json:"coverage"`
	ComparedFields       []string          `json:"comparedFields,omitempty"`
	LowConfidence        bool              `json:"lowConfidence"`
	Warnings             []string          `json:"warnings,omitempty"`
	PatternSetVersion    string            `json:"patternSetVersion"`
	CandidatesConsidered int               `json:"candidatesConsidered"`
	Narrowed             bool              `json:"narrowed"`
}
