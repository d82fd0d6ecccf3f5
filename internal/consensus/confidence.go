package consensus

import (
	"math"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ScoringConfig holds the confidence nudges applied on top of a provider's base trust.
type ScoringConfig struct {
	LengthFloor    int     // Outputs longer than this many runes earn LengthBonus
	LengthBonus    float64
	CodeBonus      float64 // At least one fenced code block
	StructureBonus float64 // A heading or two or more paragraphs
	PrefixLength   int     // Runes compared by the unanimous strategy; 0 compares everything
}

// DefaultScoringConfig returns the stock scoring constants.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		LengthFloor:    200,
		LengthBonus:    0.05,
		CodeBonus:      0.05,
		StructureBonus: 0.05,
		PrefixLength:   500,
	}
}

// Scorer assigns heuristic confidence to provider outputs.
// It is a quality proxy only; it never judges correctness.
type Scorer struct {
	cfg      ScoringConfig
	markdown goldmark.Markdown
}

// NewScorer creates a Scorer that applies cfg exactly as given. A zero bonus
// adds nothing; start from DefaultScoringConfig for the stock constants.
func NewScorer(cfg ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg, markdown: goldmark.New()}
}

// Config returns the effective scoring constants.
func (s *Scorer) Config() ScoringConfig {
	return s.cfg
}

// Score returns trust plus the applicable bonuses, capped at 1.
func (s *Scorer) Score(trust float64, output string) float64 {
	score := trust
	if utf8.RuneCountInString(output) > s.cfg.LengthFloor {
		score += s.cfg.LengthBonus
	}
	shape := s.inspect(output)
	if shape.fencedCode {
		score += s.cfg.CodeBonus
	}
	if shape.headings > 0 || shape.paragraphs >= 2 {
		score += s.cfg.StructureBonus
	}
	return math.Max(0, math.Min(1, score))
}

type markdownShape struct {
	fencedCode bool
	headings   int
	paragraphs int
}

func (s *Scorer) inspect(output string) markdownShape {
	var shape markdownShape
	doc := s.markdown.Parser().Parse(text.NewReader([]byte(output)))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock:
			shape.fencedCode = true
			return ast.WalkSkipChildren, nil
		case ast.KindHeading:
			shape.headings++
		case ast.KindParagraph:
			shape.paragraphs++
		}
		return ast.WalkContinue, nil
	})
	return shape
}
