// Package insight derives heuristic observations from a project's blocks.
//
// Analyze is a pure function: it reads a slice of blocks and returns the
// insights whose rules fire, in a fixed rule order. It never fails.
package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

// Type classifies an insight.
type Type string

const (
	TypePattern     Type = "pattern"
	TypeGap         Type = "gap"
	TypeOpportunity Type = "opportunity"
	// TypeContradiction is part of the taxonomy but no rule emits it yet.
	TypeContradiction Type = "contradiction"
)

// Insight is one observation about the block collection.
type Insight struct {
	Type          Type             `json:"type"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	RelatedBlocks []shared.BlockID `json:"related_blocks"`
}

const (
	// evidenceRatio is how many arguments one piece of evidence may carry.
	evidenceRatio = 2
	// questionThreshold is exceeded when open questions merit a research phase.
	questionThreshold = 3
	// themeLimit caps the number of tags reported as themes.
	themeLimit = 3
	// synthesisThreshold is exceeded when the project has enough material to synthesize.
	synthesisThreshold = 10
)

// Rule inspects blocks and reports an insight when it fires.
type Rule func(blocks []block.Block) (Insight, bool)

// DefaultRules returns the built-in rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{EvidenceGap, ResearchOpportunities, EmergingThemes, SynthesisReadiness}
}

// Analyzer evaluates a fixed list of rules.
type Analyzer struct {
	rules []Rule
}

// NewAnalyzer builds an analyzer; with no rules it uses DefaultRules.
func NewAnalyzer(rules ...Rule) *Analyzer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Analyzer{rules: rules}
}

// Analyze runs every rule in order and collects those that fire.
func (a *Analyzer) Analyze(blocks []block.Block) []Insight {
	insights := make([]Insight, 0, len(a.rules))
	for _, rule := range a.rules {
		if in, ok := rule(blocks); ok {
			insights = append(insights, in)
		}
	}
	return insights
}

// Analyze runs the default rules.
func Analyze(blocks []block.Block) []Insight {
	return NewAnalyzer().Analyze(blocks)
}

// EvidenceGap fires when arguments outnumber evidence more than two to one.
func EvidenceGap(blocks []block.Block) (Insight, bool) {
	arguments := idsOfType(blocks, block.TypeArgument)
	evidence := countType(blocks, block.TypeEvidence)
	if len(arguments) <= evidenceRatio*evidence {
		return Insight{}, false
	}
	return Insight{
		Type:          TypeGap,
		Title:         "Evidence Gap Detected",
		Description:   "You have many arguments but limited supporting evidence. Consider adding more data or citations.",
		RelatedBlocks: arguments,
	}, true
}

// ResearchOpportunities fires when more than three questions are open.
func ResearchOpportunities(blocks []block.Block) (Insight, bool) {
	questions := idsOfType(blocks, block.TypeQuestion)
	if len(questions) <= questionThreshold {
		return Insight{}, false
	}
	return Insight{
		Type:          TypeOpportunity,
		Title:         "Research Opportunities",
		Description:   fmt.Sprintf("You have %d unanswered questions. These could drive your next research phase.", len(questions)),
		RelatedBlocks: questions,
	}, true
}

// EmergingThemes reports the three most frequent tags. Ties keep the order in
// which the tags were first seen.
func EmergingThemes(blocks []block.Block) (Insight, bool) {
	themes := TopTags(blocks, themeLimit)
	if len(themes) == 0 {
		return Insight{}, false
	}
	return Insight{
		Type:          TypePattern,
		Title:         "Emerging Themes",
		Description:   fmt.Sprintf("Key themes: %s. Consider exploring these connections further.", strings.Join(themes, ", ")),
		RelatedBlocks: []shared.BlockID{},
	}, true
}

// SynthesisReadiness fires once the project holds more than ten blocks.
func SynthesisReadiness(blocks []block.Block) (Insight, bool) {
	if len(blocks) <= synthesisThreshold {
		return Insight{}, false
	}
	return Insight{
		Type:          TypeOpportunity,
		Title:         "Ready for Synthesis",
		Description:   "You have accumulated significant knowledge. Consider switching to Synthesis mode to connect ideas.",
		RelatedBlocks: []shared.BlockID{},
	}, true
}

// TopTags counts tag occurrences across blocks and returns up to limit tags
// by descending count, first-seen order breaking ties.
func TopTags(blocks []block.Block, limit int) []string {
	type tagCount struct {
		tag   string
		count int
	}

	var counts []tagCount
	index := make(map[string]int)
	for _, b := range blocks {
		for _, tag := range b.Metadata.Tags {
			if i, ok := index[tag]; ok {
				counts[i].count++
				continue
			}
			index[tag] = len(counts)
			counts = append(counts, tagCount{tag: tag, count: 1})
		}
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].count > counts[j].count
	})

	if limit > len(counts) {
		limit = len(counts)
	}
	out := make([]string, 0, limit)
	for _, c := range counts[:limit] {
		out = append(out, c.tag)
	}
	return out
}

func idsOfType(blocks []block.Block, t block.Type) []shared.BlockID {
	ids := []shared.BlockID{}
	for _, b := range blocks {
		if b.Type == t {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

func countType(blocks []block.Block, t block.Type) int {
	n := 0
	for _, b := range blocks {
		if b.Type == t {
			n++
		}
	}
	return n
}
