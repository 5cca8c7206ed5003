package insight

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

func blocksOf(counts map[block.Type]int) []block.Block {
	var out []block.Block
	for _, typ := range block.Types() {
		for i := 0; i < counts[typ]; i++ {
			out = append(out, block.Block{
				ID:   shared.BlockID(fmt.Sprintf("%s-%d", typ, i)),
				Type: typ,
			})
		}
	}
	return out
}

func tagged(id string, tags ...string) block.Block {
	return block.Block{ID: shared.BlockID(id), Type: block.TypeData, Metadata: block.Metadata{Tags: tags}}
}

func find(insights []Insight, title string) (Insight, bool) {
	for _, in := range insights {
		if in.Title == title {
			return in, true
		}
	}
	return Insight{}, false
}

func TestAnalyze_Empty(t *testing.T) {
	assert.Empty(t, Analyze(nil))
	assert.Empty(t, Analyze([]block.Block{}))
}

func TestEvidenceGap(t *testing.T) {
	tests := []struct {
		name      string
		arguments int
		evidence  int
		want      bool
	}{
		{"six arguments two evidence", 6, 2, true},
		{"exactly double", 4, 2, false},
		{"arguments without evidence", 1, 0, true},
		{"balanced", 3, 3, false},
		{"none", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := blocksOf(map[block.Type]int{block.TypeArgument: tt.arguments, block.TypeEvidence: tt.evidence})
			in, ok := find(Analyze(blocks), "Evidence Gap Detected")
			require.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, TypeGap, in.Type)
				assert.Len(t, in.RelatedBlocks, tt.arguments)
			}
		})
	}
}

func TestResearchOpportunities(t *testing.T) {
	t.Run("four of five blocks are questions", func(t *testing.T) {
		blocks := blocksOf(map[block.Type]int{block.TypeQuestion: 4, block.TypeData: 1})
		in, ok := find(Analyze(blocks), "Research Opportunities")

		require.True(t, ok)
		assert.Equal(t, TypeOpportunity, in.Type)
		assert.Contains(t, in.Description, "4")
		assert.Equal(t, "You have 4 unanswered questions. These could drive your next research phase.", in.Description)
		assert.Len(t, in.RelatedBlocks, 4)
	})

	t.Run("three questions do not fire", func(t *testing.T) {
		blocks := blocksOf(map[block.Type]int{block.TypeQuestion: 3})
		_, ok := find(Analyze(blocks), "Research Opportunities")
		assert.False(t, ok)
	})
}

func TestEmergingThemes(t *testing.T) {
	t.Run("top three by count with stable ties", func(t *testing.T) {
		blocks := []block.Block{
			tagged("1", "alpha", "beta"),
			tagged("2", "gamma", "beta"),
			tagged("3", "delta", "gamma"),
			tagged("4", "epsilon"),
		}
		in, ok := find(Analyze(blocks), "Emerging Themes")

		require.True(t, ok)
		assert.Equal(t, TypePattern, in.Type)
		assert.Equal(t, "Key themes: beta, gamma, alpha. Consider exploring these connections further.", in.Description)
		assert.NotNil(t, in.RelatedBlocks)
		assert.Empty(t, in.RelatedBlocks)
	})

	t.Run("single tag", func(t *testing.T) {
		in, ok := EmergingThemes([]block.Block{tagged("1", "solo")})
		require.True(t, ok)
		assert.Contains(t, in.Description, "Key themes: solo.")
	})

	t.Run("no tags", func(t *testing.T) {
		_, ok := EmergingThemes(blocksOf(map[block.Type]int{block.TypeData: 3}))
		assert.False(t, ok)
	})
}

func TestTopTags(t *testing.T) {
	blocks := []block.Block{tagged("1", "b", "a"), tagged("2", "a", "c"), tagged("3", "d")}

	assert.Equal(t, []string{"a", "b", "c"}, TopTags(blocks, 3))
	assert.Equal(t, []string{"a", "b", "c", "d"}, TopTags(blocks, 10))
	assert.Equal(t, []string{"a"}, TopTags(blocks, 1))
}

func TestSynthesisReadiness(t *testing.T) {
	ten := blocksOf(map[block.Type]int{block.TypeData: 10})
	_, ok := SynthesisReadiness(ten)
	assert.False(t, ok)

	eleven := blocksOf(map[block.Type]int{block.TypeData: 11})
	in, ok := SynthesisReadiness(eleven)
	require.True(t, ok)
	assert.Equal(t, "Ready for Synthesis", in.Title)
	assert.Empty(t, in.RelatedBlocks)
}

func TestAnalyze_RuleOrder(t *testing.T) {
	blocks := blocksOf(map[block.Type]int{block.TypeArgument: 4, block.TypeQuestion: 4, block.TypeData: 3})
	blocks[0].Metadata.Tags = []string{"theme"}

	insights := Analyze(blocks)

	var titles []string
	for _, in := range insights {
		titles = append(titles, in.Title)
	}
	assert.Equal(t, []string{
		"Evidence Gap Detected",
		"Research Opportunities",
		"Emerging Themes",
		"Ready for Synthesis",
	}, titles)
}

func TestAnalyzer_CustomRules(t *testing.T) {
	always := func([]block.Block) (Insight, bool) {
		return Insight{Type: TypeContradiction, Title: "custom"}, true
	}
	insights := NewAnalyzer(always).Analyze(nil)

	require.Len(t, insights, 1)
	assert.Equal(t, TypeContradiction, insights[0].Type)
}
