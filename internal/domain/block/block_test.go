package block

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

func strPtr(s string) *string { return &s }

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Type
		wantErr bool
	}{
		{name: "argument", input: "argument", want: TypeArgument},
		{name: "question with spaces", input: " question ", want: TypeQuestion},
		{name: "unknown", input: "opinion", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "wrong case", input: "Evidence", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestType_Label(t *testing.T) {
	assert.Equal(t, "Evidence", TypeEvidence.Label())
	assert.Equal(t, "Data", TypeData.Label())
	assert.Equal(t, "", Type("").Label())
	assert.Len(t, Types(), 6)
}

func TestNew(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("creates placeholder block at initial version", func(t *testing.T) {
		b, err := New("p1", "u1", TypeHypothesis, shared.Position{X: 10, Y: 20}, now)

		require.NoError(t, err)
		assert.NotEmpty(t, b.ID)
		assert.Equal(t, PlaceholderContent, b.Content)
		assert.Equal(t, InitialVersion, b.Version)
		assert.Equal(t, shared.Position{X: 10, Y: 20}, b.Position)
		assert.Equal(t, now, b.CreatedAt)
		assert.Equal(t, now, b.UpdatedAt)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := New("p1", "u1", Type("memo"), shared.Position{}, now)
		assert.ErrorIs(t, err, shared.ErrInvalidBlockType)
	})

	t.Run("rejects non-finite position", func(t *testing.T) {
		_, err := New("p1", "u1", TypeData, shared.Position{X: math.NaN()}, now)
		assert.ErrorIs(t, err, shared.ErrInvalidPosition)
	})

	t.Run("ids are unique", func(t *testing.T) {
		seen := map[shared.BlockID]bool{}
		for i := 0; i < 100; i++ {
			b, err := New("p1", "u1", TypeData, shared.Position{}, now)
			require.NoError(t, err)
			require.False(t, seen[b.ID])
			seen[b.ID] = true
		}
	})
}

func TestBlock_Apply(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)

	base, err := New("p1", "u1", TypeArgument, shared.Position{X: 1, Y: 2}, created)
	require.NoError(t, err)
	base.Metadata.Tags = []string{"a"}

	t.Run("content only keeps other fields", func(t *testing.T) {
		next, prior, err := base.Apply(Patch{Content: strPtr("Claim\nbody")}, "u2", later)

		require.NoError(t, err)
		assert.Equal(t, "Claim\nbody", next.Content)
		assert.Equal(t, base.Version+1, next.Version)
		assert.Equal(t, base.Position, next.Position)
		assert.Equal(t, []string{"a"}, next.Metadata.Tags)
		assert.Equal(t, later, next.UpdatedAt)
		assert.Equal(t, created, next.CreatedAt)

		assert.Equal(t, base.ID, prior.BlockID)
		assert.Equal(t, base.Version, prior.Version)
		assert.Equal(t, PlaceholderContent, prior.Content)
		assert.Equal(t, DefaultChangeSummary, prior.ChangeSummary)
		assert.Equal(t, shared.UserID("u2"), prior.ChangedBy)
	})

	t.Run("position only", func(t *testing.T) {
		next, _, err := base.Apply(Patch{Position: &shared.Position{X: 50, Y: 60}}, "u1", later)

		require.NoError(t, err)
		assert.Equal(t, shared.Position{X: 50, Y: 60}, next.Position)
		assert.Equal(t, base.Content, next.Content)
	})

	t.Run("metadata tags are normalized", func(t *testing.T) {
		next, _, err := base.Apply(Patch{Metadata: &Metadata{Tags: []string{" x ", "y", "x", ""}}}, "u1", later)

		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, next.Metadata.Tags)
	})

	t.Run("receiver is not modified", func(t *testing.T) {
		_, _, err := base.Apply(Patch{Metadata: &Metadata{Tags: []string{"z"}}}, "u1", later)

		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, base.Metadata.Tags)
		assert.Equal(t, InitialVersion, base.Version)
	})

	t.Run("validation failures", func(t *testing.T) {
		bad := 1.5
		tests := []struct {
			name  string
			patch Patch
			want  error
		}{
			{"blank content", Patch{Content: strPtr("   ")}, shared.ErrEmptyContent},
			{"confidence out of range", Patch{Metadata: &Metadata{Confidence: &bad}}, shared.ErrInvalidConfidence},
			{"infinite position", Patch{Position: &shared.Position{Y: math.Inf(1)}}, shared.ErrInvalidPosition},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := base.Apply(tt.patch, "u1", later)
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})
}

func TestBlock_Title(t *testing.T) {
	assert.Equal(t, "Title line", Block{Content: "Title line\nBody"}.Title())
	assert.Equal(t, "single", Block{Content: "single"}.Title())
	assert.Equal(t, "", Block{Content: "\nBody"}.Title())
}

func TestBlock_CloneIsDeep(t *testing.T) {
	c := 0.4
	b := Block{Metadata: Metadata{Tags: []string{"a"}, Sources: []string{"s"}, Confidence: &c}}
	clone := b.Clone()
	clone.Metadata.Tags[0] = "changed"
	*clone.Metadata.Confidence = 0.9

	assert.Equal(t, "a", b.Metadata.Tags[0])
	assert.Equal(t, 0.4, *b.Metadata.Confidence)
}
