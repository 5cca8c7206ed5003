package relationship

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

func TestNew(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		source  shared.BlockID
		target  shared.BlockID
		relType Type
		wantErr error
	}{
		{name: "supports", source: "a", target: "b", relType: TypeSupports},
		{name: "contradicts", source: "b", target: "a", relType: TypeContradicts},
		{name: "self loop rejected", source: "a", target: "a", relType: TypeCauses, wantErr: shared.ErrSelfRelationship},
		{name: "unknown type rejected", source: "a", target: "b", relType: Type("refutes"), wantErr: shared.ErrInvalidRelationshipType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New("p1", tt.source, tt.target, tt.relType, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, r.ID)
			assert.Equal(t, DefaultStrength, r.Strength)
			assert.Equal(t, tt.source, r.SourceBlockID)
			assert.Equal(t, tt.target, r.TargetBlockID)
		})
	}
}

func TestRelationship_Touches(t *testing.T) {
	r := Relationship{SourceBlockID: "a", TargetBlockID: "b"}

	assert.True(t, r.Touches("a"))
	assert.True(t, r.Touches("b"))
	assert.False(t, r.Touches("c"))
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseType("blocks")
	assert.ErrorIs(t, err, shared.ErrInvalidRelationshipType)
}
