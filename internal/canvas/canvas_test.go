package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

func TestMachine_Connect(t *testing.T) {
	t.Run("SuccessfulConnection", func(t *testing.T) {
		m := NewMachine()
		m.ToggleConnect()
		assert.Equal(t, State{Mode: Connecting}, m.State())

		_, ok := m.SelectBlock("a")
		assert.False(t, ok)
		assert.Equal(t, shared.BlockID("a"), m.State().From)

		intent, ok := m.SelectBlock("b")
		require.True(t, ok)
		assert.Equal(t, Intent{
			Kind:             CreateRelationship,
			Source:           "a",
			Target:           "b",
			RelationshipType: relationship.TypeSupports,
		}, intent)
		assert.Equal(t, Idle, m.State().Mode)
	})

	t.Run("SameBlockIgnored", func(t *testing.T) {
		m := NewMachine()
		m.ToggleConnect()
		m.SelectBlock("a")

		_, ok := m.SelectBlock("a")
		assert.False(t, ok)
		assert.Equal(t, State{Mode: Connecting, From: "a"}, m.State())
	})

	t.Run("ToggleCancels", func(t *testing.T) {
		m := NewMachine()
		m.ToggleConnect()
		m.SelectBlock("a")
		m.ToggleConnect()

		assert.Equal(t, State{Mode: Idle}, m.State())
		_, ok := m.SelectBlock("b")
		assert.False(t, ok)
	})

	t.Run("CancelHasNoEffect", func(t *testing.T) {
		m := NewMachine()
		m.ToggleConnect()
		m.SelectBlock("a")
		m.Cancel()

		assert.Equal(t, State{Mode: Idle}, m.State())
	})

	t.Run("IdleSelectIsNoop", func(t *testing.T) {
		m := NewMachine()
		_, ok := m.SelectBlock("a")
		assert.False(t, ok)
		assert.Equal(t, State{Mode: Idle}, m.State())
	})

	t.Run("CanvasClickIgnoredWhileConnecting", func(t *testing.T) {
		m := NewMachine()
		m.ToggleConnect()
		m.ClickCanvas(shared.Position{X: 1, Y: 1})
		assert.Equal(t, Connecting, m.State().Mode)
	})
}

func TestMachine_Place(t *testing.T) {
	t.Run("SuccessfulPlacement", func(t *testing.T) {
		m := NewMachine()
		pos := shared.Position{X: 40, Y: 90}
		m.ClickCanvas(pos)
		assert.Equal(t, State{Mode: PlacingMenuOpen, Position: pos}, m.State())

		intent, err := m.ChooseBlockType(block.TypeHypothesis)
		require.NoError(t, err)
		assert.Equal(t, Intent{Kind: CreateBlock, BlockType: block.TypeHypothesis, Position: pos}, intent)
		assert.Equal(t, Idle, m.State().Mode)
	})

	t.Run("InvalidTypeKeepsMenuOpen", func(t *testing.T) {
		m := NewMachine()
		m.ClickCanvas(shared.Position{X: 1, Y: 2})

		_, err := m.ChooseBlockType("note")
		assert.True(t, errors.IsValidation(err))
		assert.Equal(t, PlacingMenuOpen, m.State().Mode)
	})

	t.Run("ChooseWithoutMenu", func(t *testing.T) {
		_, err := NewMachine().ChooseBlockType(block.TypeData)
		assert.ErrorIs(t, err, ErrMenuClosed)
	})

	t.Run("ClickOutsideDismisses", func(t *testing.T) {
		m := NewMachine()
		m.ClickCanvas(shared.Position{})
		m.ClickCanvas(shared.Position{X: 5})
		assert.Equal(t, State{Mode: Idle}, m.State())
	})

	t.Run("ToggleConnectIgnoredWithMenuOpen", func(t *testing.T) {
		m := NewMachine()
		m.ClickCanvas(shared.Position{X: 3})
		m.ToggleConnect()
		assert.Equal(t, PlacingMenuOpen, m.State().Mode)
	})
}

func TestViewport(t *testing.T) {
	t.Run("ZoomClamped", func(t *testing.T) {
		v := NewViewport()
		for i := 0; i < 30; i++ {
			v.ZoomIn()
		}
		assert.Equal(t, MaxZoom, v.Zoom)

		for i := 0; i < 30; i++ {
			v.ZoomOut()
		}
		assert.Equal(t, MinZoom, v.Zoom)
	})

	t.Run("Step", func(t *testing.T) {
		v := NewViewport()
		v.ZoomIn()
		assert.InDelta(t, 1.1, v.Zoom, 1e-9)
		assert.Equal(t, 110, v.Percent())
	})

	t.Run("SetZoom", func(t *testing.T) {
		tests := []struct {
			name string
			in   float64
			want float64
		}{
			{"below", 0.1, MinZoom},
			{"above", 7, MaxZoom},
			{"inside", 1.5, 1.5},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				v := NewViewport()
				v.SetZoom(tt.in)
				assert.Equal(t, tt.want, v.Zoom)
			})
		}
	})

	t.Run("Reset", func(t *testing.T) {
		v := NewViewport()
		v.ZoomOut()
		v.PanBy(shared.Position{X: 30, Y: -12})
		v.Reset()
		assert.Equal(t, Viewport{Zoom: 1}, v)
	})

	t.Run("ScreenCanvasMapping", func(t *testing.T) {
		v := Viewport{Zoom: 2, Pan: shared.Position{X: 10, Y: 20}}
		origin := shared.Position{X: 100, Y: 50}

		got := v.ScreenToCanvas(shared.Position{X: 150, Y: 110}, origin)
		assert.Equal(t, shared.Position{X: 20, Y: 20}, got)
		assert.Equal(t, shared.Position{X: 150, Y: 110}, v.CanvasToScreen(got, origin))
	})
}

func TestEdges(t *testing.T) {
	blocks := []block.Block{
		{ID: "a", Position: shared.Position{X: 0, Y: 0}},
		{ID: "b", Position: shared.Position{X: 100, Y: 200}},
	}
	rels := []relationship.Relationship{
		{ID: "r1", SourceBlockID: "a", TargetBlockID: "b", Type: relationship.TypeSupports},
		{ID: "r2", SourceBlockID: "b", TargetBlockID: "a", Type: relationship.TypeContradicts},
		{ID: "r3", SourceBlockID: "a", TargetBlockID: "gone", Type: relationship.TypeCauses},
	}

	edges := Edges(blocks, rels)

	require.Len(t, edges, 2)
	assert.Equal(t, shared.Position{X: 160, Y: 80}, edges[0].From)
	assert.Equal(t, shared.Position{X: 260, Y: 280}, edges[0].To)
	assert.False(t, edges[0].Dashed)
	assert.Equal(t, shared.RelationshipID("r2"), edges[1].RelationshipID)
	assert.True(t, edges[1].Dashed)
}
