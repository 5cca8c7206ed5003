// Package canvas models the pointer interaction on the knowledge canvas.
//
// The Machine tracks whether the user is connecting blocks or placing a new
// one and turns pointer events into Intents. It never mutates the graph
// itself; callers apply the returned intents through the workspace.
package canvas

import (
	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

// ErrMenuClosed is returned when a block type is chosen with no placing menu open.
var ErrMenuClosed = errors.Validation(errors.CodeInvalidInput.String(), "no placing menu is open").
	WithResource("canvas").
	Build()

// Mode is the interaction state of the canvas.
type Mode int

const (
	Idle Mode = iota
	Connecting
	PlacingMenuOpen
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case PlacingMenuOpen:
		return "placing_menu_open"
	default:
		return "unknown"
	}
}

// State is a Mode plus the data that mode carries. From is set only while
// Connecting after the first block is picked; Position only while the
// placing menu is open.
type State struct {
	Mode     Mode
	From     shared.BlockID
	Position shared.Position
}

// IntentKind says what an Intent asks the workspace to do.
type IntentKind int

const (
	CreateBlock IntentKind = iota + 1
	CreateRelationship
)

// Intent is a graph mutation requested by an interaction.
type Intent struct {
	Kind IntentKind

	// CreateBlock
	BlockType block.Type
	Position  shared.Position

	// CreateRelationship
	Source           shared.BlockID
	Target           shared.BlockID
	RelationshipType relationship.Type
}

// ConnectType is the relationship type created by the connect gesture.
const ConnectType = relationship.TypeSupports

// Machine is the interaction state machine. It is not safe for concurrent
// use; each canvas session owns one.
type Machine struct {
	state State
}

// NewMachine returns a machine in the Idle state.
func NewMachine() *Machine {
	return &Machine{}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// ToggleConnect enters connect mode from Idle, or cancels it from Connecting.
func (m *Machine) ToggleConnect() {
	switch m.state.Mode {
	case Idle:
		m.state = State{Mode: Connecting}
	case Connecting:
		m.reset()
	}
}

// SelectBlock picks a block while connecting. The first pick records the
// source; picking a different block completes the connection and returns
// a CreateRelationship intent. Re-picking the source, or picking outside
// connect mode, does nothing.
func (m *Machine) SelectBlock(id shared.BlockID) (Intent, bool) {
	if m.state.Mode != Connecting || id.IsEmpty() {
		return Intent{}, false
	}
	if m.state.From.IsEmpty() {
		m.state.From = id
		return Intent{}, false
	}
	if m.state.From == id {
		return Intent{}, false
	}

	intent := Intent{
		Kind:             CreateRelationship,
		Source:           m.state.From,
		Target:           id,
		RelationshipType: ConnectType,
	}
	m.reset()
	return intent, true
}

// ClickCanvas handles a click on empty canvas at a canvas-logical position.
// From Idle it opens the placing menu there; with the menu open it dismisses it.
func (m *Machine) ClickCanvas(pos shared.Position) {
	switch m.state.Mode {
	case Idle:
		m.state = State{Mode: PlacingMenuOpen, Position: pos}
	case PlacingMenuOpen:
		m.reset()
	}
}

// ChooseBlockType picks an entry from the placing menu and returns the
// CreateBlock intent for the menu position. Unknown types leave the menu open.
func (m *Machine) ChooseBlockType(t block.Type) (Intent, error) {
	if m.state.Mode != PlacingMenuOpen {
		return Intent{}, ErrMenuClosed
	}
	if !t.IsValid() {
		return Intent{}, shared.ErrInvalidBlockType
	}

	intent := Intent{Kind: CreateBlock, BlockType: t, Position: m.state.Position}
	m.reset()
	return intent, nil
}

// Cancel returns to Idle without any intent.
func (m *Machine) Cancel() {
	m.reset()
}

func (m *Machine) reset() {
	m.state = State{Mode: Idle}
}
