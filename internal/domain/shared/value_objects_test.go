package shared

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	valid := string(NewBlockID())

	tests := []struct {
		name    string
		parse   func(string) error
		input   string
		wantErr error
	}{
		{"block ok", func(s string) error { _, err := ParseBlockID(s); return err }, valid, nil},
		{"block bad", func(s string) error { _, err := ParseBlockID(s); return err }, "nope", ErrInvalidBlockID},
		{"relationship bad", func(s string) error { _, err := ParseRelationshipID(s); return err }, "", ErrInvalidRelationshipID},
		{"project ok", func(s string) error { _, err := ParseProjectID(s); return err }, " " + valid + " ", nil},
		{"project bad", func(s string) error { _, err := ParseProjectID(s); return err }, "123", ErrInvalidProjectID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.parse(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []string
		wantErr error
	}{
		{name: "nil", input: nil, want: nil},
		{name: "keeps order", input: []string{"b", "a", "c"}, want: []string{"b", "a", "c"}},
		{name: "trims and dedupes", input: []string{" a", "a ", "b"}, want: []string{"a", "b"}},
		{name: "drops blanks", input: []string{"", "  "}, want: nil},
		{name: "limit is inclusive", input: []string{strings.Repeat("x", MaxTagLength)}, want: []string{strings.Repeat("x", MaxTagLength)}},
		{name: "rejects overlong", input: []string{"ok", strings.Repeat("x", MaxTagLength+1)}, wantErr: ErrTagTooLong},
		{name: "case sensitive", input: []string{"Go", "go"}, want: []string{"Go", "go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTags(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent("x"))
	assert.ErrorIs(t, ValidateContent(" \n\t"), ErrEmptyContent)
	assert.ErrorIs(t, ValidateContent(strings.Repeat("x", MaxContentLength+1)), ErrContentTooLong)
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Paper"))
	assert.ErrorIs(t, ValidateTitle(""), ErrEmptyTitle)
	assert.ErrorIs(t, ValidateTitle(strings.Repeat("t", MaxTitleLength+1)), ErrTitleTooLong)
}

func TestPosition(t *testing.T) {
	p, err := NewPosition(1, 2)
	require.NoError(t, err)

	assert.Equal(t, Position{X: 4, Y: 6}, p.Add(Position{X: 3, Y: 4}))
	assert.Equal(t, Position{X: -2, Y: -2}, p.Sub(Position{X: 3, Y: 4}))
	assert.Equal(t, Position{X: 0.5, Y: 1}, p.Scale(0.5))

	_, err = NewPosition(math.Inf(-1), 0)
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "a", FirstLine("a\nb\nc"))
	assert.Equal(t, "abc", FirstLine("abc"))
	assert.Equal(t, "", FirstLine(""))
}

func TestNewUserID(t *testing.T) {
	id, err := NewUserID("  user-1 ")
	require.NoError(t, err)
	assert.Equal(t, UserID("user-1"), id)

	_, err = NewUserID(" ")
	assert.ErrorIs(t, err, ErrEmptyUserID)
}
