package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultPaginationParams tests the default pagination parameters.
func TestDefaultPaginationParams(t *testing.T) {
	params := DefaultPaginationParams()
	assert.Equal(t, 100, params.Limit)
	assert.Empty(t, params.Cursor)
}

// TestPaginationParams_Validate tests clamping of the page size.
func TestPaginationParams_Validate(t *testing.T) {
	tests := []struct {
		name          string
		input         PaginationParams
		expectedLimit int
	}{
		{"valid parameters", PaginationParams{Limit: 50}, 50},
		{"zero limit should default to 100", PaginationParams{Limit: 0}, 100},
		{"negative limit should default to 100", PaginationParams{Limit: -10}, 100},
		{"limit over 1000 should cap at 1000", PaginationParams{Limit: 5000}, 1000},
		{"limit exactly 1000 should stay at 1000", PaginationParams{Limit: 1000}, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.input
			params.Validate()
			assert.Equal(t, tt.expectedLimit, params.Limit)
		})
	}
}

func TestPaginationParams_Offset(t *testing.T) {
	off, err := PaginationParams{}.Offset()
	require.NoError(t, err)
	assert.Zero(t, off)

	off, err = PaginationParams{Cursor: OffsetCursor(40)}.Offset()
	require.NoError(t, err)
	assert.Equal(t, 40, off)

	_, err = PaginationParams{Cursor: "%%%"}.Offset()
	assert.Error(t, err)

	_, err = PaginationParams{Cursor: EncodeCursor("image:123")}.Offset()
	assert.Error(t, err)

	_, err = PaginationParams{Cursor: EncodeCursor("o:-4")}.Offset()
	assert.Error(t, err)
}

func TestEncodeDecodeCursor(t *testing.T) {
	assert.Empty(t, EncodeCursor(""))

	decoded, err := DecodeCursor(EncodeCursor("o:7"))
	require.NoError(t, err)
	assert.Equal(t, "o:7", decoded)

	decoded, err = DecodeCursor("")
	require.NoError(t, err)
	assert.Empty(t, decoded)
}
