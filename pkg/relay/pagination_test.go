package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasoncast/pkg/errors"
)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func TestEncodeDecode(t *testing.T) {
	for _, offset := range []int{0, 42, 999999} {
		decoded, err := DecodeCursor(EncodeCursor(offset))
		require.NoError(t, err)
		assert.Equal(t, offset, decoded)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"empty", ""},
		{"invalid base64", "!!!invalid!!!"},
		{"invalid format", "aGVsbG8="},         // "hello"
		{"invalid offset", "Y3Vyc29yOmFiYw=="}, // "cursor:abc"
		{"negative offset", "Y3Vyc29yOi0x"},    // "cursor:-1"
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.cursor)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
		})
	}
}

func TestPaginationParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  PaginationParams
		wantErr bool
	}{
		{"defaults", PaginationParams{}, false},
		{"forward", PaginationParams{First: intPtr(10), After: strPtr("c")}, false},
		{"backward", PaginationParams{Last: intPtr(10), Before: strPtr("c")}, false},
		{"first and last", PaginationParams{First: intPtr(10), Last: intPtr(10)}, true},
		{"after and before", PaginationParams{After: strPtr("a"), Before: strPtr("b")}, true},
		{"last and after", PaginationParams{Last: intPtr(5), After: strPtr("a")}, true},
		{"first and before", PaginationParams{First: intPtr(5), Before: strPtr("b")}, true},
		{"before without size", PaginationParams{Before: strPtr("b")}, false},
		{"zero first", PaginationParams{First: intPtr(0)}, true},
		{"oversized last", PaginationParams{Last: intPtr(MaxPageSize + 1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, errors.ErrInvalidInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCalculateOffsetLimit(t *testing.T) {
	tests := []struct {
		name       string
		params     PaginationParams
		total      int
		wantOffset int
		wantLimit  int
	}{
		{"first page", PaginationParams{}, 100, 0, DefaultPageSize},
		{"after cursor", PaginationParams{First: intPtr(10), After: strPtr(EncodeCursor(9))}, 100, 10, 10},
		{"last page", PaginationParams{Last: intPtr(10)}, 100, 90, 10},
		{"last larger than total", PaginationParams{Last: intPtr(10)}, 4, 0, 4},
		{"before cursor", PaginationParams{Last: intPtr(10), Before: strPtr(EncodeCursor(30))}, 100, 20, 10},
		{"before near start", PaginationParams{Last: intPtr(10), Before: strPtr(EncodeCursor(3))}, 100, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, limit, err := CalculateOffsetLimit(tt.params, tt.total)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}

	_, _, err := CalculateOffsetLimit(PaginationParams{After: strPtr("junk")}, 10)
	assert.Error(t, err)

	_, _, err = CalculateOffsetLimit(PaginationParams{Last: intPtr(2), After: strPtr(EncodeCursor(5))}, 10)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput), "mixed directions never fall back to a forward page")
}

func TestNewConnection(t *testing.T) {
	conn := NewConnection([]string{"b", "c"}, 5, 1)

	require.Len(t, conn.Edges, 2)
	assert.Equal(t, []string{"b", "c"}, conn.Nodes())
	assert.Equal(t, 5, conn.TotalCount)
	assert.True(t, conn.PageInfo.HasPreviousPage)
	assert.True(t, conn.PageInfo.HasNextPage)

	start, err := DecodeCursor(*conn.PageInfo.StartCursor)
	require.NoError(t, err)
	assert.Equal(t, 1, start)
	end, err := DecodeCursor(*conn.PageInfo.EndCursor)
	require.NoError(t, err)
	assert.Equal(t, 2, end)

	empty := NewConnection[string](nil, 0, 0)
	assert.Empty(t, empty.Edges)
	assert.Nil(t, empty.PageInfo.StartCursor)
	assert.False(t, empty.PageInfo.HasNextPage)
}
