package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequestNormalize(t *testing.T) {
	assert.Equal(t, PageRequest{Page: 1, PageSize: DefaultPageSize}, PageRequest{}.Normalize())
	assert.Equal(t, PageRequest{Page: 3, PageSize: MaxPageSize}, PageRequest{Page: 3, PageSize: 1000}.Normalize())
	assert.Equal(t, 20, PageRequest{Page: 3, PageSize: 10}.Offset())
}

func TestNewPageTotals(t *testing.T) {
	page := NewPage([]string{"a", "b"}, PageRequest{Page: 2, PageSize: 2}, 5)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, int64(5), page.Total)

	empty := NewPage[string](nil, PageRequest{Page: 1, PageSize: 10}, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
}

func TestCursorEncoding(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2025-03-01T00:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestAfterID(t *testing.T) {
	id, err := Pagination{}.AfterID()
	require.NoError(t, err)
	assert.Zero(t, id)

	token, err := EncodeCursor(Cursor{ID: "42"})
	require.NoError(t, err)
	id, err = Pagination{PageToken: " " + token + " "}.AfterID()
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	zero, err := EncodeCursor(Cursor{ID: "0"})
	require.NoError(t, err)
	for _, bad := range []string{"%%%", zero} {
		_, err = Pagination{PageToken: bad}.AfterID()
		assert.ErrorIs(t, err, ErrInvalidPageToken, bad)
	}
}

func TestBuildCursorPageInfo(t *testing.T) {
	ids := []int{1, 2, 3}
	items := []*int{&ids[0], &ids[1], &ids[2]}

	info := BuildCursorPageInfo(items, 2, func(v *int) string {
		if *v == 2 {
			return "two"
		}
		return "other"
	})
	assert.True(t, info.HasMore)
	assert.Equal(t, "two", info.NextPageToken)

	info = BuildCursorPageInfo(items, 5, func(*int) string { return "x" })
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
