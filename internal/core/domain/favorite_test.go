package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFavoriteItem_UnmarshalKeepsUnknownFields(t *testing.T) {
	var item FavoriteItem
	err := json.Unmarshal([]byte(`{"id":"t1","title":"Granite Cross","price":8820,"addedAt":1700000000000,"slug":"granite-cross","colors":["black"]}`), &item)
	require.NoError(t, err)

	assert.Equal(t, "t1", item.ID)
	assert.Equal(t, "Granite Cross", item.Title)
	assert.Equal(t, 8820.0, item.Price)
	assert.Equal(t, int64(1700000000000), item.AddedAt)
	assert.JSONEq(t, `"granite-cross"`, string(item.Extra["slug"]))
	assert.JSONEq(t, `["black"]`, string(item.Extra["colors"]))

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"t1","title":"Granite Cross","price":8820,"addedAt":1700000000000,"slug":"granite-cross","colors":["black"]}`, string(data))
}

func TestFavoriteItem_UnmarshalLegacyShapes(t *testing.T) {
	var item FavoriteItem
	require.NoError(t, json.Unmarshal([]byte(`{"id":"t1","addedAt":1700000000000.0,"price":"on request"}`), &item))
	assert.Equal(t, int64(1700000000000), item.AddedAt)
	assert.Zero(t, item.Price)
	assert.JSONEq(t, `"on request"`, string(item.Extra["price"]))

	require.NoError(t, json.Unmarshal([]byte(`{"id":"t2","addedAt":null}`), &item))
	assert.Equal(t, "t2", item.ID)
	assert.Zero(t, item.AddedAt)
}

func TestFavoriteItem_UnmarshalRejects(t *testing.T) {
	tests := map[string]string{
		"missing id":    `{"title":"x"}`,
		"numeric id":    `{"id":7}`,
		"null record":   `null`,
		"not an object": `[1,2]`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			var item FavoriteItem
			assert.Error(t, json.Unmarshal([]byte(input), &item))
		})
	}
}

func TestFavoriteItem_Display(t *testing.T) {
	assert.Equal(t, "Title", FavoriteItem{Title: "Title", Name: "Name"}.DisplayName())
	assert.Equal(t, "Name", FavoriteItem{Name: "Name"}.DisplayName())
	assert.Equal(t, PlaceholderName, FavoriteItem{}.DisplayName())
	assert.Equal(t, PlaceholderImage, FavoriteItem{}.DisplayImage())
	assert.Equal(t, "/a.png", FavoriteItem{Image: "/a.png"}.DisplayImage())
}

func TestFavoriteItem_RoundTripKeepsZeroAndNullFields(t *testing.T) {
	input := `{"id":"t1","title":"","name":"Marble","price":0,"image":null,"addedAt":1700000000000}`

	var item FavoriteItem
	require.NoError(t, json.Unmarshal([]byte(input), &item))
	assert.Empty(t, item.Title)
	assert.Zero(t, item.Price)
	assert.Empty(t, item.Image)
	assert.Equal(t, "Marble", item.Name)

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(data))

	var again FavoriteItem
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, item, again)
}

func TestFavoriteItem_TypedValueWinsOverKeptZero(t *testing.T) {
	var item FavoriteItem
	require.NoError(t, json.Unmarshal([]byte(`{"id":"t1","price":0}`), &item))

	item.Price = 120
	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"t1","price":120}`, string(data))
}

func TestFavoriteItem_OutOfRangeAddedAt(t *testing.T) {
	for _, value := range []string{"1e30", "-1e30", "9.3e18"} {
		var item FavoriteItem
		require.NoError(t, json.Unmarshal([]byte(`{"id":"t1","addedAt":`+value+`}`), &item))
		assert.Zero(t, item.AddedAt, value)
		assert.JSONEq(t, value, string(item.Extra["addedAt"]))
	}
}
