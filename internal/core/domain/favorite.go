package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const (
	PlaceholderName  = "Untitled memorial"
	PlaceholderImage = "/images/placeholder-tombstone.png"
)

// FavoriteItem - a catalogue listing the user saved in this browser.
// Everything except ID and AddedAt is display data copied at add-time.
type FavoriteItem struct {
	ID      string
	Title   string
	Name    string
	Price   float64
	Image   string
	AddedAt int64 // epoch milliseconds, assigned by the store

	// Extra keeps any other field the caller supplied, untouched.
	Extra map[string]json.RawMessage
}

// DisplayName returns the title, the name, or a placeholder.
func (f FavoriteItem) DisplayName() string {
	if f.Title != "" {
		return f.Title
	}
	if f.Name != "" {
		return f.Name
	}
	return PlaceholderName
}

func (f FavoriteItem) DisplayImage() string {
	if f.Image != "" {
		return f.Image
	}
	return PlaceholderImage
}

func (f FavoriteItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Extra)+6)
	for k, v := range f.Extra {
		out[k] = v
	}
	out["id"] = f.ID
	if f.Title != "" {
		out["title"] = f.Title
	}
	if f.Name != "" {
		out["name"] = f.Name
	}
	if f.Price != 0 {
		out["price"] = f.Price
	}
	if f.Image != "" {
		out["image"] = f.Image
	}
	if f.AddedAt != 0 {
		out["addedAt"] = f.AddedAt
	}
	return json.Marshal(out)
}

func (f *FavoriteItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("favorite item: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("favorite item: null record")
	}

	item := FavoriteItem{}
	idRaw, ok := raw["id"]
	if !ok {
		return fmt.Errorf("favorite item: missing id")
	}
	if err := json.Unmarshal(idRaw, &item.ID); err != nil {
		return fmt.Errorf("favorite item: id must be a string: %w", err)
	}

	// display fields are best-effort: a badly typed one is kept as extra data,
	// and so is an explicit zero, empty or null one so that it is written back
	// exactly as supplied
	for key, value := range raw {
		var err error
		switch key {
		case "id":
			continue
		case "title":
			err = unmarshalDisplay(value, &item.Title)
		case "name":
			err = unmarshalDisplay(value, &item.Name)
		case "price":
			err = unmarshalDisplay(value, &item.Price)
		case "image":
			err = unmarshalDisplay(value, &item.Image)
		case "addedAt":
			err = unmarshalMillis(value, &item.AddedAt)
		default:
			item.setExtra(key, value)
			continue
		}
		if err != nil {
			item.setExtra(key, value)
		}
	}

	*f = item
	return nil
}

func (f *FavoriteItem) setExtra(key string, raw json.RawMessage) {
	if f.Extra == nil {
		f.Extra = make(map[string]json.RawMessage)
	}
	f.Extra[key] = append(json.RawMessage(nil), raw...)
}

var errZeroValue = errors.New("zero value")

// unmarshalDisplay reports errZeroValue for a value that decodes to the zero
// value, since MarshalJSON leaves zero display fields out.
func unmarshalDisplay[T comparable](raw json.RawMessage, dst *T) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	var zero T
	if *dst == zero {
		return errZeroValue
	}
	return nil
}

// addedAt may have been written as a float by older clients.
func unmarshalMillis(raw json.RawMessage, dst *int64) error {
	if bytes.Equal(raw, []byte("null")) {
		*dst = 0
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	if v, err := n.Int64(); err == nil {
		*dst = v
		return nil
	}
	v, err := n.Float64()
	if err != nil {
		return err
	}
	if math.IsNaN(v) || v >= math.MaxInt64 || v < math.MinInt64 {
		return fmt.Errorf("addedAt %s is out of range", n)
	}
	*dst = int64(v)
	return nil
}

// FavoritesState - what a tab exposes to its views.
type FavoritesState struct {
	Favorites      []FavoriteItem `json:"favorites"`
	TotalFavorites int            `json:"totalFavorites"`
	IsLoading      bool           `json:"isLoading"`
	Error          *string        `json:"error"`
}

// PaginatedFavorites - one page of the in-memory list.
type PaginatedFavorites struct {
	Items       []FavoriteItem `json:"items"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
	TotalItems  int            `json:"totalItems"`
	HasNextPage bool           `json:"hasNextPage"`
	HasPrevPage bool           `json:"hasPrevPage"`
}
