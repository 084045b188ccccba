package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// LineSource says where an order line came from. It is implemented only by
// CatalogLine and CustomLine, so a line always has exactly one origin.
type LineSource interface {
	sourceKind() string
}

// CatalogLine references a menu catalog item.
type CatalogLine struct {
	MenuItemID uint64 `json:"menu_item_id"`
}

// CustomLine is a customer-built item, optionally derived from a base menu item.
type CustomLine struct {
	Name        string   `json:"name"`
	BaseItemID  *uint64  `json:"base_item_id,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
}

const (
	SourceKindCatalog = "catalog"
	SourceKindCustom  = "custom"
)

func (CatalogLine) sourceKind() string { return SourceKindCatalog }
func (CustomLine) sourceKind() string  { return SourceKindCustom }

// ItemSource is the persisted and serialized form of a LineSource. It is
// stored as a single JSON column tagged with the source kind.
type ItemSource struct {
	LineSource
}

// Catalog builds an ItemSource pointing at a menu item.
func Catalog(menuItemID uint64) ItemSource {
	return ItemSource{LineSource: CatalogLine{MenuItemID: menuItemID}}
}

// Custom builds an ItemSource for a custom item.
func Custom(build CustomLine) ItemSource {
	return ItemSource{LineSource: build}
}

// Kind returns "catalog", "custom" or "" when unset.
func (s ItemSource) Kind() string {
	if s.LineSource == nil {
		return ""
	}
	return s.LineSource.sourceKind()
}

type itemSourceWire struct {
	Kind        string   `json:"kind"`
	MenuItemID  uint64   `json:"menu_item_id,omitempty"`
	Name        string   `json:"name,omitempty"`
	BaseItemID  *uint64  `json:"base_item_id,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
}

func (s ItemSource) MarshalJSON() ([]byte, error) {
	switch src := s.LineSource.(type) {
	case CatalogLine:
		return json.Marshal(itemSourceWire{Kind: SourceKindCatalog, MenuItemID: src.MenuItemID})
	case CustomLine:
		return json.Marshal(itemSourceWire{
			Kind:        SourceKindCustom,
			Name:        src.Name,
			BaseItemID:  src.BaseItemID,
			Ingredients: src.Ingredients,
		})
	case nil:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown line source %T", src)
	}
}

func (s *ItemSource) UnmarshalJSON(data []byte) error {
	var wire itemSourceWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case SourceKindCatalog:
		if wire.MenuItemID == 0 {
			return errors.New("catalog line requires menu_item_id")
		}
		s.LineSource = CatalogLine{MenuItemID: wire.MenuItemID}
	case SourceKindCustom:
		s.LineSource = CustomLine{
			Name:        wire.Name,
			BaseItemID:  wire.BaseItemID,
			Ingredients: wire.Ingredients,
		}
	default:
		return fmt.Errorf("unknown line source kind %q", wire.Kind)
	}
	return nil
}

func (s ItemSource) Value() (driver.Value, error) {
	if s.LineSource == nil {
		return nil, errors.New("order item has no source")
	}
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *ItemSource) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalJSON([]byte(v))
	case []byte:
		return s.UnmarshalJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into ItemSource", src)
	}
}

func (s ItemSource) clone() ItemSource {
	if custom, ok := s.LineSource.(CustomLine); ok {
		if custom.BaseItemID != nil {
			id := *custom.BaseItemID
			custom.BaseItemID = &id
		}
		custom.Ingredients = append([]string(nil), custom.Ingredients...)
		return ItemSource{LineSource: custom}
	}
	return s
}
