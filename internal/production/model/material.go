package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaterialType is the kind of a material. Upstream revisions send it either as
// a token or as a numeric code; everything past the decoding boundary sees
// only these values.
type MaterialType int

const (
	MaterialTypeUnknown MaterialType = iota
	MaterialTypeRaw
	MaterialTypeFinished
)

// Wire codes used by the numeric revisions of the inventory API.
const (
	materialCodeRaw      = 0
	materialCodeFinished = 2
)

func (t MaterialType) String() string {
	switch t {
	case MaterialTypeRaw:
		return "RawMaterial"
	case MaterialTypeFinished:
		return "FinishedGood"
	default:
		return "Unknown"
	}
}

// ParseMaterialType normalises any accepted discriminator: "RawMaterial",
// "FinishedGood", 0, 2, "0", "2". Anything else maps to MaterialTypeUnknown.
func ParseMaterialType(v interface{}) MaterialType {
	switch t := v.(type) {
	case MaterialType:
		return t
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return fromCode(n)
		}
		switch strings.ToLower(s) {
		case "rawmaterial", "raw_material", "raw":
			return MaterialTypeRaw
		case "finishedgood", "finished_good", "finished", "fg":
			return MaterialTypeFinished
		}
	case int:
		return fromCode(t)
	case int64:
		return fromCode(int(t))
	case float64:
		if t == float64(int(t)) {
			return fromCode(int(t))
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return fromCode(int(n))
		}
	case []byte:
		return ParseMaterialType(string(t))
	}
	return MaterialTypeUnknown
}

func fromCode(n int) MaterialType {
	switch n {
	case materialCodeRaw:
		return MaterialTypeRaw
	case materialCodeFinished:
		return MaterialTypeFinished
	}
	return MaterialTypeUnknown
}

func (t MaterialType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *MaterialType) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("material type: %w", err)
	}
	*t = ParseMaterialType(raw)
	return nil
}

// Value stores the token form.
func (t MaterialType) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *MaterialType) Scan(src interface{}) error {
	*t = ParseMaterialType(src)
	return nil
}

// Material is an inventory row as seen by the production core. Read-only here.
type Material struct {
	ID                int64           `json:"id"`
	Code              string          `json:"materialCode"`
	Name              string          `json:"materialName"`
	Type              MaterialType    `json:"materialType"`
	UnitOfMeasure     string          `json:"unitOfMeasure"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	CurrentStockLevel decimal.Decimal `json:"currentStockLevel"`
	MinimumStockLevel decimal.Decimal `json:"minimumStockLevel"`
}

// BelowMinimum reports whether stock is under the reorder threshold.
func (m Material) BelowMinimum() bool {
	return m.MinimumStockLevel.IsPositive() && m.CurrentStockLevel.LessThan(m.MinimumStockLevel)
}
