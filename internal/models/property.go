package models

import (
	"strconv"
	"strings"
	"time"
)

// SquareFeetPerAcre converts lot square footage to acres.
const SquareFeetPerAcre = 43560.0

// PropertyRecord represents one assessed parcel/card as produced by the
// vendor file parsers. All nullable fields use pointers to distinguish
// between zero values and NULL, matching the raw CAMA exports which are
// known to be incomplete.
type PropertyRecord struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Identity. Block/lot/qualifier/card form the natural composite key.
	CompositeKey string `json:"compositeKey"`
	Block        string `json:"block"`
	Lot          string `json:"lot"`
	Qualifier    string `json:"qualifier,omitempty"`
	Card         string `json:"card,omitempty"`
	AddlCard     string `json:"addlCard,omitempty"`
	Location     string `json:"location,omitempty"`

	// Classification codes.
	M4Class       string `json:"m4Class,omitempty"`
	CAMAClass     string `json:"camaClass,omitempty"`
	TypeUse       string `json:"typeUse,omitempty"`
	DesignStyle   string `json:"designStyle,omitempty"`
	BuildingClass int    `json:"buildingClass,omitempty"`

	// Physical characteristics. Zero means "unknown", never literal zero,
	// for any field used as a division denominator.
	LivingArea float64 `json:"livingArea,omitempty"`
	LotAcre    float64 `json:"lotAcre,omitempty"`
	LotSF      float64 `json:"lotSf,omitempty"`
	YearBuilt  int     `json:"yearBuilt,omitempty"`
	Bedrooms   int     `json:"bedrooms,omitempty"`
	Bathrooms  int     `json:"bathrooms,omitempty"`

	// Vendor condition codes, raw (not canonicalized).
	ExteriorCondition string `json:"exteriorCondition,omitempty"`
	InteriorCondition string `json:"interiorCondition,omitempty"`

	// Inspection "information by" code.
	InfoByCode string `json:"infoByCode,omitempty"`

	// Current assessed values and cost inputs.
	LandValue           float64 `json:"landValue,omitempty"`
	ImprovementValue    float64 `json:"improvementValue,omitempty"`
	TotalValue          float64 `json:"totalValue,omitempty"`
	BaseReplacementCost float64 `json:"baseReplacementCost,omitempty"`
	DetachedItemsValue  float64 `json:"detachedItemsValue,omitempty"`

	// Sale data, 0-or-1 per record in the considered window.
	SaleDate      *time.Time `json:"saleDate,omitempty"`
	SalePrice     float64    `json:"salePrice,omitempty"`
	SaleNU        string     `json:"saleNu,omitempty"`
	SaleBook      string     `json:"saleBook,omitempty"`
	SalePage      string     `json:"salePage,omitempty"`
	TimeNormPrice float64    `json:"timeNormPrice,omitempty"`
	SizeNormPrice float64    `json:"sizeNormPrice,omitempty"`

	// Geography.
	VCS string `json:"vcs,omitempty"`

	// Vendor-specific raw field bag for fields not promoted to named
	// attributes. Keys are the vendor's own column names.
	RawData map[string]any `json:"rawData,omitempty"`

	ID int64 `json:"id"`
}

// TotalAcres combines the acre and square-foot lot fields into a single
// acreage figure.
func (p *PropertyRecord) TotalAcres() float64 {
	return p.LotAcre + p.LotSF/SquareFeetPerAcre
}

// SaleYear returns the calendar year of the sale, or 0 when the record has
// no sale date.
func (p *PropertyRecord) SaleYear() int {
	if p.SaleDate == nil {
		return 0
	}
	return p.SaleDate.Year()
}

// HasCleanNU reports whether the sale-non-usable code is empty or the "00"
// placeholder, meaning the sale is usable for market analysis.
func (p *PropertyRecord) HasCleanNU() bool {
	switch strings.TrimSpace(p.SaleNU) {
	case "", "00":
		return true
	default:
		return false
	}
}

// Field resolves a snake_case field name to the record's value, for
// user-authored quality checks. Names under the "raw_data." prefix are
// looked up in the vendor raw field bag. Unknown names resolve to nil.
func (p *PropertyRecord) Field(name string) any {
	const rawPrefix = "raw_data."
	if len(name) > len(rawPrefix) && name[:len(rawPrefix)] == rawPrefix {
		if p.RawData == nil {
			return nil
		}
		return p.RawData[name[len(rawPrefix):]]
	}

	switch name {
	case "property_composite_key":
		return p.CompositeKey
	case "property_block":
		return p.Block
	case "property_lot":
		return p.Lot
	case "property_qualifier":
		return p.Qualifier
	case "property_addl_card":
		return p.AddlCard
	case "property_location":
		return p.Location
	case "property_m4_class":
		return p.M4Class
	case "property_cama_class":
		return p.CAMAClass
	case "asset_type_use":
		return p.TypeUse
	case "asset_design_style":
		return p.DesignStyle
	case "asset_building_class":
		return p.BuildingClass
	case "asset_sfla":
		return p.LivingArea
	case "asset_lot_acre":
		return p.LotAcre
	case "asset_lot_sf":
		return p.LotSF
	case "asset_year_built":
		return p.YearBuilt
	case "asset_ext_cond":
		return p.ExteriorCondition
	case "asset_int_cond":
		return p.InteriorCondition
	case "inspection_info_by":
		return p.InfoByCode
	case "values_mod_land":
		return p.LandValue
	case "values_mod_improvement":
		return p.ImprovementValue
	case "values_mod_total":
		return p.TotalValue
	case "values_base_cost":
		return p.BaseReplacementCost
	case "values_det_items":
		return p.DetachedItemsValue
	case "values_norm_time":
		return p.TimeNormPrice
	case "values_norm_size":
		return p.SizeNormPrice
	case "sales_price":
		return p.SalePrice
	case "sales_nu":
		return p.SaleNU
	case "sales_book":
		return p.SaleBook
	case "sales_page":
		return p.SalePage
	case "sales_date":
		if p.SaleDate == nil {
			return nil
		}
		return p.SaleDate.Format("2006-01-02")
	case "property_vcs", "new_vcs":
		return p.VCS
	default:
		return nil
	}
}

// FormatKey builds the composite key from its parts the way the vendor
// parsers do, so synthetic records in tests match production keys.
func FormatKey(block, lot, qualifier, card string) string {
	key := block + "-" + lot
	if qualifier != "" {
		key += "-" + qualifier
	}
	if card != "" {
		key += "-C" + card
	}
	return key
}

// ParseNumeric attempts to interpret a raw-field value as a float. It is
// tolerant of numeric strings, which the vendor exports mix freely with
// real numbers.
func ParseNumeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
