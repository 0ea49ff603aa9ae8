package valuation

import (
	"strings"

	"github.com/stwalsh4118/reval/internal/cama"
	"github.com/stwalsh4118/reval/internal/models"
)

// TypeUseClass buckets a vendor type-use code into the residential
// categories the analyses filter on.
type TypeUseClass string

const (
	TypeSingleFamily   TypeUseClass = "single_family"
	TypeSemiDetached   TypeUseClass = "semi_detached"
	TypeTownhouse      TypeUseClass = "townhouse"
	TypeMultifamily    TypeUseClass = "multifamily"
	TypeConversion     TypeUseClass = "conversion"
	TypeCondominium    TypeUseClass = "condominium"
	TypeAllResidential TypeUseClass = "all_residential"
	TypeAll            TypeUseClass = "all"
)

// Townhouse, multifamily and conversion use small enumerated code lists;
// the remaining classes match on the code's leading digit.
var (
	townhouseCodes   = map[string]bool{"30": true, "31": true, "3E": true, "3I": true}
	multifamilyCodes = map[string]bool{"42": true, "43": true, "44": true}
	conversionCodes  = map[string]bool{"51": true, "52": true, "53": true}
)

// MatchesTypeUse reports whether a type-use code belongs to the class. An
// empty code is assumed single family, for the single_family and
// all_residential classes only. That asymmetry is inherited domain policy:
// older exports leave the code blank on plain single-family dwellings but
// never on the specialty types.
func MatchesTypeUse(typeUse string, class TypeUseClass) bool {
	typeUse = strings.TrimSpace(typeUse)

	switch class {
	case TypeAll:
		return true
	case TypeSingleFamily:
		return typeUse == "" || strings.HasPrefix(typeUse, "1")
	case TypeSemiDetached:
		return strings.HasPrefix(typeUse, "2")
	case TypeTownhouse:
		return townhouseCodes[typeUse]
	case TypeMultifamily:
		return multifamilyCodes[typeUse]
	case TypeConversion:
		return conversionCodes[typeUse]
	case TypeCondominium:
		return strings.HasPrefix(typeUse, "6")
	case TypeAllResidential:
		if typeUse == "" {
			return true
		}
		return strings.HasPrefix(typeUse, "1") ||
			strings.HasPrefix(typeUse, "2") ||
			townhouseCodes[typeUse] ||
			multifamilyCodes[typeUse] ||
			conversionCodes[typeUse] ||
			strings.HasPrefix(typeUse, "6")
	default:
		return false
	}
}

// entryCodes resolves the job's configured entry list, else the vendor
// defaults.
func entryCodes(cfg *models.JobConfig, adapter cama.Adapter) []string {
	if len(cfg.InfoBy.Entry) > 0 {
		return cfg.InfoBy.Entry
	}
	return adapter.DefaultEntryCodes()
}

// PassesEntryFilter reports whether the record's info-by code indicates the
// assessor physically gained entry.
func PassesEntryFilter(p *models.PropertyRecord, cfg *models.JobConfig, adapter cama.Adapter) bool {
	return containsCode(entryCodes(cfg, adapter), p.InfoByCode)
}

// InteriorInspected reports whether the record's interior data can be
// trusted: the info-by code is in neither the refusal nor the estimation
// set.
func InteriorInspected(p *models.PropertyRecord, cfg *models.JobConfig, adapter cama.Adapter) bool {
	refusal := cfg.InfoBy.Refusal
	if len(refusal) == 0 {
		refusal = adapter.DefaultRefusalCodes()
	}
	estimation := cfg.InfoBy.Estimation
	if len(estimation) == 0 {
		estimation = adapter.DefaultEstimationCodes()
	}
	return !containsCode(refusal, p.InfoByCode) && !containsCode(estimation, p.InfoByCode)
}

// IsVacantLandSale reports whether the record is a usable vacant-land sale:
// municipal class 1 (vacant) or 3B (qualified farmland), a positive sale
// price inside the window, and a clean NU code.
func IsVacantLandSale(p *models.PropertyRecord, window models.DateRange) bool {
	if p.M4Class != "1" && p.M4Class != "3B" {
		return false
	}
	if p.SaleDate == nil || p.SalePrice <= 0 {
		return false
	}
	if !window.Contains(*p.SaleDate) {
		return false
	}
	return p.HasCleanNU()
}

// HasValidSale reports whether the record carries a usable sale under the
// job's price basis: a clean NU code and a positive effective price.
func HasValidSale(p *models.PropertyRecord, cfg *models.JobConfig) bool {
	if !p.HasCleanNU() {
		return false
	}
	return cfg.EffectiveSalePrice(p) > 0
}

// containsCode does a trimmed, case-insensitive membership test, since
// info-by codes arrive space-padded from fixed-width exports.
func containsCode(codes []string, code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if strings.EqualFold(strings.TrimSpace(c), code) {
			return true
		}
	}
	return false
}
