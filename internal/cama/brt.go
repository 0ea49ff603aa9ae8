package cama

import (
	"strings"

	"github.com/stwalsh4118/reval/internal/models"
)

// brtAdapter decodes BRT exports. BRT condition codes are numeric and
// job-specific: they resolve against the job's code definition table first,
// and only fall back to the standard numeric scale when the job carries no
// metadata for the code.
type brtAdapter struct {
	defs models.CodeDefinitions
}

// brtConditionScale is the fallback numeric condition scale used when a
// job's code definitions do not cover a condition code.
var brtConditionScale = map[string]Condition{
	"1": ConditionExcellent,
	"2": ConditionVeryGood,
	"3": ConditionGood,
	"4": ConditionAverage,
	"5": ConditionFair,
	"6": ConditionPoor,
	"7": ConditionVeryPoor,
}

// brtDefaultEntry covers owner/spouse/tenant/agent inspections.
var brtDefaultEntry = []string{"01", "02", "03", "04"}

var (
	brtDefaultRefusal    = []string{"05"}
	brtDefaultEstimation = []string{"06", "07"}
)

func (a *brtAdapter) Vendor() models.VendorType { return models.VendorBRT }

func (a *brtAdapter) ExteriorCondition(p *models.PropertyRecord) Condition {
	return a.condition(p.ExteriorCondition)
}

func (a *brtAdapter) InteriorCondition(p *models.PropertyRecord) Condition {
	return a.condition(p.InteriorCondition)
}

// condition resolves a raw BRT code. Job metadata wins: a code whose
// description reads like one of the canonical labels maps to that label.
// Codes absent from the metadata fall back to the numeric scale.
func (a *brtAdapter) condition(code string) Condition {
	code = strings.TrimSpace(code)
	if noCondition(code) {
		return ""
	}

	if desc, ok := a.defs.Conditions[code]; ok {
		if cond := conditionFromDescription(desc); cond != "" {
			return cond
		}
	}

	return brtConditionScale[strings.TrimLeft(code, "0")]
}

func (a *brtAdapter) DefaultEntryCodes() []string      { return brtDefaultEntry }
func (a *brtAdapter) DefaultRefusalCodes() []string    { return brtDefaultRefusal }
func (a *brtAdapter) DefaultEstimationCodes() []string { return brtDefaultEstimation }

func (a *brtAdapter) TypeUseDescription(code string) string {
	return lookup(a.defs.TypeUse, code)
}

func (a *brtAdapter) DesignDescription(code string) string {
	return lookup(a.defs.Design, code)
}

func (a *brtAdapter) VCSDescription(code string) string {
	return lookup(a.defs.VCS, code)
}

// conditionFromDescription matches a job-specific code description to the
// canonical vocabulary. Descriptions vary in spacing and punctuation
// between jobs ("V.GOOD", "VERY GOOD", "VG"), so matching is loose.
func conditionFromDescription(desc string) Condition {
	normalized := strings.ToUpper(strings.TrimSpace(desc))
	normalized = strings.NewReplacer(".", " ", "-", " ", "_", " ").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")

	switch {
	case strings.HasPrefix(normalized, "EXC"):
		return ConditionExcellent
	case strings.HasPrefix(normalized, "VERY GOOD"), normalized == "VG", strings.HasPrefix(normalized, "V GOOD"):
		return ConditionVeryGood
	case strings.HasPrefix(normalized, "GOOD"):
		return ConditionGood
	case strings.HasPrefix(normalized, "AVG"), strings.HasPrefix(normalized, "AVERAGE"), strings.HasPrefix(normalized, "NORMAL"):
		return ConditionAverage
	case strings.HasPrefix(normalized, "FAIR"):
		return ConditionFair
	case strings.HasPrefix(normalized, "VERY POOR"), normalized == "VP", strings.HasPrefix(normalized, "V POOR"):
		return ConditionVeryPoor
	case strings.HasPrefix(normalized, "POOR"):
		return ConditionPoor
	default:
		return ""
	}
}
