package cama

import (
	"strings"

	"github.com/stwalsh4118/reval/internal/models"
)

// microsystemsAdapter decodes Microsystems exports. Microsystems condition
// codes are single letters and stable across jobs, so the hardcoded table
// is authoritative; job code definitions only refine descriptions.
type microsystemsAdapter struct {
	defs models.CodeDefinitions
}

// microsystemsConditions is the fixed letter-code condition table.
var microsystemsConditions = map[string]Condition{
	"E": ConditionExcellent,
	"V": ConditionVeryGood,
	"G": ConditionGood,
	"A": ConditionAverage,
	"F": ConditionFair,
	"P": ConditionPoor,
	"U": ConditionVeryPoor,
}

// microsystemsDefaultEntry covers owner/spouse/tenant/agent inspections.
var microsystemsDefaultEntry = []string{"O", "S", "T", "A"}

var (
	microsystemsDefaultRefusal    = []string{"R"}
	microsystemsDefaultEstimation = []string{"E", "V"}
)

func (a *microsystemsAdapter) Vendor() models.VendorType { return models.VendorMicrosystems }

func (a *microsystemsAdapter) ExteriorCondition(p *models.PropertyRecord) Condition {
	return a.condition(p.ExteriorCondition)
}

func (a *microsystemsAdapter) InteriorCondition(p *models.PropertyRecord) Condition {
	return a.condition(p.InteriorCondition)
}

func (a *microsystemsAdapter) condition(code string) Condition {
	code = strings.ToUpper(strings.TrimSpace(code))
	if noCondition(code) {
		return ""
	}
	return microsystemsConditions[code]
}

func (a *microsystemsAdapter) DefaultEntryCodes() []string      { return microsystemsDefaultEntry }
func (a *microsystemsAdapter) DefaultRefusalCodes() []string    { return microsystemsDefaultRefusal }
func (a *microsystemsAdapter) DefaultEstimationCodes() []string { return microsystemsDefaultEstimation }

func (a *microsystemsAdapter) TypeUseDescription(code string) string {
	return lookup(a.defs.TypeUse, code)
}

func (a *microsystemsAdapter) DesignDescription(code string) string {
	return lookup(a.defs.Design, code)
}

func (a *microsystemsAdapter) VCSDescription(code string) string {
	return lookup(a.defs.VCS, code)
}
