// Package quality runs data-quality rules over a job's property snapshot:
// a fixed set of built-in consistency checks plus user-authored custom
// checks interpreted from small condition trees.
package quality

import (
	"fmt"
	"strings"

	"github.com/stwalsh4118/reval/internal/models"
)

// Severity grades how much an issue should worry the reviewer.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Logic joins a condition to the running result of the conditions before
// it. The first condition's logic is always IF.
type Logic string

const (
	LogicIf  Logic = "IF"
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Operator is a comparison in a custom-check condition.
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpIsNull       Operator = "is null"
	OpIsNotNull    Operator = "is not null"
	OpContains     Operator = "contains"
	OpIsOneOf      Operator = "is one of"
	OpIsNotOneOf   Operator = "is not one of"
)

// Condition is one node of a custom check's condition list.
type Condition struct {
	Logic    Logic    `json:"logic"`
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// CustomCheck is a user-authored rule: an ordered condition list folded
// left to right, with a name and severity for the issues it raises.
type CustomCheck struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Severity   Severity    `json:"severity"`
	Conditions []Condition `json:"conditions"`
}

// Issue is one rule violation on one property.
type Issue struct {
	Check       string   `json:"check"`
	Severity    Severity `json:"severity"`
	PropertyKey string   `json:"propertyKey"`
	Message     string   `json:"message"`
}

// Summary counts issues by severity and carries the job's quality score.
type Summary struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
	Total    int `json:"total"`
	Score    int `json:"score"`
}

// EvaluateCheck folds the check's conditions over one record, left to
// right. Conditions after the first combine with the running result via
// their own AND/OR logic; there is no precedence or grouping.
func EvaluateCheck(check CustomCheck, p *models.PropertyRecord) bool {
	if len(check.Conditions) == 0 {
		return false
	}

	met := false
	for i, cond := range check.Conditions {
		this := evaluateCondition(cond, p)
		if i == 0 {
			met = this
			continue
		}
		switch cond.Logic {
		case LogicAnd:
			met = met && this
		case LogicOr:
			met = met || this
		}
	}
	return met
}

func evaluateCondition(cond Condition, p *models.PropertyRecord) bool {
	value := p.Field(cond.Field)

	switch cond.Operator {
	case OpEqual:
		return looseEqual(value, cond.Value)
	case OpNotEqual:
		return !looseEqual(value, cond.Value)
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		left, lok := models.ParseNumeric(value)
		right, rok := models.ParseNumeric(cond.Value)
		if !lok || !rok {
			return false
		}
		switch cond.Operator {
		case OpGreater:
			return left > right
		case OpLess:
			return left < right
		case OpGreaterEqual:
			return left >= right
		default:
			return left <= right
		}
	case OpIsNull:
		return isEmpty(value)
	case OpIsNotNull:
		return !isEmpty(value)
	case OpContains:
		if isEmpty(value) {
			return false
		}
		return strings.Contains(
			strings.ToLower(fmt.Sprintf("%v", value)),
			strings.ToLower(cond.Value),
		)
	case OpIsOneOf:
		return inList(value, cond.Value)
	case OpIsNotOneOf:
		return !inList(value, cond.Value)
	default:
		return false
	}
}

// looseEqual compares numerically when both sides parse as numbers, so a
// raw-data "2" matches the value 2.0, else as strings.
func looseEqual(value any, target string) bool {
	if value == nil {
		return target == ""
	}
	if left, lok := models.ParseNumeric(value); lok {
		if right, rok := models.ParseNumeric(target); rok {
			return left == right
		}
	}
	return fmt.Sprintf("%v", value) == target
}

// isEmpty mirrors the null test the assessors expect: nil, empty string,
// or numeric zero all read as "not filled in".
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	if n, ok := models.ParseNumeric(value); ok {
		return n == 0
	}
	return false
}

func inList(value any, csv string) bool {
	if value == nil {
		return false
	}
	str := strings.TrimSpace(fmt.Sprintf("%v", value))
	for _, item := range strings.Split(csv, ",") {
		if strings.TrimSpace(item) == str {
			return true
		}
	}
	return false
}

// RunCustomChecks evaluates every check against every property.
func RunCustomChecks(records []*models.PropertyRecord, checks []CustomCheck) []Issue {
	var issues []Issue
	for _, check := range checks {
		for _, p := range records {
			if EvaluateCheck(check, p) {
				issues = append(issues, Issue{
					Check:       "custom_" + check.ID,
					Severity:    check.Severity,
					PropertyKey: p.CompositeKey,
					Message:     check.Name,
				})
			}
		}
	}
	return issues
}

// RunBuiltinChecks applies the standing consistency rules every job gets.
func RunBuiltinChecks(records []*models.PropertyRecord) []Issue {
	var issues []Issue
	add := func(check string, severity Severity, p *models.PropertyRecord, msg string) {
		issues = append(issues, Issue{
			Check:       check,
			Severity:    severity,
			PropertyKey: p.CompositeKey,
			Message:     msg,
		})
	}

	for _, p := range records {
		if strings.TrimSpace(p.VCS) == "" {
			add("missing_vcs", SeverityCritical, p, "Property has no VCS neighborhood code")
		}
		if p.BuildingClass > 0 && p.ImprovementValue <= 0 {
			add("zero_improvement", SeverityWarning, p,
				fmt.Sprintf("Building class %d with zero improvement value", p.BuildingClass))
		}
		if p.SalePrice > 0 && p.SaleDate == nil {
			add("sale_without_date", SeverityWarning, p, "Sale price recorded without a sale date")
		}
		if (p.M4Class == "2" || p.M4Class == "3A") && p.LivingArea <= 0 {
			add("zero_living_area", SeverityCritical, p, "Improved residential property with no living area")
		}
		if (p.ExteriorCondition != "" || p.InteriorCondition != "") && p.YearBuilt <= 0 {
			add("condition_without_year", SeverityInfo, p, "Condition code recorded without a year built")
		}
	}
	return issues
}

// Summarize counts issues by severity and computes the quality score:
// 100 minus weighted issues per property, floored at 0. An empty
// snapshot scores a clean 100.
func Summarize(issues []Issue, propertyCount int) Summary {
	s := Summary{Total: len(issues)}
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityWarning:
			s.Warning++
		case SeverityInfo:
			s.Info++
		}
	}
	s.Score = Score(s.Critical, s.Warning, s.Info, propertyCount)
	return s
}

// Severity weights for the quality score.
const (
	criticalWeight = 10
	warningWeight  = 5
	infoWeight     = 1
)

// Score computes the 0-100 quality score from issue counts.
func Score(critical, warning, info, propertyCount int) int {
	if propertyCount <= 0 {
		return 100
	}
	penalty := float64(criticalWeight*critical+warningWeight*warning+infoWeight*info) /
		float64(propertyCount)
	score := 100 - int(penalty)
	if score < 0 {
		return 0
	}
	return score
}
