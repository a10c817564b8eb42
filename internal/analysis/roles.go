package analysis

import (
	"strings"
	"unicode"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
)

// Role is the semantic meaning inferred for a column from its name.
type Role string

const (
	RoleRisk      Role = "risk"
	RoleOwner     Role = "owner"
	RoleOutcome   Role = "outcome"
	RoleRevenue   Role = "revenue"
	RoleStatus    Role = "status"
	RoleGeography Role = "geography"
	RoleExecutive Role = "executive"
	RoleCustomer  Role = "customer"
	RoleEndDate   Role = "end_date"
)

// RoleRule maps column-name terms to a Role.
// A name matches when it contains any AnyOf term and every AllOf term.
// Terms of three letters or fewer must appear as a whole word so "rep" skips "Report".
// Kinds, when set, restricts the match to those column kinds.
type RoleRule struct {
	Role  Role
	AnyOf []string
	AllOf []string
	Kinds []dataset.Kind
}

// Roles is the full column-role table. Lookups take the first matching column in dataset order.
var Roles = []RoleRule{
	{Role: RoleRisk, AnyOf: []string{"health", "status", "risk", "churn"}},
	{Role: RoleOwner, AnyOf: []string{"executive", "exective", "owner", "rep"}},
	{Role: RoleOutcome, AnyOf: []string{"revenue", "arr", "score"}, Kinds: []dataset.Kind{dataset.KindNumeric}},
	{Role: RoleRevenue, AnyOf: []string{"revenue"}},
	{Role: RoleStatus, AnyOf: []string{"status"}},
	{Role: RoleGeography, AnyOf: []string{"geography", "region", "country", "territory", "location"}},
	{Role: RoleExecutive, AnyOf: []string{"executive", "exective", "owner"}},
	{Role: RoleCustomer, AnyOf: []string{"customer", "client", "account"}},
	{Role: RoleEndDate, AllOf: []string{"end", "date"}, Kinds: []dataset.Kind{dataset.KindDate}},
}

// Match reports whether a column with this name and kind plays the rule's role.
func (r RoleRule) Match(name string, kind dataset.Kind) bool {
	if len(r.Kinds) > 0 {
		ok := false
		for _, k := range r.Kinds {
			if k == kind {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	lower := strings.ToLower(name)
	words := splitWords(lower)
	for _, term := range r.AllOf {
		if !containsTerm(lower, words, term) {
			return false
		}
	}
	if len(r.AnyOf) == 0 {
		return len(r.AllOf) > 0
	}
	for _, term := range r.AnyOf {
		if containsTerm(lower, words, term) {
			return true
		}
	}
	return false
}

// splitWords breaks s into runs of letters and digits.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(c rune) bool { return !unicode.IsLetter(c) && !unicode.IsDigit(c) })
}

func containsTerm(lower string, words []string, term string) bool {
	if len(term) > 3 {
		return strings.Contains(lower, term)
	}
	for _, w := range words {
		if w == term {
			return true
		}
	}
	return false
}

func ruleFor(role Role) RoleRule {
	for _, r := range Roles {
		if r.Role == role {
			return r
		}
	}
	return RoleRule{Role: role}
}

// ColumnsFor returns the indexes of every column playing role, in dataset order.
func ColumnsFor(ds *dataset.Dataset, role Role) []int {
	rule := ruleFor(role)
	var out []int
	for i, c := range ds.Columns {
		if rule.Match(c.Name, c.Kind) {
			out = append(out, i)
		}
	}
	return out
}

// ColumnFor returns the first column playing role, or -1.
func ColumnFor(ds *dataset.Dataset, role Role) int {
	if cols := ColumnsFor(ds, role); len(cols) > 0 {
		return cols[0]
	}
	return -1
}

// profileColumnFor is ColumnFor over a Profile's schema; it returns "" when nothing matches.
func profileColumnFor(p *dataset.Profile, role Role) string {
	rule := ruleFor(role)
	for _, name := range p.ColumnNames {
		if rule.Match(name, p.Dtypes[name]) {
			return name
		}
	}
	return ""
}
