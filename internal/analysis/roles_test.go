package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
)

func TestRoleTable(t *testing.T) {
	cases := []struct {
		name string
		kind dataset.Kind
		role Role
		want bool
	}{
		{"Project Health", dataset.KindText, RoleRisk, true},
		{"Churn Risk", dataset.KindText, RoleRisk, true},
		{"Project Status (R/G/Y)", dataset.KindText, RoleRisk, true},
		{"Project Status (R/G/Y)", dataset.KindText, RoleStatus, true},
		{"Revenue", dataset.KindNumeric, RoleRisk, false},
		{"Account Executive", dataset.KindText, RoleOwner, true},
		{"Exective", dataset.KindText, RoleExecutive, true},
		{"Sales Rep", dataset.KindText, RoleOwner, true},
		{"Report Date", dataset.KindDate, RoleOwner, false},
		{"Sales Rep", dataset.KindText, RoleExecutive, false},
		{"ARR", dataset.KindNumeric, RoleOutcome, true},
		{"ARR", dataset.KindText, RoleOutcome, false},
		{"Carrier Cost", dataset.KindNumeric, RoleOutcome, false},
		{"NPS Score", dataset.KindNumeric, RoleOutcome, true},
		{"Revenue", dataset.KindText, RoleRevenue, true},
		{"Sales Region", dataset.KindText, RoleGeography, true},
		{"Country", dataset.KindText, RoleGeography, true},
		{"Client", dataset.KindText, RoleCustomer, true},
		{"Account Executive", dataset.KindText, RoleCustomer, true},
		{"Contract End Date", dataset.KindDate, RoleEndDate, true},
		{"Contract End Date", dataset.KindText, RoleEndDate, false},
		{"Start Date", dataset.KindDate, RoleEndDate, false},
		{"Calendar Date", dataset.KindDate, RoleEndDate, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.role)+"/"+tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ruleFor(tc.role).Match(tc.name, tc.kind))
		})
	}
}

func TestColumnForTakesFirstInDatasetOrder(t *testing.T) {
	ds := dataset.New("t", []string{"Owner", "Account Executive", "Revenue"}, [][]string{{"a", "b", "1"}})
	assert.Equal(t, 0, ColumnFor(ds, RoleOwner))
	assert.Equal(t, []int{0, 1}, ColumnsFor(ds, RoleExecutive))
	assert.Equal(t, -1, ColumnFor(ds, RoleGeography))
}
