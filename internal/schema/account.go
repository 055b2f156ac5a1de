package schema

import "github.com/JonMunkholm/gridedit/internal/core"

func init() {
	registerAccount()
}

func registerAccount() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Name:  "account",
			Label: "Accounts",
		},
		Columns: []core.ColumnMetadata{
			{Name: "Name", Type: core.TypeText},
			{Name: "Account Number", Type: core.TypeText, ReadOnly: true},
			{Name: "Employees", Type: core.TypeInteger, MinValue: bound(0)},
			{Name: "Annual Revenue", Type: core.TypeMoney},
			{Name: "Credit Limit", Type: core.TypeMoney, MinValue: bound(0)},
			{Name: "Active", Type: core.TypeBoolean, Options: twoState},
			{Name: "Industry", Type: core.TypeOptionSet, Options: []core.Option{
				{Code: 1, Label: "Manufacturing"},
				{Code: 2, Label: "Retail"},
				{Code: 3, Label: "Financial Services"},
				{Code: 4, Label: "Healthcare"},
				{Code: 5, Label: "Technology"},
			}},
			{Name: "Regions", Type: core.TypeMultiSelectOptionSet, Options: []core.Option{
				{Code: 100, Label: "North America"},
				{Code: 200, Label: "EMEA"},
				{Code: 300, Label: "APAC"},
				{Code: 400, Label: "LATAM"},
			}},
			{Name: "Founded", Type: core.TypeDateTime, DateOnly: true},
			{Name: "Last Contacted", Type: core.TypeDateTime},
			{Name: "Parent Account", Type: core.TypeLookup},
		},
	})
}
