package schema

import "github.com/JonMunkholm/gridedit/internal/core"

func init() {
	registerOpportunity()
}

func registerOpportunity() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Name:  "opportunity",
			Label: "Opportunities",
		},
		Columns: []core.ColumnMetadata{
			{Name: "Topic", Type: core.TypeText},
			{Name: "Account", Type: core.TypeLookup},
			{Name: "Stage", Type: core.TypeOptionSet, Options: []core.Option{
				{Code: 1, Label: "Qualify"},
				{Code: 2, Label: "Develop"},
				{Code: 3, Label: "Propose"},
				{Code: 4, Label: "Close"},
			}},
			{Name: "Probability", Type: core.TypeInteger, MinValue: bound(0), MaxValue: bound(100)},
			{Name: "Est. Revenue", DBColumn: "est_revenue", Type: core.TypeMoney},
			{Name: "Discount", Type: core.TypeDecimal, Precision: 4, MinValue: bound(0), MaxValue: bound(1)},
			{Name: "Close Date", Type: core.TypeDateTime, DateOnly: true},
			{Name: "Private", Type: core.TypeBoolean},
			{Name: "Products", Type: core.TypeMultiSelectOptionSet, Options: []core.Option{
				{Code: 1, Label: "Platform"},
				{Code: 2, Label: "Support"},
				{Code: 3, Label: "Training"},
			}},
			{Name: "Created On", Type: core.TypeDateTime, ReadOnly: true},
		},
	})
}
