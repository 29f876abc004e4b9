package core

// MonthSummary is the budget view of one month: every category month plus
// the budget-wide "to be budgeted" figure.
type MonthSummary struct {
	Month        Month           `json:"month"`
	ToBeBudgeted Money           `json:"toBeBudgeted"`
	Budgeted     Money           `json:"budgeted"`
	Activity     Money           `json:"activity"`
	Categories   []CategoryMonth `json:"categories"`
}

// SummarizeMonth totals the budgeted and activity columns of categories.
func SummarizeMonth(month Month, categories []CategoryMonth, toBeBudgeted Money) MonthSummary {
	s := MonthSummary{
		Month:        month,
		ToBeBudgeted: toBeBudgeted,
		Categories:   categories,
	}
	if s.Categories == nil {
		s.Categories = []CategoryMonth{}
	}
	for _, cm := range categories {
		s.Budgeted = s.Budgeted.Add(cm.Budgeted)
		s.Activity = s.Activity.Add(cm.Activity)
	}
	return s
}
