package domain

import "github.com/bwmarrin/snowflake"

// TemplateDiff describes how to move a stored template list to a desired one
// without touching rows that did not change.
type TemplateDiff struct {
	Update    []FeeTemplate
	Insert    []TemplateInput
	Delete    []snowflake.ID
	Unchanged int
}

func (d TemplateDiff) Empty() bool {
	return len(d.Update) == 0 && len(d.Insert) == 0 && len(d.Delete) == 0
}

// DiffTemplates aligns existing and desired by position. Matching positions
// are updated in place when amount or period differ, extra desired entries
// are appended and trailing existing rows are deleted. Positional alignment
// keeps ids stable so template order never changes.
func DiffTemplates(existing []FeeTemplate, desired []TemplateInput) TemplateDiff {
	var diff TemplateDiff
	for i, want := range desired {
		if i >= len(existing) {
			diff.Insert = append(diff.Insert, want)
			continue
		}
		cur := existing[i]
		if cur.Amount.Equal(want.Amount) && cur.RepaymentPeriodDays == want.RepaymentPeriodDays {
			diff.Unchanged++
			continue
		}
		cur.Amount = want.Amount
		cur.RepaymentPeriodDays = want.RepaymentPeriodDays
		diff.Update = append(diff.Update, cur)
	}
	for i := len(desired); i < len(existing); i++ {
		diff.Delete = append(diff.Delete, existing[i].ID)
	}
	return diff
}
