package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/pkg/money"
	"github.com/stretchr/testify/assert"
)

func templatesOf(amounts ...int64) []FeeTemplate {
	out := make([]FeeTemplate, 0, len(amounts))
	for i, a := range amounts {
		out = append(out, FeeTemplate{ID: snowflake.ID(i + 1), Amount: money.FromInt(a), RepaymentPeriodDays: 30})
	}
	return out
}

func TestDiffTemplatesUpdatesInPlace(t *testing.T) {
	existing := templatesOf(100, 200, 300)
	desired := []TemplateInput{
		{Amount: money.FromInt(100), RepaymentPeriodDays: 30},
		{Amount: money.FromInt(250), RepaymentPeriodDays: 30},
		{Amount: money.FromInt(300), RepaymentPeriodDays: 45},
	}

	diff := DiffTemplates(existing, desired)
	assert.Equal(t, 1, diff.Unchanged)
	assert.Len(t, diff.Update, 2)
	assert.Equal(t, snowflake.ID(2), diff.Update[0].ID)
	assert.Equal(t, "250.00", diff.Update[0].Amount.String())
	assert.Equal(t, 45, diff.Update[1].RepaymentPeriodDays)
	assert.Empty(t, diff.Insert)
	assert.Empty(t, diff.Delete)
}

func TestDiffTemplatesAppendsAndTrims(t *testing.T) {
	grow := DiffTemplates(templatesOf(100), []TemplateInput{
		{Amount: money.FromInt(100), RepaymentPeriodDays: 30},
		{Amount: money.FromInt(50), RepaymentPeriodDays: 10},
	})
	assert.Len(t, grow.Insert, 1)
	assert.Empty(t, grow.Delete)

	shrink := DiffTemplates(templatesOf(100, 200, 300), []TemplateInput{
		{Amount: money.FromInt(100), RepaymentPeriodDays: 30},
	})
	assert.Equal(t, []snowflake.ID{2, 3}, shrink.Delete)

	same := DiffTemplates(templatesOf(100), []TemplateInput{{Amount: money.FromInt(100), RepaymentPeriodDays: 30}})
	assert.True(t, same.Empty())
}

func TestRecompute(t *testing.T) {
	plan := FeePlan{Discount: money.FromInt(50)}
	plan.Recompute(templatesOf(100, 200))
	assert.Equal(t, "300.00", plan.TotalAmount.String())
	assert.Equal(t, "250.00", plan.RemainingAmount.String())
}

func TestValidateTemplates(t *testing.T) {
	assert.NoError(t, ValidateTemplates(nil))
	assert.ErrorIs(t, ValidateTemplates([]TemplateInput{{Amount: money.Zero, RepaymentPeriodDays: 1}}), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateTemplates([]TemplateInput{{Amount: money.FromInt(1), RepaymentPeriodDays: 0}}), ErrInvalidPeriod)
}
