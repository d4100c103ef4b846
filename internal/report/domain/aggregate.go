package domain

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/config"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	"github.com/smallbiznis/feeledger/internal/fee/engine"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/pkg/money"
)

func zeroTotals() engine.Totals {
	return engine.Totals{Fees: money.Zero, Received: money.Zero, Pending: money.Zero, Overdue: money.Zero}
}

// Matches reports whether line passes the franchise and batch filters.
func (f Filter) Matches(line Line) bool {
	return f.MatchesScope(line.Scope)
}

func (f Filter) MatchesScope(scope enrollmentdomain.Scope) bool {
	if f.FranchiseID != 0 && scope.FranchiseID != f.FranchiseID {
		return false
	}
	if f.BatchID != 0 && scope.BatchID != f.BatchID {
		return false
	}
	return true
}

// InMonth reports whether the installment is due in the selected month.
func (f Filter) InMonth(inst feedomain.Installment) bool {
	if !f.HasMonth() {
		return true
	}
	y, m, _ := inst.DueDate.UTC().Date()
	fy, fm, _ := f.Month.Date()
	return y == fy && m == fm
}

// Aggregate computes a report from data. It never modifies data.
//
// The franchise hierarchy, student rows, filtered totals and aging honor
// every filter. The monthly series honors franchise and batch only, so the
// month filter does not collapse it to a single point. Every enrolled
// student in scope gets a row, with zero totals when nothing is scheduled;
// under a month filter students with nothing due that month are left out.
func Aggregate(data Dataset, filter Filter, today time.Time, buckets []config.AgingBucket) Report {
	today = clock.Date(today)
	report := Report{
		Today:    today,
		Global:   zeroTotals(),
		Filtered: zeroTotals(),
	}
	if filter.HasMonth() {
		report.Month = filter.Month.Format(MonthLayout)
	}

	batchTotals := make(map[snowflake.ID]engine.Totals)
	students := make(map[snowflake.ID]*StudentSummary)
	studentEnrollments := make(map[snowflake.ID]map[snowflake.ID]bool)
	due := make(map[string]money.Money)
	collected := make(map[string]money.Money)
	aging := make([]AgingTotal, len(buckets))
	for i, b := range buckets {
		aging[i] = AgingTotal{Label: b.Label, Amount: money.Zero}
	}

	student := func(sc enrollmentdomain.Scope) *StudentSummary {
		s, ok := students[sc.StudentID]
		if !ok {
			s = &StudentSummary{
				StudentID:          sc.StudentID,
				StudentName:        sc.StudentName,
				RegistrationNumber: sc.RegistrationNumber,
				Totals:             zeroTotals(),
			}
			students[sc.StudentID] = s
			studentEnrollments[sc.StudentID] = make(map[snowflake.ID]bool)
		}
		studentEnrollments[sc.StudentID][sc.EnrollmentID] = true
		return s
	}
	for _, sc := range data.Enrollments {
		if filter.MatchesScope(sc) {
			student(sc)
		}
	}

	if data.Global != nil {
		report.Global = report.Global.Add(*data.Global)
	}
	for _, line := range data.Lines {
		inst := line.Installment
		lineTotals := engine.TotalsOf(inst, today)
		if data.Global == nil {
			report.Global = report.Global.Add(lineTotals)
		}

		if !filter.Matches(line) {
			continue
		}

		key := inst.DueDate.UTC().Format(MonthLayout)
		due[key] = due[key].Add(inst.Amount)
		if inst.IsPaid() && inst.PaymentDate != nil {
			paidKey := inst.PaymentDate.UTC().Format(MonthLayout)
			collected[paidKey] = collected[paidKey].Add(inst.PayedAmount)
		}

		if !filter.InMonth(inst) {
			continue
		}

		report.Filtered = report.Filtered.Add(lineTotals)

		current, ok := batchTotals[line.Scope.BatchID]
		if !ok {
			current = zeroTotals()
		}
		batchTotals[line.Scope.BatchID] = current.Add(lineTotals)

		s := student(line.Scope)
		s.Totals = s.Totals.Add(lineTotals)

		if engine.IsOverdue(inst.Status, inst.DueDate, today) {
			days := clock.DaysBetween(inst.DueDate, today)
			for i, b := range buckets {
				if b.Contains(days) {
					aging[i].Installments++
					aging[i].Amount = aging[i].Amount.Add(inst.Outstanding())
					break
				}
			}
		}
	}

	report.Franchises = hierarchy(data, filter, batchTotals)
	report.Students = studentRows(students, studentEnrollments, filter.HasMonth())
	report.Monthly = monthlySeries(due, collected)
	report.Aging = aging
	return report
}

// hierarchy rolls batch totals up into their franchises.
func hierarchy(data Dataset, filter Filter, batchTotals map[snowflake.ID]engine.Totals) []FranchiseSummary {
	byFranchise := make(map[snowflake.ID][]BatchSummary)
	for _, ref := range data.Batches {
		if filter.FranchiseID != 0 && ref.FranchiseID != filter.FranchiseID {
			continue
		}
		if filter.BatchID != 0 && ref.BatchID != filter.BatchID {
			continue
		}
		totals, ok := batchTotals[ref.BatchID]
		if !ok {
			totals = zeroTotals()
		}
		byFranchise[ref.FranchiseID] = append(byFranchise[ref.FranchiseID], BatchSummary{
			BatchID:   ref.BatchID,
			BatchName: ref.BatchName,
			Totals:    totals,
		})
	}

	out := make([]FranchiseSummary, 0, len(data.Franchises))
	for _, f := range data.Franchises {
		if filter.FranchiseID != 0 && f.ID != filter.FranchiseID {
			continue
		}
		summary := FranchiseSummary{
			FranchiseID:   f.ID,
			FranchiseName: f.Name,
			Batches:       byFranchise[f.ID],
			Totals:        zeroTotals(),
		}
		if summary.Batches == nil {
			summary.Batches = []BatchSummary{}
		}
		for _, b := range summary.Batches {
			summary.Totals = summary.Totals.Add(b.Totals)
		}
		out = append(out, summary)
	}
	return out
}

// studentRows flattens students sorted by name. dropEmpty leaves out
// students with nothing in the selected month.
func studentRows(students map[snowflake.ID]*StudentSummary, enrollments map[snowflake.ID]map[snowflake.ID]bool, dropEmpty bool) []StudentSummary {
	out := make([]StudentSummary, 0, len(students))
	for id, s := range students {
		if dropEmpty && s.Fees.IsZero() {
			continue
		}
		row := *s
		row.Enrollments = len(enrollments[id])
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentName != out[j].StudentName {
			return out[i].StudentName < out[j].StudentName
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}

// monthlySeries merges both sides; a month present on one side only reads
// zero on the other.
func monthlySeries(due, collected map[string]money.Money) []MonthlyPoint {
	keys := make(map[string]struct{}, len(due)+len(collected))
	for k := range due {
		keys[k] = struct{}{}
	}
	for k := range collected {
		keys[k] = struct{}{}
	}
	months := make([]string, 0, len(keys))
	for k := range keys {
		months = append(months, k)
	}
	sort.Strings(months)

	out := make([]MonthlyPoint, 0, len(months))
	for _, m := range months {
		out = append(out, MonthlyPoint{Month: m, Due: due[m], Collected: collected[m]})
	}
	return out
}

// BuildReminders splits pending lines into upcoming (due within windowDays
// from today) and overdue.
func BuildReminders(lines []Line, today time.Time, windowDays int) Reminders {
	today = clock.Date(today)
	horizon := clock.AddDays(today, windowDays)
	out := Reminders{
		Today:      today,
		WindowDays: windowDays,
		Upcoming:   []ReminderLine{},
		Overdue:    []ReminderLine{},
	}
	for _, line := range lines {
		inst := line.Installment
		if inst.IsPaid() {
			continue
		}
		dueDate := clock.Date(inst.DueDate)
		reminder := ReminderLine{
			InstallmentID:      inst.ID,
			AccountID:          inst.AccountID,
			EnrollmentID:       line.Scope.EnrollmentID,
			StudentID:          line.Scope.StudentID,
			StudentName:        line.Scope.StudentName,
			RegistrationNumber: line.Scope.RegistrationNumber,
			BatchID:            line.Scope.BatchID,
			BatchName:          line.Scope.BatchName,
			FranchiseName:      line.Scope.FranchiseName,
			DueDate:            dueDate,
			Amount:             inst.Amount,
			Outstanding:        inst.Outstanding(),
		}
		switch {
		case engine.IsOverdue(inst.Status, dueDate, today):
			reminder.DaysOverdue = clock.DaysBetween(dueDate, today)
			out.Overdue = append(out.Overdue, reminder)
		case !dueDate.After(horizon):
			out.Upcoming = append(out.Upcoming, reminder)
		}
	}
	byDue := func(rows []ReminderLine) {
		sort.SliceStable(rows, func(i, j int) bool {
			if !rows[i].DueDate.Equal(rows[j].DueDate) {
				return rows[i].DueDate.Before(rows[j].DueDate)
			}
			return rows[i].InstallmentID < rows[j].InstallmentID
		})
	}
	byDue(out.Upcoming)
	byDue(out.Overdue)
	return out
}
