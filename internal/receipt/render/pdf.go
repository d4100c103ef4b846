package render

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/feeledger/internal/receipt/domain"
)

const dateLayout = "02 Jan 2006"

type PDFRenderer struct{}

func NewPDFRenderer() domain.Renderer {
	return &PDFRenderer{}
}

func (p *PDFRenderer) Render(_ context.Context, receipt domain.Receipt) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Fee Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "PAID", props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Receipt: "+receipt.Token, props.Text{Top: 0, Size: 9}),
			text.New("Payment date: "+receipt.PaymentDate.Format(dateLayout), props.Text{Top: 5, Size: 9}),
			text.New("Issued: "+receipt.IssuedAt.Format(dateLayout), props.Text{Top: 10, Size: 9}),
		),
		col.New(6).Add(
			text.New(receipt.StudentName, props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New("Reg. no. "+receipt.RegistrationNumber, props.Text{Top: 5, Size: 9, Align: align.Right}),
			text.New(receipt.BatchName+", "+receipt.FranchiseName, props.Text{Top: 10, Size: 9, Align: align.Right}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, receipt.Currency+" "+receipt.Amount.String()+" received", props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(4, "Due date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Paid to date", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Status", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range receipt.Lines {
		m.AddRow(8,
			text.NewCol(4, line.DueDate.Format(dateLayout), props.Text{Size: 9}),
			text.NewCol(3, line.Amount.String(), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, line.PayedAmount.String(), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, string(line.Status), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Applied", props.Text{Size: 9}),
		text.NewCol(2, receipt.Applied.String(), props.Text{Size: 9, Align: align.Right}),
	)
	if receipt.Leftover.IsPositive() {
		m.AddRow(10,
			col.New(8),
			text.NewCol(2, "Unapplied", props.Text{Size: 9}),
			text.NewCol(2, receipt.Leftover.String(), props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Balance", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, receipt.RemainingAmount.String(), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
