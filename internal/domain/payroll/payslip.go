package payroll

import (
	"context"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"payrun/internal/domain/payperiod"
)

// RenderPayslip writes a PDF payslip for one included line of a posted or
// paid run. Excluded lines and pre-posting runs have no payslip.
func (s *Service) RenderPayslip(ctx context.Context, w io.Writer, tenantID, runID, lineID string) error {
	run, err := s.Store.GetRun(ctx, tenantID, runID)
	if err != nil {
		return err
	}
	if run.Status != StatusPosted && run.Status != StatusPaid {
		return ErrRunNotPosted
	}
	line, err := s.Store.GetLine(ctx, tenantID, runID, lineID)
	if err != nil {
		return err
	}
	if !line.IsIncluded {
		return ErrLineNotFound
	}
	period, err := s.Periods.GetPeriod(ctx, tenantID, run.PeriodID)
	if err != nil {
		return err
	}
	return writePayslipPDF(w, run, line, period)
}

func writePayslipPDF(w io.Writer, run Run, line Line, period payperiod.Period) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", line.FullName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", period.StartDate.Format("2006-01-02"), period.EndDate.Format("2006-01-02")))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Pay date: %s", period.PayDate.Format("2006-01-02")))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Run: %s #%d", run.RunType, run.RunNumber))
	pdf.Ln(10)

	amount := func(label, value string) {
		pdf.Cell(120, 7, label)
		pdf.CellFormat(40, 7, value+" "+line.Currency, "", 0, "R", false, 0, "")
		pdf.Ln(7)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Earnings")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	amount("Base pay", line.BasePay.StringFixed(2))
	for _, earning := range line.Earnings {
		amount(earning.Name, earning.Amount.StringFixed(2))
	}
	amount("Gross pay", line.GrossPay.StringFixed(2))
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Taxes and deductions")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	amount("Employee taxes", line.TotalTaxes.StringFixed(2))
	for _, deduction := range line.Deductions {
		amount(deduction.Name, deduction.Amount.StringFixed(2))
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	amount("Net pay", line.NetPay.StringFixed(2))

	return pdf.Output(w)
}
