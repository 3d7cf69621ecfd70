package payroll

// Aggregate sums included lines into run totals. Line values are already
// rounded, so the sums are exact and reconcile against the line list.
func Aggregate(lines []Line) RunTotals {
	var totals RunTotals
	for _, line := range lines {
		if !line.IsIncluded {
			continue
		}
		totals.GrossPay = totals.GrossPay.Add(line.GrossPay)
		totals.NetPay = totals.NetPay.Add(line.NetPay)
		totals.EmployeeTaxes = totals.EmployeeTaxes.Add(line.TotalTaxes)
		totals.EmployeeDeductions = totals.EmployeeDeductions.Add(line.TotalDeductions)
		totals.EmployerTaxes = totals.EmployerTaxes.Add(line.EmployerTaxes)
		totals.EmployerContributions = totals.EmployerContributions.Add(line.EmployerContributions)
		totals.EmployeeCount++
	}
	return totals
}
