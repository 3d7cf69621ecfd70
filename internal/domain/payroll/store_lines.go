package payroll

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const lineColumns = `
    id, run_id, person_id, full_name, person_type, jurisdiction,
    is_included, exclude_reason, pay_rate, base_pay, earnings, deductions,
    gross_pay, total_taxes, total_deductions, net_pay,
    employer_taxes, employer_contributions, total_employer_cost,
    currency, row_notes`

func scanLine(row rowScanner) (Line, error) {
	var (
		line           Line
		earningsJSON   []byte
		deductionsJSON []byte
		excludeReason  *string
		rowNotes       *string
	)
	err := row.Scan(
		&line.ID, &line.RunID, &line.PersonID, &line.FullName, &line.PersonType, &line.Jurisdiction,
		&line.IsIncluded, &excludeReason, &line.PayRate, &line.BasePay, &earningsJSON, &deductionsJSON,
		&line.GrossPay, &line.TotalTaxes, &line.TotalDeductions, &line.NetPay,
		&line.EmployerTaxes, &line.EmployerContributions, &line.TotalEmployerCost,
		&line.Currency, &rowNotes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, ErrLineNotFound
	}
	if err != nil {
		return Line{}, err
	}
	if excludeReason != nil {
		line.ExcludeReason = *excludeReason
	}
	if rowNotes != nil {
		line.RowNotes = *rowNotes
	}
	if err := json.Unmarshal(earningsJSON, &line.Earnings); err != nil {
		return Line{}, err
	}
	if err := json.Unmarshal(deductionsJSON, &line.Deductions); err != nil {
		return Line{}, err
	}
	return line, nil
}

func insertLinesTx(ctx context.Context, tx pgx.Tx, tenantID, runID string, lines []Line) error {
	for _, line := range lines {
		earningsJSON, err := json.Marshal(line.Earnings)
		if err != nil {
			return err
		}
		deductionsJSON, err := json.Marshal(line.Deductions)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
      INSERT INTO payroll_lines (
        tenant_id, run_id, person_id, full_name, person_type, jurisdiction,
        is_included, exclude_reason, pay_rate, base_pay, earnings, deductions,
        gross_pay, total_taxes, total_deductions, net_pay,
        employer_taxes, employer_contributions, total_employer_cost,
        currency, row_notes
      )
      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
    `,
			tenantID, runID, line.PersonID, line.FullName, line.PersonType, line.Jurisdiction,
			line.IsIncluded, line.ExcludeReason, line.PayRate, line.BasePay, earningsJSON, deductionsJSON,
			line.GrossPay, line.TotalTaxes, line.TotalDeductions, line.NetPay,
			line.EmployerTaxes, line.EmployerContributions, line.TotalEmployerCost,
			line.Currency, line.RowNotes,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetLines returns a run's lines in roster order, excluded persons included.
func (s *Store) GetLines(ctx context.Context, tenantID, runID string) ([]Line, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+lineColumns+`
    FROM payroll_lines
    WHERE tenant_id = $1 AND run_id = $2
    ORDER BY full_name, person_id
  `, tenantID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (s *Store) GetLine(ctx context.Context, tenantID, runID, lineID string) (Line, error) {
	return scanLine(s.DB.QueryRow(ctx, `
    SELECT `+lineColumns+`
    FROM payroll_lines
    WHERE tenant_id = $1 AND run_id = $2 AND id = $3
  `, tenantID, runID, lineID))
}

// LatestPostedNets returns each person's net pay from their most recently
// posted run. The anomaly detector compares fresh results against these.
func (s *Store) LatestPostedNets(ctx context.Context, tenantID string) (map[string]decimal.Decimal, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT DISTINCT ON (l.person_id) l.person_id, l.net_pay
    FROM payroll_lines l
    JOIN payroll_runs r ON r.id = l.run_id AND r.tenant_id = l.tenant_id
    WHERE l.tenant_id = $1 AND l.is_included AND r.status IN ('posted', 'paid')
    ORDER BY l.person_id, r.posted_at DESC
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var personID string
		var net decimal.Decimal
		if err := rows.Scan(&personID, &net); err != nil {
			return nil, err
		}
		out[personID] = net
	}
	return out, rows.Err()
}
