package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"detailhub/internal/domain"
	"detailhub/internal/domain/models"
	"detailhub/internal/repositories"
	"detailhub/internal/utils"
)

// StatementService renders a provider earnings statement as PDF.
type StatementService struct {
	Ledger  repositories.Ledger
	Payouts PayoutService
	Policy  Policy
	Now     Clock
}

// EarningsStatement builds the PDF for providerID over an optional range.
// Providers may only fetch their own statement.
func (s StatementService) EarningsStatement(ctx context.Context, actor domain.Actor, providerID string, from, to *time.Time) ([]byte, string, error) {
	if !actor.IsStaff() && !(actor.Role == domain.RoleProvider && actor.ID == providerID) {
		return nil, "", domain.AuthorizationError{Action: "view earnings", Msg: "caller is not the provider"}
	}
	earnings, err := s.Payouts.GetProviderEarnings(ctx, providerID, from, to)
	if err != nil {
		return nil, "", err
	}
	provider, err := s.Ledger.GetProvider(ctx, providerID)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(ctx, "statement", "generate", "earnings statement", "provider_id", providerID)
	return buildStatementPDF(provider, earnings, s.Policy.Currency, s.Now.now())
}

func buildStatementPDF(p models.Provider, e models.ProviderEarnings, currency string, now time.Time) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Earnings Statement", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "EARNINGS STATEMENT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Provider  : %s", safe(p.DisplayName, p.ID)),
		fmt.Sprintf("Account   : %s", safe(p.ProcessorAccountID, "-")),
		fmt.Sprintf("Period    : %s to %s", periodBound(e.From, "start"), periodBound(e.To, "today")),
		fmt.Sprintf("Generated : %s", utils.FormatDateTime(now)),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(70, 8, "Status", "B", 0, "", false, 0, "")
	pdf.CellFormat(30, 8, "Payouts", "B", 0, "R", false, 0, "")
	pdf.CellFormat(60, 8, "Amount", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	rows := []struct {
		label  string
		bucket models.EarningsBucket
	}{
		{"Released", e.Released},
		{"Pending release", e.Pending},
		{"Held for dispute", e.Blocked},
	}
	for _, r := range rows {
		pdf.CellFormat(70, 8, r.label, "", 0, "", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%d", r.bucket.Count), "", 0, "R", false, 0, "")
		pdf.CellFormat(60, 8, utils.FormatMoney(r.bucket.AmountCents, currency), "", 1, "R", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Pending amounts are released after customer confirmation or the auto-confirm window. Held amounts stay blocked until the dispute is resolved.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("STATEMENT_%s_%s.pdf", safeFilenamePart(p.ID), now.Format("20060102"))
	return buf.Bytes(), filename, nil
}

func periodBound(t *time.Time, fallback string) string {
	if t == nil {
		return fallback
	}
	return utils.FormatDate(*t)
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
