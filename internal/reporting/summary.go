package reporting

import (
	"fmt"
	"time"
)

// SummaryLines renders the headline figures as plain text lines for terminals.
func SummaryLines(d *Document) []string {
	s, c, q := d.Summary, d.Coverage, d.QuoteCurrency
	money := func(label string, v interface{ StringFixed(int32) string }) string {
		return fmt.Sprintf("%-22s %s %s", label+":", v.StringFixed(MoneyPlaces), q)
	}

	lines := []string{
		fmt.Sprintf("Report %s", d.ReportID),
		fmt.Sprintf("Wallet %s on %s, %s", d.Wallet, d.ChainID, periodString(d.PeriodStart, d.PeriodEnd)),
		money("ROI income", s.TotalROIIncome),
		money("Capital gains", s.TotalCapitalGains),
		money("  short-term", s.ShortTermCapitalGains),
		money("  exempt", s.ExemptCapitalGains),
		money("Taxable amount", s.TaxableAmount),
		money("Estimated tax", s.EstimatedTax),
		fmt.Sprintf("Transfers: %d (skipped %d, spam %d), events: %d", c.TransferCount, c.SkippedCount, c.SpamCount, s.EventCount),
	}

	if c.TokensWithoutReliablePrice > 0 {
		lines = append(lines, fmt.Sprintf("WARNING: %d token(s) without a reliable price", c.TokensWithoutReliablePrice))
	}
	if c.CostBasisUnknownCount > 0 {
		lines = append(lines, fmt.Sprintf("WARNING: %d disposal fragment(s) with unknown cost basis", c.CostBasisUnknownCount))
	}
	return lines
}

func periodString(start, end time.Time) string {
	const layout = "2006-01-02"
	from, to := "beginning", "now"
	if !start.IsZero() {
		from = start.UTC().Format(layout)
	}
	if !end.IsZero() {
		to = end.UTC().Format(layout)
	}
	return from + " to " + to
}
