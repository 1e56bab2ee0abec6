package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a document as Markdown string.
func RenderMarkdown(d *Document) string {
	var sb strings.Builder
	q := d.QuoteCurrency

	// Header
	sb.WriteString("# Tax Report\n\n")
	sb.WriteString(fmt.Sprintf("Report: `%s`\n\n", d.ReportID))
	sb.WriteString(fmt.Sprintf("Wallet: `%s` | Chain: %s | Period: %s\n\n", d.Wallet, d.ChainID, periodString(d.PeriodStart, d.PeriodEnd)))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", d.GeneratedAt.UTC().Format(time.RFC3339)))

	// Summary
	s := d.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("| Metric | Value (%s) |\n", q))
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| ROI Income | %s |\n", s.TotalROIIncome.StringFixed(MoneyPlaces)))
	sb.WriteString(fmt.Sprintf("| Capital Gains | %s |\n", s.TotalCapitalGains.StringFixed(MoneyPlaces)))
	sb.WriteString(fmt.Sprintf("| Short-Term Gains | %s |\n", s.ShortTermCapitalGains.StringFixed(MoneyPlaces)))
	sb.WriteString(fmt.Sprintf("| Exempt Gains | %s |\n", s.ExemptCapitalGains.StringFixed(MoneyPlaces)))
	sb.WriteString(fmt.Sprintf("| Taxable Gains | %s |\n", s.TaxableCapitalGains.StringFixed(MoneyPlaces)))
	sb.WriteString(fmt.Sprintf("| Taxable Amount | %s |\n", s.TaxableAmount.StringFixed(MoneyPlaces)))
	sb.WriteString(fmt.Sprintf("| Estimated Tax | %s |\n", s.EstimatedTax.StringFixed(MoneyPlaces)))
	sb.WriteString("\n")

	// Data Quality
	c := d.Coverage
	sb.WriteString("## Data Quality\n\n")
	sb.WriteString("| Check | Count |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Transfers | %d |\n", c.TransferCount))
	sb.WriteString(fmt.Sprintf("| Skipped (malformed) | %d |\n", c.SkippedCount))
	sb.WriteString(fmt.Sprintf("| Spam | %d |\n", c.SpamCount))
	sb.WriteString(fmt.Sprintf("| Unknown Cost Basis | %d |\n", c.CostBasisUnknownCount))
	sb.WriteString(fmt.Sprintf("| Tokens Without Reliable Price | %d |\n", c.TokensWithoutReliablePrice))
	sb.WriteString("\n")

	// Categories
	sb.WriteString("## Categories\n\n")
	sb.WriteString(fmt.Sprintf("| Category | Count | Value (%s) |\n", q))
	sb.WriteString("|----------|-------|-------|\n")
	for _, row := range d.Categories {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", row.Category, row.Count, row.Value.StringFixed(MoneyPlaces)))
	}
	sb.WriteString("\n")

	// Prices
	sb.WriteString("## Prices\n\n")
	if len(d.Prices) > 0 {
		sb.WriteString(fmt.Sprintf("| Token | Symbol | Price (%s) | Source | Tier |\n", q))
		sb.WriteString("|-------|--------|-------|--------|------|\n")
		for _, p := range d.Prices {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				p.TokenKey, p.Symbol, p.UnitPrice.StringFixed(PricePlaces), p.Source, p.Tier))
		}
	} else {
		sb.WriteString("No price observations recorded.\n")
	}
	sb.WriteString("\n")

	// Transfers
	sb.WriteString("## Transfers\n\n")
	if len(d.Rows) > 0 {
		sb.WriteString(fmt.Sprintf("| Date | Tx | Dir | Token | Category | Confidence | Amount | Value (%s) | Gain | Days |\n", q))
		sb.WriteString("|------|----|-----|-------|----------|------------|--------|-------|------|------|\n")
		for _, r := range d.Rows {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d | %s | %s | %s | %s |\n",
				r.Timestamp.UTC().Format("2006-01-02"), shortHash(r.TxHash), r.Direction, r.Symbol, r.Category, r.Confidence,
				r.Amount.String(), r.Value.StringFixed(MoneyPlaces), r.Gain.StringFixed(MoneyPlaces), r.HoldingDays))
		}
	} else {
		sb.WriteString("No transfers in period.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:8] + "…" + h[len(h)-4:]
}
