package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderCSV renders export rows as CSV string.
func RenderCSV(rows []ExportRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("row_id,timestamp,tx_hash,log_index,direction,symbol,token_address,counterparty,")
	sb.WriteString("category,rule,confidence,reason,amount,unit_price,value,price_source,price_tier,")
	sb.WriteString("gain,taxable_gain,holding_days,cost_unknown,spam\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%s,%s,%s,%s,%s,%s,%d,%s,%s,%s,%s,%s,%s,%s,%s,%s,%t,%t\n",
			r.RowID,
			r.Timestamp.UTC().Format(time.RFC3339),
			r.TxHash,
			r.LogIndex,
			r.Direction,
			csvField(r.Symbol),
			r.TokenAddress,
			r.Counterparty,
			r.Category,
			r.Rule,
			r.Confidence,
			csvField(r.Reason),
			r.Amount.StringFixed(AmountPlaces),
			r.UnitPrice.StringFixed(PricePlaces),
			r.Value.StringFixed(MoneyPlaces),
			r.PriceSource,
			r.PriceTier,
			r.Gain.StringFixed(MoneyPlaces),
			r.TaxableGain.StringFixed(MoneyPlaces),
			csvField(r.HoldingDays),
			r.CostUnknown,
			r.Spam,
		))
	}

	return sb.String()
}

// csvField quotes free-text values. Token symbols come from chain data.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
