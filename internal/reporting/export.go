package reporting

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"wallet-tax-engine/internal/domain"
)

// Round converts v to a decimal rounded half away from zero.
func Round(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places)
}

// SummaryOf rounds the report totals.
func SummaryOf(r *domain.TaxReport) Summary {
	return Summary{
		TotalROIIncome:        Round(r.TotalROIIncome, MoneyPlaces),
		TotalCapitalGains:     Round(r.TotalCapitalGains, MoneyPlaces),
		ShortTermCapitalGains: Round(r.ShortTermCapitalGains, MoneyPlaces),
		ExemptCapitalGains:    Round(r.ExemptCapitalGains, MoneyPlaces),
		TaxableCapitalGains:   Round(r.TaxableCapitalGains, MoneyPlaces),
		TaxableAmount:         Round(r.TaxableAmount, MoneyPlaces),
		ROITax:                Round(r.ROITax, MoneyPlaces),
		CapitalGainsTax:       Round(r.CapitalGainsTax, MoneyPlaces),
		EstimatedTax:          Round(r.EstimatedTax, MoneyPlaces),
		EventCount:            r.EventCount,
	}
}

// CategoryRows lists every category, including empty ones.
func CategoryRows(r *domain.TaxReport) []CategoryRow {
	rows := make([]CategoryRow, 0, len(domain.AllCategories))
	for _, c := range domain.AllCategories {
		ct := r.Categories[c]
		rows = append(rows, CategoryRow{
			Category: c,
			Count:    ct.Count,
			Value:    Round(ct.Value, MoneyPlaces),
		})
	}
	return rows
}

// PriceRows converts observations, sorted by token key.
func PriceRows(obs []*domain.PriceObservation) []PriceRow {
	rows := make([]PriceRow, 0, len(obs))
	for _, o := range obs {
		rows = append(rows, PriceRow{
			TokenKey:  o.TokenKey,
			Symbol:    o.Symbol,
			UnitPrice: Round(o.UnitPrice, PricePlaces),
			Source:    o.Source,
			Tier:      o.Tier,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].TokenKey < rows[j].TokenKey
	})
	return rows
}

// ExportRows flattens detail rows, keeping their order.
func ExportRows(rows []domain.DetailRow) []ExportRow {
	out := make([]ExportRow, 0, len(rows))
	for i := range rows {
		out = append(out, exportRow(&rows[i]))
	}
	return out
}

func exportRow(r *domain.DetailRow) ExportRow {
	t := &r.Transfer

	direction, counterparty := "out", t.ToAddress
	if t.ToAddress == t.WalletAddress {
		direction, counterparty = "in", t.FromAddress
	}

	var (
		gain, taxable float64
		days          []string
		unknown       bool
	)
	for i := range r.Events {
		ev := &r.Events[i]
		g := ev.Gain()
		gain += g
		if ev.Taxable {
			taxable += g
		}
		if ev.HoldingPeriodDays != nil {
			days = append(days, strconv.Itoa(*ev.HoldingPeriodDays))
		}
		if ev.CostBasisUnknown {
			unknown = true
		}
	}

	return ExportRow{
		RowID:        r.RowID,
		Timestamp:    t.BlockTimestamp,
		TxHash:       t.TxHash,
		LogIndex:     t.LogIndex,
		Direction:    direction,
		Symbol:       t.TokenSymbol,
		TokenAddress: t.TokenAddress,
		Counterparty: counterparty,
		Category:     r.Classification.Category,
		Rule:         r.Classification.MatchedRule,
		Confidence:   r.Classification.Confidence,
		Reason:       r.Classification.Reason,
		Amount:       Round(r.Amount, AmountPlaces),
		UnitPrice:    Round(r.UnitPrice, PricePlaces),
		Value:        Round(r.PricedValue, MoneyPlaces),
		PriceSource:  string(r.PriceSource),
		PriceTier:    r.PriceTier,
		Gain:         Round(gain, MoneyPlaces),
		TaxableGain:  Round(taxable, MoneyPlaces),
		HoldingDays:  strings.Join(days, ","),
		CostUnknown:  unknown,
		Spam:         r.Spam,
	}
}
