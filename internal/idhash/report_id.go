package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ComputeReportID computes a deterministic report_id using SHA256.
// Formula: SHA256(wallet|chain_id|period_start|period_end|quote_currency)
// Zero period bounds hash as 0. Returns hex-encoded hash (64 characters).
func ComputeReportID(
	wallet string,
	chainID string,
	periodStart time.Time,
	periodEnd time.Time,
	quoteCurrency string,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%s",
		strings.ToLower(wallet),
		chainID,
		unixOrZero(periodStart),
		unixOrZero(periodEnd),
		strings.ToUpper(quoteCurrency),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeRowID computes a deterministic detail row id using SHA256.
// Formula: SHA256(wallet|chain_id|tx_hash|log_index|token_address)
// Returns hex-encoded hash (64 characters).
func ComputeRowID(
	wallet string,
	chainID string,
	txHash string,
	logIndex int,
	tokenAddress string,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%s",
		strings.ToLower(wallet),
		chainID,
		strings.ToLower(txHash),
		logIndex,
		strings.ToLower(tokenAddress),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
