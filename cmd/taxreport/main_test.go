package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"wallet-tax-engine/internal/config"
	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/fixtures"
	"wallet-tax-engine/internal/provider/moralis"
	"wallet-tax-engine/internal/ratelimit"
	"wallet-tax-engine/internal/reporting"
	"wallet-tax-engine/internal/storage"
	"wallet-tax-engine/internal/storage/memory"
)

func loadConfig(t *testing.T, moralisKey string) *config.Config {
	t.Helper()
	t.Setenv("MORALIS_API_KEY", moralisKey)
	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	return cfg
}

func TestBuildProviders_WithMoralisKey(t *testing.T) {
	cfg := loadConfig(t, "test-key")
	stores := &runStores{}

	source, opts, err := buildProviders(cfg, false, ratelimit.NewLimiter(0, nil), stores, zap.NewNop())
	if err != nil {
		t.Fatalf("buildProviders failed: %v", err)
	}
	if _, ok := source.(*moralis.Client); !ok {
		t.Errorf("source = %T, want *moralis.Client", source)
	}
	if opts.Primary == nil || opts.Secondary == nil || opts.Native == nil {
		t.Errorf("primary/secondary/native = %v/%v/%v, want all set", opts.Primary, opts.Secondary, opts.Native)
	}
}

func TestBuildProviders_MissingKeyServesStoredHistory(t *testing.T) {
	cfg := loadConfig(t, "")
	store := memory.NewTransferStore()
	stores := &runStores{transfers: store}

	stored := fixtures.Transfers()[0]
	if err := store.InsertBulk(context.Background(), []*domain.Transfer{&stored}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	source, opts, err := buildProviders(cfg, false, ratelimit.NewLimiter(0, nil), stores, zap.NewNop())
	if err != nil {
		t.Fatalf("buildProviders failed: %v", err)
	}
	if opts.Primary != nil {
		t.Errorf("primary = %v, want nil without credentials", opts.Primary)
	}
	if opts.Secondary == nil || opts.Native == nil {
		t.Error("secondary and native tiers must stay configured")
	}

	cached, ok := source.(*storage.CachedSource)
	if !ok {
		t.Fatalf("source = %T, want *storage.CachedSource", source)
	}
	if cached.Upstream != nil {
		t.Errorf("upstream = %v, want nil", cached.Upstream)
	}

	got, err := source.FetchTransfers(context.Background(), fixtures.Wallet, fixtures.ChainID, domain.DateRange{})
	if err != nil {
		t.Fatalf("FetchTransfers failed: %v", err)
	}
	if len(got) != 1 || got[0].TxHash != stored.TxHash {
		t.Errorf("transfers = %+v, want the stored one", got)
	}
}

func TestBuildProviders_NoTransferSource(t *testing.T) {
	cfg := loadConfig(t, "")

	_, _, err := buildProviders(cfg, false, ratelimit.NewLimiter(0, nil), &runStores{}, zap.NewNop())
	if !errors.Is(err, errNoTransferSource) {
		t.Errorf("err = %v, want errNoTransferSource", err)
	}
}

func TestBuildProviders_FixturesIgnoreCredentials(t *testing.T) {
	cfg := loadConfig(t, "")

	source, opts, err := buildProviders(cfg, true, ratelimit.NewLimiter(0, nil), &runStores{}, zap.NewNop())
	if err != nil {
		t.Fatalf("buildProviders failed: %v", err)
	}
	if _, ok := source.(*fixtures.Source); !ok {
		t.Errorf("source = %T, want *fixtures.Source", source)
	}
	if opts.Primary == nil {
		t.Error("fixtures provider should serve the primary tier")
	}
}

type failingCloser struct {
	strings.Builder
	closed bool
}

func (f *failingCloser) Close() error {
	f.closed = true
	return errors.New("disk full")
}

func TestRenderAndClose_ReturnsCloseError(t *testing.T) {
	w := &failingCloser{}

	err := renderAndClose(w, "csv", &reporting.Document{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v, want close error", err)
	}
	if !w.closed {
		t.Error("writer was not closed")
	}
	if !strings.HasPrefix(w.String(), "row_id,") {
		t.Errorf("csv header not written: %q", w.String())
	}
}

func TestRenderAndClose_UnknownFormatStillCloses(t *testing.T) {
	w := &failingCloser{}

	err := renderAndClose(w, "xml", &reporting.Document{})
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("err = %v, want unknown format", err)
	}
	if !w.closed {
		t.Error("writer was not closed")
	}
}

func TestWriteOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")

	if err := writeOutput(path, "markdown", &reporting.Document{QuoteCurrency: "EUR"}); err != nil {
		t.Fatalf("writeOutput failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "## Summary") {
		t.Errorf("markdown output missing summary: %s", data)
	}
}
