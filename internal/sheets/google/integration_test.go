//go:build integration

package google

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"duka/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_AppendLedgerRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" && os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := NewFromEnv(ctx)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	tx := core.Transaction{
		ID:          "it-" + uuid.NewString(),
		Kind:        core.KindCash,
		Amount:      decimal.RequireFromString("1.23"),
		PaymentType: core.PaymentCash,
		Description: "Integration test row",
		CreatedAt:   time.Now(),
	}
	ref, err := client.AppendTransactions(ctx, []core.Transaction{tx})
	if err != nil {
		t.Fatalf("AppendTransactions: %v", err)
	}
	if !strings.Contains(ref, "Ledger") {
		t.Errorf("unexpected ref %q", ref)
	}
	t.Logf("Appended test row at %s", ref)
}
