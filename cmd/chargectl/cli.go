package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-billing/internal/adjustment"
	"github.com/odyssey-erp/odyssey-billing/internal/platform/billingapi"
)

type cliConfig struct {
	BillingAPIURL     string        `envconfig:"BILLING_API_URL"`
	BillingAPITimeout time.Duration `envconfig:"BILLING_API_TIMEOUT" default:"30s"`
}

type adjustmentOutput struct {
	ID            string     `json:"id,omitempty"`
	AmountInCents int        `json:"amount_in_cents"`
	Amount        string     `json:"amount"`
	Quantity      int        `json:"quantity"`
	Currency      string     `json:"currency"`
	Description   string     `json:"description"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
}

// run posts one charge, or lists an account's adjustments with -list, and
// returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cfg cliConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(stderr, "chargectl: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("chargectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiURL := fs.String("api", cfg.BillingAPIURL, "versioned billing API base URL")
	account := fs.String("account", "", "account code to charge")
	amount := fs.Int("amount", 0, "unit amount in cents, negative for a credit")
	quantity := fs.Int("quantity", adjustment.DefaultQuantity, "unit quantity")
	description := fs.String("description", "", "invoice description")
	list := fs.Bool("list", false, "list the account's adjustments instead of charging")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *apiURL == "" || *account == "" {
		fmt.Fprintln(stderr, "chargectl: -api (or BILLING_API_URL) and -account are required")
		return 2
	}

	client := billingapi.NewClient(billingapi.Options{BaseURL: *apiURL, Timeout: cfg.BillingAPITimeout})

	var items []adjustment.Adjustment
	if *list {
		found, err := adjustment.ListForAccount(ctx, client, *account)
		if err != nil {
			fmt.Fprintf(stderr, "chargectl: %v\n", err)
			return 1
		}
		items = found
	} else {
		adj, err := adjustment.CreateCharge(ctx, client, *account, *amount, *quantity, *description)
		if err != nil {
			fmt.Fprintf(stderr, "chargectl: %v\n", err)
			return 1
		}
		items = []adjustment.Adjustment{adj}
	}

	if *asJSON {
		out := make([]adjustmentOutput, 0, len(items))
		for _, adj := range items {
			out = append(out, toOutput(adj))
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(stderr, "chargectl: %v\n", err)
			return 1
		}
		return 0
	}
	for _, adj := range items {
		o := toOutput(adj)
		fmt.Fprintf(stdout, "%s\t%s %s x%d\t%s\n", adj, o.Amount, o.Currency, o.Quantity, o.Description)
	}
	return 0
}

func toOutput(adj adjustment.Adjustment) adjustmentOutput {
	id, _ := adj.ID()
	o := adjustmentOutput{
		ID:            id,
		AmountInCents: adj.AmountInCents(),
		Amount:        decimal.New(int64(adj.AmountInCents()), -2).StringFixed(2),
		Quantity:      adj.Quantity(),
		Currency:      adj.Currency(),
		Description:   adj.Description(),
	}
	if t, ok := adj.StartDate(); ok {
		o.StartDate = &t
	}
	if t, ok := adj.EndDate(); ok {
		o.EndDate = &t
	}
	return o
}
