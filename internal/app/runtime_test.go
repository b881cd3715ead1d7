package app_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-billing/internal/app"
	_ "github.com/odyssey-erp/odyssey-billing/testing"
)

func TestTestModeEnabledByHarness(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())

	t.Setenv(app.TestModeEnv, "0")
	app.RefreshTestMode()
	require.False(t, app.InTestMode())

	t.Setenv(app.TestModeEnv, "1")
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
}

func TestHarnessProvidesBillingAPIURL(t *testing.T) {
	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.BillingAPIURL)
}
