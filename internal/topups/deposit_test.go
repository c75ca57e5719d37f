package topups

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthoasis/wallet-backend/internal/doctors"
	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/internal/settlement"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	"github.com/healthoasis/wallet-backend/pkg/config"
	"github.com/healthoasis/wallet-backend/pkg/db/dbtest"
	"github.com/healthoasis/wallet-backend/pkg/enums"
)

func TestAddMoneyTwiceCreditsStoredWallet(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()

	records := ledger.NewRepository(client.DB())
	ledgerSvc, err := ledger.NewService(records)
	require.NoError(t, err)
	resolver, err := doctors.NewResolver(doctors.ResolverParams{
		Repository:     doctors.NewRepository(client.DB()),
		Policy:         enums.DoctorFallbackPolicyHolding,
		HoldingAccount: "unassigned",
	})
	require.NoError(t, err)
	store := wallet.NewStore(client.DB(), "1")
	deposits, err := settlement.NewService(settlement.ServiceParams{
		TxRunner: client,
		Store:    store,
		Ledger:   ledgerSvc,
		Doctors:  resolver,
		Config: config.WalletConfig{
			CommissionRate: decimal.RequireFromString("0.30"),
			VideoCallFee:   decimal.NewFromInt(500),
		},
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Gateway:   &fakeGateway{},
		Deposits:  deposits,
		Converter: stubConverter{rate: decimal.RequireFromString("83.25")},
		ClientURL: "http://localhost:3000",
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := svc.AddMoney(ctx, AddMoneyInput{Email: "fresh@x.com", Amount: decimal.NewFromInt(100), Currency: enums.CurrencyINR})
		require.NoError(t, err)
	}

	account, err := store.Get(ctx, wallet.Patient("fresh@x.com"))
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(200)), "balance %s", account.Balance)

	credits, err := records.ListCreditsByReceiver(ctx, ledger.Party{Type: enums.PartyTypePatient, ID: "fresh@x.com"})
	require.NoError(t, err)
	require.Len(t, credits, 2)
	for _, record := range credits {
		assert.True(t, record.Amount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, enums.TransactionTypeCredit, record.Type)
	}
	assert.NotEqual(t, credits[0].ID, credits[1].ID)
}
