package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/migrations"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test requires docker")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.DB.Close() })

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))
	require.NoError(t, CheckDatabaseReady(storage))

	return storage
}

type testDataFactory struct {
	storage *Storage
}

func (f *testDataFactory) user(t *testing.T, id int64, referrer *int64) {
	t.Helper()
	created, err := f.storage.RegisterUser(context.Background(), id, "user", referrer)
	require.NoError(t, err)
	require.True(t, created)
}

func (f *testDataFactory) server(t *testing.T, name string, active bool) int64 {
	t.Helper()
	var id int64
	err := f.storage.DB.QueryRow(
		`INSERT INTO servers (name, panel_url, panel_username, panel_password, address, port,
		                      inbound_id, sni, public_key, short_id, is_active)
		 VALUES ($1, 'http://panel', 'admin', 'pass', 'vpn.example.com', 443, 1, 'sni.example.com', 'pbk', 'sid1,sid2', $2)
		 RETURNING id`, name, active).Scan(&id)
	require.NoError(t, err)
	return id
}

func (f *testDataFactory) profile(t *testing.T, userID, serverID int64, clientID string) {
	t.Helper()
	_, err := f.storage.SaveEntitlement(context.Background(), models.Profile{
		UserID:     userID,
		ServerID:   serverID,
		ClientID:   clientID,
		Label:      "label-" + clientID,
		Descriptor: "vless://" + clientID,
		InboundID:  1,
	}, "month_1", 31, time.Now())
	require.NoError(t, err)
}

func TestStorage_Users(t *testing.T) {
	storage := setupTestDatabase(t)
	f := &testDataFactory{storage: storage}
	ctx := context.Background()

	f.user(t, 1, nil)
	referrer := int64(1)
	f.user(t, 2, &referrer)

	unknown := int64(999)
	created, err := storage.RegisterUser(ctx, 3, "user3", &unknown)
	require.NoError(t, err)
	assert.True(t, created)

	again, err := storage.RegisterUser(ctx, 2, "renamed", nil)
	require.NoError(t, err)
	assert.False(t, again)

	u2, err := storage.GetUser(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, u2.ReferrerID)
	assert.Equal(t, int64(1), *u2.ReferrerID)
	assert.Nil(t, u2.SubscriptionExpiry)

	u3, err := storage.GetUser(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, u3.ReferrerID, "unknown referrer is ignored")

	count, err := storage.CountReferrals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = storage.GetUser(ctx, 404)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	assert.ErrorIs(t, storage.CreditMainBalance(ctx, 404, 100), models.ErrUserNotFound)
}

func TestStorage_DebitAndRefund(t *testing.T) {
	storage := setupTestDatabase(t)
	f := &testDataFactory{storage: storage}
	ctx := context.Background()

	f.user(t, 10, nil)
	require.NoError(t, storage.CreditMainBalance(ctx, 10, money.FromFloat(100)))
	require.NoError(t, storage.CreditReferralBalance(ctx, 10, money.FromFloat(50)))

	ok, err := storage.DebitBalances(ctx, 10, money.FromFloat(50), money.FromFloat(80))
	require.NoError(t, err)
	assert.True(t, ok)

	b, err := storage.GetBalances(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.Balances{Main: money.FromFloat(20), Referral: 0}, b)

	ok, err = storage.DebitBalances(ctx, 10, 0, money.FromFloat(21))
	require.NoError(t, err)
	assert.False(t, ok, "balance never goes negative")

	require.NoError(t, storage.RefundBalances(ctx, 10, money.FromFloat(50), money.FromFloat(80)))
	b, err = storage.GetBalances(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, money.FromFloat(150), b.Total())
}

func TestStorage_Trial(t *testing.T) {
	storage := setupTestDatabase(t)
	f := &testDataFactory{storage: storage}
	ctx := context.Background()
	f.user(t, 20, nil)

	ok, err := storage.ClaimTrial(ctx, 20)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = storage.ClaimTrial(ctx, 20)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.ReleaseTrial(ctx, 20))
	ok, err = storage.ClaimTrial(ctx, 20)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStorage_SaveEntitlementExtendsExpiry(t *testing.T) {
	storage := setupTestDatabase(t)
	f := &testDataFactory{storage: storage}
	ctx := context.Background()
	f.user(t, 30, nil)
	serverID := f.server(t, "de-1", true)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := models.Profile{UserID: 30, ServerID: serverID, ClientID: "c1", Label: "l1", Descriptor: "d1", InboundID: 1}

	expiry, err := storage.SaveEntitlement(ctx, p, "month_1", 31, now)
	require.NoError(t, err)
	assert.True(t, expiry.Equal(now.AddDate(0, 0, 31)))

	p.ClientID = "c2"
	expiry, err = storage.SaveEntitlement(ctx, p, "month_3", 93, now)
	require.NoError(t, err)
	assert.True(t, expiry.Equal(now.AddDate(0, 0, 124)), "extension stacks on the current expiry")

	u, err := storage.GetUser(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, "month_3", u.SubscriptionType)

	profiles, err := storage.ListProfilesWithServers(ctx, 30)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "de-1", profiles[0].Server.Name)
	assert.Equal(t, "pass", profiles[0].Server.PanelPassword)

	_, err = storage.SaveEntitlement(ctx, models.Profile{UserID: 404, ServerID: serverID}, "month_1", 31, now)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestStorage_RevokeLocalAndOrphans(t *testing.T) {
	storage := setupTestDatabase(t)
	f := &testDataFactory{storage: storage}
	ctx := context.Background()
	f.user(t, 40, nil)
	serverID := f.server(t, "fi-1", true)
	f.profile(t, 40, serverID, "a")
	f.profile(t, 40, serverID, "b")

	listed, err := storage.ListProfilesWithServers(ctx, 40)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	late, err := storage.RevokeLocal(ctx, 40, []int64{listed[0].ID, listed[1].ID}, []models.Orphan{
		{UserID: 40, ServerID: serverID, ServerName: "fi-1", InboundID: 1, ClientID: "b"},
	})
	require.NoError(t, err)
	assert.Empty(t, late)

	profiles, err := storage.ListProfilesWithServers(ctx, 40)
	require.NoError(t, err)
	assert.Empty(t, profiles)

	u, err := storage.GetUser(ctx, 40)
	require.NoError(t, err)
	assert.Nil(t, u.SubscriptionExpiry)
	assert.Empty(t, u.SubscriptionType)

	orphans, err := storage.ListOrphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "b", orphans[0].ClientID)

	o, srv, err := storage.GetOrphan(ctx, orphans[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "b", o.ClientID)
	assert.Equal(t, "fi-1", srv.Name)

	require.NoError(t, storage.DeleteOrphan(ctx, o.ID))
	assert.ErrorIs(t, storage.DeleteOrphan(ctx, o.ID), models.ErrOrphanNotFound)
	_, _, err = storage.GetOrphan(ctx, o.ID)
	assert.ErrorIs(t, err, models.ErrOrphanNotFound)
}

func TestStorage_RevokeLocalQueuesProfilesIssuedAfterListing(t *testing.T) {
	storage := setupTestDatabase(t)
	f := &testDataFactory{storage: storage}
	ctx := context.Background()
	f.user(t, 41, nil)
	serverID := f.server(t, "nl-1", true)
	f.profile(t, 41, serverID, "early")

	listed, err := storage.ListProfilesWithServers(ctx, 41)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// выдача, завершившаяся между чтением профилей и очисткой
	f.profile(t, 41, serverID, "late")

	late, err := storage.RevokeLocal(ctx, 41, []int64{listed[0].ID}, nil)
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, "late", late[0].ClientID)
	assert.Equal(t, "nl-1", late[0].ServerName)
	assert.NotZero(t, late[0].ID)

	profiles, err := storage.ListProfilesWithServers(ctx, 41)
	require.NoError(t, err)
	assert.Empty(t, profiles)

	orphans, err := storage.ListOrphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "late", orphans[0].ClientID)
}

func TestStorage_ServersAndTariffs(t *testing.T) {
	storage := setupTestDatabase(t)
	f := &testDataFactory{storage: storage}
	ctx := context.Background()

	first := f.server(t, "a", true)
	f.server(t, "b", false)
	third := f.server(t, "c", true)

	servers, err := storage.ListActiveServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, first, servers[0].ID)
	assert.Equal(t, third, servers[1].ID)
	assert.Equal(t, "sid1", servers[0].FirstShortID())

	tariff, err := storage.GetTariff(ctx, "month_1")
	require.NoError(t, err)
	assert.Equal(t, 31, tariff.Days)
	assert.Equal(t, money.FromFloat(130), tariff.Price)

	_, err = storage.GetTariff(ctx, "forever")
	assert.ErrorIs(t, err, models.ErrUnknownTariff)
}

func TestStorage_InvoiceSettlesOnce(t *testing.T) {
	storage := setupTestDatabase(t)
	f := &testDataFactory{storage: storage}
	ctx := context.Background()
	f.user(t, 50, nil)

	require.NoError(t, storage.CreateInvoice(ctx, models.Invoice{
		ID: 42, UserID: 50, TariffKey: "month_1", Amount: 130, Currency: "USDT", Type: models.PaymentSubscription,
	}))
	require.NoError(t, storage.CreateInvoice(ctx, models.Invoice{
		ID: 43, UserID: 50, Amount: 2.5, Currency: "TON", Type: models.PaymentTopUp,
	}))

	inv, err := storage.GetInvoice(ctx, 43)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceWaiting, inv.Status)
	assert.Empty(t, inv.TariffKey)
	assert.InDelta(t, 2.5, inv.Amount, 1e-9)

	var wg sync.WaitGroup
	results := make(chan bool, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := storage.MarkInvoicePaid(ctx, 42)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	settled, err := storage.SettleTopUp(ctx, 43, 50, money.FromFloat(240.5))
	require.NoError(t, err)
	assert.True(t, settled)
	settled, err = storage.SettleTopUp(ctx, 43, 50, money.FromFloat(240.5))
	require.NoError(t, err)
	assert.False(t, settled)

	b, err := storage.GetBalances(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, money.FromFloat(240.5), b.Main)

	_, err = storage.GetInvoice(ctx, 404)
	assert.ErrorIs(t, err, models.ErrInvoiceNotFound)
}

func TestStorage_FindExpiringBetween(t *testing.T) {
	storage := setupTestDatabase(t)
	f := &testDataFactory{storage: storage}
	ctx := context.Background()
	serverID := f.server(t, "x", true)

	now := time.Now().UTC()
	for i, days := range []int{1, 3, 10} {
		id := int64(60 + i)
		f.user(t, id, nil)
		_, err := storage.SaveEntitlement(ctx, models.Profile{UserID: id, ServerID: serverID, ClientID: "c", Label: "l", Descriptor: "d", InboundID: 1},
			"t", days, now.Add(-time.Hour))
		require.NoError(t, err)
	}

	within3, err := storage.FindExpiringBetween(ctx, now, now.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, within3, 2)
	assert.Equal(t, int64(60), within3[0].UserID)
	assert.Equal(t, int64(61), within3[1].UserID)
}

func TestStorage_LedgerJournal(t *testing.T) {
	storage := setupTestDatabase(t)
	f := &testDataFactory{storage: storage}
	ctx := context.Background()
	f.user(t, 60, nil)

	require.NoError(t, storage.CreateInvoice(ctx, models.Invoice{
		ID: 70, UserID: 60, Amount: 2.5, Currency: "TON", Type: models.PaymentTopUp,
	}))
	settled, err := storage.SettleTopUp(ctx, 70, 60, money.FromFloat(200))
	require.NoError(t, err)
	require.True(t, settled)
	require.NoError(t, storage.CreditReferralBalance(ctx, 60, money.FromFloat(13)))
	require.NoError(t, storage.CreditMainBalance(ctx, 60, money.FromFloat(5)))

	ok, err := storage.DebitBalances(ctx, 60, money.FromFloat(13), money.FromFloat(117))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = storage.DebitBalances(ctx, 60, 0, money.FromFloat(1000))
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, storage.RefundBalances(ctx, 60, money.FromFloat(13), money.FromFloat(117)))

	entries, err := storage.ListLedgerEntries(ctx, 60, 10)
	require.NoError(t, err)
	require.Len(t, entries, 5, "failed debit leaves no entry")

	kinds := make([]models.EntryKind, 0, len(entries))
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []models.EntryKind{
		models.EntryRefund, models.EntryPurchase, models.EntryCredit, models.EntryReferralBonus, models.EntryTopUp,
	}, kinds)

	purchase := entries[1]
	assert.Equal(t, -money.FromFloat(117), purchase.MainDelta)
	assert.Equal(t, -money.FromFloat(13), purchase.ReferralDelta)
	require.NotNil(t, entries[4].InvoiceID)
	assert.Equal(t, int64(70), *entries[4].InvoiceID)
	assert.Nil(t, entries[2].InvoiceID)

	var sumMain, sumReferral money.Amount
	for _, e := range entries {
		sumMain += e.MainDelta
		sumReferral += e.ReferralDelta
	}
	b, err := storage.GetBalances(ctx, 60)
	require.NoError(t, err)
	assert.Equal(t, models.Balances{Main: sumMain, Referral: sumReferral}, b)

	latest, err := storage.ListLedgerEntries(ctx, 60, 2)
	require.NoError(t, err)
	assert.Len(t, latest, 2)

	assert.ErrorIs(t, storage.CreditReferralBalance(ctx, 404, 100), models.ErrUserNotFound)
	none, err := storage.ListLedgerEntries(ctx, 404, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStorage_PromoCodes(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()

	created, err := storage.CreatePromoCode(ctx, models.PromoCode{Code: "SPRING", DiscountPercent: 15, MaxUses: 2})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Zero(t, created.UsesCount)

	_, err = storage.CreatePromoCode(ctx, models.PromoCode{Code: "SPRING", DiscountPercent: 50, MaxUses: 1})
	assert.ErrorIs(t, err, models.ErrPromoCodeExists)

	var wg sync.WaitGroup
	claimed := make(chan int, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pct, err := storage.ClaimPromoCode(ctx, "SPRING")
			if err != nil {
				assert.ErrorIs(t, err, models.ErrInvalidPromoCode)
				return
			}
			claimed <- pct
		}()
	}
	wg.Wait()
	close(claimed)

	wins := 0
	for pct := range claimed {
		assert.Equal(t, 15, pct)
		wins++
	}
	assert.Equal(t, 2, wins, "uses never exceed max_uses")

	require.NoError(t, storage.ReleasePromoCode(ctx, "SPRING"))
	pct, err := storage.ClaimPromoCode(ctx, "SPRING")
	require.NoError(t, err)
	assert.Equal(t, 15, pct)

	_, err = storage.ClaimPromoCode(ctx, "UNKNOWN")
	assert.ErrorIs(t, err, models.ErrInvalidPromoCode)

	codes, err := storage.ListPromoCodes(ctx)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, 2, codes[0].UsesCount)
}
