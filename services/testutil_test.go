// services/testutil_test.go
package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"bug-bounty-platform/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection, one in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Bounty{},
		&models.HunterProfile{},
		&models.PlatformConfig{},
		&models.BountyEvent{},
		&models.LedgerAccountMirror{},
	))
	return db
}

type ledgerCall struct {
	AccountID string
	BountyID  int64
	Amount    int64
	Memo      string
}

type settlementCall struct {
	BountyID     int64
	HunterID     string
	HunterAmount int64
	OwnerID      string
	FeeAmount    int64
}

// fakeLedger implements LedgerClient in memory. failTransferAt fails the
// n-th transfer (0-based); -1 disables the failure. failSettle rejects
// settlements whole — no leg of a failed settlement executes.
type fakeLedger struct {
	mu sync.Mutex

	deposits    []ledgerCall
	transfers   []ledgerCall
	settlements []settlementCall
	escrow      int64

	failDeposit    bool
	failTransferAt int
	failSettle     bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{failTransferAt: -1}
}

func (f *fakeLedger) Deposit(_ context.Context, accountID string, bountyID int64, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeposit {
		return fmt.Errorf("ledger unavailable")
	}
	f.deposits = append(f.deposits, ledgerCall{AccountID: accountID, BountyID: bountyID, Amount: amount})
	f.escrow += amount
	return nil
}

func (f *fakeLedger) Transfer(_ context.Context, accountID string, bountyID int64, amount int64, memo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTransferAt >= 0 && len(f.transfers) == f.failTransferAt {
		return fmt.Errorf("ledger unavailable")
	}
	f.transfers = append(f.transfers, ledgerCall{AccountID: accountID, BountyID: bountyID, Amount: amount, Memo: memo})
	f.escrow -= amount
	return nil
}

func (f *fakeLedger) Settle(_ context.Context, bountyID int64, hunterID string, hunterAmount int64, ownerID string, feeAmount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSettle {
		return fmt.Errorf("ledger unavailable")
	}
	f.settlements = append(f.settlements, settlementCall{
		BountyID:     bountyID,
		HunterID:     hunterID,
		HunterAmount: hunterAmount,
		OwnerID:      ownerID,
		FeeAmount:    feeAmount,
	})
	f.escrow -= hunterAmount + feeAmount
	return nil
}

// hunterPayoutTotal sums every unit the ledger ever moved to identity.
func (f *fakeLedger) hunterPayoutTotal(identity string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, s := range f.settlements {
		if s.HunterID == identity {
			total += s.HunterAmount
		}
	}
	for _, tr := range f.transfers {
		if tr.AccountID == identity {
			total += tr.Amount
		}
	}
	return total
}

func (f *fakeLedger) EscrowBalance(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.escrow, nil
}

const (
	testOwner   = "owner-1"
	testSponsor = "sponsor-1"
	testHunter  = "hunter-1"
)

type testEnv struct {
	db     *gorm.DB
	ledger *fakeLedger
	opMu   sync.Mutex

	authz    *Authorizer
	events   *EventService
	hunters  *HunterService
	platform *PlatformService
	bounties *BountyService
	reviews  *ReviewService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:     newTestDB(t),
		ledger: newFakeLedger(),
	}
	env.authz = NewAuthorizer(testOwner)
	env.events = NewEventService(env.db)
	env.hunters = NewHunterService(env.db, env.authz, env.events)
	env.platform = NewPlatformService(env.db, env.authz)
	env.bounties = NewBountyService(env.db, env.ledger, env.hunters, env.events, &env.opMu)
	env.reviews = NewReviewService(env.db, env.ledger, env.authz, env.events, env.hunters, env.platform, &env.opMu)

	require.NoError(t, env.platform.EnsureConfig(testOwner, 5))
	return env
}

func (env *testEnv) createBounty(t *testing.T, creator string, reward int64, minSeverity models.Severity) *models.Bounty {
	t.Helper()
	bounty, err := env.bounties.CreateBounty(context.Background(), Caller{ID: creator}, CreateBountyInput{
		Title:        "Find the bug",
		Description:  "Anything reproducible",
		MinSeverity:  minSeverity,
		Deadline:     time.Now().Add(24 * time.Hour),
		RewardAmount: reward,
	})
	require.NoError(t, err)
	return bounty
}

func (env *testEnv) submit(t *testing.T, hunter string, bountyID int64) *models.Bounty {
	t.Helper()
	bounty, err := env.bounties.SubmitBug(context.Background(), Caller{ID: hunter}, bountyID, "XSS found")
	require.NoError(t, err)
	return bounty
}

func (env *testEnv) reloadBounty(t *testing.T, id int64) *models.Bounty {
	t.Helper()
	var bounty models.Bounty
	require.NoError(t, env.db.Where("id = ?", id).First(&bounty).Error)
	return &bounty
}

func (env *testEnv) eventCount(t *testing.T, eventType models.EventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, env.db.Model(&models.BountyEvent{}).Where("type = ?", eventType).Count(&count).Error)
	return count
}
