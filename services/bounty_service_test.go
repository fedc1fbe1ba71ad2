// services/bounty_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"bug-bounty-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBountyValidation(t *testing.T) {
	env := newTestEnv(t)
	valid := CreateBountyInput{
		Title:        "Find the bug",
		MinSeverity:  models.SeverityLow,
		Deadline:     time.Now().Add(time.Hour),
		RewardAmount: 1000,
	}

	cases := []struct {
		name    string
		mutate  func(in *CreateBountyInput)
		wantErr error
	}{
		{"zero reward", func(in *CreateBountyInput) { in.RewardAmount = 0 }, ErrInvalidAmount},
		{"negative reward", func(in *CreateBountyInput) { in.RewardAmount = -5 }, ErrInvalidAmount},
		{"past deadline", func(in *CreateBountyInput) { in.Deadline = time.Now().Add(-time.Minute) }, ErrInvalidDeadline},
		{"empty title", func(in *CreateBountyInput) { in.Title = "   " }, ErrInvalidInput},
		{"unknown severity", func(in *CreateBountyInput) { in.MinSeverity = "catastrophic" }, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := env.bounties.CreateBounty(context.Background(), Caller{ID: testSponsor}, in)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	// Nothing persisted, nothing escrowed.
	var count int64
	require.NoError(t, env.db.Model(&models.Bounty{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, env.ledger.deposits)
}

func TestCreateBounty(t *testing.T) {
	env := newTestEnv(t)

	bounty, err := env.bounties.CreateBounty(context.Background(), Caller{ID: testSponsor}, CreateBountyInput{
		Title:        "RCE in upload handler",
		Description:  "Anything leading to code execution",
		MinSeverity:  models.SeverityMedium,
		Deadline:     time.Now().Add(48 * time.Hour),
		RewardAmount: 5000,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), bounty.ID)
	assert.Equal(t, "rce-in-upload-handler", bounty.Slug)
	assert.Equal(t, models.BountyStatusActive, bounty.Status)
	assert.Equal(t, testSponsor, bounty.CreatorID)
	assert.Nil(t, bounty.HunterID)

	// Escrow deposit tagged with the new id.
	require.Len(t, env.ledger.deposits, 1)
	assert.Equal(t, ledgerCall{AccountID: testSponsor, BountyID: 1, Amount: 5000}, env.ledger.deposits[0])
	assert.Equal(t, int64(1), env.eventCount(t, models.EventBountyCreated))

	// Ids are monotone.
	second := env.createBounty(t, testSponsor, 100, models.SeverityLow)
	assert.Equal(t, int64(2), second.ID)
}

func TestCreateBountyDepositFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.failDeposit = true

	_, err := env.bounties.CreateBounty(context.Background(), Caller{ID: testSponsor}, CreateBountyInput{
		Title:        "Find the bug",
		MinSeverity:  models.SeverityLow,
		Deadline:     time.Now().Add(time.Hour),
		RewardAmount: 1000,
	})
	assert.ErrorIs(t, err, ErrTransferFailed)

	var count int64
	require.NoError(t, env.db.Model(&models.Bounty{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, env.eventCount(t, models.EventBountyCreated))
}

func TestSubmitBug(t *testing.T) {
	env := newTestEnv(t)
	created := env.createBounty(t, testSponsor, 1000, models.SeverityLow)

	bounty, err := env.bounties.SubmitBug(context.Background(), Caller{ID: testHunter}, created.ID, "SQL injection on /search")
	require.NoError(t, err)

	assert.Equal(t, models.BountyStatusSubmitted, bounty.Status)
	require.NotNil(t, bounty.HunterID)
	assert.Equal(t, testHunter, *bounty.HunterID)
	assert.NotNil(t, bounty.SubmittedAt)
	assert.Equal(t, "SQL injection on /search", bounty.SubmissionDetails)

	// First submission lazily creates the profile at starting reputation.
	profile, err := env.hunters.GetStats(testHunter)
	require.NoError(t, err)
	assert.Equal(t, models.InitialReputation, profile.Reputation)
	assert.Zero(t, profile.TotalBugsFound)
	assert.Equal(t, int64(1), env.eventCount(t, models.EventHunterRegistered))
	assert.Equal(t, int64(1), env.eventCount(t, models.EventBountySubmitted))
}

func TestSubmitBugGates(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unknown bounty", func(t *testing.T) {
		_, err := env.bounties.SubmitBug(context.Background(), Caller{ID: testHunter}, 999, "details")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty details", func(t *testing.T) {
		bounty := env.createBounty(t, testSponsor, 1000, models.SeverityLow)
		_, err := env.bounties.SubmitBug(context.Background(), Caller{ID: testHunter}, bounty.ID, "  ")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("expired", func(t *testing.T) {
		bounty := env.createBounty(t, testSponsor, 1000, models.SeverityLow)
		require.NoError(t, env.db.Model(&models.Bounty{}).Where("id = ?", bounty.ID).
			Update("deadline", time.Now().Add(-time.Hour)).Error)

		_, err := env.bounties.SubmitBug(context.Background(), Caller{ID: testHunter}, bounty.ID, "details")
		assert.ErrorIs(t, err, ErrExpired)
		assert.Equal(t, models.BountyStatusActive, env.reloadBounty(t, bounty.ID).Status)
	})

	t.Run("second submission", func(t *testing.T) {
		bounty := env.createBounty(t, testSponsor, 1000, models.SeverityLow)
		env.submit(t, testHunter, bounty.ID)

		// The record is already submitted, so a second hunter hits the
		// status gate; the first hunter stays assigned.
		_, err := env.bounties.SubmitBug(context.Background(), Caller{ID: "hunter-2"}, bounty.ID, "details")
		assert.ErrorIs(t, err, ErrInvalidState)

		reloaded := env.reloadBounty(t, bounty.ID)
		require.NotNil(t, reloaded.HunterID)
		assert.Equal(t, testHunter, *reloaded.HunterID)
	})
}

func TestEnumerationOrder(t *testing.T) {
	env := newTestEnv(t)

	a1 := env.createBounty(t, "sponsor-a", 100, models.SeverityLow)
	b1 := env.createBounty(t, "sponsor-b", 200, models.SeverityLow)
	a2 := env.createBounty(t, "sponsor-a", 300, models.SeverityLow)
	a3 := env.createBounty(t, "sponsor-a", 400, models.SeverityLow)

	ids, err := env.bounties.CreatorBountyIDs("sponsor-a")
	require.NoError(t, err)
	assert.Equal(t, []int64{a1.ID, a2.ID, a3.ID}, ids)

	env.submit(t, testHunter, a2.ID)
	env.submit(t, testHunter, b1.ID)
	env.submit(t, testHunter, a3.ID)

	subs, err := env.bounties.HunterSubmissionIDs(testHunter)
	require.NoError(t, err)
	assert.Equal(t, []int64{b1.ID, a2.ID, a3.ID}, subs)

	none, err := env.bounties.HunterSubmissionIDs("nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListBountiesFilters(t *testing.T) {
	env := newTestEnv(t)

	env.createBounty(t, testSponsor, 100, models.SeverityLow)
	env.createBounty(t, testSponsor, 200, models.SeverityHigh)
	submitted := env.createBounty(t, testSponsor, 300, models.SeverityCritical)
	env.submit(t, testHunter, submitted.ID)

	active, err := env.bounties.ListBounties(models.BountyStatusActive, "", 20, 0)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	severe, err := env.bounties.ListBounties("", models.SeverityHigh, 20, 0)
	require.NoError(t, err)
	require.Len(t, severe, 2)
	for _, b := range severe {
		assert.True(t, b.MinSeverity.AtLeast(models.SeverityHigh))
	}
}
