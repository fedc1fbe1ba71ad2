// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"bug-bounty-platform/models"

	"github.com/go-co-op/gocron/v2"
)

// StartPlatformScheduler runs the periodic sweeps:
//   - every minute, notify creators of active bounties whose deadline passed
//     without a submission (the record itself stays active — expiry only
//     rejects late submissions, it is not a lifecycle transition);
//   - every five minutes, reconcile the escrow invariant against the ledger:
//     the ledger's escrow balance must equal the sum of rewards of all
//     active and submitted bounties. Divergence is logged, never "fixed".
func (s *BountyService) StartPlatformScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(s.notifyExpiredBounties),
	)

	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(s.reconcileEscrow),
	)
}

func (s *BountyService) notifyExpiredBounties() {
	var expired []models.Bounty
	err := s.DB.Where("status = ? AND deadline < ?", models.BountyStatusActive, time.Now()).
		Find(&expired).Error
	if err != nil {
		log.Printf("[Scheduler] DB error sweeping expired bounties: %v", err)
		return
	}

	for _, b := range expired {
		// One notification per bounty, ever.
		var already int64
		s.DB.Model(&models.BountyEvent{}).
			Where("bounty_id = ? AND type = ?", b.ID, models.EventBountyExpired).
			Count(&already)
		if already > 0 {
			continue
		}

		bountyID := b.ID
		if err := s.Events.EmitTx(s.DB, models.BountyEvent{
			Type:     models.EventBountyExpired,
			BountyID: &bountyID,
			UserID:   b.CreatorID,
		}); err != nil {
			log.Printf("[Scheduler] Failed to emit expiry event for bounty %d: %v", b.ID, err)
			continue
		}
		log.Printf("⏰ Bounty #%d passed its deadline without a submission", b.ID)
	}
}

func (s *BountyService) reconcileEscrow() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var escrowed int64
	err := s.DB.Model(&models.Bounty{}).
		Where("status IN ?", []models.BountyStatus{models.BountyStatusActive, models.BountyStatusSubmitted}).
		Select("COALESCE(SUM(reward_amount), 0)").
		Scan(&escrowed).Error
	if err != nil {
		log.Printf("[Scheduler] DB error summing open escrow: %v", err)
		return
	}

	balance, err := s.Ledger.EscrowBalance(ctx)
	if err != nil {
		log.Printf("[Scheduler] Failed to read ledger escrow balance: %v", err)
		return
	}

	if balance != escrowed {
		log.Printf("⚠️ Escrow mismatch: ledger holds %d, open bounties expect %d", balance, escrowed)
		return
	}
	log.Printf("✅ Escrow reconciled: %d held for open bounties", escrowed)
}
