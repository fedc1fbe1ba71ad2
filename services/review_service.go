// services/review_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"bug-bounty-platform/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// reputationBoost maps the assessed severity of an approved finding to the
// reputation delta credited to the hunter.
var reputationBoost = map[models.Severity]int64{
	models.SeverityLow:      10,
	models.SeverityMedium:   20,
	models.SeverityHigh:     30,
	models.SeverityCritical: 50,
}

// ReviewService applies the sponsor's decision: approval splits the escrowed
// reward between hunter and platform owner and credits the hunter's
// reputation; rejection refunds the sponsor in full. Settlement is atomic
// with the status change — the transaction only commits once every ledger
// instruction succeeded, so "approved" is never observable without "paid"
// and no partial payment can survive a failure.
type ReviewService struct {
	DB       *gorm.DB
	Ledger   LedgerClient
	Authz    *Authorizer
	Events   *EventService
	Hunters  *HunterService
	Platform *PlatformService

	opMu *sync.Mutex // shared with BountyService
}

func NewReviewService(db *gorm.DB, ledger LedgerClient, authz *Authorizer, events *EventService, hunters *HunterService, platform *PlatformService, opMu *sync.Mutex) *ReviewService {
	return &ReviewService{
		DB:       db,
		Ledger:   ledger,
		Authz:    authz,
		Events:   events,
		Hunters:  hunters,
		Platform: platform,
		opMu:     opMu,
	}
}

// ReviewSubmission executes the creator's decision on a submitted bounty.
// severity is the creator's assessment and only matters on approval.
func (s *ReviewService) ReviewSubmission(ctx context.Context, caller Caller, bountyID int64, approve bool, severity models.Severity) (*models.Bounty, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	var bounty models.Bounty
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", bountyID).First(&bounty).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := s.Authz.Authorize(OpReviewSubmission, caller, &bounty); err != nil {
			return err
		}
		if bounty.Status != models.BountyStatusSubmitted {
			return ErrInvalidState
		}
		if bounty.HunterID == nil {
			return ErrNoHunterAssigned
		}
		hunterID := *bounty.HunterID

		if approve {
			return s.approveTx(ctx, tx, &bounty, hunterID, severity)
		}
		return s.rejectTx(ctx, tx, &bounty, hunterID)
	})
	if err != nil {
		return nil, err
	}
	return &bounty, nil
}

// approveTx runs the approve path inside the review transaction: severity
// gate, fee split, hunter credit, one settlement instruction, then paid.
func (s *ReviewService) approveTx(ctx context.Context, tx *gorm.DB, bounty *models.Bounty, hunterID string, severity models.Severity) error {
	if !severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, severity)
	}
	if !severity.AtLeast(bounty.MinSeverity) {
		return ErrSeverityTooLow
	}

	cfg, err := s.Platform.GetConfigTx(tx)
	if err != nil {
		return err
	}

	// Integer division truncates toward zero. fee + hunterReward == reward
	// exactly, for every fee percent in [0,10] — this conservation is a hard
	// invariant, so no floating point anywhere near it.
	platformFee := bounty.RewardAmount * cfg.FeePercent / 100
	hunterReward := bounty.RewardAmount - platformFee

	now := time.Now()
	boost := reputationBoost[severity]
	bounty.Status = models.BountyStatusApproved
	bounty.SeverityAssessed = &severity
	bounty.PlatformFee = platformFee
	bounty.HunterReward = hunterReward
	bounty.ReviewedAt = &now

	if err := s.Hunters.ApplyApprovalTx(tx, hunterID, hunterReward, boost); err != nil {
		return err
	}

	// Settlement is one ledger instruction carrying both legs. The rollback
	// here cannot recall a transfer the ledger already executed, so payout and
	// fee must move together or not at all: a failure means no leg executed,
	// and aborting the transaction unwinds the approved status and the hunter
	// credit above, leaving the review retryable without double payment.
	if err := s.Ledger.Settle(ctx, bounty.ID, hunterID, hunterReward, cfg.OwnerID, platformFee); err != nil {
		return fmt.Errorf("%w: settlement: %v", ErrTransferFailed, err)
	}

	bounty.Status = models.BountyStatusPaid
	if err := tx.Save(bounty).Error; err != nil {
		return err
	}

	if err := s.Events.EmitTx(tx, models.BountyEvent{
		Type:     models.EventBountyApproved,
		BountyID: &bounty.ID,
		UserID:   hunterID,
		Amount:   hunterReward,
	}); err != nil {
		return err
	}

	log.Printf("✅ Bounty #%d approved (%s): hunter %s paid %d, platform fee %d",
		bounty.ID, severity, hunterID, hunterReward, platformFee)
	return nil
}

// rejectTx runs the reject path: refund the full escrowed reward to the
// creator. Hunter counters and reputation are untouched.
func (s *ReviewService) rejectTx(ctx context.Context, tx *gorm.DB, bounty *models.Bounty, hunterID string) error {
	if err := s.Ledger.Transfer(ctx, bounty.CreatorID, bounty.ID, bounty.RewardAmount, "bounty refund"); err != nil {
		return fmt.Errorf("%w: sponsor refund: %v", ErrTransferFailed, err)
	}

	now := time.Now()
	bounty.Status = models.BountyStatusRejected
	bounty.ReviewedAt = &now
	if err := tx.Save(bounty).Error; err != nil {
		return err
	}

	if err := s.Events.EmitTx(tx, models.BountyEvent{
		Type:     models.EventBountyRejected,
		BountyID: &bounty.ID,
		UserID:   hunterID,
	}); err != nil {
		return err
	}

	log.Printf("✅ Bounty #%d rejected: %d refunded to creator %s",
		bounty.ID, bounty.RewardAmount, bounty.CreatorID)
	return nil
}

// --- Fiber handlers ---

// HandleReviewSubmission serves POST /bounties/:id/review (creator only).
func (s *ReviewService) HandleReviewSubmission(c *fiber.Ctx) error {
	caller := CallerFromCtx(c)

	bountyID, err := parseBountyID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req struct {
		Approve  *bool  `json:"approve"`
		Severity string `json:"severity"`
	}
	if err := c.BodyParser(&req); err != nil || req.Approve == nil {
		return errorResponse(c, fmt.Errorf("%w: approve is required", ErrInvalidInput))
	}

	var severity models.Severity
	if *req.Approve {
		severity, err = models.ParseSeverity(req.Severity)
		if err != nil {
			return errorResponse(c, fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
	}

	bounty, err := s.ReviewSubmission(c.UserContext(), caller, bountyID, *req.Approve, severity)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "review recorded", "bounty": bounty})
}
