// services/hunter_service.go
package services

import (
	"errors"
	"log"
	"strings"

	"bug-bounty-platform/models"
	"bug-bounty-platform/workers"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HunterService is the reputation & hunter registry: a data holder with two
// mutators (lazy create on first submission, update on approval) plus
// read-only queries and the owner-only verification switch.
type HunterService struct {
	DB     *gorm.DB
	Authz  *Authorizer
	Events *EventService
}

func NewHunterService(db *gorm.DB, authz *Authorizer, events *EventService) *HunterService {
	return &HunterService{DB: db, Authz: authz, Events: events}
}

// EnsureProfileTx lazily creates the hunter profile for identity inside the
// caller's transaction. This is the documented side effect of the first
// submission — profiles are never created any other way. Returns the profile
// and whether it was created by this call.
func (s *HunterService) EnsureProfileTx(tx *gorm.DB, identity string) (*models.HunterProfile, bool, error) {
	var profile models.HunterProfile
	err := tx.Where("id = ?", identity).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.HunterProfile{
			ID:         identity,
			Reputation: models.InitialReputation,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return nil, false, err
		}
		if err := s.Events.EmitTx(tx, models.BountyEvent{
			Type:   models.EventHunterRegistered,
			UserID: identity,
		}); err != nil {
			return nil, false, err
		}
		return &profile, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &profile, false, nil
}

// ApplyApprovalTx records an approved finding on the hunter profile:
// counters and reputation only ever move up, and only through here.
func (s *HunterService) ApplyApprovalTx(tx *gorm.DB, identity string, hunterReward, reputationBoost int64) error {
	var profile models.HunterProfile
	if err := tx.Where("id = ?", identity).First(&profile).Error; err != nil {
		return err
	}
	profile.TotalBugsFound++
	profile.TotalEarned += hunterReward
	profile.Reputation += reputationBoost
	return tx.Save(&profile).Error
}

// GetStats returns the profile for an identity. Unknown identities get a
// zero-valued profile back — a hunter does not exist until their first
// submission, but stats reads never fail.
func (s *HunterService) GetStats(identity string) (*models.HunterProfile, error) {
	var profile models.HunterProfile
	err := s.DB.Where("id = ?", identity).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.HunterProfile{ID: identity}, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Verify marks a hunter profile as verified. Owner-only; fails with
// ErrNotFound if the identity never submitted. Idempotent — there is no
// un-verification path.
func (s *HunterService) Verify(caller Caller, identity string) (*models.HunterProfile, error) {
	if err := s.Authz.Authorize(OpVerifyHunter, caller, nil); err != nil {
		return nil, err
	}

	var profile models.HunterProfile
	err := s.DB.Where("id = ?", identity).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !profile.Verified {
		profile.Verified = true
		if err := s.DB.Save(&profile).Error; err != nil {
			return nil, err
		}
		log.Printf("✅ Hunter %s verified by platform owner", identity)
	}
	return &profile, nil
}

// --- Fiber handlers ---

// HandleGetHunterStats serves GET /hunters/:id, enriched with the mirrored
// ledger balance when the sync worker has one.
func (s *HunterService) HandleGetHunterStats(c *fiber.Ctx) error {
	identity := strings.TrimSpace(c.Params("id"))
	if identity == "" {
		return errorResponse(c, ErrInvalidInput)
	}

	profile, err := s.GetStats(identity)
	if err != nil {
		log.Printf("DB Error fetching hunter stats: %v", err)
		return errorResponse(c, err)
	}

	response := fiber.Map{
		"id":               profile.ID,
		"reputation":       profile.Reputation,
		"total_bugs_found": profile.TotalBugsFound,
		"total_earned":     profile.TotalEarned,
		"verified":         profile.Verified,
	}

	if mirror, found, err := workers.GetMirroredAccount(s.DB, identity); err == nil && found {
		response["ledger_balance"] = mirror.Balance
		response["ledger_synced_at"] = mirror.LastSyncedAt
	}

	return c.JSON(response)
}

// HandleVerifyHunter serves POST /admin/hunters/:id/verify (owner only).
func (s *HunterService) HandleVerifyHunter(c *fiber.Ctx) error {
	caller := CallerFromCtx(c)
	identity := strings.TrimSpace(c.Params("id"))
	if identity == "" {
		return errorResponse(c, ErrInvalidInput)
	}

	profile, err := s.Verify(caller, identity)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "hunter verified", "hunter": profile})
}
