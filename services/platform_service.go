// services/platform_service.go
package services

import (
	"errors"
	"fmt"
	"log"

	"bug-bounty-platform/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PlatformService owns the singleton platform configuration: fee percentage
// and the owner identity fixed at boot.
type PlatformService struct {
	DB    *gorm.DB
	Authz *Authorizer
}

func NewPlatformService(db *gorm.DB, authz *Authorizer) *PlatformService {
	return &PlatformService{DB: db, Authz: authz}
}

// EnsureConfig seeds the config row on first boot. The owner identity is
// written once and never changed by a later boot with a different fee — the
// stored fee stays authoritative after initialization.
func (s *PlatformService) EnsureConfig(ownerID string, feePercent int64) error {
	if ownerID == "" {
		return fmt.Errorf("platform owner identity must not be empty")
	}
	if feePercent < 0 || feePercent > models.MaxFeePercent {
		return fmt.Errorf("initial fee percent %d out of range [0,%d]", feePercent, models.MaxFeePercent)
	}

	var cfg models.PlatformConfig
	err := s.DB.Where("id = ?", models.PlatformConfigID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.PlatformConfig{
			ID:         models.PlatformConfigID,
			OwnerID:    ownerID,
			FeePercent: feePercent,
		}
		if err := s.DB.Create(&cfg).Error; err != nil {
			return err
		}
		log.Printf("✅ Platform config seeded: owner=%s fee=%d%%", ownerID, feePercent)
		return nil
	}
	return err
}

// GetConfigTx loads the config inside the caller's transaction.
func (s *PlatformService) GetConfigTx(tx *gorm.DB) (*models.PlatformConfig, error) {
	var cfg models.PlatformConfig
	if err := tx.Where("id = ?", models.PlatformConfigID).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *PlatformService) GetConfig() (*models.PlatformConfig, error) {
	return s.GetConfigTx(s.DB)
}

// UpdateFee replaces the stored fee percent. Owner-only; fails with
// ErrInvalidInput when the new percent leaves [0,10].
func (s *PlatformService) UpdateFee(caller Caller, newPercent int64) (*models.PlatformConfig, error) {
	if err := s.Authz.Authorize(OpUpdateFee, caller, nil); err != nil {
		return nil, err
	}
	if newPercent < 0 || newPercent > models.MaxFeePercent {
		return nil, fmt.Errorf("%w: fee percent must be within [0,%d]", ErrInvalidInput, models.MaxFeePercent)
	}

	cfg, err := s.GetConfig()
	if err != nil {
		return nil, err
	}
	cfg.FeePercent = newPercent
	if err := s.DB.Save(cfg).Error; err != nil {
		return nil, err
	}
	log.Printf("✅ Platform fee updated to %d%% by owner", newPercent)
	return cfg, nil
}

// --- Fiber handlers ---

// HandleGetConfig serves GET /admin/platform (owner only).
func (s *PlatformService) HandleGetConfig(c *fiber.Ctx) error {
	caller := CallerFromCtx(c)
	if err := s.Authz.Authorize(OpUpdateFee, caller, nil); err != nil {
		return errorResponse(c, err)
	}
	cfg, err := s.GetConfig()
	if err != nil {
		log.Printf("DB Error fetching platform config: %v", err)
		return errorResponse(c, err)
	}
	return c.JSON(cfg)
}

// HandleUpdateFee serves PATCH /admin/platform/fee (owner only).
func (s *PlatformService) HandleUpdateFee(c *fiber.Ctx) error {
	caller := CallerFromCtx(c)

	var req struct {
		FeePercent *int64 `json:"fee_percent"`
	}
	if err := c.BodyParser(&req); err != nil || req.FeePercent == nil {
		return errorResponse(c, fmt.Errorf("%w: fee_percent is required", ErrInvalidInput))
	}

	cfg, err := s.UpdateFee(caller, *req.FeePercent)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "fee updated", "config": cfg})
}
