// services/bounty_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"bug-bounty-platform/models"
	"bug-bounty-platform/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// BountyService owns the bounty lifecycle: creation with escrow-in, the
// single-submission gate, and the enumeration queries. Reviews live in
// ReviewService; both serialize their mutations through the shared opMu so
// operations execute in a total order against the record set.
type BountyService struct {
	DB      *gorm.DB
	Ledger  LedgerClient
	Hunters *HunterService
	Events  *EventService

	opMu *sync.Mutex // single-writer discipline over all mutating operations
}

func NewBountyService(db *gorm.DB, ledger LedgerClient, hunters *HunterService, events *EventService, opMu *sync.Mutex) *BountyService {
	return &BountyService{
		DB:      db,
		Ledger:  ledger,
		Hunters: hunters,
		Events:  events,
		opMu:    opMu,
	}
}

// CreateBountyInput carries the sponsor's request. RewardAmount is in the
// smallest ledger unit and is escrowed at creation time.
type CreateBountyInput struct {
	Title        string
	Description  string
	MinSeverity  models.Severity
	Deadline     time.Time
	RewardAmount int64
}

// CreateBounty validates the request, escrows the reward and stores the new
// active record. The ledger deposit runs inside the same transaction as the
// insert: if the deposit fails the record is rolled back, if the commit fails
// the sponsor keeps their funds instruction unacknowledged. Retrying is NOT
// idempotent — a retry creates a second bounty.
func (s *BountyService) CreateBounty(ctx context.Context, caller Caller, in CreateBountyInput) (*models.Bounty, error) {
	if in.RewardAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !in.Deadline.After(time.Now()) {
		return nil, ErrInvalidDeadline
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	}
	if !in.MinSeverity.Valid() {
		return nil, fmt.Errorf("%w: unknown minimum severity %q", ErrInvalidInput, in.MinSeverity)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	bounty := models.Bounty{
		Slug:         slug.Make(in.Title),
		CreatorID:    caller.ID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		MinSeverity:  in.MinSeverity,
		Status:       models.BountyStatusActive,
		RewardAmount: in.RewardAmount,
		Deadline:     in.Deadline,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&bounty).Error; err != nil {
			return err
		}
		// Escrow-in, atomic with the insert. The bounty id is allocated by
		// the insert above, so the ledger can tag the escrow entry with it.
		if err := s.Ledger.Deposit(ctx, caller.ID, bounty.ID, bounty.RewardAmount); err != nil {
			return fmt.Errorf("%w: escrow deposit: %v", ErrTransferFailed, err)
		}
		return s.Events.EmitTx(tx, models.BountyEvent{
			Type:     models.EventBountyCreated,
			BountyID: &bounty.ID,
			UserID:   bounty.CreatorID,
			Amount:   bounty.RewardAmount,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Bounty #%d created by %s (reward %d, min severity %s)",
		bounty.ID, bounty.CreatorID, bounty.RewardAmount, bounty.MinSeverity)
	return &bounty, nil
}

// SubmitBug records the one and only submission for a bounty. The assignment
// check is the exclusivity gate — the platform allows no resubmission or
// replacement. Lazily creating the hunter profile is an explicit first step
// of this operation, not a hidden constructor.
func (s *BountyService) SubmitBug(ctx context.Context, caller Caller, bountyID int64, details string) (*models.Bounty, error) {
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
		if bounty.Status != models.BountyStatusActive {
			return ErrInvalidState
		}
		if time.Now().After(bounty.Deadline) {
			return ErrExpired
		}
		if strings.TrimSpace(details) == "" {
			return fmt.Errorf("%w: submission details must not be empty", ErrInvalidInput)
		}
		if bounty.HunterID != nil {
			return ErrAlreadySubmitted
		}

		// Side effect: first-time hunters get a profile with the starting
		// reputation (and a hunter_registered event) before anything else.
		if _, _, err := s.Hunters.EnsureProfileTx(tx, caller.ID); err != nil {
			return err
		}

		now := time.Now()
		hunterID := caller.ID
		bounty.Status = models.BountyStatusSubmitted
		bounty.HunterID = &hunterID
		bounty.SubmissionDetails = details
		bounty.SubmittedAt = &now
		if err := tx.Save(&bounty).Error; err != nil {
			return err
		}

		return s.Events.EmitTx(tx, models.BountyEvent{
			Type:     models.EventBountySubmitted,
			BountyID: &bounty.ID,
			UserID:   hunterID,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Bounty #%d received submission from hunter %s", bounty.ID, caller.ID)
	return &bounty, nil
}

// GetBounty returns a single record by id.
func (s *BountyService) GetBounty(bountyID int64) (*models.Bounty, error) {
	var bounty models.Bounty
	if err := s.DB.Where("id = ?", bountyID).First(&bounty).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bounty, nil
}

// CreatorBountyIDs enumerates the ids created by an identity, in insertion
// order. Ids are monotone, so ordering by id is creation order.
func (s *BountyService) CreatorBountyIDs(identity string) ([]int64, error) {
	var ids []int64
	err := s.DB.Model(&models.Bounty{}).
		Where("creator_id = ?", identity).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// HunterSubmissionIDs enumerates the ids an identity submitted to, in
// insertion order.
func (s *BountyService) HunterSubmissionIDs(identity string) ([]int64, error) {
	var ids []int64
	err := s.DB.Model(&models.Bounty{}).
		Where("hunter_id = ?", identity).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// ListBounties returns bounties filtered by status and minimum severity.
func (s *BountyService) ListBounties(status models.BountyStatus, minSeverity models.Severity, limit, offset int) ([]models.Bounty, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := s.DB.Model(&models.Bounty{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var bounties []models.Bounty
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&bounties).Error; err != nil {
		return nil, err
	}

	// Severity ordering lives in code, not in the varchar column.
	if minSeverity != "" && minSeverity.Valid() {
		filtered := bounties[:0]
		for _, b := range bounties {
			if b.MinSeverity.AtLeast(minSeverity) {
				filtered = append(filtered, b)
			}
		}
		bounties = filtered
	}
	return bounties, nil
}

// --- Fiber handlers ---

// HandleCreateBounty serves POST /bounties.
func (s *BountyService) HandleCreateBounty(c *fiber.Ctx) error {
	caller := CallerFromCtx(c)

	var req struct {
		Title        string    `json:"title"`
		Description  string    `json:"description"`
		MinSeverity  string    `json:"min_severity"`
		Deadline     time.Time `json:"deadline"`
		RewardAmount int64     `json:"reward_amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fmt.Errorf("%w: invalid request body", ErrInvalidInput))
	}

	minSeverity, err := models.ParseSeverity(req.MinSeverity)
	if err != nil {
		return errorResponse(c, fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}

	bounty, err := s.CreateBounty(c.UserContext(), caller, CreateBountyInput{
		Title:        req.Title,
		Description:  req.Description,
		MinSeverity:  minSeverity,
		Deadline:     req.Deadline,
		RewardAmount: req.RewardAmount,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(bounty)
}

// HandleSubmitBug serves POST /bounties/:id/submissions.
func (s *BountyService) HandleSubmitBug(c *fiber.Ctx) error {
	caller := CallerFromCtx(c)

	bountyID, err := parseBountyID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req struct {
		SubmissionDetails string `json:"submission_details"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fmt.Errorf("%w: invalid request body", ErrInvalidInput))
	}

	bounty, err := s.SubmitBug(c.UserContext(), caller, bountyID, req.SubmissionDetails)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "submission recorded", "bounty": bounty})
}

// HandleGetBounty serves GET /bounties/:id.
func (s *BountyService) HandleGetBounty(c *fiber.Ctx) error {
	bountyID, err := parseBountyID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	bounty, err := s.GetBounty(bountyID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(bounty)
}

// HandleListBounties serves GET /bounties.
func (s *BountyService) HandleListBounties(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	status := models.BountyStatus(strings.ToLower(c.Query("status")))
	var minSeverity models.Severity
	if raw := c.Query("min_severity"); raw != "" {
		parsed, err := models.ParseSeverity(raw)
		if err != nil {
			return errorResponse(c, fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		minSeverity = parsed
	}

	bounties, err := s.ListBounties(status, minSeverity, limit, offset)
	if err != nil {
		log.Printf("DB Error listing bounties: %v", err)
		return errorResponse(c, err)
	}
	return c.JSON(bounties)
}

// HandleCreatorBounties serves GET /creators/:id/bounties.
func (s *BountyService) HandleCreatorBounties(c *fiber.Ctx) error {
	identity := strings.TrimSpace(c.Params("id"))
	if identity == "" {
		return errorResponse(c, ErrInvalidInput)
	}
	ids, err := s.CreatorBountyIDs(identity)
	if err != nil {
		log.Printf("DB Error fetching creator bounties: %v", err)
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"creator_id": identity, "bounty_ids": ids})
}

// HandleHunterSubmissions serves GET /hunters/:id/submissions.
func (s *BountyService) HandleHunterSubmissions(c *fiber.Ctx) error {
	identity := strings.TrimSpace(c.Params("id"))
	if identity == "" {
		return errorResponse(c, ErrInvalidInput)
	}
	ids, err := s.HunterSubmissionIDs(identity)
	if err != nil {
		log.Printf("DB Error fetching hunter submissions: %v", err)
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"hunter_id": identity, "bounty_ids": ids})
}

// HandleUploadAttachment serves POST /attachments: proof-of-concept files
// hunters reference from their submission details. Small files only — the
// submission payload itself stays free text.
func (s *BountyService) HandleUploadAttachment(c *fiber.Ctx) error {
	file, err := c.FormFile("attachment")
	if err != nil {
		return errorResponse(c, fmt.Errorf("%w: attachment file is required", ErrInvalidInput))
	}
	if file.Size > 25*1024*1024 { // 25MB
		return errorResponse(c, fmt.Errorf("%w: attachment too large (max 25MB)", ErrInvalidInput))
	}

	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = ".bin"
	}
	key := "attachments/" + uuid.NewString() + ext

	if utils.ObjectStorageConfigured() {
		url, err := utils.UploadFileToR2(file, key)
		if err != nil {
			log.Printf("❌ Failed to upload attachment to R2: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to store attachment", "code": "INTERNAL",
			})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
	}

	// Local fallback when object storage is not configured.
	localPath := utils.GetUploadPath(key)
	if err := utils.SaveFile(file, localPath); err != nil {
		log.Printf("❌ Failed to save attachment locally: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to store attachment", "code": "INTERNAL",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": "/" + localPath})
}

func parseBountyID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid bounty id", ErrInvalidInput)
	}
	return id, nil
}
