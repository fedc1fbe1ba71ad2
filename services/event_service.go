// services/event_service.go
package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"bug-bounty-platform/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventService appends and serves the notification feed. Events are written
// in the transaction of the emitting operation, so an aborted operation
// leaves no trace in the feed.
type EventService struct {
	DB *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

// EmitTx appends an event inside the caller's transaction.
func (s *EventService) EmitTx(tx *gorm.DB, ev models.BountyEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	return tx.Create(&ev).Error
}

// UserEvents returns the newest events addressed to identity.
func (s *EventService) UserEvents(identity string, limit int) ([]models.BountyEvent, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var events []models.BountyEvent
	err := s.DB.Where("user_id = ?", identity).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// --- Fiber handlers ---

// HandleUserEvents serves GET /user/events for the authenticated caller.
func (s *EventService) HandleUserEvents(c *fiber.Ctx) error {
	caller := CallerFromCtx(c)
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	events, err := s.UserEvents(caller.ID, limit)
	if err != nil {
		log.Printf("DB Error fetching user events: %v", err)
		return errorResponse(c, err)
	}
	return c.JSON(events)
}

// HandleStreamEvents streams the caller's notifications over SSE.
// Polls the append-only event table and pushes anything newer than the
// cursor; the cursor starts at connect time so only live events flow.
func (s *EventService) HandleStreamEvents(c *fiber.Ctx) error {
	caller := CallerFromCtx(c)
	userID := caller.ID

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		lastSeen := time.Now().UTC()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				var fresh []models.BountyEvent
				err := s.DB.
					Where("user_id = ? AND created_at > ?", userID, lastSeen).
					Order("created_at ASC").
					Find(&fresh).Error
				if err != nil {
					log.Printf("SSE query error for user %s: %v", userID, err)
					continue
				}
				if len(fresh) == 0 {
					continue
				}

				lastSeen = fresh[len(fresh)-1].CreatedAt

				for _, ev := range fresh {
					payload, _ := json.Marshal(ev)
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
