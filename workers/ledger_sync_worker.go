// workers/ledger_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"bug-bounty-platform/models"
	"bug-bounty-platform/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerSyncClient mirrors account balances from the ledger service into the
// local ledger_account_mirror table. The mirror is a read model only: hunter
// stats responses and the escrow reconciliation sweep read it, the core
// operations never do.
type LedgerSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewLedgerSyncClient(db *gorm.DB) *LedgerSyncClient {
	baseURL := os.Getenv("LEDGER_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("LEDGER_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("BOUNTY_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("BOUNTY_SERVICE_TOKEN environment variable is required for ledger sync")
	}

	return &LedgerSyncClient{
		BaseURL:    baseURL,
		Token:      token,
		DB:         db,
		HTTPClient: utils.HTTPClient,
	}
}

// GetChangedAccounts fetches accounts whose balance changed since the cursor.
func (c *LedgerSyncClient) GetChangedAccounts(ctx context.Context, since time.Time) ([]models.LedgerAccountMirror, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/accounts", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ledger service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ledger service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Accounts []models.LedgerAccountMirror `json:"accounts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode ledger service response: %w", err)
	}

	return response.Accounts, nil
}

// PollLedgerAccounts keeps the mirror fresh until ctx is cancelled.
func PollLedgerAccounts(ctx context.Context, client *LedgerSyncClient, pollInterval time.Duration) {
	log.Println("Starting ledger account polling (DB-backed)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Ledger account polling stopped.")
			return
		case <-ticker.C:
			sweepStart := time.Now().UTC()

			accounts, err := client.GetChangedAccounts(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling ledger accounts: %v", err)
				continue
			}

			count := len(accounts)
			if count == 0 {
				continue
			}

			for i := range accounts {
				if accounts[i].ID == "" {
					accounts[i].ID = uuid.NewString()
				}
				accounts[i].LastSyncedAt = sweepStart
			}

			// Bulk upsert keyed on the ledger account id.
			if err := client.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "account_id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"balance",
						"currency",
						"is_escrow",
						"last_synced_at",
						"updated_at",
					}),
				},
			).Create(&accounts).Error; err != nil {
				log.Printf("❌ Failed to upsert %d account(s) into ledger_account_mirror: %v", count, err)
				// Do NOT advance lastSyncTime on failure — retry same window next tick
				continue
			}

			lastSyncTime = sweepStart
			log.Printf("✅ Upserted %d ledger account(s) into ledger_account_mirror.", count)
		}
	}
}

// GetMirroredAccount looks up a single mirrored account.
func GetMirroredAccount(db *gorm.DB, accountID string) (models.LedgerAccountMirror, bool, error) {
	var account models.LedgerAccountMirror
	if err := db.Where("account_id = ?", accountID).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return account, false, nil
		}
		return account, false, err
	}
	return account, true, nil
}
