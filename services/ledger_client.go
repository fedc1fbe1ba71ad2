// services/ledger_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// LedgerClient is the value-transfer collaborator. The core only issues
// instructions; the ledger holds the money. Calls are made inside the gorm
// transaction of the emitting operation, so a ledger error aborts the state
// change and a state error means the instruction was never acknowledged as
// part of a committed operation.
type LedgerClient interface {
	// Deposit moves amount from the sponsor account into escrow for bountyID.
	Deposit(ctx context.Context, accountID string, bountyID int64, amount int64) error
	// Transfer moves amount out of the escrow for bountyID to accountID.
	Transfer(ctx context.Context, accountID string, bountyID int64, amount int64, memo string) error
	// Settle releases the escrow for bountyID as one instruction: the hunter
	// payout and the platform fee move together or not at all. A settlement is
	// all-or-nothing on the ledger side, so a failure leaves no leg executed
	// and the operation can be retried without double-paying anyone.
	Settle(ctx context.Context, bountyID int64, hunterID string, hunterAmount int64, ownerID string, feeAmount int64) error
	// EscrowBalance returns the total value currently held in escrow.
	EscrowBalance(ctx context.Context) (int64, error)
}

// HTTPLedgerClient talks to the ledger service over its internal HTTP API,
// authenticated with the shared service token.
type HTTPLedgerClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewHTTPLedgerClient(baseURL, token string) *HTTPLedgerClient {
	return &HTTPLedgerClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type ledgerInstruction struct {
	AccountID string `json:"account_id"`
	BountyID  int64  `json:"bounty_id"`
	Amount    int64  `json:"amount"`
	Memo      string `json:"memo,omitempty"`
}

func (c *HTTPLedgerClient) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode ledger instruction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call ledger service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("❌ Ledger %s returned %d: %s", path, resp.StatusCode, string(respBody))
		return fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPLedgerClient) Deposit(ctx context.Context, accountID string, bountyID int64, amount int64) error {
	return c.post(ctx, "/api/v1/escrow/deposits", ledgerInstruction{
		AccountID: accountID,
		BountyID:  bountyID,
		Amount:    amount,
	})
}

func (c *HTTPLedgerClient) Transfer(ctx context.Context, accountID string, bountyID int64, amount int64, memo string) error {
	return c.post(ctx, "/api/v1/escrow/transfers", ledgerInstruction{
		AccountID: accountID,
		BountyID:  bountyID,
		Amount:    amount,
		Memo:      memo,
	})
}

type ledgerSettlementLeg struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	Memo      string `json:"memo,omitempty"`
}

type ledgerSettlement struct {
	BountyID int64                 `json:"bounty_id"`
	Legs     []ledgerSettlementLeg `json:"legs"`
}

func (c *HTTPLedgerClient) Settle(ctx context.Context, bountyID int64, hunterID string, hunterAmount int64, ownerID string, feeAmount int64) error {
	legs := []ledgerSettlementLeg{
		{AccountID: hunterID, Amount: hunterAmount, Memo: "bounty reward"},
	}
	if feeAmount > 0 {
		legs = append(legs, ledgerSettlementLeg{AccountID: ownerID, Amount: feeAmount, Memo: "platform fee"})
	}
	return c.post(ctx, "/api/v1/escrow/settlements", ledgerSettlement{
		BountyID: bountyID,
		Legs:     legs,
	})
}

func (c *HTTPLedgerClient) EscrowBalance(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/api/v1/escrow/balance", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create ledger request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call ledger service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("ledger balance returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode ledger balance: %w", err)
	}
	return out.Balance, nil
}
