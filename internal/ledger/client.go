package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/alertledger/internal/notice"
)

// ErrDuplicate is returned when the ledger already holds a transaction
// with the same import id.
var ErrDuplicate = errors.New("duplicate transaction")

// maxPayeeLen is the longest payee name the ledger accepts.
const maxPayeeLen = 200

// Client posts entries to a YNAB-style budgeting ledger.
type Client struct {
	baseURL    string
	token      string
	budgetID   string
	httpClient *http.Client
	Stats      *LatencyStats
	// AutoApprove marks posted transactions as approved.
	AutoApprove bool
}

func NewClient(baseURL, token, budgetID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		budgetID: budgetID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		Stats: NewLatencyStats(time.Hour),
	}
}

type transaction struct {
	AccountID string `json:"account_id"`
	Date      string `json:"date"`
	Amount    int64  `json:"amount"`
	PayeeName string `json:"payee_name"`
	Memo      string `json:"memo,omitempty"`
	Cleared   string `json:"cleared"`
	Approved  bool   `json:"approved"`
	ImportID  string `json:"import_id,omitempty"`
}

type transactionRequest struct {
	Transaction transaction `json:"transaction"`
}

type transactionResponse struct {
	Data struct {
		TransactionIDs     []string `json:"transaction_ids"`
		DuplicateImportIDs []string `json:"duplicate_import_ids"`
	} `json:"data"`
	Error *struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"error"`
}

// ImportID builds the idempotency key the ledger uses to reject replays.
// occurrence distinguishes identical charges on the same day.
func ImportID(e notice.Entry, occurrence int) string {
	if occurrence < 1 {
		occurrence = 1
	}
	return fmt.Sprintf("ALERT:%d:%s:%d", e.Amount, e.PostedDate, occurrence)
}

// PostTransaction creates one uncleared transaction and returns its ledger id.
func (c *Client) PostTransaction(ctx context.Context, accountID string, e notice.Entry, importID string) (string, error) {
	start := time.Now()
	id, err := c.post(ctx, accountID, e, importID)
	c.Stats.Observe(time.Since(start), err)
	return id, err
}

func (c *Client) post(ctx context.Context, accountID string, e notice.Entry, importID string) (string, error) {
	body, err := json.Marshal(transactionRequest{Transaction: transaction{
		AccountID: accountID,
		Date:      e.PostedDate.String(),
		Amount:    e.Amount,
		PayeeName: truncatePayee(e.Description),
		Memo:      "card " + e.Account,
		Cleared:   "uncleared",
		Approved:  c.AutoApprove,
		ImportID:  importID,
	}})
	if err != nil {
		return "", fmt.Errorf("marshal transaction: %w", err)
	}

	url := fmt.Sprintf("%s/budgets/%s/transactions", c.baseURL, c.budgetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ledger api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	case resp.StatusCode == http.StatusConflict:
		return "", fmt.Errorf("%w: import id %s", ErrDuplicate, importID)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return "", fmt.Errorf("ledger api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var out transactionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("ledger error %s: %s", out.Error.Name, out.Error.Detail)
	}
	if len(out.Data.DuplicateImportIDs) > 0 {
		return "", fmt.Errorf("%w: import id %s", ErrDuplicate, importID)
	}
	if len(out.Data.TransactionIDs) == 0 {
		return "", fmt.Errorf("ledger returned no transaction id")
	}
	return out.Data.TransactionIDs[0], nil
}

func truncatePayee(s string) string {
	if utf8.RuneCountInString(s) <= maxPayeeLen {
		return s
	}
	return string([]rune(s)[:maxPayeeLen])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
