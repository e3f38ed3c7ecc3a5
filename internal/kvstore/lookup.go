package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
)

// AccountKey is where the ledger account for a card suffix is stored.
func AccountKey(suffix string) string {
	return "accounts/" + suffix
}

// DocumentKey is where the dedup record for a content hash is stored.
func DocumentKey(sha256Hex string) string {
	return "documents/by_hash/" + sha256Hex
}

// OccurrenceKey is where the number of distinct charges seen for one
// account, amount and day is counted.
func OccurrenceKey(account string, amount int64, date civil.Date) string {
	return "occurrences/" + account + "/" + strconv.FormatInt(amount, 10) + "/" + date.String()
}

type accountMapping struct {
	LedgerAccountID string `json:"ledger_account_id"`
}

// ResolveAccount returns the ledger account id for a card suffix.
func (c *Client) ResolveAccount(ctx context.Context, suffix string) (string, error) {
	var m accountMapping
	found, err := c.Get(ctx, AccountKey(suffix), &m)
	if err != nil {
		return "", err
	}
	if !found || m.LedgerAccountID == "" {
		return "", fmt.Errorf("%w: %s", ErrAccountNotMapped, suffix)
	}
	return m.LedgerAccountID, nil
}

// MapAccount registers the ledger account for a card suffix.
func (c *Client) MapAccount(ctx context.Context, suffix, ledgerAccountID string) error {
	return c.Put(ctx, AccountKey(suffix), accountMapping{LedgerAccountID: ledgerAccountID}, 0)
}

// DocumentRecord remembers which job handled a document.
type DocumentRecord struct {
	JobID         string    `json:"job_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ImportID      string    `json:"import_id,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// LookupDocument returns the record for a content hash, or nil if the
// document has not been seen.
func (c *Client) LookupDocument(ctx context.Context, sha256Hex string) (*DocumentRecord, error) {
	var rec DocumentRecord
	found, err := c.Get(ctx, DocumentKey(sha256Hex), &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

// RecordDocument stores the record for a content hash.
func (c *Client) RecordDocument(ctx context.Context, sha256Hex string, rec DocumentRecord, ttl time.Duration) error {
	return c.Put(ctx, DocumentKey(sha256Hex), rec, ttl)
}

// ForgetDocument drops the record for a content hash.
func (c *Client) ForgetDocument(ctx context.Context, sha256Hex string) error {
	return c.Delete(ctx, DocumentKey(sha256Hex))
}

type occurrenceCount struct {
	Count int `json:"count"`
}

// NextOccurrence bumps and returns the counter for one account, amount and
// day. The first charge gets 1. The read and write are not atomic; two
// workers racing on the same key can both get the same number.
func (c *Client) NextOccurrence(ctx context.Context, account string, amount int64, date civil.Date, ttl time.Duration) (int, error) {
	key := OccurrenceKey(account, amount, date)
	var cur occurrenceCount
	if _, err := c.Get(ctx, key, &cur); err != nil {
		return 0, fmt.Errorf("read occurrence: %w", err)
	}
	cur.Count++
	if err := c.Put(ctx, key, cur, ttl); err != nil {
		return 0, fmt.Errorf("write occurrence: %w", err)
	}
	return cur.Count, nil
}
