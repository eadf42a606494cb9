// Package audit appends immutable, signed records of every privileged or
// financial action. Entries are never edited; tampering is detectable via
// the HMAC signature computed at write time.
//
// An audit write failure must never block the financial transition that
// produced it: Record logs the failure and retries once asynchronously.
package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Severity escalates for financial reversals, deletions and role changes.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Entry is one immutable audit record.
type Entry struct {
	ID          string          `json:"id"`
	PerformedBy string          `json:"performedBy"`
	Action      string          `json:"action"`
	Category    string          `json:"category"` // contract | payment | referral
	Severity    Severity        `json:"severity"`
	TargetModel string          `json:"targetModel"`
	TargetID    string          `json:"targetId"`
	Description string          `json:"description"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	IP          string          `json:"ip,omitempty"`
	UserAgent   string          `json:"userAgent,omitempty"`
	Signature   string          `json:"signature,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Store persists entries. Purge removes entries older than the retention
// window, except high/critical severity which are kept forever.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// Trail records audit entries with HMAC-SHA256 signatures.
type Trail struct {
	store Store
	key   []byte
	// retryDelay before the single async retry of a failed append.
	retryDelay time.Duration
}

// NewTrail returns a Trail signing with key. An empty key disables
// signing (entries are still recorded).
func NewTrail(store Store, key []byte) *Trail {
	return NewTrailWithRetryDelay(store, key, 5*time.Second)
}

// NewTrailWithRetryDelay overrides the delay before the single async
// retry of a failed append.
func NewTrailWithRetryDelay(store Store, key []byte, retryDelay time.Duration) *Trail {
	return &Trail{store: store, key: key, retryDelay: retryDelay}
}

// Record signs and appends an entry. It never returns an error: a failed
// append is logged to the operational channel and retried once in the
// background.
func (t *Trail) Record(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if len(t.key) > 0 {
		e.Signature = t.sign(&e)
	}

	if err := t.store.Append(ctx, &e); err != nil {
		slog.Error("audit append failed, scheduling retry",
			"action", e.Action, "target", e.TargetID, "err", err)
		go t.retry(e)
	}
}

func (t *Trail) retry(e Entry) {
	time.Sleep(t.retryDelay)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.store.Append(ctx, &e); err != nil {
		slog.Error("audit append retry failed, entry dropped",
			"action", e.Action, "target", e.TargetID, "err", err)
	}
}

// VerifySignature recomputes the entry's signature and compares it to the
// stored one. Returns false for tampered or unsigned entries.
func (t *Trail) VerifySignature(e Entry) bool {
	if len(t.key) == 0 || e.Signature == "" {
		return false
	}
	return hmac.Equal([]byte(t.sign(&e)), []byte(e.Signature))
}

// Purge applies retention cleanup. The store exempts high/critical
// severity entries.
func (t *Trail) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	return t.store.Purge(ctx, olderThan)
}

// sign computes HMAC-SHA256 over the canonical signed fields.
func (t *Trail) sign(e *Entry) string {
	mac := hmac.New(sha256.New, t.key)
	for _, s := range []string{
		e.ID, e.PerformedBy, e.Action, e.Category, string(e.Severity),
		e.TargetModel, e.TargetID, e.Description,
		string(e.Before), string(e.After),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	} {
		mac.Write([]byte(s))
		mac.Write([]byte{0})
	}
	return hex.EncodeToString(mac.Sum(nil))
}
