// ABOUTME: Session record types, the Store capability, and identifier generation
// ABOUTME: Shared by the in-memory and Redis backends

package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultTTL is how long a session lives after creation or its last touch.
const DefaultTTL = 24 * time.Hour

// idBytes is the entropy of a session identifier.
const idBytes = 32

// ErrNotFound is returned when a session doesn't exist or has expired.
var ErrNotFound = errors.New("session not found")

// Data is the application payload of a session.
type Data struct {
	UserID int64 `json:"user_id"`
}

// Cookie mirrors the attributes of the cookie that carries the identifier.
type Cookie struct {
	Expires  time.Time     `json:"expires"`
	HTTPOnly bool          `json:"http_only"`
	Secure   bool          `json:"secure"`
	SameSite http.SameSite `json:"same_site"`
}

// Record is a server-side session.
type Record struct {
	ID        string    `json:"-"`
	Data      Data      `json:"data"`
	Cookie    Cookie    `json:"cookie"`
	CreatedAt time.Time `json:"created_at"`
	TouchedAt time.Time `json:"touched_at"`
}

// Expired reports whether the record's cookie expiry is at or before now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.Cookie.Expires)
}

// Store manages the lifecycle of session records.
type Store interface {
	Create(ctx context.Context, data Data) (string, error)
	Get(ctx context.Context, id string) (*Record, error)
	Set(ctx context.Context, id string, data Data) error
	Touch(ctx context.Context, id string) error
	Destroy(ctx context.Context, id string) error
	Regenerate(ctx context.Context, id string) (string, error)
	Close() error
}

// Options are shared by all backends.
type Options struct {
	// TTL is the lifetime granted on create and on every touch.
	TTL time.Duration
	// Secure marks records as belonging to a Secure cookie.
	Secure bool
	// Now overrides the clock. Tests inject a fake one.
	Now func() time.Time
	// NewID overrides identifier generation.
	NewID func() (string, error)
}

func (o *Options) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = NewID
	}
}

func (o *Options) newRecord(id string, data Data) *Record {
	now := o.Now()
	return &Record{
		ID:   id,
		Data: data,
		Cookie: Cookie{
			Expires:  now.Add(o.TTL),
			HTTPOnly: true,
			Secure:   o.Secure,
			SameSite: http.SameSiteLaxMode,
		},
		CreatedAt: now,
		TouchedAt: now,
	}
}

// NewID returns a random, URL-safe session identifier.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Fingerprint returns a short, non-reversible tag for an identifier, safe to log.
func Fingerprint(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:4])
}
