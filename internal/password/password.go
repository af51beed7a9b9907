// ABOUTME: Password codec that hashes with scrypt and verifies native or legacy bcrypt credentials
// ABOUTME: Credential format is detected from its prefix; KDF work is bounded by a semaphore

package password

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/2389/timecard/internal/metrics"
)

// LegacyPrefix marks credentials produced by the legacy bcrypt tooling
// ($2a$, $2b$, $2y$ variants).
const LegacyPrefix = "$2"

// ErrMalformed is returned by Check when a stored credential cannot be parsed.
var ErrMalformed = errors.New("malformed stored credential")

// Kind identifies the format of a stored credential.
type Kind int

const (
	KindUnknown Kind = iota
	KindNative
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Detect classifies a stored credential by prefix alone.
// Anything that is not legacy is handed to the native parser.
func Detect(stored string) Kind {
	switch {
	case stored == "":
		return KindUnknown
	case strings.HasPrefix(stored, LegacyPrefix):
		return KindLegacy
	default:
		return KindNative
	}
}

// verifier checks a plaintext against one credential format.
type verifier interface {
	verify(plaintext, stored string) (bool, error)
}

// Codec hashes new passwords and verifies supplied passwords against stored credentials.
// It is safe for concurrent use.
type Codec struct {
	params    Params
	sem       *semaphore.Weighted
	logger    *slog.Logger
	verifiers map[Kind]verifier
}

// Option configures a Codec.
type Option func(*Codec)

// WithParams overrides the scrypt parameters. Tests use this to lower the cost.
func WithParams(p Params) Option {
	return func(c *Codec) { c.params = p }
}

// WithConcurrency bounds the number of KDF computations running at once.
func WithConcurrency(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLogger sets the logger used for data-integrity warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCodec creates a Codec with DefaultParams and one KDF slot per CPU.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		params: DefaultParams,
		sem:    semaphore.NewWeighted(int64(runtime.NumCPU())),
		logger: slog.Default().With("component", "password"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.verifiers = map[Kind]verifier{
		KindNative: nativeVerifier{params: c.params},
		KindLegacy: legacyVerifier{},
	}
	return c
}

// Hash derives a native credential for plaintext using a fresh random salt.
// The only failures are entropy exhaustion and context cancellation while
// waiting for a KDF slot.
func (c *Codec) Hash(ctx context.Context, plaintext string) (string, error) {
	var out string
	err := c.run(ctx, KindNative, func() error {
		var err error
		out, err = hashNative(c.params, plaintext)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return out, nil
}

// Check reports whether plaintext matches stored. A malformed stored credential
// yields false and an error wrapping ErrMalformed; a plain mismatch yields
// false and nil.
func (c *Codec) Check(ctx context.Context, plaintext, stored string) (bool, error) {
	kind := Detect(stored)
	v, ok := c.verifiers[kind]
	if !ok {
		return false, fmt.Errorf("%w: empty credential", ErrMalformed)
	}

	var match bool
	err := c.run(ctx, kind, func() error {
		var err error
		match, err = v.verify(plaintext, stored)
		return err
	})
	if err != nil {
		return false, err
	}
	return match, nil
}

// Verify is Check with every failure folded into false. Malformed credentials
// are logged as data-integrity warnings, other failures as errors.
func (c *Codec) Verify(ctx context.Context, plaintext, stored string) bool {
	ok, err := c.Check(ctx, plaintext, stored)
	switch {
	case err == nil:
		return ok
	case errors.Is(err, ErrMalformed):
		c.logger.Warn("stored credential is malformed", "kind", Detect(stored).String(), "error", err)
	default:
		c.logger.Error("password verification failed", "kind", Detect(stored).String(), "error", err)
	}
	return false
}

// run executes fn while holding a KDF slot and records its duration.
func (c *Codec) run(ctx context.Context, kind Kind, fn func() error) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for kdf slot: %w", err)
	}
	defer c.sem.Release(1)

	start := time.Now()
	err := fn()
	metrics.KDFDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	return err
}
