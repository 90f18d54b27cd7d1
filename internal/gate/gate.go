// Package gate tracks the local SII access grant. One grant slot exists:
// validating another company replaces it, and a grant for a different
// company is ignored rather than cleared.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/storage"

	"go.uber.org/zap"
)

// TTL mirrors the backend's SII session length.
const TTL = 30 * time.Minute

const (
	keyGrantedAt = "sii_granted_at"
	keyCompanyID = "sii_company_id"
)

type Grant struct {
	CompanyID int64
	GrantedAt time.Time
}

func (g Grant) ExpiresAt() time.Time {
	return g.GrantedAt.Add(TTL)
}

type Status struct {
	HasAccess        bool
	RemainingMinutes int
	CompanyID        int64
}

func (s Status) Message() string {
	if s.HasAccess {
		return fmt.Sprintf("Acceso SII activo - %d minutos restantes", s.RemainingMinutes)
	}
	return "Requiere validación de clave SII"
}

type Option func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

type Gate struct {
	mu     sync.Mutex
	kv     storage.KV
	now    func() time.Time
	logger *zap.Logger
	grant  *Grant
}

func New(kv storage.KV, logger *zap.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		kv:     kv,
		now:    time.Now,
		logger: logger.Named("gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load restores a persisted grant. A missing or unreadable grant leaves the
// gate empty.
func (g *Gate) Load(ctx context.Context) error {
	grantedAt, err := g.kv.Get(ctx, keyGrantedAt)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load sii grant: %w", err)
	}
	companyID, err := g.kv.Get(ctx, keyCompanyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load sii grant: %w", err)
	}

	ms, errAt := strconv.ParseInt(grantedAt, 10, 64)
	id, errID := strconv.ParseInt(companyID, 10, 64)
	if errAt != nil || errID != nil || ms <= 0 {
		g.logger.Warn("ignoring unreadable sii grant",
			zap.String("granted_at", grantedAt),
			zap.String("company_id", companyID),
		)
		return nil
	}

	g.mu.Lock()
	g.grant = &Grant{CompanyID: id, GrantedAt: time.UnixMilli(ms)}
	g.mu.Unlock()
	return nil
}

// NeedsValidation is true when there is no grant, the grant has expired, or
// the grant belongs to another company.
func (g *Gate) NeedsValidation(companyID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.needsValidation(companyID, g.now())
}

func (g *Gate) needsValidation(companyID int64, now time.Time) bool {
	needs := g.grant == nil ||
		!g.grant.ExpiresAt().After(now) ||
		g.grant.CompanyID != companyID

	fields := []zap.Field{
		zap.Int64("company_id", companyID),
		zap.Bool("needs_validation", needs),
	}
	if g.grant != nil {
		fields = append(fields,
			zap.Int64("grant_company_id", g.grant.CompanyID),
			zap.Duration("elapsed", now.Sub(g.grant.GrantedAt)),
		)
	}
	g.logger.Debug("sii access check", fields...)

	return needs
}

// MarkValidated records a successful validation for companyID, replacing any
// grant held for another company.
func (g *Gate) MarkValidated(ctx context.Context, companyID int64) error {
	g.mu.Lock()
	grant := Grant{CompanyID: companyID, GrantedAt: g.now()}
	g.grant = &grant
	g.mu.Unlock()

	g.logger.Info("sii access granted",
		zap.Int64("company_id", companyID),
		zap.Time("expires_at", grant.ExpiresAt()),
	)

	if err := g.kv.Set(ctx, keyGrantedAt, strconv.FormatInt(grant.GrantedAt.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("persist sii grant: %w", err)
	}
	if err := g.kv.Set(ctx, keyCompanyID, strconv.FormatInt(companyID, 10)); err != nil {
		return fmt.Errorf("persist sii grant: %w", err)
	}
	return nil
}

// Revoke empties the slot unconditionally.
func (g *Gate) Revoke(ctx context.Context) error {
	g.mu.Lock()
	g.grant = nil
	g.mu.Unlock()

	g.logger.Info("sii access revoked")

	if err := g.kv.Delete(ctx, keyGrantedAt, keyCompanyID); err != nil {
		return fmt.Errorf("clear sii grant: %w", err)
	}
	return nil
}

// RemainingMinutes rounds the remaining validity up to whole minutes.
func (g *Gate) RemainingMinutes(companyID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.remainingMinutes(companyID, g.now())
}

func (g *Gate) remainingMinutes(companyID int64, now time.Time) int {
	if g.needsValidation(companyID, now) {
		return 0
	}
	remaining := g.grant.ExpiresAt().Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 0 {
		return 0
	}
	return minutes
}

func (g *Gate) Status(companyID int64) Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	return Status{
		HasAccess:        !g.needsValidation(companyID, now),
		RemainingMinutes: g.remainingMinutes(companyID, now),
		CompanyID:        companyID,
	}
}

// Current returns the held grant, expired or not.
func (g *Gate) Current() (Grant, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.grant == nil {
		return Grant{}, false
	}
	return *g.grant, true
}
