package gate

import (
	"context"
	"testing"
	"time"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGate(t *testing.T) (*Gate, *fakeClock, *storage.Memory) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	kv := storage.NewMemory()
	return New(kv, zap.NewNop(), WithClock(clock.Now)), clock, kv
}

func TestGate_NoGrantNeedsValidation(t *testing.T) {
	g, _, _ := newTestGate(t)

	assert.True(t, g.NeedsValidation(5))
	assert.Equal(t, 0, g.RemainingMinutes(5))
	_, ok := g.Current()
	assert.False(t, ok)
}

func TestGate_MarkValidated(t *testing.T) {
	g, _, _ := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, g.MarkValidated(ctx, 5))

	assert.False(t, g.NeedsValidation(5))
	assert.True(t, g.NeedsValidation(7), "a different company is not covered by the grant")
	assert.Equal(t, 30, g.RemainingMinutes(5))
	assert.Equal(t, 0, g.RemainingMinutes(7))
}

func TestGate_Expiry(t *testing.T) {
	g, clock, _ := newTestGate(t)
	require.NoError(t, g.MarkValidated(context.Background(), 5))

	clock.Advance(TTL - time.Millisecond)
	assert.False(t, g.NeedsValidation(5))
	assert.Equal(t, 1, g.RemainingMinutes(5))

	clock.Advance(time.Millisecond)
	assert.True(t, g.NeedsValidation(5), "expiry instant itself is expired")

	clock.Advance(time.Millisecond)
	assert.True(t, g.NeedsValidation(5))
	assert.Equal(t, 0, g.RemainingMinutes(5))
}

func TestGate_RemainingMinutesRoundsUpAndNeverIncreases(t *testing.T) {
	g, clock, _ := newTestGate(t)
	require.NoError(t, g.MarkValidated(context.Background(), 5))

	clock.Advance(90 * time.Second)
	assert.Equal(t, 29, g.RemainingMinutes(5))

	previous := g.RemainingMinutes(5)
	for i := 0; i < 40; i++ {
		clock.Advance(47 * time.Second)
		current := g.RemainingMinutes(5)
		assert.LessOrEqual(t, current, previous)
		previous = current
	}
	assert.Equal(t, 0, previous)
}

func TestGate_SwitchingCompanyReplacesSlot(t *testing.T) {
	g, _, _ := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, g.MarkValidated(ctx, 5))
	require.NoError(t, g.MarkValidated(ctx, 7))

	assert.True(t, g.NeedsValidation(5))
	assert.False(t, g.NeedsValidation(7))
}

func TestGate_StaleGrantIsIgnoredNotCleared(t *testing.T) {
	g, _, _ := newTestGate(t)
	require.NoError(t, g.MarkValidated(context.Background(), 5))

	assert.True(t, g.NeedsValidation(7))

	grant, ok := g.Current()
	require.True(t, ok)
	assert.Equal(t, int64(5), grant.CompanyID)
	assert.False(t, g.NeedsValidation(5))
}

func TestGate_Revoke(t *testing.T) {
	g, _, kv := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.MarkValidated(ctx, 5))

	require.NoError(t, g.Revoke(ctx))

	assert.True(t, g.NeedsValidation(5))
	_, err := kv.Get(ctx, keyGrantedAt)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGate_PersistsAcrossInstances(t *testing.T) {
	g, clock, kv := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.MarkValidated(ctx, 5))

	clock.Advance(10 * time.Minute)
	restored := New(kv, zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, restored.Load(ctx))

	assert.False(t, restored.NeedsValidation(5))
	assert.Equal(t, 20, restored.RemainingMinutes(5))

	stored, err := kv.Get(ctx, keyCompanyID)
	require.NoError(t, err)
	assert.Equal(t, "5", stored)
}

func TestGate_LoadIgnoresGarbage(t *testing.T) {
	g, _, kv := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, keyGrantedAt, "yesterday"))
	require.NoError(t, kv.Set(ctx, keyCompanyID, "5"))

	require.NoError(t, g.Load(ctx))

	assert.True(t, g.NeedsValidation(5))
}

func TestGate_Status(t *testing.T) {
	g, _, _ := newTestGate(t)

	status := g.Status(5)
	assert.False(t, status.HasAccess)
	assert.Equal(t, "Requiere validación de clave SII", status.Message())

	require.NoError(t, g.MarkValidated(context.Background(), 5))
	status = g.Status(5)
	assert.True(t, status.HasAccess)
	assert.Equal(t, 30, status.RemainingMinutes)
	assert.Equal(t, "Acceso SII activo - 30 minutos restantes", status.Message())
}
