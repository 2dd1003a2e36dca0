package proactive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betterclaw/betterclaw/internal/devicectx"
	"github.com/betterclaw/betterclaw/internal/models"
)

type fakeDeliverer struct {
	messages []string
	err      error
}

func (f *fakeDeliverer) Deliver(ctx context.Context, message string) error {
	f.messages = append(f.messages, message)
	return f.err
}

// Wednesday afternoon: only the low-battery trigger can fire with the
// context built below.
var scanNow = time.Date(2026, 3, 11, 13, 0, 0, 0, time.UTC)

func newScanEngine(t *testing.T, deliverer *fakeDeliverer) (*Engine, *devicectx.Store) {
	t.Helper()

	store := devicectx.NewStore(t.TempDir())
	store.Load()
	store.UpdateFromEvent(models.DeviceEvent{
		SubscriptionID: "default.battery-low",
		Source:         "device.battery",
		Data:           map[string]float64{"level": 0.1},
		FiredAt:        float64(scanNow.Add(-time.Minute).Unix()),
	})
	store.UpdateFromEvent(models.DeviceEvent{
		SubscriptionID: "geo.work",
		Source:         "geofence.triggered",
		Metadata:       map[string]string{"zoneName": "Work", "transition": "enter"},
		FiredAt:        float64(scanNow.Add(-time.Hour).Unix()),
	})

	e := NewEngine(store, deliverer, nil)
	e.SetLocation(time.UTC)
	e.nowFn = func() time.Time { return scanNow }
	return e, store
}

func TestScanDeliversInsightWithPrefix(t *testing.T) {
	deliverer := &fakeDeliverer{}
	e, store := newScanEngine(t, deliverer)

	e.Scan(context.Background())

	require.Len(t, deliverer.messages, 1)
	assert.Contains(t, deliverer.messages[0], insightPrefix)
	assert.Contains(t, deliverer.messages[0], "Battery at 10%")

	patterns, err := store.ReadPatterns()
	require.NoError(t, err)
	assert.Equal(t, float64(scanNow.Unix()), patterns.TriggerCooldowns["low-battery-away"])
}

func TestScanRespectsCooldown(t *testing.T) {
	deliverer := &fakeDeliverer{}
	e, _ := newScanEngine(t, deliverer)

	e.Scan(context.Background())
	e.Scan(context.Background())

	assert.Len(t, deliverer.messages, 1, "second scan lands inside the trigger cooldown")
}

func TestScanPersistsCooldownEvenWhenDeliveryFails(t *testing.T) {
	deliverer := &fakeDeliverer{err: errors.New("agent unreachable")}
	e, store := newScanEngine(t, deliverer)

	e.Scan(context.Background())

	assert.Len(t, deliverer.messages, 1)
	patterns, err := store.ReadPatterns()
	require.NoError(t, err)
	assert.Equal(t, float64(scanNow.Unix()), patterns.TriggerCooldowns["low-battery-away"],
		"a failed delivery must not re-arm the trigger")

	// And the failed delivery is not retried on the next scan.
	e.Scan(context.Background())
	assert.Len(t, deliverer.messages, 1)
}

func TestStartStopToggle(t *testing.T) {
	deliverer := &fakeDeliverer{}
	e, _ := newScanEngine(t, deliverer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.False(t, e.Running())

	e.Start(ctx)
	assert.True(t, e.Running())

	// Starting a running engine must not schedule a second loop.
	e.Start(ctx)
	assert.True(t, e.Running())

	e.Stop()
	assert.False(t, e.Running())
	e.Stop() // idempotent

	// The toggle can re-enable the scanner after a stop.
	e.Start(ctx)
	assert.True(t, e.Running())
	e.Stop()
}

func TestStopHaltsScanLoop(t *testing.T) {
	deliverer := &fakeDeliverer{}
	e, _ := newScanEngine(t, deliverer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.Start(ctx)
	e.Stop()

	// The startup delay has not elapsed, so a stopped loop has delivered
	// nothing and never will.
	assert.False(t, e.Running())
	assert.Empty(t, deliverer.messages)
}

func TestScanNoTriggersNoDelivery(t *testing.T) {
	deliverer := &fakeDeliverer{}
	store := devicectx.NewStore(t.TempDir())
	store.Load()

	e := NewEngine(store, deliverer, nil)
	e.SetLocation(time.UTC)
	e.nowFn = func() time.Time { return scanNow }

	e.Scan(context.Background())
	assert.Empty(t, deliverer.messages)
}
