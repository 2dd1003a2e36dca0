package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betterclaw/betterclaw/internal/models"
)

func TestAppendAndReadSince(t *testing.T) {
	journal := New(filepath.Join(t.TempDir(), "events.jsonl"))

	for i := 0; i < 3; i++ {
		err := journal.Append(models.EventLogEntry{
			Event: models.DeviceEvent{
				SubscriptionID: fmt.Sprintf("sub-%d", i),
				Source:         "device.battery",
				FiredAt:        float64(100 * (i + 1)),
			},
			Decision:  models.ActionDrop,
			Reason:    "test",
			Timestamp: float64(100 * (i + 1)),
		})
		require.NoError(t, err)
	}

	entries, err := journal.ReadSince(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "sub-0", entries[0].Event.SubscriptionID)
	assert.NotEmpty(t, entries[0].ID, "appended entries get IDs assigned")

	// The since boundary is inclusive.
	entries, err = journal.ReadSince(200)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "sub-1", entries[0].Event.SubscriptionID)
}

func TestReadSinceMissingFile(t *testing.T) {
	journal := New(filepath.Join(t.TempDir(), "events.jsonl"))

	entries, err := journal.ReadSince(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadSinceSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	journal := New(path)

	require.NoError(t, journal.Append(models.EventLogEntry{
		Event:     models.DeviceEvent{SubscriptionID: "good", Source: "device.battery"},
		Decision:  models.ActionPush,
		Timestamp: 10,
	}))

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = file.WriteString("not json at all\n\n{\"truncated\":\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	require.NoError(t, journal.Append(models.EventLogEntry{
		Event:     models.DeviceEvent{SubscriptionID: "also-good", Source: "device.battery"},
		Decision:  models.ActionDrop,
		Timestamp: 20,
	}))

	entries, err := journal.ReadSince(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "good", entries[0].Event.SubscriptionID)
	assert.Equal(t, "also-good", entries[1].Event.SubscriptionID)
}

func TestRotateBelowCapIsNoop(t *testing.T) {
	journal := New(filepath.Join(t.TempDir(), "events.jsonl"))

	for i := 0; i < 5; i++ {
		require.NoError(t, journal.Append(models.EventLogEntry{
			Event:     models.DeviceEvent{SubscriptionID: "sub", Source: "device.battery"},
			Decision:  models.ActionDrop,
			Timestamp: float64(i),
		}))
	}

	dropped, err := journal.Rotate()
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)

	entries, err := journal.ReadSince(0)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestRotateDropsOldThenTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	journal := New(path)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	origNow := nowFn
	nowFn = func() time.Time { return now }
	defer func() { nowFn = origNow }()

	ancient := float64(now.Add(-40 * 24 * time.Hour).Unix())
	recentBase := float64(now.Add(-time.Hour).Unix())

	// Write the journal directly; appending 10k+ entries one at a time is
	// needlessly slow for a test.
	var b strings.Builder
	writeEntry := func(id string, ts float64) {
		data, err := json.Marshal(models.EventLogEntry{
			ID:        id,
			Event:     models.DeviceEvent{SubscriptionID: "sub", Source: "device.battery", FiredAt: ts},
			Decision:  models.ActionDrop,
			Timestamp: ts,
		})
		require.NoError(t, err)
		b.Write(data)
		b.WriteByte('\n')
	}
	for i := 0; i < 500; i++ {
		writeEntry(fmt.Sprintf("old-%d", i), ancient+float64(i))
	}
	for i := 0; i < 10_100; i++ {
		writeEntry(fmt.Sprintf("new-%d", i), recentBase+float64(i))
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	dropped, err := journal.Rotate()
	require.NoError(t, err)
	// 500 by age, then 100 more to reach the cap.
	assert.Equal(t, 600, dropped)

	entries, err := journal.ReadSince(0)
	require.NoError(t, err)
	require.Len(t, entries, 10_000)
	assert.Equal(t, "new-100", entries[0].ID, "newest entries survive")
	assert.Equal(t, "new-10099", entries[len(entries)-1].ID)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file cleaned up after rename")
}
