// ABOUTME: Tests for the notice recorder
// ABOUTME: Verifies which notices reach the ledger and how they are mapped

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/lobby-scout/internal/notify"
)

func TestRecorder_Record(t *testing.T) {
	ms := NewMockStore()
	r := NewRecorder(ms, "Notch", nil)
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC)

	notices := []notify.Notice{
		{Kind: notify.KindSighting, Agent: "bot2@example.com", Lobby: "mini42A", Source: SourcePlayerJoined, At: at},
		{Kind: notify.KindSuccess, Agent: "bot1@example.com", Text: "connected", At: at},
		{Kind: notify.KindFailure, Agent: "bot1@example.com", Text: "kicked", At: at.Add(time.Second)},
		{Kind: notify.KindChat, Agent: "bot1@example.com", Text: "hello"},
		{Kind: notify.KindInfo, Agent: "bot1@example.com", Text: "Connecting bot 1"},
		{Kind: notify.KindSuccess, Text: "All accounts authenticated"},
	}
	for _, n := range notices {
		require.NoError(t, r.Record(ctx, n))
	}

	sightings, err := ms.ListSightings(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sightings, 1)
	assert.Equal(t, "Notch", sightings[0].Target)
	assert.Equal(t, "mini42A", sightings[0].Lobby)
	assert.Equal(t, SourcePlayerJoined, sightings[0].Source)
	assert.True(t, sightings[0].Timestamp.Equal(at))

	events, err := ms.ListEvents(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "failure", events[0].Kind)
	assert.Equal(t, "kicked", events[0].Detail)
}

func TestRecorder_RunUntilClosed(t *testing.T) {
	ms := NewMockStore()
	hub := notify.NewHub(nil)
	ctx := context.Background()
	ch, _ := hub.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		NewRecorder(ms, "Notch", nil).Run(ctx, ch)
		close(done)
	}()

	hub.Publish(notify.Notice{Kind: notify.KindSighting, Agent: "bot1@example.com", Lobby: "Pit", Source: SourceMessage})
	require.Eventually(t, func() bool {
		got, _ := ms.ListSightings(ctx, 0)
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	hub.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop after the hub closed")
	}
}

func TestRecorder_WriteErrorsDoNotStopRun(t *testing.T) {
	ms := NewMockStore()
	ms.Err = assert.AnError
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan notify.Notice, 2)

	ch <- notify.Notice{Kind: notify.KindFailure, Agent: "a", Text: "x"}
	done := make(chan struct{})
	go func() {
		NewRecorder(ms, "Notch", nil).Run(ctx, ch)
		close(done)
	}()
	cancel()
	<-done
}
