// ABOUTME: Tests for notice printing and chat echo suppression.
// ABOUTME: The echo cache runs on a fake clock so the window is exact.

package console

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/lobby-scout/internal/clock"
	"github.com/2389/lobby-scout/internal/dedupe"
	"github.com/2389/lobby-scout/internal/notify"
)

func TestPrinterMarkers(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, nil)

	p.Print(notify.Notice{Kind: notify.KindInfo, Text: "Connecting 2 bots to server..."})
	p.Print(notify.Notice{Kind: notify.KindSuccess, Text: "Bot 1 (a@example.com) connected to server"})
	p.Print(notify.Notice{Kind: notify.KindWarning, Text: "Only 2 bots available"})
	p.Print(notify.Notice{Kind: notify.KindFailure, Text: "Bot 2 (b@example.com) kicked: spam"})
	p.Print(notify.Notice{Kind: notify.KindSighting, Text: "[Bot 1] TARGET FOUND"})
	p.Print(notify.Notice{Kind: notify.KindChat, Ordinal: 3, Text: "Welcome to the Hub"})

	assert.Equal(t, "[/] Connecting 2 bots to server...\n"+
		"[+] Bot 1 (a@example.com) connected to server\n"+
		"[-] Only 2 bots available\n"+
		"[-] Bot 2 (b@example.com) kicked: spam\n"+
		"[!] [Bot 1] TARGET FOUND\n"+
		"[Bot 3] Welcome to the Hub\n", out.String())
}

func TestPrinterSuppressesEchoes(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	echo := dedupe.New(5*time.Second, 100, clk)
	t.Cleanup(echo.Close)

	var out bytes.Buffer
	p := NewPrinter(&out, echo)

	p.Print(notify.Notice{Kind: notify.KindChat, Ordinal: 1, Lobby: "Pit", Text: "gg"})
	p.Print(notify.Notice{Kind: notify.KindChat, Ordinal: 2, Lobby: "Pit", Text: "gg"})
	p.Print(notify.Notice{Kind: notify.KindChat, Ordinal: 3, Lobby: "Hub", Text: "gg"})

	clk.Advance(6 * time.Second)
	p.Print(notify.Notice{Kind: notify.KindChat, Ordinal: 2, Lobby: "Pit", Text: "gg"})

	assert.Equal(t, "[Bot 1] gg\n[Bot 3] gg\n[Bot 2] gg\n", out.String())
}

func TestPrinterRun(t *testing.T) {
	var out bytes.Buffer
	w := SyncWriter(&out)
	p := NewPrinter(w, nil)

	hub := notify.NewHub(nil)
	ch, _ := hub.Subscribe(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), ch)
		close(done)
	}()

	hub.Publish(notify.Notice{Kind: notify.KindSuccess, Text: "All accounts authenticated!"})
	hub.Close()
	<-done

	require.Contains(t, out.String(), "[+] All accounts authenticated!")
}
