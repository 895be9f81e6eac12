// ABOUTME: Pure mapping from an agent view to its dashboard label and severity tier.
// ABOUTME: Precedence: disconnected, found, swap failed, searching, error, ready, connecting.

package status

import (
	"fmt"
	"time"

	"github.com/2389/lobby-scout/internal/fleet"
)

// Tier is the severity of a label and decides its color.
type Tier int

const (
	TierOK Tier = iota
	TierPending
	TierAlert
)

func (t Tier) String() string {
	switch t {
	case TierOK:
		return "ok"
	case TierPending:
		return "pending"
	case TierAlert:
		return "alert"
	default:
		return "unknown"
	}
}

// Label is one agent's rendered status.
type Label struct {
	Text string
	Tier Tier
}

// Options carry the fleet-wide values labels mention.
type Options struct {
	Target string
	// Zone is the lobby in which a searching agent is "finding" rather
	// than "swapping".
	Zone string
}

// ComputeStatus returns the label for v at time now. When several
// conditions hold the first of these wins: disconnected, target found,
// swap failed, searching, connection error, ready, connecting. Search
// fields only count while the agent is connected, so a kicked or errored
// agent shows its connection error even if it had found the target.
func ComputeStatus(v fleet.AgentView, opts Options, now time.Time) Label {
	connected := v.State == fleet.StateConnected
	switch {
	case v.State == fleet.StateDisconnected:
		return Label{Text: "DISCONNECTED", Tier: TierAlert}
	case connected && v.TargetFound:
		return Label{Text: fmt.Sprintf("found target (%s)!", opts.Target), Tier: TierOK}
	case connected && v.SwapFailed:
		secs := fleet.RetrySeconds(v.RetryDeadline.Sub(now))
		return Label{Text: fmt.Sprintf("failed to swap lobbies... retrying in %d seconds", secs), Tier: TierAlert}
	case connected && v.Searching:
		if v.Lobby == opts.Zone {
			return Label{Text: "finding target...", Tier: TierPending}
		}
		return Label{Text: "swapping lobbies...", Tier: TierPending}
	case v.State == fleet.StateKicked || v.State == fleet.StateErrored:
		text := "connection error..."
		if v.Reason != "" {
			text += " (" + v.Reason + ")"
		}
		return Label{Text: text, Tier: TierAlert}
	case connected:
		return Label{Text: "READY", Tier: TierOK}
	default:
		return Label{Text: "connecting...", Tier: TierPending}
	}
}
