// ABOUTME: Search coordination: hub/zone rotation, target detection and the swap retry protocol.
// ABOUTME: Runs inside the Controller's lock; timers live in each agent's cycle and retry slots.

package fleet

import (
	"fmt"
	"math"
	"time"

	"github.com/2389/lobby-scout/internal/notify"
)

// StartSearching puts every connected agent that is not already searching
// into the rotation. Agent i issues its first move SearchStagger*i after
// the call and then alternates lobbies every SearchCycle.
func (c *Controller) StartSearching() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.agents) == 0 {
		return ErrNoAgents
	}
	if c.searching {
		return ErrSearchActive
	}
	c.searching = true

	c.logger.Info("search started", "target", c.settings.Target, "agents", len(c.agents))
	c.publish(notify.Notice{
		Kind: notify.KindInfo,
		Text: fmt.Sprintf("Starting to search for target: %s", c.settings.Target),
	})

	for i, a := range c.agents {
		if a.searching || !a.online() {
			continue
		}
		a.searching = true
		a.targetFound = false
		a.swapFailed = false
		a.retryDeadline = time.Time{}
		a.retry.cancel()

		c.arm(&a.cycle, time.Duration(i)*c.settings.SearchStagger, func() {
			c.moveLocked(a)
			c.armCycleLocked(a)
		})
	}
	c.changedLocked()
	return nil
}

// StopSearching takes every agent out of the rotation and cancels all
// search and retry timers. Calling it with no active search is harmless.
func (c *Controller) StopSearching() {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasActive := c.searching
	c.searching = false
	for _, a := range c.agents {
		a.resetSearch()
	}
	if wasActive {
		c.logger.Info("search stopped")
		c.publish(notify.Notice{Kind: notify.KindInfo, Text: "Stopping search for all bots"})
	}
	c.changedLocked()
}

// Searching reports whether a fleet-wide search is active.
func (c *Controller) Searching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searching
}

func (c *Controller) armCycleLocked(a *agent) {
	c.arm(&a.cycle, c.settings.SearchCycle, func() {
		c.cycleTickLocked(a)
	})
}

func (c *Controller) cycleTickLocked(a *agent) {
	if !a.searching || a.targetFound || !a.online() {
		return
	}
	if !a.swapFailed {
		c.moveLocked(a)
	}
	c.armCycleLocked(a)
}

// moveLocked sends the agent toward the zone when it is in the hub or
// lost, and back to the hub otherwise.
func (c *Controller) moveLocked(a *agent) {
	cmd := c.settings.HubCommand
	if a.lobby == c.settings.Hub || a.lobby == UnknownLobby {
		cmd = c.settings.ZoneCommand
	}
	if err := a.session.Chat(cmd); err != nil {
		c.logger.Debug("move command not sent", "identity", a.identity, "command", cmd, "error", err)
		return
	}
	c.logger.Debug("move command sent", "identity", a.identity, "command", cmd, "lobby", a.lobby)
}

func (c *Controller) onMessageLocked(a *agent, text string) {
	if lobby, ok := c.detector.Lobby(text); ok && lobby != a.lobby {
		a.lobby = lobby
		c.logger.Debug("lobby changed", "identity", a.identity, "lobby", lobby)
	}

	if a.searching && c.detector.MentionsTarget(text) {
		c.targetFoundLocked(a, "message")
	}

	if a.state == StateConnected && !a.targetFound && c.detector.SwapFailed(text) {
		c.swapFailedLocked(a)
	}
}

func (c *Controller) targetFoundLocked(a *agent, source string) {
	a.targetFound = true
	a.resetSearch()

	c.logger.Info("target found", "identity", a.identity, "target", c.settings.Target, "lobby", a.lobby, "source", source)
	n := c.agentNotice(a, notify.KindSighting, "[Bot %d] TARGET FOUND: %s is in the same lobby (%s)", a.ordinal, c.settings.Target, a.lobby)
	n.Lobby = a.lobby
	n.Source = source
	c.publish(n)
}

func (c *Controller) swapFailedLocked(a *agent) {
	delay := c.settings.SwapRetry
	a.swapFailed = true
	a.retryDeadline = c.clock.Now().Add(delay)

	c.logger.Info("lobby swap refused", "identity", a.identity, "retry_in", delay)
	n := c.agentNotice(a, notify.KindWarning, "[Bot %d] Swap failed, retrying in %d seconds", a.ordinal, RetrySeconds(delay))
	n.Source = notify.SourceSwapFailure
	c.publish(n)

	c.arm(&a.retry, delay, func() {
		a.swapFailed = false
		a.retryDeadline = time.Time{}
		if a.online() {
			c.moveLocked(a)
		}
	})
}

// RetrySeconds rounds a remaining retry delay up to whole seconds.
func RetrySeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
