// ABOUTME: Authentication pre-flight: one short-lived session per identity against the local auth endpoint.
// ABOUTME: The fleet becomes ready to connect once every identity has completed exactly once.

package fleet

import (
	"context"
	"fmt"

	"github.com/2389/lobby-scout/internal/notify"
	"github.com/2389/lobby-scout/internal/session"
)

type authState struct {
	started  bool
	ready    bool
	sessions map[string]session.Session
	done     map[string]bool
	deadline timerSlot
}

func newAuthState() authState {
	return authState{
		sessions: make(map[string]session.Session),
		done:     make(map[string]bool),
	}
}

// AuthenticateAll opens an auth-only session for every identity. It
// returns at once; readiness is reported through Ready and a success
// notice. A login confirmation and a refused connection both complete an
// identity, and so does any other failure, which is logged. Calling it
// again after the first call does nothing.
func (c *Controller) AuthenticateAll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.auth.started {
		return
	}
	c.auth.started = true
	total := len(c.settings.Identities)

	c.logger.Info("authenticating identities", "count", total, "endpoint", c.settings.AuthEndpoint, "mode", c.settings.AuthMode)
	if total == 0 {
		c.authReadyLocked()
		return
	}

	for i, identity := range c.settings.Identities {
		c.publish(notify.Notice{
			Kind:    notify.KindInfo,
			Agent:   identity,
			Ordinal: i + 1,
			Text:    fmt.Sprintf("Authenticating %s... (%d/%d)", identity, i+1, total),
		})
		sess, err := c.dialer.Dial(ctx, session.Options{
			Address:         c.settings.AuthEndpoint,
			Identity:        identity,
			ProtocolVersion: c.settings.ProtocolVersion,
			Auth:            c.settings.AuthMode,
			AuthOnly:        true,
			CheckTimeout:    c.settings.CheckTimeout,
		})
		if err != nil {
			c.authDoneLocked(identity, notify.KindFailure, fmt.Sprintf("Authentication error for %s: %v", identity, err))
			continue
		}
		c.auth.sessions[identity] = sess
		go c.authPump(identity, sess)
	}

	if !c.auth.ready && c.settings.AuthTimeout > 0 {
		c.arm(&c.auth.deadline, c.settings.AuthTimeout, func() {
			c.abandonAuthLocked("authentication timed out")
		})
	}
}

// Ready reports whether authentication has completed for every identity.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auth.ready
}

func (c *Controller) authPump(identity string, sess session.Session) {
	for ev := range sess.Events() {
		c.mu.Lock()
		c.handleAuthEventLocked(identity, sess, ev)
		c.mu.Unlock()
	}
}

func (c *Controller) handleAuthEventLocked(identity string, sess session.Session, ev session.Event) {
	if c.auth.ready || c.auth.done[identity] || c.auth.sessions[identity] != sess {
		return
	}

	switch ev.Kind {
	case session.KindLogin:
		c.authDoneLocked(identity, notify.KindSuccess, fmt.Sprintf("%s authentication successful!", identity))
		sess.End("authenticated")
	case session.KindError:
		if ev.Refused {
			c.authDoneLocked(identity, notify.KindSuccess, fmt.Sprintf("%s authentication process completed!", identity))
			return
		}
		c.authDoneLocked(identity, notify.KindFailure, fmt.Sprintf("Authentication error for %s: %s", identity, errorText(ev.Err)))
	case session.KindKicked, session.KindEnd:
		c.authDoneLocked(identity, notify.KindWarning, fmt.Sprintf("Authentication session for %s ended: %s", identity, ev.Reason))
	}
}

// authDoneLocked counts identity as completed. Later completions for the
// same identity are ignored by the caller.
func (c *Controller) authDoneLocked(identity string, kind notify.Kind, text string) {
	c.auth.done[identity] = true
	delete(c.auth.sessions, identity)

	total := len(c.settings.Identities)
	count := len(c.auth.done)
	c.logger.Info("authentication step completed", "identity", identity, "outcome", kind, "completed", count, "total", total)
	c.publish(notify.Notice{
		Kind:  kind,
		Agent: identity,
		Text:  fmt.Sprintf("%s (%d/%d)", text, count, total),
	})

	if count >= total {
		c.authReadyLocked()
	}
}

func (c *Controller) authReadyLocked() {
	if c.auth.ready {
		return
	}
	c.auth.ready = true
	c.auth.deadline.cancel()
	c.logger.Info("all identities authenticated", "available", len(c.settings.Identities))
	c.publish(notify.Notice{
		Kind: notify.KindSuccess,
		Text: fmt.Sprintf("All accounts authenticated! Type \"start <number>\" to connect. Available bots: %d", len(c.settings.Identities)),
	})
}

// abandonAuthLocked ends every outstanding auth session. On timeout the
// identities still pending count as completed; on shutdown nothing is
// counted.
func (c *Controller) abandonAuthLocked(reason string) {
	c.auth.deadline.cancel()
	pending := c.auth.sessions
	c.auth.sessions = make(map[string]session.Session)
	for identity, sess := range pending {
		sess.End(reason)
		if c.closed {
			continue
		}
		c.logger.Warn("authentication abandoned", "identity", identity, "reason", reason)
		c.auth.done[identity] = true
	}
	if !c.closed && c.auth.started && !c.auth.ready {
		c.publish(notify.Notice{
			Kind: notify.KindWarning,
			Text: fmt.Sprintf("%s; %d identities marked completed", reason, len(pending)),
		})
		c.authReadyLocked()
	}
}
