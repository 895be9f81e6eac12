// ABOUTME: Text classification for server messages: target mentions, lobby moves and refused swaps.
// ABOUTME: Pure functions over strings so the search state machine stays free of parsing.

package fleet

import (
	"regexp"
	"strings"

	"github.com/2389/lobby-scout/internal/config"
)

// sendingPattern captures the lobby name from "Sending you to mini42A!"
// and "Sending to mini42A."
var sendingPattern = regexp.MustCompile(`Sending (?:you )?to (.+?)[!.]`)

// Detector classifies inbound text for one target and lobby layout.
type Detector struct {
	target      string
	tokenMatch  *regexp.Regexp
	failures    []string
	hub         string
	hubArrival  string
	zone        string
	zoneArrival *regexp.Regexp
}

// NewDetector builds a Detector. match is config.MatchSubstring or
// config.MatchToken; anything else behaves as substring.
func NewDetector(target, match string, failurePhrases []string, zone, hub string) *Detector {
	d := &Detector{
		target:     target,
		failures:   failurePhrases,
		hub:        hub,
		hubArrival: "You are currently in the " + hub,
		zone:       zone,
	}
	if match == config.MatchToken && target != "" {
		d.tokenMatch = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])` + regexp.QuoteMeta(target) + `(?:$|[^A-Za-z0-9_])`)
	}
	if zone != "" {
		d.zoneArrival = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(zone) + `\b`)
	}
	if len(d.failures) == 0 {
		d.failures = config.DefaultSwapFailurePhrases
	}
	return d
}

// MentionsTarget reports whether text names the target.
func (d *Detector) MentionsTarget(text string) bool {
	if d.target == "" {
		return false
	}
	if d.tokenMatch != nil {
		return d.tokenMatch.MatchString(text)
	}
	return strings.Contains(text, d.target)
}

// IsTarget reports whether a player name is the target. Names from world
// events are compared exactly.
func (d *Detector) IsTarget(name string) bool {
	return d.target != "" && name == d.target
}

// SwapFailed reports whether text is a server refusal of a lobby move.
func (d *Detector) SwapFailed(text string) bool {
	for _, phrase := range d.failures {
		if phrase != "" && strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// Lobby returns the lobby text places the agent in, if any. When several
// phrases apply the most specific arrival wins: zone over hub over a
// captured "Sending you to" name.
func (d *Detector) Lobby(text string) (string, bool) {
	lobby := ""
	if m := sendingPattern.FindStringSubmatch(text); m != nil {
		lobby = strings.TrimSpace(m[1])
	}
	if d.hub != "" && strings.Contains(text, d.hubArrival) {
		lobby = d.hub
	}
	if d.zoneArrival != nil && d.zoneArrival.MatchString(text) {
		lobby = d.zone
	}
	return lobby, lobby != ""
}

// chatWorthy filters the per-agent chat echo: formatting-coded lines and
// single characters are dropped.
func chatWorthy(text string) bool {
	return !strings.Contains(text, "§") && len([]rune(text)) > 1
}
