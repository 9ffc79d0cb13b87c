// Package featureflags evaluates rollout flags configured through FEATURE_FLAGS.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// RecencyFeed serves the feed in plain recency order, skipping the followee boost.
	RecencyFeed = "recency_feed"
	// SkipWebPTranscode stores uploaded images in their original encoding.
	SkipWebPTranscode = "skip_webp_transcode"
)

// rule is one parsed flag value: fully on, fully off, or a percentage of users.
type rule struct {
	percent int
}

func (r rule) String() string {
	switch r.percent {
	case 100:
		return "on"
	case 0:
		return "off"
	default:
		return strconv.Itoa(r.percent) + "%"
	}
}

// Manager evaluates flags from a comma-separated key=value list,
// e.g. "recency_feed=25%,skip_webp_transcode=off".
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Malformed entries are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = normalize(key)
		r, ok := parseRule(normalize(value))
		if key == "" || !ok {
			continue
		}
		rules[key] = r
	}
	return &Manager{rules: rules}
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{percent: 100}, true
	case "off", "false", "0":
		return rule{percent: 0}, true
	}
	pct, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return rule{}, false
	}
	return rule{percent: min(max(n, 0), 100)}, true
}

// Enabled reports whether name is on for userID. Percentage rollouts are
// deterministic per user and never include anonymous viewers (userID 0).
// Unknown flags are off.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}
	switch r.percent {
	case 100:
		return true
	case 0:
		return false
	}
	if userID == 0 {
		return false
	}
	return rolloutBucket(name, userID) < r.percent
}

// Describe lists the configured flags as "name=value", sorted, for startup logs.
func (m *Manager) Describe() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.rules))
	for name, r := range m.rules {
		out = append(out, name+"="+r.String())
	}
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
