package domainintel

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// membersOnlyPatterns match page content that indicates a members-only or
// auth-walled page (§4.11 Members-only detection).
var membersOnlyPatterns = regexp.MustCompile(`(?i)login required|members[\s-]?only|sign in to (view|continue)|subscribers? only|create (a free |an )?account to (view|continue)`)

// IsMembersOnly reports whether a fetched page is behind a members-only /
// auth wall: HTTP 401/403, or content matching known phrases (§4.11).
func IsMembersOnly(statusCode int, content string) bool {
	if statusCode == 401 || statusCode == 403 {
		return true
	}
	return membersOnlyPatterns.MatchString(content)
}

// SessionBlacklist tracks sites found to be members-only within a single
// discovery/enrichment session, so later attempts within the same session
// skip them outright (§4.11, §4.10 refund bookkeeping).
//
// Add and the budget refund it accompanies are deliberately two
// independently-retryable steps (see SPEC_FULL §4.1-4.11 "Members-only
// refund bookkeeping"): a crash between them leaves the refund applied
// even if the blacklist entry is lost.
type SessionBlacklist struct {
	mu      sync.Mutex
	domains map[string]bool
}

// NewSessionBlacklist builds an empty, session-scoped blacklist.
func NewSessionBlacklist() *SessionBlacklist {
	return &SessionBlacklist{domains: map[string]bool{}}
}

// Add records rawURL's domain as blacklisted for the remainder of the session.
func (b *SessionBlacklist) Add(rawURL string) {
	domain := Domain(rawURL)
	if domain == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.domains[domain] = true
}

// Contains reports whether rawURL's domain was already blacklisted this session.
func (b *SessionBlacklist) Contains(rawURL string) bool {
	domain := Domain(rawURL)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.domains[domain]
}

// Domains returns a snapshot of blacklisted domains, sorted for stable output.
func (b *SessionBlacklist) Domains() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.domains))
	for d := range b.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// normalizeProductKey normalizes a product name into a stable budget/session
// key (§4.10 "Counters reset per product key (normalized name)").
func normalizeProductKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ProductKey exports normalizeProductKey for internal/budget's use so the
// two packages agree on one normalization without an import cycle back
// the other way.
func ProductKey(name string) string { return normalizeProductKey(name) }
