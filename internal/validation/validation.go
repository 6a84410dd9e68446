// Package validation holds the pure checks shared by onboarding, PR stats and
// the assignment engine.
package validation

import (
	"regexp"
	"strings"
	"time"
)

// IdentityRules bounds the chat ID and wallet address formats.
type IdentityRules struct {
	ChatIDLengthMin     int
	ChatIDLengthMax     int
	WalletAddressPrefix string
	WalletAddressLength int
}

// DefaultIdentityRules matches Discord snowflakes and EVM addresses.
func DefaultIdentityRules() IdentityRules {
	return IdentityRules{
		ChatIDLengthMin:     17,
		ChatIDLengthMax:     19,
		WalletAddressPrefix: "0x",
		WalletAddressLength: 42,
	}
}

// QualityGates decide which merged PRs count toward promotion.
type QualityGates struct {
	AllowedMergeBranches []string
	ExcludePRLabels      []string
	MinLinesForCount     int
}

var (
	// Length bounds come from IdentityRules, not the pattern.
	chatIDPattern = regexp.MustCompile(`(?i)discord(?:[ _-]?id)?[:\s]+(\d+)\b`)
	loginUnsafe   = regexp.MustCompile(`[^a-z0-9_-]`)
)

// ValidateChatID reports whether id is all digits with a length inside the bounds.
func ValidateChatID(id string, rules IdentityRules) bool {
	id = strings.TrimSpace(id)
	if len(id) < rules.ChatIDLengthMin || len(id) > rules.ChatIDLengthMax {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateWalletAddress reports whether addr has the prefix, the exact length
// and a hex body. Letter case is ignored.
func ValidateWalletAddress(addr string, rules IdentityRules) bool {
	addr = strings.ToLower(strings.TrimSpace(addr))
	prefix := strings.ToLower(rules.WalletAddressPrefix)
	if len(addr) != rules.WalletAddressLength || !strings.HasPrefix(addr, prefix) {
		return false
	}
	body := addr[len(prefix):]
	if body == "" {
		return false
	}
	for _, r := range body {
		if !isHex(r) {
			return false
		}
	}
	return true
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}

// Identity is a parsed onboarding response.
type Identity struct {
	ChatID string
	Wallet string
}

// ParseIdentityResponse extracts the first chat ID and first wallet address in
// text. Both must be present and valid.
func ParseIdentityResponse(text string, rules IdentityRules) (Identity, bool) {
	chat := chatIDPattern.FindStringSubmatch(text)
	wallet := walletPattern(rules).FindStringSubmatch(text)
	if chat == nil || wallet == nil {
		return Identity{}, false
	}

	id := Identity{ChatID: chat[1], Wallet: strings.ToLower(wallet[1])}
	if !ValidateChatID(id.ChatID, rules) || !ValidateWalletAddress(id.Wallet, rules) {
		return Identity{}, false
	}
	return id, true
}

func walletPattern(rules IdentityRules) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:wallet|address)[:\s]+(` + regexp.QuoteMeta(rules.WalletAddressPrefix) + `[0-9a-f]+)\b`)
}

// ShouldCountPRTowardPromotion applies the quality gates to a merged PR.
func ShouldCountPRTowardPromotion(labels []string, linesChanged int, mergedBranch string, gates QualityGates) bool {
	if len(gates.AllowedMergeBranches) > 0 && !containsFold(gates.AllowedMergeBranches, mergedBranch) {
		return false
	}
	for _, label := range labels {
		if containsFold(gates.ExcludePRLabels, label) {
			return false
		}
	}
	return linesChanged >= gates.MinLinesForCount
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), s) {
			return true
		}
	}
	return false
}

// ComputeDeadline walks forward from assignedAt until days weekdays have been
// counted. The wall-clock time is preserved.
func ComputeDeadline(assignedAt time.Time, days int) time.Time {
	current := assignedAt
	counted := 0
	for counted < days {
		current = current.AddDate(0, 0, 1)
		if wd := current.Weekday(); wd != time.Saturday && wd != time.Sunday {
			counted++
		}
	}
	return current
}

// Remaining describes how far a deadline is from now.
type Remaining struct {
	Hours   int
	Days    int
	Overdue bool
	Delta   time.Duration
}

// TimeRemaining reports the time left until deadline. Hours and Days are
// whole units, floored and clamped at zero.
func TimeRemaining(deadline, now time.Time) Remaining {
	delta := deadline.Sub(now)
	hours := max(0, int(delta/time.Hour))
	return Remaining{
		Hours:   hours,
		Days:    hours / 24,
		Overdue: deadline.Before(now),
		Delta:   delta,
	}
}

// LinesChanged sums additions and deletions, ignoring negatives, capped at limit.
// A limit <= 0 disables the cap.
func LinesChanged(additions, deletions, limit int) int {
	total := max(0, additions) + max(0, deletions)
	if limit > 0 && total > limit {
		return limit
	}
	return total
}

// SanitizeLogin turns a login into a lowercase, filename-safe registry key.
func SanitizeLogin(login string) string {
	return loginUnsafe.ReplaceAllString(strings.ToLower(strings.TrimSpace(login)), "_")
}
