package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateChatID(t *testing.T) {
	rules := DefaultIdentityRules()

	testCases := []struct {
		name     string
		id       string
		expected bool
	}{
		{"17 digits", strings.Repeat("1", 17), true},
		{"18 digits", "123456789012345678", true},
		{"19 digits", strings.Repeat("9", 19), true},
		{"surrounding whitespace", "  123456789012345678\n", true},
		{"16 digits", strings.Repeat("1", 16), false},
		{"20 digits", strings.Repeat("1", 20), false},
		{"letters", "12345678901234567a", false},
		{"empty", "", false},
		{"inner space", "123456789 12345678", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ValidateChatID(tc.id, rules))
		})
	}
}

func TestValidateWalletAddress(t *testing.T) {
	rules := DefaultIdentityRules()
	body := "abcdef0123456789abcdef0123456789abcdef01"

	testCases := []struct {
		name     string
		addr     string
		expected bool
	}{
		{"lowercase", "0x" + body, true},
		{"uppercase body", "0x" + strings.ToUpper(body), true},
		{"uppercase prefix", "0X" + body, true},
		{"trimmed", " 0x" + body + " ", true},
		{"too short", "0x" + body[1:], false},
		{"too long", "0x" + body + "0", false},
		{"wrong prefix", "1x" + body, false},
		{"no prefix", "00" + body, false},
		{"non hex", "0x" + body[:39] + "g", false},
		{"empty", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ValidateWalletAddress(tc.addr, rules))
		})
	}
}

func TestParseIdentityResponse(t *testing.T) {
	rules := DefaultIdentityRules()
	wallet := "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01"

	t.Run("both present", func(t *testing.T) {
		id, ok := ParseIdentityResponse("Discord: 123456789012345678\nWallet: "+wallet, rules)
		assert.True(t, ok)
		assert.Equal(t, "123456789012345678", id.ChatID)
		assert.Equal(t, strings.ToLower(wallet), id.Wallet)
	})

	t.Run("case insensitive keys", func(t *testing.T) {
		id, ok := ParseIdentityResponse("DISCORD ID: 123456789012345678 ADDRESS: "+wallet, rules)
		assert.True(t, ok)
		assert.Equal(t, "123456789012345678", id.ChatID)
	})

	t.Run("first match wins", func(t *testing.T) {
		text := "discord: 111111111111111111\ndiscord: 222222222222222222\nwallet: " + wallet
		id, ok := ParseIdentityResponse(text, rules)
		assert.True(t, ok)
		assert.Equal(t, "111111111111111111", id.ChatID)
	})

	t.Run("missing wallet", func(t *testing.T) {
		_, ok := ParseIdentityResponse("discord: 123456789012345678", rules)
		assert.False(t, ok)
	})

	t.Run("missing chat id", func(t *testing.T) {
		_, ok := ParseIdentityResponse("wallet: "+wallet, rules)
		assert.False(t, ok)
	})

	t.Run("chat id too long", func(t *testing.T) {
		_, ok := ParseIdentityResponse("discord: 12345678901234567890 wallet: "+wallet, rules)
		assert.False(t, ok)
	})

	t.Run("chat id outside configured bounds", func(t *testing.T) {
		strict := rules
		strict.ChatIDLengthMin = 18
		_, ok := ParseIdentityResponse("discord: 12345678901234567 wallet: "+wallet, strict)
		assert.False(t, ok)
	})

	t.Run("chat id bounds follow the rules", func(t *testing.T) {
		wide := rules
		wide.ChatIDLengthMax = 20
		id, ok := ParseIdentityResponse("discord: 12345678901234567890 wallet: "+wallet, wide)
		assert.True(t, ok)
		assert.Equal(t, "12345678901234567890", id.ChatID)
	})

	t.Run("wallet shape follows the rules", func(t *testing.T) {
		long := "0x" + strings.Repeat("ab", 32)
		custom := rules
		custom.WalletAddressLength = len(long)

		id, ok := ParseIdentityResponse("discord: 123456789012345678 wallet: "+long, custom)
		assert.True(t, ok)
		assert.Equal(t, long, id.Wallet)

		_, ok = ParseIdentityResponse("discord: 123456789012345678 wallet: "+long, rules)
		assert.False(t, ok)
	})

	t.Run("wallet label before address label", func(t *testing.T) {
		id, ok := ParseIdentityResponse("discord: 123456789012345678\nwallet address: "+wallet, rules)
		assert.True(t, ok)
		assert.Equal(t, strings.ToLower(wallet), id.Wallet)
	})
}

func TestShouldCountPRTowardPromotion(t *testing.T) {
	gates := QualityGates{
		AllowedMergeBranches: []string{"main", "master"},
		ExcludePRLabels:      []string{"dependencies", "automated"},
		MinLinesForCount:     10,
	}

	testCases := []struct {
		name     string
		labels   []string
		lines    int
		branch   string
		expected bool
	}{
		{"counts", []string{"bug"}, 50, "main", true},
		{"exactly minimum", nil, 10, "master", true},
		{"branch case ignored", nil, 10, "Main", true},
		{"below minimum", nil, 9, "main", false},
		{"other branch", nil, 50, "develop", false},
		{"excluded label", []string{"Dependencies"}, 50, "main", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ShouldCountPRTowardPromotion(tc.labels, tc.lines, tc.branch, gates))
		})
	}
}

func TestComputeDeadline(t *testing.T) {
	testCases := []struct {
		name       string
		assignedAt time.Time
		days       int
		expected   time.Time
	}{
		{
			name:       "Friday plus five lands on next Friday",
			assignedAt: time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC),
			days:       5,
			expected:   time.Date(2024, 3, 8, 14, 30, 0, 0, time.UTC),
		},
		{
			name:       "Monday plus five lands on next Monday",
			assignedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
			days:       5,
			expected:   time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name:       "Saturday plus one lands on Monday",
			assignedAt: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
			days:       1,
			expected:   time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		},
		{
			name:       "zero days is unchanged",
			assignedAt: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
			days:       0,
			expected:   time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeDeadline(tc.assignedAt, tc.days)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
		})
	}
}

func TestTimeRemaining(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	t.Run("future", func(t *testing.T) {
		r := TimeRemaining(now.Add(50*time.Hour), now)
		assert.False(t, r.Overdue)
		assert.Equal(t, 50, r.Hours)
		assert.Equal(t, 2, r.Days)
	})

	t.Run("past is clamped", func(t *testing.T) {
		r := TimeRemaining(now.Add(-10*time.Hour), now)
		assert.True(t, r.Overdue)
		assert.Equal(t, 0, r.Hours)
		assert.Equal(t, 0, r.Days)
		assert.Equal(t, -10*time.Hour, r.Delta)
	})

	t.Run("partial hours are floored", func(t *testing.T) {
		r := TimeRemaining(now.Add(72*time.Hour+30*time.Minute), now)
		assert.Equal(t, 72, r.Hours)
		assert.Equal(t, 3, r.Days)

		r = TimeRemaining(now.Add(47*time.Hour+59*time.Minute), now)
		assert.Equal(t, 47, r.Hours)
		assert.Equal(t, 1, r.Days)
	})

	t.Run("exactly now is not overdue", func(t *testing.T) {
		r := TimeRemaining(now, now)
		assert.False(t, r.Overdue)
		assert.Equal(t, 0, r.Hours)
	})
}

func TestLinesChanged(t *testing.T) {
	assert.Equal(t, 30, LinesChanged(20, 10, 1000))
	assert.Equal(t, 10, LinesChanged(-5, 10, 1000))
	assert.Equal(t, 1000, LinesChanged(900, 900, 1000))
	assert.Equal(t, 1800, LinesChanged(900, 900, 0))
}

func TestSanitizeLogin(t *testing.T) {
	assert.Equal(t, "octo-cat_42", SanitizeLogin("Octo-Cat_42"))
	assert.Equal(t, "a_b_c", SanitizeLogin("a.b/c"))
	assert.Equal(t, "dev", SanitizeLogin("  DEV "))
}
