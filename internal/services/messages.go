package services

import (
	"fmt"
	"strings"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/validation"
)

// DeadlineLabel is the tracker label carrying an assignment's due date.
func DeadlineLabel(a models.Assignment) string {
	return "sentinel-deadline: " + a.Deadline.Format("2006-01-02")
}

func formatRemaining(rem validation.Remaining) string {
	hours := rem.Hours
	msg := fmt.Sprintf("%d day(s)", hours/24)
	if h := hours % 24; h > 0 {
		msg += fmt.Sprintf(" and %d hour(s)", h)
	}
	return msg
}

func askForInfoMessage(author string, rules validation.IdentityRules) string {
	return fmt.Sprintf(`🎉 **Congratulations @%s on your first contribution!**

To complete your onboarding as an **Apprentice**, please reply with:

1. **Discord User ID** (%d-%d digits)
2. **Wallet Address** (%s followed by %d hex characters)

**Format:**
`+"```"+`
Discord: YOUR_DISCORD_ID
Wallet: YOUR_WALLET_ADDRESS
`+"```"+`

To find your Discord ID, enable Developer Mode (Settings → Advanced), right-click your username and select "Copy User ID".`,
		author, rules.ChatIDLengthMin, rules.ChatIDLengthMax,
		rules.WalletAddressPrefix, rules.WalletAddressLength-len(rules.WalletAddressPrefix))
}

func onboardingSuccessMessage(author string) string {
	return fmt.Sprintf("✅ Welcome aboard @%s! You are now an **Apprentice**. Keep the pull requests coming to work toward Sentinel.", author)
}

func deadlineReminderMessage(login string, rem validation.Remaining, overrideLabel string) string {
	return fmt.Sprintf(`⏰ **Deadline Reminder**

@%s, this issue has %s remaining until deadline.

Need help? Add the `+"`help-wanted`"+` label or reach out in Discord.
Unexpected complexity? Ask a Knight to add the `+"`%s`"+` label for extended time.`,
		login, formatRemaining(rem), overrideLabel)
}

func deadlineReminderDM(ref models.IssueRef, rem validation.Remaining) string {
	return fmt.Sprintf("⏰ %s is due in %s: %s", ref, formatRemaining(rem), ref.URL())
}

func assignmentMessage(login string, a models.Assignment) string {
	return fmt.Sprintf(`🛡️ **Assigned to Sentinel @%s**

Deadline: **%s** (business days only).
Comment here if you get blocked; a Knight can extend the deadline.`,
		login, a.Deadline.Format("Monday, 2006-01-02 15:04 MST"))
}

func assignmentDM(ref models.IssueRef, a models.Assignment) string {
	return fmt.Sprintf("🛡️ You have been assigned %s, due %s: %s", ref, a.Deadline.Format("2006-01-02"), ref.URL())
}

func promotionMessage(c *models.Contributor) string {
	return fmt.Sprintf("🎖️ **%s** has been promoted to **Sentinel** after %d qualifying pull requests!", c.GitHub.Login, c.Stats.TotalPRs)
}

func escalationMessage() string {
	return `⚠️ **No Sentinels Available**

This issue has been escalated to Knights for manual assignment as no Sentinels are currently available.

@knights - Please review and assign.`
}

func knightsAlertMessage(ref models.IssueRef) string {
	return fmt.Sprintf("⚠️ No Sentinel available for %s, please assign manually: %s", ref, ref.URL())
}

func apprenticeIssueMessage(issue *models.IssueState) string {
	title := issue.Title
	if title == "" {
		title = issue.Ref.String()
	}
	return fmt.Sprintf("🌱 New good first issue: **%s**\n%s", title, issue.Ref.URL())
}

func healthSummaryMessage(report *models.HealthReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🩺 Health check: checked %d, freed %d, reassigned %d, escalated %d, warned %d",
		report.TotalChecked, report.Freed, report.Reassigned, report.Escalated, report.Warned)
	for _, signal := range report.Reassign {
		fmt.Fprintf(&b, "\n• %s taken from %s", signal.Issue, signal.PreviousHolder)
	}
	return b.String()
}
