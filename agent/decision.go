package agent

import (
	"regexp"
	"strings"
)

// Decision is the processed trade signal of a run.
type Decision string

const (
	Buy  Decision = "BUY"
	Sell Decision = "SELL"
	Hold Decision = "HOLD"
)

var (
	proposalRe = regexp.MustCompile(`(?i)FINAL\s+TRANSACTION\s+PROPOSAL\s*:\s*\**\s*(BUY|SELL|HOLD)\b`)
	signalRe   = regexp.MustCompile(`(?i)\b(BUY|SELL|HOLD)\b`)
)

// ExtractDecision reduces a free text decision to BUY, SELL or HOLD. An
// explicit final transaction proposal wins; otherwise the last signal word
// is used. Text without any signal yields HOLD.
func ExtractDecision(text string) Decision {
	if m := proposalRe.FindAllStringSubmatch(text, -1); len(m) > 0 {
		return Decision(strings.ToUpper(m[len(m)-1][1]))
	}
	if m := signalRe.FindAllString(text, -1); len(m) > 0 {
		return Decision(strings.ToUpper(m[len(m)-1]))
	}
	return Hold
}
