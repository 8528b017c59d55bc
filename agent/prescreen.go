package agent

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/model"
)

// NewPreScreen returns the node that screens the fundamentals report for
// disqualifying red flags before the debate. The model answers with a JSON
// verdict; a REJECT verdict or any AUTO_REJECT flag rejects the subject,
// an unreadable answer leaves the result UNKNOWN.
func NewPreScreen(m model.Model, optFns ...func(o *Options)) Node {
	opts := buildOptions(preScreenPrompt, optFns)

	return func(ctx context.Context, s core.AgentState, _ *core.RunConfig) (core.Update, error) {
		vars := map[string]any{
			"subject":      s.Subject,
			"date":         s.TradeDate,
			"fundamentals": s.FundamentalsReport,
		}
		msg, instr, err := call(ctx, m, opts, IDPreScreen, s, vars, model.Request{})
		if err != nil {
			return core.Update{}, err
		}

		result, flags, ok := ParseScreen(msg.Content)
		if !ok {
			opts.Logger.Warn("agent.prescreen.unparseable", "subject", s.Subject)
		}
		opts.Logger.Info("agent.prescreen.verdict", "subject", s.Subject, "result", string(result), "red_flags", len(flags))

		return core.Update{
			Messages:    []core.Message{msg},
			PreScreen:   core.Set(result),
			RedFlags:    flags,
			PromptsUsed: map[string]string{IDPreScreen: instr},
		}, nil
	}
}

// ParseScreen extracts the verdict and red flags from a screening answer.
// The JSON object may be wrapped in prose or a code fence. ok is false when
// no JSON object could be read.
func ParseScreen(text string) (core.PreScreenResult, []core.RedFlag, bool) {
	raw, ok := extractJSON(text)
	if !ok {
		return core.PreScreenUnknown, nil, false
	}

	doc := gjson.Parse(raw)
	var flags []core.RedFlag
	autoReject := false
	doc.Get("red_flags").ForEach(func(_, v gjson.Result) bool {
		f := core.RedFlag{
			Severity:    strings.ToUpper(v.Get("severity").String()),
			Action:      strings.ToUpper(v.Get("action").String()),
			Description: v.Get("description").String(),
		}
		if f.Action == core.ActionAutoReject {
			autoReject = true
		}
		flags = append(flags, f)
		return true
	})

	result := core.ParsePreScreen(doc.Get("verdict").String())
	if autoReject {
		result = core.PreScreenReject
	}
	return result, flags, true
}

// extractJSON returns the outermost {...} span of text if it is valid JSON.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	raw := text[start : end+1]
	if !gjson.Valid(raw) {
		return "", false
	}
	return raw, true
}
