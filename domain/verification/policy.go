package verification

import "strings"

// FakeBlockThreshold is the confidence above which a fake verdict blocks.
const FakeBlockThreshold = 80

// RestrictedKeywords block content when any detected issue contains one.
var RestrictedKeywords = []string{
	"violence",
	"protest",
	"blood",
	"gore",
	"racism",
	"hate",
	"weapon",
	"nsfw",
	"explicit",
}

// Decision is the outcome of applying the policy to a verdict.
type Decision string

// Decision values.
const (
	DecisionAllow Decision = "allow"
	DecisionWarn  Decision = "warn"
	DecisionBlock Decision = "block"
)

// RestrictedIssues returns the detected issues that match a restricted keyword.
func RestrictedIssues(v Verdict) []string {
	var out []string
	for _, issue := range v.DetectedIssues {
		lower := strings.ToLower(issue)
		for _, kw := range RestrictedKeywords {
			if strings.Contains(lower, kw) {
				out = append(out, issue)
				break
			}
		}
	}
	return out
}

// Evaluate applies the blocking policy. Restricted issues block regardless
// of confidence; a fake verdict blocks only above FakeBlockThreshold and
// otherwise warns.
func Evaluate(v Verdict) Decision {
	if len(RestrictedIssues(v)) > 0 {
		return DecisionBlock
	}
	if v.IsFake && v.ConfidenceScore > FakeBlockThreshold {
		return DecisionBlock
	}
	if v.IsFake {
		return DecisionWarn
	}
	return DecisionAllow
}

// ShouldBlock reports whether the verdict blocks an upload.
func ShouldBlock(v Verdict) bool {
	return Evaluate(v) == DecisionBlock
}
