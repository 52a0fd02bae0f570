package dto

import "github.com/helixml/damkit/domain/verification"

// VerifyRequest submits content for verification.
type VerifyRequest struct {
	ContentType string `json:"contentType"`
	ContentURL  string `json:"contentUrl,omitempty"`
	ContentText string `json:"contentText,omitempty"`
}

// VerifyResponse is the verification outcome.
type VerifyResponse struct {
	Success  bool                  `json:"success"`
	Result   *verification.Result  `json:"result,omitempty"`
	Decision verification.Decision `json:"decision,omitempty"`
	Issues   []string              `json:"restricted_issues,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// NewVerifyResponse builds a successful response for result.
func NewVerifyResponse(result verification.Result) VerifyResponse {
	return VerifyResponse{
		Success:  true,
		Result:   &result,
		Decision: verification.Evaluate(result.Verdict),
		Issues:   verification.RestrictedIssues(result.Verdict),
	}
}
