package gateway

import (
	"errors"
	"net"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go/v2"

	"agentcore/internal/llmerr"
)

// ClassifyError maps a provider error, however it surfaces, onto the
// shared llmerr taxonomy. SDK error types carry a concrete status code;
// anything else falls back to substring sniffing in the style of
// haasonsaas-nexus's classifyProviderError.
func ClassifyError(err error) llmerr.Kind {
	if err == nil {
		return llmerr.ServerError
	}

	var aerr *anthropicsdk.Error
	if errors.As(err, &aerr) {
		return llmerr.ClassifyHTTPStatus(aerr.StatusCode)
	}

	var oerr *openaisdk.Error
	if errors.As(err, &oerr) {
		return llmerr.ClassifyHTTPStatus(oerr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return llmerr.NetworkError
	}

	return classifyBySubstring(err.Error())
}

func classifyBySubstring(msg string) llmerr.Kind {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "rate_limit"),
		strings.Contains(lower, "too many requests"), strings.Contains(lower, "429"):
		return llmerr.RateLimited
	case strings.Contains(lower, "model not found"), strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "unsupported model"):
		return llmerr.IncompatibleModel
	case strings.Contains(lower, "invalid"), strings.Contains(lower, "bad request"),
		strings.Contains(lower, "unauthorized"), strings.Contains(lower, "authentication"),
		strings.Contains(lower, "400"), strings.Contains(lower, "401"), strings.Contains(lower, "403"):
		return llmerr.ClientError
	case strings.Contains(lower, "internal server"), strings.Contains(lower, "server error"),
		strings.Contains(lower, "502"), strings.Contains(lower, "503"), strings.Contains(lower, "504"),
		strings.Contains(lower, "500"):
		return llmerr.ServerError
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"),
		strings.Contains(lower, "connection refused"), strings.Contains(lower, "eof"):
		return llmerr.NetworkError
	case strings.Contains(lower, "unmarshal"), strings.Contains(lower, "parse"), strings.Contains(lower, "decode"):
		return llmerr.ParseError
	default:
		return llmerr.ServerError
	}
}
