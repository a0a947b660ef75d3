// Package output provides JSON/Markdown output formatting and error handling.
package output

// Exit codes.
const (
	ExitOK                 = 0 // Success
	ExitUsage              = 1 // Invalid arguments, flags or request
	ExitNotFound           = 2 // Resource not found
	ExitAuth               = 3 // Not logged in
	ExitForbidden          = 4 // Access denied
	ExitRateLimit          = 5 // Too many requests (429)
	ExitNetwork            = 6 // Connection/DNS/timeout error
	ExitAPI                = 7 // Server returned error
	ExitInsufficientPoints = 9 // Payment required (402)
)

// Error codes for JSON envelope.
const (
	CodeUsage              = "usage"
	CodeNotFound           = "not_found"
	CodeAuth               = "auth_required"
	CodeForbidden          = "forbidden"
	CodeRateLimit          = "rate_limit"
	CodeNetwork            = "network"
	CodeAPI                = "api_error"
	CodeInsufficientPoints = "insufficient_points"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeForbidden:
		return ExitForbidden
	case CodeRateLimit:
		return ExitRateLimit
	case CodeNetwork:
		return ExitNetwork
	case CodeAPI:
		return ExitAPI
	case CodeInsufficientPoints:
		return ExitInsufficientPoints
	default:
		return ExitAPI
	}
}
