package response

const (
	CodeSuccess      = 2000 // Success
	CodeParamInvalid = 4000 // Request body or params invalid
	CodeUnauthorized = 4001 // Missing or invalid token
	CodeForbidden    = 4003 // Authenticated but not allowed
	CodeNotFound     = 4004 // Resource not found
	CodeRateLimited  = 4029 // Too many requests
	CodeInternal     = 5000 // Unexpected failure
	CodeUnavailable  = 5003 // Dependency down
)

// message
var msg = map[int]string{
	CodeSuccess:      "success",
	CodeParamInvalid: "invalid request",
	CodeUnauthorized: "unauthorized",
	CodeForbidden:    "forbidden",
	CodeNotFound:     "not found",
	CodeRateLimited:  "rate limit exceeded",
	CodeInternal:     "internal server error",
	CodeUnavailable:  "service unavailable",
}

// Message returns the default text for a code.
func Message(code int) string {
	if m, ok := msg[code]; ok {
		return m
	}
	return "unknown error"
}
