package limiter

import "strings"

// RequestInfo is what a transport knows about the caller.
type RequestInfo struct {
	Address   string
	UserID    string
	SessionID string
}

// IdentityFunc derives the rate limit key of a caller.
type IdentityFunc func(RequestInfo) string

// ByAddress keys callers by client address.
func ByAddress(r RequestInfo) string {
	if r.Address == "" {
		return ""
	}
	return "ip:" + r.Address
}

// ByUser keys authenticated callers by user id and anonymous ones by address.
func ByUser(r RequestInfo) string {
	if r.UserID == "" {
		return ByAddress(r)
	}
	return "user:" + r.UserID
}

// BySession keys callers by session id, falling back to the address.
func BySession(r RequestInfo) string {
	if r.SessionID == "" {
		return ByAddress(r)
	}
	return "session:" + r.SessionID
}

// Composite joins address, user and session. Anonymous callers sharing one
// address but holding different sessions get separate quotas.
func Composite(r RequestInfo) string {
	if r.Address == "" && r.UserID == "" && r.SessionID == "" {
		return ""
	}
	parts := []string{
		orAnonymous(r.Address),
		orAnonymous(r.UserID),
		orAnonymous(r.SessionID),
	}
	return strings.Join(parts, "|")
}

func orAnonymous(s string) string {
	if s == "" {
		return "anonymous"
	}
	return s
}

// IdentityByName resolves "address", "user", "session" or "composite".
func IdentityByName(name string) (IdentityFunc, bool) {
	switch strings.ToLower(name) {
	case "address", "ip":
		return ByAddress, true
	case "user":
		return ByUser, true
	case "session":
		return BySession, true
	case "", "composite":
		return Composite, true
	default:
		return nil, false
	}
}
