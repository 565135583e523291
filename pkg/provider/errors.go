package provider

import (
	"fmt"
	"strings"
)

// AuthError reports a failed login or token refresh. Logins are never
// retried automatically: repeating one can trip provider-side lockouts.
type AuthError struct {
	Provider string
	Op       string
	Status   int
	Err      error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s failed with status %d", e.Provider, e.Op, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s failed: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s failed", e.Provider, e.Op)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ScrapeError reports that an expected structure could not be located in a
// provider page. It almost always means the upstream page format changed.
type ScrapeError struct {
	Provider string
	Want     string
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("%s: page structure changed, could not locate %s", e.Provider, e.Want)
}

// FetchError reports a non-2xx response to a data request. Status and body
// are kept verbatim for diagnostics.
type FetchError struct {
	Provider string
	Status   int
	Body     string
}

func (e *FetchError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("%s: data request returned %d: %s", e.Provider, e.Status, body)
}

// Transient reports whether the failure is worth retrying: server-side
// errors only, never 4xx.
func (e *FetchError) Transient() bool { return e.Status >= 500 }

// SchemaError reports fields or columns missing (or malformed) in a provider
// payload.
type SchemaError struct {
	Provider string
	Missing  []string
	Reason   string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: payload missing required columns: %s", e.Provider, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: malformed payload: %s", e.Provider, e.Reason)
}
