// Package nav names the navigation destinations the flow layer can signal.
// The view layer owns how a destination is rendered; flows only emit them.
package nav

import "net/url"

// Destination is a named screen target.
type Destination string

const (
	SignIn   Destination = "sign-in"
	SignUp   Destination = "sign-up"
	Verify   Destination = "verify"
	Callback Destination = "callback"
	Main     Destination = "main"
	NotFound Destination = "not-found"
)

// VerifyFor returns the verify destination parameterized by the target
// email, e.g. "verify?email=a%40mail.utdt.edu".
func VerifyFor(email string) Destination {
	return Destination(string(Verify) + "?email=" + url.QueryEscape(email))
}

// Base strips any parameters from a destination.
func (d Destination) Base() Destination {
	for i := 0; i < len(d); i++ {
		if d[i] == '?' {
			return d[:i]
		}
	}
	return d
}

// Param extracts a query parameter from a parameterized destination.
func (d Destination) Param(key string) string {
	for i := 0; i < len(d); i++ {
		if d[i] == '?' {
			vals, err := url.ParseQuery(string(d[i+1:]))
			if err != nil {
				return ""
			}
			return vals.Get(key)
		}
	}
	return ""
}
