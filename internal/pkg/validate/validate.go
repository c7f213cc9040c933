package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// Email reports whether s is a syntactically valid email address.
func Email(s string) bool {
	return v.Var(s, "required,email") == nil
}

// CampusEmail checks that s is a valid address under the given domain
// (case-insensitive). An empty domain disables the restriction.
func CampusEmail(s, domain string) error {
	if !Email(s) {
		return fmt.Errorf("'%s' is not a valid email address", s)
	}
	if domain == "" {
		return nil
	}
	at := strings.LastIndex(s, "@")
	if at < 0 || !strings.EqualFold(s[at+1:], domain) {
		return fmt.Errorf("only @%s addresses can sign in", domain)
	}
	return nil
}
