package urlutil

import (
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DefaultAllowedDomains is the allow-list used when none is configured.
var DefaultAllowedDomains = []string{
	"google.com",
	"yahoo.com",
	"bing.com",
	"youtube.com",
	"facebook.com",
	"instagram.com",
}

// Validator decides whether a submitted string is an acceptable probe target.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	domains []string
}

// NewValidator builds a Validator for the given allow-list. Entries are
// lowercased and stripped of surrounding whitespace and leading dots.
func NewValidator(domains []string) *Validator {
	v := &Validator{}
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			v.domains = append(v.domains, d)
		}
	}
	return v
}

// Domains returns a copy of the normalised allow-list.
func (v *Validator) Domains() []string {
	return append([]string(nil), v.domains...)
}

// Validate reports whether candidate may be probed.
func (v *Validator) Validate(candidate string) bool {
	return v.Check(candidate) == nil
}

// Check returns nil when candidate may be probed, or an error describing why not.
func (v *Validator) Check(candidate string) error {
	return validation.Validate(candidate,
		validation.Required,
		validation.By(v.checkTarget),
	)
}

func (v *Validator) checkTarget(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	if !v.allowed(host) {
		return validation.NewError("validation_domain_not_allowed", "domain is not in the allow-list")
	}
	return nil
}

func (v *Validator) allowed(host string) bool {
	host = strings.TrimSuffix(host, ".")
	for _, d := range v.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
