package config

import (
	"fmt"
	"regexp"
	"strings"
)

// DevOrigins are allowed when no origins are configured in dev mode.
var DevOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:3001",
}

// OriginPolicy decides which browser origins may call the API.
type OriginPolicy struct {
	exact    map[string]bool
	patterns []*regexp.Regexp
}

// NewOriginPolicy builds a policy from exact origins and wildcard patterns
// such as "https://*.example.com", where "*" matches one host label run
// without slashes. A bare "*" is rejected.
func NewOriginPolicy(origins []string, dev bool) (*OriginPolicy, error) {
	p := &OriginPolicy{exact: make(map[string]bool)}
	if len(origins) == 0 && dev {
		origins = DevOrigins
	}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o == "*" {
			return nil, fmt.Errorf("cors origin %q would allow every site", o)
		}
		if !strings.Contains(o, "*") {
			p.exact[strings.ToLower(o)] = true
			continue
		}
		quoted := strings.Split(o, "*")
		for i := range quoted {
			quoted[i] = regexp.QuoteMeta(strings.ToLower(quoted[i]))
		}
		re, err := regexp.Compile("^" + strings.Join(quoted, "[^/]+") + "$")
		if err != nil {
			return nil, fmt.Errorf("cors origin %q: %w", o, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// Allowed reports whether origin may make cross-origin requests.
func (p *OriginPolicy) Allowed(origin string) bool {
	origin = strings.ToLower(origin)
	if origin == "" {
		return false
	}
	if p.exact[origin] {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// Empty reports whether the policy allows no origin at all.
func (p *OriginPolicy) Empty() bool {
	return len(p.exact) == 0 && len(p.patterns) == 0
}
