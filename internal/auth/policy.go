package auth

import (
	"net/http"
	"strings"
)

// Rule maps requests to the role they require. Path is an exact match unless
// Prefix is set; an empty Methods list matches every method. Contains, when
// set, must also appear in the path.
type Rule struct {
	Methods  []string
	Path     string
	Prefix   bool
	Contains string
	Role     Role
}

func (rule Rule) matches(r *http.Request) bool {
	path := r.URL.Path
	if rule.Prefix {
		if !strings.HasPrefix(path, rule.Path) {
			return false
		}
	} else if path != rule.Path {
		return false
	}
	if rule.Contains != "" && !strings.Contains(path, rule.Contains) {
		return false
	}
	if len(rule.Methods) == 0 {
		return true
	}
	for _, method := range rule.Methods {
		if method == r.Method {
			return true
		}
	}
	return false
}

var readMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}

// defaultRules is evaluated top-down; the first match wins.
var defaultRules = []Rule{
	{Path: "/api/v1/equipment/", Prefix: true, Role: RoleViewer},
	{Path: "/api/v1/assessments/stream", Role: RoleViewer},
	{Path: "/api/v1/reports", Methods: []string{http.MethodPost}, Role: RoleOperator},
	{Path: "/api/v1/reports", Role: RoleViewer},
	{Path: "/api/v1/reports/", Prefix: true, Contains: "/export.", Role: RoleAdmin},
	{Path: "/api/v1/reports/", Prefix: true, Methods: []string{http.MethodGet}, Role: RoleViewer},
	{Path: "/api/v1/reports/", Prefix: true, Role: RoleAdmin},
	{Path: "/api/", Prefix: true, Methods: readMethods, Role: RoleViewer},
	{Path: "/api/", Prefix: true, Role: RoleOperator},
}

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
	Rules          []Rule
}

// NewDefaultPolicy builds the assessment API policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	rules := make([]Rule, len(defaultRules))
	copy(rules, defaultRules)
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes, Rules: rules}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the role of the first matching rule. Requests no
// rule matches pass through unauthenticated.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	for _, rule := range p.Rules {
		if rule.matches(r) {
			return rule.Role, true
		}
	}
	return "", false
}
