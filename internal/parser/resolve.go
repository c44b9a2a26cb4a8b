package parser

import (
	"strings"

	"github.com/hunseop/hoon-firewall-modules/internal/model"
	"github.com/hunseop/hoon-firewall-modules/internal/policyset"
	"github.com/hunseop/hoon-firewall-modules/pkg/wellknown"
)

// ResolveWellKnownServices fills the Extracted Service column from the raw
// Service column, mapping bare well-known names (https, DNS, ...) to
// PROTOCOL/PORT tokens. Rules that already carry an extracted value keep
// it. This is the mechanical half of object resolution; named group
// expansion stays with the vendor collectors.
func ResolveWellKnownServices(t *model.Table) {
	if t == nil || !t.HasColumn(model.ColService) {
		return
	}
	for i := range t.Rules {
		rule := &t.Rules[i]
		if rule.ExtractedService != "" {
			continue
		}
		rule.ExtractedService = resolveServiceExpr(rule.Service)
	}
	if !t.HasColumn(model.ColExtractedService) {
		t.Columns = append(t.Columns, model.ColExtractedService)
	}
}

func resolveServiceExpr(raw string) string {
	if strings.ToLower(strings.TrimSpace(raw)) == "any" || strings.TrimSpace(raw) == "" {
		return "any"
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			out = append(out, policyset.NormalizeServiceToken(part))
			continue
		}
		if tokens, ok := wellknown.Tokens(part); ok {
			out = append(out, tokens...)
			continue
		}
		out = append(out, part)
	}
	return strings.Join(out, ",")
}
