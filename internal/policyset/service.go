package policyset

import (
	"sort"
	"strings"
)

// ServiceSet is the normalized value of a Service field: the any sentinel
// or a set of PROTOCOL/PORT tokens with the protocol upcased. Tokens
// without a slash (service object names, bare ports) are kept verbatim and
// compared by equality. Port ranges are deliberately not decomposed into
// numeric intervals; TCP/8000-8080 only matches itself.
type ServiceSet struct {
	any    bool
	tokens map[string]bool
}

func isAnyService(s string) bool {
	return strings.ToLower(strings.TrimSpace(s)) == "any" || strings.TrimSpace(s) == ""
}

// ParseServiceSet normalizes a raw service field. Idempotent like
// ParseAddressSet.
func ParseServiceSet(raw string) ServiceSet {
	if isAnyService(raw) {
		return ServiceSet{any: true}
	}
	tokens := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens[normalizeServiceToken(part)] = true
	}
	if len(tokens) == 0 {
		return ServiceSet{any: true}
	}
	return ServiceSet{tokens: tokens}
}

// NormalizeServiceToken canonicalizes one service token: the protocol part
// of PROTO/PORT is upcased, anything else passes through unchanged.
func NormalizeServiceToken(s string) string {
	return normalizeServiceToken(strings.TrimSpace(s))
}

func normalizeServiceToken(s string) string {
	proto, port, found := strings.Cut(s, "/")
	if !found {
		return s
	}
	return strings.ToUpper(proto) + "/" + port
}

func (s ServiceSet) IsAny() bool { return s.any }

// Tokens returns the normalized tokens in sorted order, nil for any.
func (s ServiceSet) Tokens() []string {
	if s.any {
		return nil
	}
	out := make([]string, 0, len(s.tokens))
	for t := range s.tokens {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s ServiceSet) String() string {
	if s.any {
		return "any"
	}
	return strings.Join(s.Tokens(), ",")
}

func (s ServiceSet) Equal(o ServiceSet) bool {
	if s.any || o.any {
		return s.any == o.any
	}
	if len(s.tokens) != len(o.tokens) {
		return false
	}
	for t := range s.tokens {
		if !o.tokens[t] {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every service matched by s is matched by o.
func (s ServiceSet) SubsetOf(o ServiceSet) bool {
	if o.any {
		return true
	}
	if s.any {
		return false
	}
	for t := range s.tokens {
		if !o.tokens[t] {
			return false
		}
	}
	return true
}

// Overlaps reports whether the two sets share at least one service.
func (s ServiceSet) Overlaps(o ServiceSet) bool {
	if s.any || o.any {
		return true
	}
	for t := range s.tokens {
		if o.tokens[t] {
			return true
		}
	}
	return false
}
