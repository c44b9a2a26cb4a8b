// Package policyset interprets firewall policy fields as comparable sets.
// Address and service expressions from rule exports are normalized into
// value types supporting equality, subset and overlap tests, which the
// redundancy, shadow and filter analyses share.
package policyset

import (
	"net/netip"
	"sort"
	"strings"

	"go4.org/netipx"
)

type addrKind int

const (
	addrPrefix addrKind = iota
	addrSingle
	addrRange
	addrOpaque
)

type addrToken struct {
	kind addrKind
	text string // canonical form
	r    netipx.IPRange
}

// AddressSet is the normalized value of a Source/Destination field: either
// the "matches everything" sentinel or a set of CIDR, range, single-host
// and opaque tokens. Tokens that cannot be parsed (hostnames, object names
// that escaped resolution) are kept as opaque strings and compared by
// equality only.
type AddressSet struct {
	any    bool
	tokens []addrToken
}

func isAnyAddr(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "any4":
		return true
	}
	return false
}

// ParseAddressSet normalizes a raw address field. Parsing never fails:
// malformed tokens degrade to opaque strings. Normalization is idempotent;
// ParseAddressSet(s.String()) yields a set equal to s.
func ParseAddressSet(raw string) AddressSet {
	if isAnyAddr(raw) {
		return AddressSet{any: true}
	}
	seen := make(map[string]bool)
	var tokens []addrToken
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tok := parseAddrToken(part)
		if !seen[tok.text] {
			seen[tok.text] = true
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return AddressSet{any: true}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].text < tokens[j].text })
	return AddressSet{tokens: tokens}
}

func parseAddrToken(s string) addrToken {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return addrToken{kind: addrOpaque, text: s}
		}
		p = p.Masked()
		kind := addrPrefix
		if p.IsSingleIP() {
			kind = addrSingle
		}
		return addrToken{kind: kind, text: p.String(), r: netipx.RangeOfPrefix(p)}
	}
	if strings.Contains(s, "-") && strings.Contains(s, ".") {
		from, to, ok := parseRangeEnds(s)
		if ok {
			return addrToken{
				kind: addrRange,
				text: from.String() + "-" + to.String(),
				r:    netipx.IPRangeFrom(from, to),
			}
		}
		return addrToken{kind: addrOpaque, text: s}
	}
	if a, err := netip.ParseAddr(s); err == nil {
		p := netip.PrefixFrom(a, a.BitLen())
		return addrToken{kind: addrSingle, text: p.String(), r: netipx.RangeOfPrefix(p)}
	}
	return addrToken{kind: addrOpaque, text: s}
}

func parseRangeEnds(s string) (from, to netip.Addr, ok bool) {
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		return from, to, false
	}
	from, err1 := netip.ParseAddr(strings.TrimSpace(lo))
	to, err2 := netip.ParseAddr(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil || from.Compare(to) > 0 {
		return from, to, false
	}
	return from, to, true
}

// IsAny reports whether the set matches everything.
func (s AddressSet) IsAny() bool { return s.any }

// Tokens returns the canonical token strings in sorted order, or nil for
// the any sentinel.
func (s AddressSet) Tokens() []string {
	if s.any {
		return nil
	}
	out := make([]string, len(s.tokens))
	for i, t := range s.tokens {
		out[i] = t.text
	}
	return out
}

func (s AddressSet) String() string {
	if s.any {
		return "any"
	}
	return strings.Join(s.Tokens(), ",")
}

// Equal reports set equality on canonical tokens.
func (s AddressSet) Equal(o AddressSet) bool {
	if s.any || o.any {
		return s.any == o.any
	}
	if len(s.tokens) != len(o.tokens) {
		return false
	}
	for i := range s.tokens {
		if s.tokens[i].text != o.tokens[i].text {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every address matched by s is matched by o.
// Containment is only recognized between like representations (CIDR in
// CIDR, host in CIDR, range in range) plus opaque string equality; a range
// inside a CIDR or vice versa is not detected. That mirrors the vendor
// exports this was built against and may under-report containment for
// mixed expressions.
func (s AddressSet) SubsetOf(o AddressSet) bool {
	if o.any {
		return true
	}
	if s.any {
		return false
	}
	for _, a := range s.tokens {
		if !coveredBy(a, o.tokens) {
			return false
		}
	}
	return true
}

func coveredBy(a addrToken, super []addrToken) bool {
	for _, b := range super {
		if coversToken(b, a) {
			return true
		}
	}
	return false
}

// coversToken reports whether outer fully contains inner.
func coversToken(outer, inner addrToken) bool {
	if outer.kind == addrOpaque || inner.kind == addrOpaque {
		return outer.text == inner.text
	}
	switch {
	case inner.kind == addrRange && outer.kind == addrRange:
	case inner.kind != addrRange && outer.kind != addrRange:
	default:
		// Mixed range/CIDR representations are never considered covered.
		return false
	}
	return outer.r.From().Compare(inner.r.From()) <= 0 &&
		outer.r.To().Compare(inner.r.To()) >= 0
}

// Overlaps reports whether s and o match at least one common address.
// Either side being any always overlaps.
func (s AddressSet) Overlaps(o AddressSet) bool {
	if s.any || o.any {
		return true
	}
	return s.OverlapsLiteral(o)
}

// OverlapsLiteral tests token-level overlap only, ignoring the any
// sentinel on either side. The rule filter uses it to distinguish rules
// literally covering an address from rules that allow everything.
func (s AddressSet) OverlapsLiteral(o AddressSet) bool {
	if s.any || o.any {
		return false
	}
	for _, a := range s.tokens {
		for _, b := range o.tokens {
			if tokensOverlap(a, b) {
				return true
			}
		}
	}
	return false
}

func tokensOverlap(a, b addrToken) bool {
	if a.kind == addrOpaque || b.kind == addrOpaque {
		return a.text == b.text
	}
	// A range only overlaps another range or a single host; range-vs-CIDR
	// stays undetected, same limitation as SubsetOf.
	if (a.kind == addrRange && b.kind == addrPrefix) ||
		(b.kind == addrRange && a.kind == addrPrefix) {
		return false
	}
	return a.r.Overlaps(b.r)
}
