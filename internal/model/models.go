package model

// Logical column names of a rule table. Vendor exports use these exact
// headers; anything else lands in Rule.Extra.
const (
	ColRuleName             = "Rule Name"
	ColEnable               = "Enable"
	ColAction               = "Action"
	ColSource               = "Source"
	ColDestination          = "Destination"
	ColService              = "Service"
	ColExtractedSource      = "Extracted Source"
	ColExtractedDestination = "Extracted Destination"
	ColExtractedService     = "Extracted Service"
	ColApplication          = "Application"
	ColUser                 = "User"
)

// CoreColumns lists the known columns in their canonical order.
var CoreColumns = []string{
	ColRuleName, ColEnable, ColAction,
	ColSource, ColDestination, ColService,
	ColExtractedSource, ColExtractedDestination, ColExtractedService,
	ColApplication, ColUser,
}

type Vendor string

const (
	VendorDefault  Vendor = "default"
	VendorPaloAlto Vendor = "paloalto"
	VendorNGF      Vendor = "ngf"
	VendorMF2      Vendor = "mf2"
)

// ParseVendor maps a vendor key to a known Vendor. Unrecognized keys fall
// back to VendorDefault rather than failing.
func ParseVendor(s string) Vendor {
	switch Vendor(s) {
	case VendorPaloAlto, VendorNGF, VendorMF2:
		return Vendor(s)
	default:
		return VendorDefault
	}
}

// Rule is one firewall policy entry. Core fields are typed; vendor-specific
// columns (Security Profile, Category, Vsys, ...) live in Extra.
type Rule struct {
	Name                 string
	Enable               string // "Y" or "N"
	Action               string
	Source               string
	Destination          string
	Service              string
	ExtractedSource      string
	ExtractedDestination string
	ExtractedService     string
	Application          string
	User                 string
	Extra                map[string]string
}

func (r *Rule) Enabled() bool { return r.Enable == "Y" }

// Field returns the value of a logical column. Unknown columns are looked
// up in Extra; a missing column reads as the empty string.
func (r *Rule) Field(col string) string {
	switch col {
	case ColRuleName:
		return r.Name
	case ColEnable:
		return r.Enable
	case ColAction:
		return r.Action
	case ColSource:
		return r.Source
	case ColDestination:
		return r.Destination
	case ColService:
		return r.Service
	case ColExtractedSource:
		return r.ExtractedSource
	case ColExtractedDestination:
		return r.ExtractedDestination
	case ColExtractedService:
		return r.ExtractedService
	case ColApplication:
		return r.Application
	case ColUser:
		return r.User
	default:
		return r.Extra[col]
	}
}

func (r *Rule) SetField(col, val string) {
	switch col {
	case ColRuleName:
		r.Name = val
	case ColEnable:
		r.Enable = val
	case ColAction:
		r.Action = val
	case ColSource:
		r.Source = val
	case ColDestination:
		r.Destination = val
	case ColService:
		r.Service = val
	case ColExtractedSource:
		r.ExtractedSource = val
	case ColExtractedDestination:
		r.ExtractedDestination = val
	case ColExtractedService:
		r.ExtractedService = val
	case ColApplication:
		r.Application = val
	case ColUser:
		r.User = val
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[col] = val
	}
}

func (r *Rule) Clone() Rule {
	c := *r
	if r.Extra != nil {
		c.Extra = make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// Table is an ordered firewall rule set. Row position is the firewall's
// evaluation order; the analyses never re-sort it.
type Table struct {
	Columns []string
	Rules   []Rule
}

func (t *Table) Len() int { return len(t.Rules) }

func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Analyses work on copies so callers never see
// their input tables mutated.
func (t *Table) Clone() *Table {
	c := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rules:   make([]Rule, len(t.Rules)),
	}
	for i := range t.Rules {
		c.Rules[i] = t.Rules[i].Clone()
	}
	return c
}
