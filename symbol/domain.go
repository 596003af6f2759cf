package symbol

// Side identifies a boundary of a one-dimensional domain.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// DomainOrder is the explicit global total order over region names. All
// domain-aware concatenation is ordered by it, never by insertion order.
// It is fixed once at startup and shared by the mesh and the discretiser.
type DomainOrder []string

// CellDomains is the canonical ordering of battery cell regions.
var CellDomains = DomainOrder{
	"negative electrode",
	"separator",
	"positive electrode",
	"negative particle",
	"positive particle",
	"current collector",
}

// Index returns the position of domain in the order, or -1 if unknown.
func (o DomainOrder) Index(domain string) int {
	for i, d := range o {
		if d == domain {
			return i
		}
	}
	return -1
}

// Contains reports whether domain is part of the order.
func (o DomainOrder) Contains(domain string) bool { return o.Index(domain) >= 0 }

// Sort returns the given domains sorted by the global order. An unknown
// domain name is a DomainError.
func (o DomainOrder) Sort(domains []string) ([]string, error) {
	for _, d := range domains {
		if !o.Contains(d) {
			return nil, NewDomainError("unknown domain %q: not in the global domain order %v", d, []string(o))
		}
	}
	out := copyStrings(domains)
	// insertion sort, domain lists are short
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && o.Index(out[j-1]) > o.Index(out[j]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out, nil
}

func domainsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func domainsDisjoint(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return false
			}
		}
	}
	return true
}

// combineDomains computes the domain of an operator from its operands: both
// empty stays empty, one empty takes the other, equal stays put. Two
// different non-empty domains cannot be combined.
func combineDomains(left, right []string) ([]string, error) {
	switch {
	case len(left) == 0:
		return copyStrings(right), nil
	case len(right) == 0:
		return copyStrings(left), nil
	case domainsEqual(left, right):
		return copyStrings(left), nil
	default:
		return nil, NewDomainError("incompatible domains %v and %v", left, right)
	}
}
