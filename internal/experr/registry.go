package experr

// Group names a feature whose use can legitimately raise errors.
type Group string

const (
	GroupBy        Group = "group_by"
	Aggregate      Group = "aggregate"
	Cast           Group = "cast"
	Having         Group = "having"
	DivisionByZero Group = "division_by_zero"
	Expression     Group = "expression"
	Join           Group = "join"
)

// Rules is the static content of one group.
type Rules struct {
	Substrings []string
	Patterns   []string
	Codes      []int
}

// Registry maps groups to frozen sets. It is built once per dialect and
// only read afterwards.
type Registry struct {
	groups map[Group]Set
}

// NewRegistry freezes the rules of every group.
func NewRegistry(rules map[Group]Rules) *Registry {
	r := &Registry{groups: make(map[Group]Set, len(rules))}
	for g, rule := range rules {
		b := NewBuilder().Add(rule.Substrings...).AddCodes(rule.Codes...)
		if len(rule.Patterns) > 0 {
			b.AddPattern(rule.Patterns...)
		}
		r.groups[g] = b.Build()
	}
	return r
}

// Set merges the named groups. Unknown groups contribute nothing.
func (r *Registry) Set(groups ...Group) Set {
	b := NewBuilder()
	if r == nil {
		return b.Build()
	}
	for _, g := range groups {
		if s, ok := r.groups[g]; ok {
			b.Merge(s)
		}
	}
	return b.Build()
}

// Groups lists the registered groups.
func (r *Registry) Groups() []Group {
	if r == nil {
		return nil
	}
	out := make([]Group, 0, len(r.groups))
	for g := range r.groups {
		out = append(out, g)
	}
	return out
}
