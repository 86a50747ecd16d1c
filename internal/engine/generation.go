package engine

// OpKind names a long-running operation whose stale results are discarded.
type OpKind int

const (
	OpRefresh OpKind = iota
	OpValidate
	OpSearch
)

func (k OpKind) String() string {
	switch k {
	case OpRefresh:
		return "refresh"
	case OpValidate:
		return "validate"
	case OpSearch:
		return "search"
	}
	return "unknown"
}

// Ticket is carried by one in-flight request. Its result is applied only
// while Generation is still the latest issued for Kind.
type Ticket struct {
	Kind       OpKind
	Generation uint64
}

// generations issues monotonically increasing tickets per kind.
// Callers hold the Controller's lock.
type generations struct {
	latest map[OpKind]uint64
}

func newGenerations() generations {
	return generations{latest: make(map[OpKind]uint64)}
}

func (g *generations) issue(kind OpKind) Ticket {
	g.latest[kind]++
	return Ticket{Kind: kind, Generation: g.latest[kind]}
}

func (g *generations) current(t Ticket) bool {
	return g.latest[t.Kind] == t.Generation
}
