package vector

// Filter restricts a query by metadata. Zero values mean "no constraint".
type Filter struct {
	// Building requires an exact building match.
	Building string

	// FromYMD is the inclusive lower bound on shot_ymd.
	FromYMD int

	// ToYMD is the inclusive upper bound on shot_ymd.
	ToYMD int

	// Namespace requires an exact namespace match.
	Namespace string
}

// IsEmpty reports whether the filter has no constraints.
func (f Filter) IsEmpty() bool {
	return f.Building == "" && f.FromYMD == 0 && f.ToYMD == 0 && f.Namespace == ""
}

// Matches reports whether m satisfies the filter.
func (f Filter) Matches(m Metadata) bool {
	if f.Building != "" && m.Building != f.Building {
		return false
	}
	if f.Namespace != "" && m.Namespace != f.Namespace {
		return false
	}
	if f.FromYMD != 0 && m.ShotYMD < f.FromYMD {
		return false
	}
	if f.ToYMD != 0 && m.ShotYMD > f.ToYMD {
		return false
	}
	return true
}
