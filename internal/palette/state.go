package palette

// None is the Active value when no candidate is selected.
const None = -1

// State is the palette's complete state.
//
//	Closed ──Open──▶ Open(query="", results=all)
//	Open   ──SetQuery──▶ Open(results recomputed, Active reset)
//	Open   ──Close / Toggle / activation──▶ Closed
type State struct {
	Open    bool        `json:"open"`
	Query   string      `json:"query"`
	Results []Candidate `json:"results"`
	Active  int         `json:"active"`
}

// Closed returns the initial state.
func Closed() State {
	return State{Active: None}
}

// Opened returns an open palette with an empty query over all candidates.
func (s State) Opened(all []Candidate) State {
	return State{Open: true}.SetQuery("", all)
}

// Close returns the closed state. Closing an already closed palette is a no-op.
func (s State) Close() State {
	return Closed()
}

// Toggle opens a closed palette or closes an open one.
func (s State) Toggle(all []Candidate) State {
	if s.Open {
		return s.Close()
	}
	return s.Opened(all)
}

// SetQuery recomputes the results for query. Active resets to 0, or None when
// nothing matches. Queries typed into a closed palette are ignored.
func (s State) SetQuery(query string, all []Candidate) State {
	if !s.Open {
		return s
	}
	results := Filter(all, query)
	active := None
	if len(results) > 0 {
		active = 0
	}
	return State{Open: true, Query: query, Results: results, Active: active}
}

// Refresh recomputes the results for the current query, after the
// underlying collection changed.
func (s State) Refresh(all []Candidate) State {
	return s.SetQuery(s.Query, all)
}

// Move shifts the selection by delta, clamped to [0, len(Results)-1].
// Navigation never wraps and is a no-op on an empty result list.
func (s State) Move(delta int) State {
	if !s.Open || len(s.Results) == 0 {
		return s
	}
	if s.Active == None {
		s.Active = 0
		return s
	}
	last := len(s.Results) - 1
	active := max(0, min(last, s.Active))
	// Compare against the remaining distance so delta never overflows.
	switch {
	case delta > last-active:
		active = last
	case delta < -active:
		active = 0
	default:
		active += delta
	}
	s.Active = active
	return s
}

// Select makes the candidate at index i active, as a pointer click would.
// An index outside the result list leaves the state unchanged.
func (s State) Select(i int) State {
	if !s.Open || i < 0 || i >= len(s.Results) {
		return s
	}
	s.Active = i
	return s
}

// Selected returns the active candidate, if any.
func (s State) Selected() (Candidate, bool) {
	if !s.Open || s.Active < 0 || s.Active >= len(s.Results) {
		return Candidate{}, false
	}
	return s.Results[s.Active], true
}
