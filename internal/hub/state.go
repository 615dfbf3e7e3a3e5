// Package hub holds the shared controllable smart-home state the agent's
// tools read and replace: a climate range, lights, and locks.
package hub

// Climate is the configured temperature range.
type Climate struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Light is a named light and its on/off status.
type Light struct {
	Name   string `json:"name"`
	Status bool   `json:"status"`
}

// Lock is a named lock and whether it is engaged.
type Lock struct {
	Name     string `json:"name"`
	IsLocked bool   `json:"isLocked"`
}

// State is the full hub value. It is always replaced wholesale; there is
// no partial-field merge.
type State struct {
	Climate Climate `json:"climate"`
	Lights  []Light `json:"lights"`
	Locks   []Lock  `json:"locks"`
}

// clone returns a deep copy so snapshots never alias store-owned slices.
func (s State) clone() State {
	cp := s
	if s.Lights != nil {
		cp.Lights = make([]Light, len(s.Lights))
		copy(cp.Lights, s.Lights)
	}
	if s.Locks != nil {
		cp.Locks = make([]Lock, len(s.Locks))
		copy(cp.Locks, s.Locks)
	}
	return cp
}

// DefaultState returns the seed hub value used when a process starts.
func DefaultState() State {
	return State{
		Climate: Climate{Low: 23, High: 25},
		Lights: []Light{
			{Name: "patio", Status: true},
			{Name: "kitchen", Status: false},
			{Name: "garage", Status: true},
		},
		Locks: []Lock{
			{Name: "back door", IsLocked: true},
		},
	}
}
