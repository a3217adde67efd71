package grid

// cell addresses one grid square.
type cell struct {
	day      int
	hour     int
	resource int
}

// Occupancy is an immutable snapshot of booked cells. Its IsBooked method is a
// BookedFunc, so a snapshot taken once per request keeps the predicate stable
// for the whole engine call.
type Occupancy struct {
	cells map[cell]struct{}
}

// NewOccupancy builds a snapshot from booked spans. Empty spans are ignored.
func NewOccupancy(spans ...Selection) *Occupancy {
	o := &Occupancy{cells: make(map[cell]struct{})}
	for _, s := range spans {
		if s.IsEmpty() {
			continue
		}
		for h := s.Start; h <= s.End; h++ {
			o.cells[cell{day: s.Day, hour: h, resource: s.Resource}] = struct{}{}
		}
	}
	return o
}

// IsBooked implements BookedFunc.
func (o *Occupancy) IsBooked(day, hour, resource int) bool {
	if o == nil {
		return false
	}
	_, ok := o.cells[cell{day: day, hour: hour, resource: resource}]
	return ok
}

// Func returns IsBooked as a BookedFunc value.
func (o *Occupancy) Func() BookedFunc {
	return o.IsBooked
}

// Count returns the number of booked cells.
func (o *Occupancy) Count() int {
	if o == nil {
		return 0
	}
	return len(o.cells)
}

// Conflicts reports whether any hour of s is booked.
func (o *Occupancy) Conflicts(s Selection) bool {
	if s.IsEmpty() {
		return false
	}
	for h := s.Start; h <= s.End; h++ {
		if o.IsBooked(s.Day, h, s.Resource) {
			return true
		}
	}
	return false
}
