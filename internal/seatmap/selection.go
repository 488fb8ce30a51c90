package seatmap

// Selection is the ordered set of seat numbers chosen for the current trip.
type Selection struct {
	order []string
}

func NewSelection(seats ...string) *Selection {
	s := &Selection{}
	for _, n := range seats {
		if !s.Contains(n) {
			s.order = append(s.order, n)
		}
	}
	return s
}

// Toggle adds or removes number. Booked or unknown seats are ignored and
// Toggle returns false.
func (s *Selection) Toggle(m *SeatMap, number string) bool {
	if m.Booked(number) {
		return false
	}
	for i, n := range s.order {
		if n == number {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return true
		}
	}
	s.order = append(s.order, number)
	return true
}

func (s *Selection) Contains(number string) bool {
	for _, n := range s.order {
		if n == number {
			return true
		}
	}
	return false
}

func (s *Selection) Seats() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Selection) Len() int { return len(s.order) }

func (s *Selection) CanConfirm() bool { return len(s.order) > 0 }

// Prune drops every selected seat that m now reports as booked and returns
// the dropped seat numbers.
func (s *Selection) Prune(m *SeatMap) []string {
	var kept, removed []string
	for _, n := range s.order {
		if m.Booked(n) {
			removed = append(removed, n)
			continue
		}
		kept = append(kept, n)
	}
	s.order = kept
	return removed
}
