package filter

// Change is a partial update. Nil fields are left untouched.
type Change struct {
	Page   *int
	Status *Status
	Gender *Gender
	Name   *string
}

// WithPage returns a Change that only moves to page.
func WithPage(page int) Change { return Change{Page: &page} }

// WithStatus returns a Change that only sets the status filter.
func WithStatus(status Status) Change { return Change{Status: &status} }

// WithGender returns a Change that only sets the gender filter.
func WithGender(gender Gender) Change { return Change{Gender: &gender} }

// WithName returns a Change that only sets the name search.
func WithName(name string) Change { return Change{Name: &name} }

// IsZero reports whether the change touches no field.
func (c Change) IsZero() bool {
	return c.Page == nil && c.Status == nil && c.Gender == nil && c.Name == nil
}

// ApplyChange merges change into current. Changing any filter field restarts
// pagination at page 1 unless the same change also sets the page explicitly.
// shouldNavigate is false when next equals reflected, the state the location
// already shows, so no redundant history entry is produced.
func ApplyChange(current State, change Change, reflected State) (next State, shouldNavigate bool) {
	next = current.Normalize()
	filtersChanged := false

	if change.Status != nil {
		if s := parseStatus(string(*change.Status)); s != next.Status {
			next.Status = s
			filtersChanged = true
		}
	}
	if change.Gender != nil {
		if g := parseGender(string(*change.Gender)); g != next.Gender {
			next.Gender = g
			filtersChanged = true
		}
	}
	if change.Name != nil {
		if n := (State{Name: *change.Name}).Normalize().Name; n != next.Name {
			next.Name = n
			filtersChanged = true
		}
	}

	switch {
	case change.Page != nil:
		next.Page = *change.Page
	case filtersChanged:
		next.Page = 1
	}

	next = next.Normalize()
	return next, next != reflected.Normalize()
}

// Next returns s moved one page forward.
func (s State) Next() State {
	n := s.Normalize()
	n.Page++
	return n
}

// Prev returns s moved one page back, never below page 1.
func (s State) Prev() State {
	n := s.Normalize()
	n.Page--
	return n.Normalize()
}
