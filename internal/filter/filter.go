// Package filter defines the list query value object and its location codec.
//
// A State is immutable and always normalised, so two States that describe the
// same query compare equal with == and can be used directly as map keys.
package filter

import (
	"net/url"
	"strconv"
	"strings"
)

// Status narrows results by life status. The zero value means "any".
type Status string

const (
	StatusAny     Status = ""
	StatusAlive   Status = "alive"
	StatusDead    Status = "dead"
	StatusUnknown Status = "unknown"
)

// Statuses lists the selectable values in display order.
var Statuses = []Status{StatusAny, StatusAlive, StatusDead, StatusUnknown}

// Gender narrows results by gender. The zero value means "any".
type Gender string

const (
	GenderAny        Gender = ""
	GenderFemale     Gender = "female"
	GenderMale       Gender = "male"
	GenderGenderless Gender = "genderless"
	GenderUnknown    Gender = "unknown"
)

// Genders lists the selectable values in display order.
var Genders = []Gender{GenderAny, GenderFemale, GenderMale, GenderGenderless, GenderUnknown}

// State is one list query: page, status, gender and name search.
type State struct {
	Page   int
	Status Status
	Gender Gender
	Name   string
}

// Default is the unfiltered first page.
func Default() State {
	return State{Page: 1}
}

// New builds a normalised State.
func New(page int, status Status, gender Gender, name string) State {
	return State{Page: page, Status: status, Gender: gender, Name: name}.Normalize()
}

// Normalize coerces every field into its canonical form.
func (s State) Normalize() State {
	if s.Page < 1 {
		s.Page = 1
	}
	s.Status = parseStatus(string(s.Status))
	s.Gender = parseGender(string(s.Gender))
	s.Name = strings.TrimSpace(s.Name)
	return s
}

// Equal compares two states after normalisation.
func (s State) Equal(other State) bool {
	return s.Normalize() == other.Normalize()
}

// IsDefault reports whether s is the unfiltered first page.
func (s State) IsDefault() bool {
	return s.Normalize() == Default()
}

// HasFilters reports whether any of status, gender or name is set.
func (s State) HasFilters() bool {
	n := s.Normalize()
	return n.Status != StatusAny || n.Gender != GenderAny || n.Name != ""
}

// Values returns the non-default fields as query parameters.
func (s State) Values() url.Values {
	n := s.Normalize()
	values := url.Values{}
	if n.Page > 1 {
		values.Set("page", strconv.Itoa(n.Page))
	}
	if n.Name != "" {
		values.Set("name", n.Name)
	}
	if n.Status != StatusAny {
		values.Set("status", string(n.Status))
	}
	if n.Gender != GenderAny {
		values.Set("gender", string(n.Gender))
	}
	return values
}

// Encode serialises s into a query string. The default state encodes to "".
func (s State) Encode() string {
	return s.Values().Encode()
}

// String implements fmt.Stringer.
func (s State) String() string {
	if encoded := s.Encode(); encoded != "" {
		return "?" + encoded
	}
	return "?"
}

// Parse reads a State from a raw query string. A leading "?" is accepted.
// Malformed input never fails: unknown or invalid fields fall back to defaults.
func Parse(rawQuery string) State {
	values, err := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(rawQuery), "?"))
	if err != nil && values == nil {
		return Default()
	}
	return FromValues(values)
}

// FromValues reads a State from already-parsed query parameters.
func FromValues(values url.Values) State {
	page, err := strconv.Atoi(strings.TrimSpace(values.Get("page")))
	if err != nil {
		page = 1
	}
	return New(
		page,
		Status(values.Get("status")),
		Gender(values.Get("gender")),
		values.Get("name"),
	)
}

func parseStatus(raw string) Status {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range Statuses {
		if s == candidate {
			return s
		}
	}
	return StatusAny
}

func parseGender(raw string) Gender {
	candidate := Gender(strings.ToLower(strings.TrimSpace(raw)))
	for _, g := range Genders {
		if g == candidate {
			return g
		}
	}
	return GenderAny
}
