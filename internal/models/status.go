// internal/models/status.go
package models

// Status is one user's current status. The API returns exactly one per user, and flags
// the one belonging to the authenticated user with IsCurrentUser.
type Status struct {
	ID            string     `json:"_id"`
	StatusText    string     `json:"statusText"`
	StatusEmoji   *string    `json:"statusEmoji,omitempty"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	IsCurrentUser bool       `json:"isCurrentUser"`
	IconColor     *IconColor `json:"iconColor,omitempty"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
}

func (s Status) Initials() string { return initials(s.FirstName, s.LastName) }

// Emoji returns the status emoji or "" when none is set.
func (s Status) Emoji() string {
	if s.StatusEmoji == nil {
		return ""
	}
	return *s.StatusEmoji
}

// Location returns the shared coordinate, if the user is sharing one.
func (s Status) Location() (Coordinate, bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return Coordinate{}, false
	}
	return Coordinate{Latitude: *s.Latitude, Longitude: *s.Longitude}, true
}

// WithText returns a copy of s carrying the new emoji and text. Identity, names, colour and
// location are left untouched. An empty emoji clears it.
func (s Status) WithText(emoji, text string) Status {
	out := s
	out.StatusText = text
	if emoji == "" {
		out.StatusEmoji = nil
	} else {
		e := emoji
		out.StatusEmoji = &e
	}
	return out
}

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
