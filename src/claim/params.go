package claim

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidParameters is returned when the claim inputs are missing or
// contain characters outside the whitelist.
var ErrInvalidParameters = errors.New("invalid parameters")

// Parameters are the query inputs of a claim request.
type Parameters struct {
	Key     string
	Token   string
	Rooms   string
	BaseURL string
}

// ParseParameters extracts the claim inputs from a query. Empty values count
// as absent and a repeated name keeps its last non-empty value.
func ParseParameters(q url.Values) Parameters {
	return Parameters{
		Key:     lastValue(q, "key"),
		Token:   lastValue(q, "token"),
		Rooms:   lastValue(q, "rooms"),
		BaseURL: lastValue(q, "url"),
	}
}

func lastValue(q url.Values, name string) string {
	values := q[name]
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != "" {
			return values[i]
		}
	}
	return ""
}

func (p Parameters) HasKey() bool { return p.Key != "" }

// Validate checks the inputs that are passed on to the remote service.
func (p Parameters) Validate() error {
	if p.Token == "" || p.BaseURL == "" {
		return ErrInvalidParameters
	}
	if !IsValidParam(p.Token) || !IsValidParam(p.BaseURL) || !IsValidParam(p.Rooms) {
		return ErrInvalidParameters
	}
	return nil
}

// RoomList splits the comma separated rooms, dropping empty entries.
func (p Parameters) RoomList() []string {
	if p.Rooms == "" {
		return nil
	}
	var rooms []string
	for _, r := range strings.Split(p.Rooms, ",") {
		if r != "" {
			rooms = append(rooms, r)
		}
	}
	return rooms
}

// IsValidParam accepts the empty string and any string made only of ASCII
// letters, digits and . , - : / _
func IsValidParam(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == ',', c == '-', c == ':', c == '/', c == '_':
		default:
			return false
		}
	}
	return true
}
