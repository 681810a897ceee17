package models

import (
	"math/rand/v2"
	"strings"
)

// Contact is a person in the address book stored under contacts/{id}.
type Contact struct {
	ID       string `json:"-" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email" yaml:"email"`
	Phone    string `json:"phone" yaml:"phone"`
	Color    string `json:"color" yaml:"color"`
	Initials string `json:"initials,omitempty" yaml:"initials,omitempty"`
}

// Ref returns the snapshot embedded into tasks. Initials are recomputed from
// the name when the stored value is missing.
func (c Contact) Ref() ContactRef {
	initials := c.Initials
	if initials == "" {
		initials = Initials(c.Name)
	}
	return ContactRef{Name: c.Name, Color: c.Color, Initials: initials}
}

// Initials returns the uppercase first letter of every space-separated token
// in name.
func Initials(name string) string {
	var b strings.Builder
	for _, token := range strings.Fields(name) {
		r := []rune(token)
		b.WriteString(strings.ToUpper(string(r[0])))
	}
	return b.String()
}

// ContactPalette holds the badge colors handed out to new contacts.
var ContactPalette = []string{
	"#FF7A00", "#FF5EB3", "#6E52FF", "#9327FF", "#00BEE8",
	"#1FD7C1", "#FF745E", "#FFA35E", "#FC71FF", "#FFC701",
	"#0038FF", "#C3FF2B", "#FFE62B", "#FF4646", "#FFBB2B",
}

// RandomColor picks a palette color. Persisted contacts keep the color they
// were created with; this is for new contacts and display-only badges.
func RandomColor() string {
	return ContactPalette[rand.IntN(len(ContactPalette))]
}
