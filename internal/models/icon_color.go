// internal/models/icon_color.go
package models

import "strings"

// IconColor is the background colour a user picks for their avatar.
type IconColor string

const (
	IconBlue   IconColor = "blue"
	IconRed    IconColor = "red"
	IconGreen  IconColor = "green"
	IconOrange IconColor = "orange"
	IconPurple IconColor = "purple"
	IconPink   IconColor = "pink"
	IconYellow IconColor = "yellow"
	IconCyan   IconColor = "cyan"
	IconMint   IconColor = "mint"
	IconIndigo IconColor = "indigo"
)

// IconColors lists every selectable colour in picker order.
var IconColors = []IconColor{
	IconBlue, IconRed, IconGreen, IconOrange, IconPurple,
	IconPink, IconYellow, IconCyan, IconMint, IconIndigo,
}

// ParseIconColor maps a raw value to a known colour, falling back to blue.
func ParseIconColor(s string) IconColor {
	c := IconColor(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c
	}
	return IconBlue
}

// ColorOf resolves an optional colour the same way ParseIconColor does.
func ColorOf(c *IconColor) IconColor {
	if c == nil {
		return IconBlue
	}
	return ParseIconColor(string(*c))
}

func (c IconColor) Valid() bool {
	for _, known := range IconColors {
		if c == known {
			return true
		}
	}
	return false
}

// DisplayName is the capitalized colour name.
func (c IconColor) DisplayName() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}
