package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jason-s-yu/clique/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true).MarginTop(1)
)

var iconPalette = map[models.IconColor]lipgloss.Color{
	models.IconBlue:   "#007AFF",
	models.IconRed:    "#FF3B30",
	models.IconGreen:  "#34C759",
	models.IconOrange: "#FF9500",
	models.IconPurple: "#AF52DE",
	models.IconPink:   "#FF2D55",
	models.IconYellow: "#FFCC00",
	models.IconCyan:   "#32ADE6",
	models.IconMint:   "#00C7BE",
	models.IconIndigo: "#5856D6",
}

// swatch renders a small block in the avatar colour.
func swatch(c models.IconColor) string {
	return lipgloss.NewStyle().Foreground(iconPalette[models.ParseIconColor(string(c))]).Render("●")
}

func avatar(initials string, c *models.IconColor) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(iconPalette[models.ColorOf(c)]).
		Padding(0, 1).
		Render(initials)
}

func displayName(first, last, username string) string {
	if name := strings.TrimSpace(first + " " + last); name != "" {
		return name
	}
	return username
}

func statusLine(s models.Status) string {
	text := s.StatusText
	if e := s.Emoji(); e != "" {
		text = e + " " + text
	}
	line := fmt.Sprintf("%s %s  %s", avatar(s.Initials(), s.IconColor), headerStyle.Render(displayName(s.FirstName, s.LastName, "")), text)
	if loc, ok := s.Location(); ok {
		line += mutedStyle.Render(fmt.Sprintf("  (%.4f, %.4f)", loc.Latitude, loc.Longitude))
	}
	return line
}

func printStatuses(current models.Status, hasCurrent bool, others []models.Status) {
	if hasCurrent {
		fmt.Println(titleStyle.Render("You"))
		fmt.Println(statusLine(current))
	}
	if others == nil {
		return
	}
	fmt.Println(titleStyle.Render("Friends"))
	if len(others) == 0 {
		fmt.Println(mutedStyle.Render("No statuses yet"))
	}
	for _, s := range others {
		fmt.Println(statusLine(s))
	}
}

func printFriends(friends []models.Friend) {
	fmt.Println(titleStyle.Render("Friends"))
	if len(friends) == 0 {
		fmt.Println(mutedStyle.Render("No friends yet"))
	}
	for _, f := range friends {
		fmt.Printf("%s %s %s\n", avatar(f.Initials(), f.IconColor), f.FullName(), mutedStyle.Render("@"+f.Username))
	}
}

func printIncoming(requests []models.FriendRequest) {
	fmt.Println(titleStyle.Render("Requests"))
	if len(requests) == 0 {
		fmt.Println(mutedStyle.Render("No pending requests"))
	}
	for _, r := range requests {
		fmt.Printf("%s %s %s\n", avatar(r.Initials(), nil), r.FullName(), mutedStyle.Render("@"+r.Username))
	}
}

func printOutgoing(requests []models.OutgoingFriendRequest) {
	if len(requests) == 0 {
		return
	}
	fmt.Println(titleStyle.Render("Sent"))
	for _, r := range requests {
		fmt.Printf("%s %s\n", r.FullName(), mutedStyle.Render("@"+r.Username))
	}
}
