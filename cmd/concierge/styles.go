package main

import (
	"github.com/charmbracelet/lipgloss"

	"hotelchat/internal/client/session"
)

var (
	appStyle      = lipgloss.NewStyle().Padding(1, 2)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	selfStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	otherStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Bold(true)
	onlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	headerStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
)

func header(snap session.Snapshot) string {
	who := "not signed in"
	if snap.Session.Authenticated() {
		id := snap.Session.Identity
		who = id.DisplayName()
		if id.Role != "" {
			who += " (" + string(id.Role) + ")"
		}
	}
	return headerStyle.Render("HotelChat") + " " + mutedStyle.Render(who)
}
