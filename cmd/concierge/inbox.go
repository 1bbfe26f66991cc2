package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"hotelchat/internal/client/favorites"
	"hotelchat/internal/client/gate"
	"hotelchat/internal/client/session"
	"hotelchat/internal/model"
)

type prompt int

const (
	promptNone prompt = iota
	promptPlace
	promptInquiry
	promptFavorite
)

type roomsMsg struct {
	rooms []model.ChatRoom
	err   error
}

type favoritesMsg struct{ err error }

type roomOpenedMsg struct {
	room    model.ChatRoom
	created bool
	err     error
}

type inbox struct {
	rooms    []model.ChatRoom
	cursor   int
	loading  bool
	allRooms bool

	prompt  prompt
	placeID string
	input   textinput.Model
}

func newInbox() inbox {
	ti := textinput.New()
	ti.CharLimit = 2000
	ti.Width = 60
	return inbox{input: ti, loading: true}
}

func (a app) refreshInbox() tea.Cmd {
	ctx := a.ctx
	dir := a.svc.directory
	cmds := []tea.Cmd{func() tea.Msg {
		rooms, err := dir.Refresh(ctx)
		return roomsMsg{rooms: rooms, err: err}
	}}

	if a.identity().Role == model.RoleGuest {
		ledger := a.svc.favorites
		cmds = append(cmds, func() tea.Msg {
			_, err := ledger.Load(ctx)
			return favoritesMsg{err}
		})
	}
	return tea.Batch(cmds...)
}

func (a app) openRoom(roomID string) tea.Cmd {
	ctx := a.ctx
	chat := a.svc.chat
	return func() tea.Msg {
		room, err := chat.Room(ctx, roomID)
		return roomOpenedMsg{room: room, err: err}
	}
}

func (a app) updateInbox(msg tea.Msg) (app, tea.Cmd) {
	in := &a.inbox

	switch msg := msg.(type) {
	case roomsMsg:
		in.loading = false
		if msg.err != nil {
			if errors.Is(msg.err, session.ErrStale) {
				return a, nil
			}
			a.status = describe(msg.err)
			return a, nil
		}
		in.rooms = msg.rooms
		in.cursor = min(in.cursor, max(len(in.rooms)-1, 0))
		in.allRooms = gate.NewGuard(a.svc.store, model.RoleOperator, model.RoleAdmin).Check().Decision == gate.Allow
		return a, nil

	case favoritesMsg:
		if msg.err != nil && !errors.Is(msg.err, session.ErrStale) {
			a.status = describe(msg.err)
		}
		return a, nil

	case roomOpenedMsg:
		if msg.err != nil {
			a.status = describe(msg.err)
			return a, nil
		}
		a.status = ""
		if msg.created {
			a.status = "Inquiry sent."
		}
		return a.enterRoom(msg.room)

	case tea.KeyMsg:
		if in.prompt != promptNone {
			return a.updatePrompt(msg)
		}
		switch msg.String() {
		case "up", "k":
			if in.cursor > 0 {
				in.cursor--
			}
		case "down", "j":
			if in.cursor < len(in.rooms)-1 {
				in.cursor++
			}
		case "enter":
			if len(in.rooms) > 0 {
				return a, a.openRoom(in.rooms[in.cursor].ID)
			}
		case "r":
			in.loading = true
			return a, a.refreshInbox()
		case "n":
			if a.identity().Role == model.RoleGuest {
				return a, in.ask(promptPlace, "Hotel place id")
			}
		case "f":
			if a.identity().Role == model.RoleGuest {
				return a, in.ask(promptFavorite, "Place id to star or unstar")
			}
		case "o":
			g := a.svc.gateway
			ctx := a.ctx
			return a, func() tea.Msg {
				if err := g.Logout(ctx); err != nil {
					return errMsg{err}
				}
				return nil
			}
		case "q":
			return a, tea.Quit
		}
	}
	return a, nil
}

func (in *inbox) ask(p prompt, placeholder string) tea.Cmd {
	in.prompt = p
	in.input.Reset()
	in.input.Placeholder = placeholder
	return in.input.Focus()
}

func (in *inbox) dismiss() {
	in.prompt = promptNone
	in.placeID = ""
	in.input.Blur()
	in.input.Reset()
}

func (a app) updatePrompt(msg tea.KeyMsg) (app, tea.Cmd) {
	in := &a.inbox

	switch msg.String() {
	case "esc":
		in.dismiss()
		return a, nil
	case "enter":
		value := strings.TrimSpace(in.input.Value())
		ctx := a.ctx

		switch in.prompt {
		case promptPlace:
			if value == "" {
				return a, nil
			}
			in.placeID = value
			return a, in.ask(promptInquiry, "Your question (leave empty for a default greeting)")

		case promptInquiry:
			placeID := in.placeID
			in.dismiss()
			chat := a.svc.chat
			return a, func() tea.Msg {
				room, created, err := chat.CreateOrGetRoom(ctx, placeID, value)
				return roomOpenedMsg{room: room, created: created, err: err}
			}

		case promptFavorite:
			in.dismiss()
			if value == "" {
				return a, nil
			}
			ledger := a.svc.favorites
			return a, func() tea.Msg {
				if _, err := ledger.Toggle(ctx, value); err != nil {
					return favoritesMsg{err}
				}
				_, err := ledger.Load(ctx)
				return favoritesMsg{err}
			}
		}
	}

	var cmd tea.Cmd
	in.input, cmd = in.input.Update(msg)
	return a, cmd
}

func (in inbox) view(identity model.Identity, ledger *favorites.Ledger) string {
	var b strings.Builder

	title := "Your conversations"
	if in.allRooms {
		title = "All conversations"
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	switch {
	case in.loading && len(in.rooms) == 0:
		b.WriteString(mutedStyle.Render("Loading...") + "\n")
	case len(in.rooms) == 0:
		b.WriteString(mutedStyle.Render("No conversations yet.") + "\n")
	}

	for i, room := range in.rooms {
		line := roomLine(room, identity, ledger)
		if i == in.cursor {
			b.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	if identity.Role == model.RoleGuest {
		if hotels := ledger.Hotels(); len(hotels) > 0 {
			b.WriteString("\n" + labelStyle.Render("Favorite hotels") + "\n")
			for _, h := range hotels {
				fmt.Fprintf(&b, "  ★ %s %s\n", h.Name, mutedStyle.Render(h.PlaceID))
			}
		}
	}

	if in.prompt != promptNone {
		b.WriteString("\n" + in.input.View() + "\n")
		b.WriteString(mutedStyle.Render("enter confirm • esc cancel"))
		return b.String()
	}

	help := "↑/↓ select • enter open • r refresh • o sign out • q quit"
	if identity.Role == model.RoleGuest {
		help = "↑/↓ select • enter open • n new inquiry • f star hotel • r refresh • o sign out • q quit"
	}
	b.WriteString("\n" + mutedStyle.Render(help))
	return b.String()
}

func roomLine(room model.ChatRoom, identity model.Identity, ledger *favorites.Ledger) string {
	name := room.Hotel.Name
	if identity.Role == model.RoleGuest && ledger.IsFavorite(room.Hotel.PlaceID) {
		name = "★ " + name
	}
	if identity.Role != model.RoleGuest {
		if guest, ok := room.Guest(); ok {
			name += " · " + guest.Username
		}
	}

	preview := ""
	if last, ok := room.LastMessage(); ok {
		preview = truncate(last.Content, 40)
	}
	return fmt.Sprintf("%-36s %s", truncate(name, 36), mutedStyle.Render(preview))
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
