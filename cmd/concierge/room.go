package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"hotelchat/internal/client/conversation"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/wire"
)

// chromeHeight is the space taken by the header, composer and help line.
const chromeHeight = 9

type frameMsg struct {
	roomID string
	frame  wire.Frame
}

type liveEndedMsg struct {
	roomID string
	err    error
}

type roomMsg struct {
	room model.ChatRoom
	err  error
}

type sentMsg struct {
	roomID string
	err    error
}

type closedMsg struct {
	roomID string
	err    error
}

type roomView struct {
	room     model.ChatRoom
	viewport viewport.Model
	composer textinput.Model

	frames chan wire.Frame
	ended  chan error
	cancel context.CancelFunc
	online bool
}

func newRoomView() roomView {
	ti := textinput.New()
	ti.Placeholder = "Write a message"
	ti.CharLimit = 4000
	ti.Width = 60
	return roomView{viewport: viewport.New(80, 20), composer: ti}
}

// stop hangs up the live channel of the room, if any.
func (r *roomView) stop() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.online = false
}

func (r *roomView) resize(width, height int) {
	r.viewport.Width = width - 4
	r.viewport.Height = max(height-chromeHeight, 3)
	r.composer.Width = max(width-8, 10)
}

func (r *roomView) render(identity model.Identity) {
	names := make(map[string]string, len(r.room.Participants))
	for _, p := range r.room.Participants {
		names[p.ID] = p.Username
	}

	var b strings.Builder
	for _, msg := range r.room.Messages {
		who := names[msg.SenderID]
		style := otherStyle
		if msg.SenderID == identity.ID {
			who = "you"
			style = selfStyle
		}
		if who == "" {
			who = "someone"
		}

		state := ""
		switch {
		case conversation.IsPending(msg):
			state = " (sending)"
		case msg.SenderID == identity.ID && msg.DeliveryState == model.DeliveryRead:
			state = " ✓✓"
		case msg.SenderID == identity.ID:
			state = " ✓"
		}
		fmt.Fprintf(&b, "%s %s %s%s\n",
			mutedStyle.Render(msg.Timestamp.Local().Format("15:04")),
			style.Render(who+":"),
			msg.Content,
			mutedStyle.Render(state))
	}
	r.viewport.SetContent(b.String())
	r.viewport.GotoBottom()
}

func waitFrame(roomID string, frames <-chan wire.Frame, ended <-chan error) tea.Cmd {
	return func() tea.Msg {
		select {
		case f := <-frames:
			return frameMsg{roomID: roomID, frame: f}
		case err := <-ended:
			return liveEndedMsg{roomID: roomID, err: err}
		}
	}
}

func (a app) loadRoom(roomID string) tea.Cmd {
	ctx := a.ctx
	chat := a.svc.chat
	return func() tea.Msg {
		room, err := chat.Room(ctx, roomID)
		return roomMsg{room: room, err: err}
	}
}

// enterRoom switches to room, subscribes to its live channel and marks it read.
func (a app) enterRoom(room model.ChatRoom) (app, tea.Cmd) {
	a.room.stop()

	ctx, cancel := context.WithCancel(a.ctx)
	frames := make(chan wire.Frame, 64)
	ended := make(chan error, 1)
	chat := a.svc.chat
	roomID := room.ID

	go func() {
		ended <- chat.Listen(ctx, roomID, func(f wire.Frame) {
			select {
			case frames <- f:
			case <-ctx.Done():
			}
		})
	}()

	a.room.room = room
	a.room.frames = frames
	a.room.ended = ended
	a.room.cancel = cancel
	a.room.online = true
	a.room.composer.Reset()
	a.room.render(a.identity())
	a.screen = screenRoom

	markRead := func() tea.Msg {
		if _, err := chat.MarkRead(a.ctx, roomID); err != nil {
			return errMsg{err}
		}
		return nil
	}
	return a, tea.Batch(a.room.composer.Focus(), waitFrame(roomID, frames, ended), markRead)
}

func (a app) leaveRoom(status string) (app, tea.Cmd) {
	a.room.stop()
	a.room.composer.Blur()
	a.screen = screenInbox
	a.status = status
	return a, a.refreshInbox()
}

func (a app) updateRoom(msg tea.Msg) (app, tea.Cmd) {
	r := &a.room

	switch msg := msg.(type) {
	case frameMsg:
		if msg.roomID != r.room.ID || r.cancel == nil {
			return a, nil
		}
		switch msg.frame.Type {
		case wire.FrameMessageCreated:
			if msg.frame.Message != nil {
				a.svc.directory.Apply(*msg.frame.Message)
			}
		case wire.FrameRoomClosed:
			a.svc.directory.Remove(msg.roomID)
		}
		return a, tea.Batch(a.loadRoom(r.room.ID), waitFrame(r.room.ID, r.frames, r.ended))

	case liveEndedMsg:
		if msg.roomID != r.room.ID {
			return a, nil
		}
		r.online = false
		if errs.Is(msg.err, errs.ErrRoomNotFound) {
			a.svc.directory.Remove(msg.roomID)
			return a.leaveRoom("The conversation was closed.")
		}
		if msg.err != nil {
			return a.leaveRoom(describe(msg.err))
		}
		return a, nil

	case roomMsg:
		if msg.err != nil {
			return a.leaveRoom(describe(msg.err))
		}
		if msg.room.ID == r.room.ID {
			r.room = msg.room
			r.render(a.identity())
		}
		return a, nil

	case sentMsg:
		if msg.err != nil {
			a.status = describe(msg.err)
		}
		return a, a.loadRoom(msg.roomID)

	case closedMsg:
		if msg.err != nil {
			a.status = describe(msg.err)
			return a, nil
		}
		a.svc.directory.Remove(msg.roomID)
		return a.leaveRoom("Conversation closed.")

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return a.leaveRoom("")
		case "ctrl+x":
			if a.identity().Role != model.RoleOperator {
				return a, nil
			}
			ctx, chat, roomID := a.ctx, a.svc.chat, r.room.ID
			return a, func() tea.Msg {
				return closedMsg{roomID: roomID, err: chat.Close(ctx, roomID)}
			}
		case "enter":
			content := r.composer.Value()
			if strings.TrimSpace(content) == "" {
				return a, nil
			}
			r.composer.Reset()
			a.status = ""
			ctx, chat, roomID := a.ctx, a.svc.chat, r.room.ID
			send := func() tea.Msg {
				_, err := chat.Send(ctx, roomID, content)
				return sentMsg{roomID: roomID, err: err}
			}
			return a, send
		case "pgup", "pgdown":
			var cmd tea.Cmd
			r.viewport, cmd = r.viewport.Update(msg)
			return a, cmd
		}
	}

	var cmd tea.Cmd
	r.composer, cmd = r.composer.Update(msg)
	return a, cmd
}

func (r roomView) view(identity model.Identity) string {
	title := "Conversation"
	if r.room.Hotel != nil {
		title = r.room.Hotel.Name
	}
	state := mutedStyle.Render("offline")
	if r.online {
		state = onlineStyle.Render("live")
	}
	if r.room.Status == model.RoomClosed {
		state = errorStyle.Render("closed")
	}

	help := "enter send • pgup/pgdown scroll • esc back"
	if identity.Role == model.RoleOperator {
		help = "enter send • pgup/pgdown scroll • ctrl+x close conversation • esc back"
	}

	return titleStyle.Render(title) + " " + state + "\n\n" +
		r.viewport.View() + "\n\n" +
		r.composer.View() + "\n" +
		mutedStyle.Render(help)
}
