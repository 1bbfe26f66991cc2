package main

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"hotelchat/internal/client/conversation"
	"hotelchat/internal/client/directory"
	"hotelchat/internal/client/favorites"
	"hotelchat/internal/client/gate"
	"hotelchat/internal/client/gateway"
	"hotelchat/internal/client/session"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

// services are the client components the UI drives.
type services struct {
	store     *session.Store
	gateway   *gateway.Gateway
	directory *directory.Directory
	chat      *conversation.Engine
	favorites *favorites.Ledger
}

type screen int

const (
	screenLoading screen = iota
	screenAuth
	screenInbox
	screenRoom
)

type sessionMsg session.Snapshot

type errMsg struct{ err error }

// app is the root model. It routes messages to the active screen and moves between screens
// when the session changes.
type app struct {
	ctx     context.Context
	svc     *services
	updates <-chan session.Snapshot

	screen  screen
	snap    session.Snapshot
	width   int
	height  int
	status  string
	resolve bool

	auth  authForm
	inbox inbox
	room  roomView
}

func newApp(ctx context.Context, svc *services) app {
	updates, _ := svc.store.Subscribe()
	return app{
		ctx:     ctx,
		svc:     svc,
		updates: updates,
		auth:    newAuthForm(),
		inbox:   newInbox(),
		room:    newRoomView(),
	}
}

func waitSession(updates <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}
		return sessionMsg(snap)
	}
}

func (a app) Init() tea.Cmd {
	return tea.Batch(waitSession(a.updates), func() tea.Msg {
		// The store may have loaded before the subscription was read.
		return sessionMsg(a.svc.store.Snapshot())
	})
}

func (a app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.room.stop()
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.room.resize(msg.Width, msg.Height)
		return a, nil

	case sessionMsg:
		next, cmd := a.onSession(session.Snapshot(msg))
		return next, tea.Batch(cmd, waitSession(next.updates))

	case errMsg:
		a.status = describe(msg.err)
		return a, nil
	}

	var cmd tea.Cmd
	switch a.screen {
	case screenAuth:
		a, cmd = a.updateAuth(msg)
	case screenInbox:
		a, cmd = a.updateInbox(msg)
	case screenRoom:
		a, cmd = a.updateRoom(msg)
	}
	return a, cmd
}

// onSession applies the authorization gate to a new session snapshot. The inbox admits every
// authenticated identity; operator features are switched on by role.
func (a app) onSession(snap session.Snapshot) (app, tea.Cmd) {
	if !snap.Loaded {
		return a, nil
	}
	changed := snap.Session.Revision != a.snap.Session.Revision || !a.snap.Loaded
	a.snap = snap

	out := gate.Evaluate(snap, nil)
	switch out.Decision {
	case gate.Pending:
		a.screen = screenLoading
		if snap.Session.Authenticated() && !snap.Session.Resolved && !a.resolve {
			a.resolve = true
			return a, a.resolveRole()
		}
		return a, nil

	case gate.RedirectAuth:
		a.room.stop()
		a.resolve = false
		a.screen = screenAuth
		a.inbox = newInbox()
		return a, a.auth.focusFirst()

	default:
		a.resolve = false
		if a.screen == screenRoom && !changed {
			return a, nil
		}
		if changed {
			a.room.stop()
			a.inbox = newInbox()
		}
		a.screen = screenInbox
		return a, a.refreshInbox()
	}
}

func (a app) resolveRole() tea.Cmd {
	g := a.svc.gateway
	ctx := a.ctx
	return func() tea.Msg {
		if _, err := g.ResolveRole(ctx); err != nil && !errors.Is(err, session.ErrStale) {
			return errMsg{err}
		}
		return nil
	}
}

func (a app) identity() model.Identity {
	return a.snap.Session.Identity
}

func (a app) View() string {
	var body string
	switch a.screen {
	case screenLoading:
		body = mutedStyle.Render("Loading session...")
	case screenAuth:
		body = a.auth.view()
	case screenInbox:
		body = a.inbox.view(a.identity(), a.svc.favorites)
	case screenRoom:
		body = a.room.view(a.identity())
	}

	footer := ""
	if a.status != "" {
		footer = "\n" + errorStyle.Render(a.status)
	}
	return appStyle.Render(header(a.snap) + "\n\n" + body + footer)
}

// describe turns an error into a line for the status bar.
func describe(err error) string {
	if err == nil {
		return ""
	}
	if customErr, ok := errs.As(err); ok {
		return customErr.Message
	}
	return err.Error()
}
