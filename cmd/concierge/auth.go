package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"hotelchat/internal/client/gateway"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

// Form fields, keyed like the service's validation errors.
const (
	fieldEmail        = "email"
	fieldPassword     = "password"
	fieldUsername     = "username"
	fieldFirstName    = "firstName"
	fieldLastName     = "lastName"
	fieldOperatorCode = "operatorCode"
)

var fieldLabels = map[string]string{
	fieldEmail:        "Email",
	fieldPassword:     "Password",
	fieldUsername:     "Username",
	fieldFirstName:    "First name",
	fieldLastName:     "Last name",
	fieldOperatorCode: "Operator code",
}

type authDoneMsg struct{ err error }

type authForm struct {
	inputs      map[string]textinput.Model
	focus       int
	registering bool
	operator    bool
	busy        bool

	formErr   string
	fieldErrs map[string]string
}

func newAuthForm() authForm {
	inputs := make(map[string]textinput.Model, len(fieldLabels))
	for name, label := range fieldLabels {
		ti := textinput.New()
		ti.Placeholder = label
		ti.CharLimit = 254
		ti.Width = 40
		if name == fieldPassword || name == fieldOperatorCode {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		inputs[name] = ti
	}
	return authForm{inputs: inputs}
}

// fields lists the visible fields in order.
func (f authForm) fields() []string {
	if !f.registering {
		return []string{fieldEmail, fieldPassword}
	}
	out := []string{fieldUsername, fieldEmail, fieldPassword, fieldFirstName, fieldLastName}
	if f.operator {
		out = append(out, fieldOperatorCode)
	}
	return out
}

func (f *authForm) focusFirst() tea.Cmd {
	f.focus = 0
	return f.applyFocus()
}

func (f *authForm) applyFocus() tea.Cmd {
	fields := f.fields()
	if f.focus >= len(fields) {
		f.focus = len(fields) - 1
	}
	var cmd tea.Cmd
	for i, name := range fields {
		ti := f.inputs[name]
		if i == f.focus {
			cmd = ti.Focus()
		} else {
			ti.Blur()
		}
		f.inputs[name] = ti
	}
	return cmd
}

func (f authForm) value(name string) string {
	return f.inputs[name].Value()
}

func (a app) updateAuth(msg tea.Msg) (app, tea.Cmd) {
	f := &a.auth

	switch msg := msg.(type) {
	case authDoneMsg:
		f.busy = false
		if msg.err != nil {
			f.formErr, f.fieldErrs = formErrors(msg.err)
			return a, nil
		}
		a.auth = newAuthForm()
		a.status = ""
		return a, nil

	case tea.KeyMsg:
		if f.busy {
			return a, nil
		}
		switch msg.String() {
		case "tab", "down":
			f.focus = (f.focus + 1) % len(f.fields())
			return a, f.applyFocus()
		case "shift+tab", "up":
			f.focus = (f.focus + len(f.fields()) - 1) % len(f.fields())
			return a, f.applyFocus()
		case "ctrl+r":
			f.registering = !f.registering
			f.formErr, f.fieldErrs = "", nil
			return a, f.focusFirst()
		case "ctrl+o":
			if f.registering {
				f.operator = !f.operator
				return a, f.applyFocus()
			}
		case "enter":
			f.busy = true
			f.formErr, f.fieldErrs = "", nil
			return a, a.submitAuth()
		}
	}

	name := f.fields()[f.focus]
	ti, cmd := f.inputs[name].Update(msg)
	f.inputs[name] = ti
	return a, cmd
}

func (a app) submitAuth() tea.Cmd {
	g := a.svc.gateway
	ctx := a.ctx
	f := a.auth

	if !f.registering {
		email, password := f.value(fieldEmail), f.value(fieldPassword)
		return func() tea.Msg {
			_, err := g.Login(ctx, email, password)
			return authDoneMsg{err}
		}
	}

	in := gateway.RegisterInput{
		Username:   f.value(fieldUsername),
		Email:      f.value(fieldEmail),
		Password:   f.value(fieldPassword),
		FirstName:  f.value(fieldFirstName),
		LastName:   f.value(fieldLastName),
		RoleIntent: model.RoleGuest,
	}
	if f.operator {
		in.RoleIntent = model.RoleOperator
		in.OperatorCode = f.value(fieldOperatorCode)
	}
	return func() tea.Msg {
		_, err := g.Register(ctx, in)
		return authDoneMsg{err}
	}
}

// formErrors splits an authentication error into a form-level message and field messages.
func formErrors(err error) (string, map[string]string) {
	customErr, ok := errs.As(err)
	if !ok {
		return err.Error(), nil
	}
	if len(customErr.Fields) > 0 {
		return "", customErr.Fields
	}
	return customErr.Message, nil
}

func (f authForm) view() string {
	var b strings.Builder

	title := "Sign in"
	if f.registering {
		title = "Create an account"
		if f.operator {
			title += " (operator)"
		}
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	for _, name := range f.fields() {
		b.WriteString(labelStyle.Render(fieldLabels[name]) + "\n")
		b.WriteString(f.inputs[name].View() + "\n")
		if msg, ok := f.fieldErrs[name]; ok {
			b.WriteString(errorStyle.Render("  "+msg) + "\n")
		}
	}

	// Field errors for fields not on this form, e.g. role.
	for name, msg := range f.fieldErrs {
		if _, shown := f.inputs[name]; !shown {
			b.WriteString(errorStyle.Render(msg) + "\n")
		}
	}
	if f.formErr != "" {
		b.WriteString("\n" + errorStyle.Render(f.formErr) + "\n")
	}
	if f.busy {
		b.WriteString("\n" + mutedStyle.Render("Please wait...") + "\n")
	}

	help := "enter submit • tab next field • ctrl+r register"
	if f.registering {
		help = "enter submit • tab next field • ctrl+o operator • ctrl+r sign in instead"
	}
	b.WriteString("\n" + mutedStyle.Render(help))
	return b.String()
}
