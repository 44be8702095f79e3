// This file implements the interactive chat interface using bubbletea.
// The terminal stands in for the real map renderer: viewport commands
// and weather snapshots are rendered as a status line under the
// transcript.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	uiviewport "github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"mapchat/internal/chat"
	"mapchat/internal/session"
	mapviewport "mapchat/internal/viewport"
)

// chatStyles holds the lipgloss styles for the chat surface.
type chatStyles struct {
	header    lipgloss.Style
	userLabel lipgloss.Style
	botLabel  lipgloss.Style
	status    lipgloss.Style
	errText   lipgloss.Style
	prompt    lipgloss.Style
}

func defaultChatStyles() chatStyles {
	return chatStyles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		userLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		botLabel:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true),
		errText:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		prompt:    lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
	}
}

// chatModel is the main model for the interactive chat interface
type chatModel struct {
	// UI Components
	textinput textinput.Model
	viewport  uiviewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer
	styles    chatStyles

	// State
	ctrl      *chat.Controller
	isLoading bool
	status    string
	err       error
	width     int
	height    int
	ready     bool
}

// Messages for tea updates
type (
	sendDoneMsg chat.SendResult
	sendErrMsg  error
)

func newChatModel(ctrl *chat.Controller) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about any place... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := uiviewport.New(80, 20)
	vp.SetContent("")

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(78),
	)

	return chatModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		renderer:  renderer,
		styles:    defaultChatStyles(),
		ctrl:      ctrl,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlN:
			m.ctrl.NewSession()
			m.status = "started a new chat"
			m.refreshTranscript()
			return m, nil
		case tea.KeyCtrlR:
			if cmd, ok := m.ctrl.RequestRecenter(); ok {
				m.status = describeCommand(cmd)
			} else {
				m.status = "no known device location to recenter on"
			}
			return m, nil
		case tea.KeyEnter:
			text := strings.TrimSpace(m.textinput.Value())
			if text == "" || m.isLoading {
				return m, nil
			}
			m.textinput.Reset()
			m.isLoading = true
			m.refreshTranscript()
			return m, tea.Batch(m.spinner.Tick, sendCmd(m.ctrl, text))
		}

	case sendDoneMsg:
		m.isLoading = false
		m.status = sendStatus(chat.SendResult(msg))
		m.refreshTranscript()
		return m, nil

	case sendErrMsg:
		m.isLoading = false
		m.err = msg
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6
		m.textinput.Width = msg.Width - 4
		m.ready = true
		m.refreshTranscript()

	case spinner.TickMsg:
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, spCmd
	}

	m.textinput, tiCmd = m.textinput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m chatModel) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	active := m.ctrl.Active()
	b.WriteString(m.styles.header.Render("mapchat — "+active.Title) + "\n")
	b.WriteString(m.viewport.View() + "\n")

	if m.isLoading {
		b.WriteString(m.spinner.View() + " thinking...\n")
	} else if m.status != "" {
		b.WriteString(m.styles.status.Render(m.status) + "\n")
	} else {
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(m.styles.errText.Render(m.err.Error()) + "\n")
	}
	b.WriteString(m.textinput.View())
	return b.String()
}

// refreshTranscript re-renders the active session into the viewport.
func (m *chatModel) refreshTranscript() {
	active := m.ctrl.Active()
	var b strings.Builder
	for _, msg := range active.Messages {
		if msg.Role == session.RoleUser {
			b.WriteString(m.styles.userLabel.Render("You") + "\n")
			b.WriteString(msg.Text + "\n\n")
			continue
		}
		b.WriteString(m.styles.botLabel.Render("mapchat") + "\n")
		if m.renderer != nil {
			if out, err := m.renderer.Render(msg.Text); err == nil {
				b.WriteString(out + "\n")
				continue
			}
		}
		b.WriteString(msg.Text + "\n\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func sendCmd(ctrl *chat.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		res, err := ctrl.Send(context.Background(), text)
		if err != nil {
			return sendErrMsg(err)
		}
		return sendDoneMsg(res)
	}
}

// sendStatus renders the map reaction of one send as a status line.
func sendStatus(res chat.SendResult) string {
	parts := []string{}
	if s := describeCommand(res.Viewport); s != "" {
		parts = append(parts, s)
	}
	if res.Weather != "" {
		parts = append(parts, res.Weather)
	}
	return strings.Join(parts, "  ·  ")
}

// describeCommand renders a viewport command for the terminal, standing
// in for the external map renderer.
func describeCommand(cmd mapviewport.Command) string {
	switch cmd.Kind {
	case mapviewport.FlyTo:
		return fmt.Sprintf("✈ fly to %.4f, %.4f (zoom %.0f, %s)",
			cmd.Center.Lat, cmd.Center.Lng, cmd.Zoom, cmd.Duration)
	case mapviewport.FitBounds:
		return fmt.Sprintf("⛶ fit %d points [%.4f,%.4f → %.4f,%.4f]",
			len(cmd.Points),
			cmd.Bounds.SouthWest.Lat, cmd.Bounds.SouthWest.Lng,
			cmd.Bounds.NorthEast.Lat, cmd.Bounds.NorthEast.Lng)
	default:
		return ""
	}
}

// runInteractiveChat launches the bubbletea chat interface.
func runInteractiveChat(ctx context.Context) error {
	ctrl, cleanup, err := buildController(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	p := tea.NewProgram(newChatModel(ctrl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat interface failed: %w", err)
	}
	return nil
}
