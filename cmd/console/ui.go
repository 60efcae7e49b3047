package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/pixel-quest/pkg/state"
	"github.com/muesli/reflow/wordwrap"
)

const Title = "PIXEL QUEST"

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	api           *APIClient
	sceneViewport viewport.Model
	ready         bool
	width         int
	height        int
	err           error

	// Theme selection state
	showThemeModal bool
	themes         []Theme
	selectedTheme  int
	loadingThemes  bool

	// Session state
	gameState *state.GameState
	fromCache bool
	loading   bool
	phase     state.Phase // live phase while an action resolves
	notice    string

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type themesLoadedMsg struct {
	themes []Theme
	err    error
}

type sessionMsg struct {
	gameState *state.GameState
	fromCache bool
	err       error
}

type resetMsg struct {
	err error
}

type phaseMsg struct {
	gameState *state.GameState
}

type copiedMsg struct {
	err error
}

type progressTickMsg struct{}

var (
	scenePanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(3).
			PaddingRight(1)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	lockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")). // dark grey
			Strikethrough(true)

	heartStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(api *APIClient) ConsoleUI {
	vp := viewport.New(60, 20)
	vp.MouseWheelEnabled = true

	return ConsoleUI{
		api:            api,
		sceneViewport:  vp,
		showThemeModal: true,
		loadingThemes:  true,
	}
}

// hearts renders health as filled and empty hearts.
func hearts(health int) string {
	health = min(max(health, 0), state.MaxHealth)
	return strings.Repeat("♥", health) + strings.Repeat("♡", state.MaxHealth-health)
}

// lastRoll returns the roll of the most recent turn, if it had one.
func lastRoll(gs *state.GameState) *int {
	if gs == nil || len(gs.History) == 0 {
		return nil
	}
	return gs.History[len(gs.History)-1].Roll
}

// choiceLines lists the current node's choices. Locked choices say what
// they need.
func choiceLines(gs *state.GameState) []string {
	if gs == nil || gs.CurrentNode == nil {
		return nil
	}
	lines := make([]string, 0, len(gs.CurrentNode.Choices))
	for _, c := range gs.CurrentNode.Choices {
		line := fmt.Sprintf("[%s] %s", c.ID, c.Label)
		switch {
		case gs.Locked(c):
			lines = append(lines, lockedStyle.Render(line)+promptStyle.Render(fmt.Sprintf(" (needs %s)", c.RequiredItem)))
			continue
		case c.RequiredItem != "":
			line += fmt.Sprintf(" (uses %s)", c.RequiredItem)
		case c.IsUnsafe:
			line += " (risky)"
		}
		lines = append(lines, choiceStyle.Render(line))
	}
	return lines
}

func phaseLabel(gs *state.GameState, phase state.Phase) string {
	switch phase {
	case state.PhaseResolvingRoll:
		if gs != nil && gs.PendingRoll != nil {
			return fmt.Sprintf("Rolled a %d...", *gs.PendingRoll)
		}
		return "Rolling the die..."
	case state.PhaseResolvingConsumption:
		if gs != nil && gs.ConsumedItem != "" {
			return fmt.Sprintf("Using the %s...", gs.ConsumedItem)
		}
		return "Using an item..."
	default:
		return "The narrator is writing..."
	}
}

func writeMetadata(gs *state.GameState, fromCache bool) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("ADVENTURER") + "\n\n")

	content.WriteString("Hearts:\n")
	content.WriteString(heartStyle.Render(hearts(gs.Health)) + "\n\n")

	content.WriteString(fmt.Sprintf("Inventory (%d/%d):\n", len(gs.Inventory), state.MaxInventory))
	if len(gs.Inventory) == 0 {
		content.WriteString("Empty\n")
	}
	for _, item := range gs.Inventory {
		content.WriteString("• " + item + "\n")
	}
	content.WriteString("\n")

	if roll := lastRoll(gs); roll != nil {
		content.WriteString(fmt.Sprintf("Last roll: %d/%d\n", *roll, state.RollSides))
	}
	if gs.ConsumedItem != "" {
		content.WriteString("Used: " + gs.ConsumedItem + "\n")
	}
	if gs.DiscardedItem != "" {
		content.WriteString("Inventory full, left behind: " + gs.DiscardedItem + "\n")
	}
	if fromCache {
		content.WriteString(promptStyle.Render("(scene from cache)") + "\n")
	}

	content.WriteString("\nSession:\n")
	content.WriteString(gs.ID.String()[:8] + "...\n\n")

	content.WriteString("Commands:\n")
	content.WriteString("• 1-9: Choose\n")
	content.WriteString("• y: Copy scene\n")
	content.WriteString("• r: New adventure\n")
	content.WriteString("• Esc: Quit\n")

	return content.String()
}

// writeSceneContent renders the current node for the viewport width.
func (m *ConsoleUI) writeSceneContent() {
	width := max(m.sceneViewport.Width-4, 20)

	var content strings.Builder
	content.WriteString(titleStyle.Render(Title) + "\n\n")

	gs := m.gameState
	if gs == nil || gs.CurrentNode == nil {
		m.sceneViewport.SetContent(content.String())
		return
	}

	content.WriteString(narratorStyle.Render(wordwrap.String(gs.CurrentNode.Text, width)) + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	switch {
	case gs.IsGameOver():
		if gs.Health == 0 {
			content.WriteString(errorStyle.Render("GAME OVER. Your hearts are spent.") + "\n")
		} else {
			content.WriteString(titleStyle.Render("THE END") + "\n")
		}
		content.WriteString(promptStyle.Render("Press r to begin a new adventure.") + "\n")
	case m.loading:
		content.WriteString(loadingStyle.Render(phaseLabel(gs, m.phase)) + "\n")
		content.WriteString(m.renderProgressBar() + "\n")
	default:
		for _, line := range choiceLines(gs) {
			content.WriteString(wordwrap.String(line, width) + "\n")
		}
	}

	if m.err != nil {
		content.WriteString("\n" + errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	if m.notice != "" {
		content.WriteString("\n" + promptStyle.Render(m.notice) + "\n")
	}

	m.sceneViewport.SetContent(content.String())
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadThemes()
}

func (m *ConsoleUI) resize() {
	sceneWidth := int(float64(m.width)*0.7) - 4
	m.sceneViewport.Width = max(sceneWidth-2, 20)
	m.sceneViewport.Height = max(m.height-3, 5)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showThemeModal {
		return m.updateThemeModal(msg)
	}

	var vpCmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.writeSceneContent()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		}
		if m.loading {
			return m, nil
		}
		switch key := msg.String(); key {
		case "q":
			m.showQuitModal = true
			return m, nil
		case "r":
			m.loading = true
			m.notice = ""
			return m, m.resetSession()
		case "y":
			return m, m.copyScene()
		default:
			if m.canChoose(key) {
				m.loading = true
				m.err = nil
				m.notice = ""
				m.phase = state.PhaseGenerating
				m.progressTick = 0
				m.writeSceneContent()
				return m, tea.Batch(m.submitChoice(key), progressTick())
			}
		}

	case sessionMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.gameState = msg.gameState
			m.fromCache = msg.fromCache
		}
		m.writeSceneContent()
		m.sceneViewport.GotoTop()
		return m, nil

	case resetMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.writeSceneContent()
			return m, nil
		}
		m.gameState = nil
		m.showThemeModal = true
		return m, nil

	case phaseMsg:
		if m.loading && msg.gameState != nil {
			m.phase = msg.gameState.Phase
			if msg.gameState.PendingRoll != nil || msg.gameState.ConsumedItem != "" {
				m.gameState = msg.gameState
			}
			m.writeSceneContent()
		}

	case copiedMsg:
		if msg.err != nil {
			m.notice = "Could not copy: " + msg.err.Error()
		} else {
			m.notice = "Scene copied to clipboard."
		}
		m.writeSceneContent()

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeSceneContent()
			if m.progressTick%3 == 0 {
				return m, tea.Batch(progressTick(), m.pollPhase())
			}
			return m, progressTick()
		}
	}

	m.sceneViewport, vpCmd = m.sceneViewport.Update(msg)
	return m, vpCmd
}

// canChoose reports whether key names a choice the player may take now.
func (m ConsoleUI) canChoose(key string) bool {
	gs := m.gameState
	if gs == nil || gs.CurrentNode == nil || gs.IsGameOver() {
		return false
	}
	c, ok := gs.CurrentNode.Choice(key)
	return ok && !gs.Locked(c)
}

func (m ConsoleUI) submitChoice(choiceID string) tea.Cmd {
	id := m.gameState.ID
	return func() tea.Msg {
		gs, fromCache, err := m.api.SubmitAction(context.Background(), id, choiceID)
		return sessionMsg{gameState: gs, fromCache: fromCache, err: err}
	}
}

func (m ConsoleUI) pollPhase() tea.Cmd {
	id := m.gameState.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		gs, err := m.api.GetSession(ctx, id)
		if err != nil {
			return nil
		}
		return phaseMsg{gameState: gs}
	}
}

func (m ConsoleUI) resetSession() tea.Cmd {
	if m.gameState == nil {
		return func() tea.Msg { return resetMsg{} }
	}
	id := m.gameState.ID
	return func() tea.Msg {
		_, err := m.api.ResetSession(context.Background(), id)
		return resetMsg{err: err}
	}
}

func (m ConsoleUI) copyScene() tea.Cmd {
	if m.gameState == nil || m.gameState.CurrentNode == nil {
		return nil
	}
	text := m.gameState.CurrentNode.Text
	return func() tea.Msg {
		return copiedMsg{err: clipboard.WriteAll(text)}
	}
}

func (m ConsoleUI) loadThemes() tea.Cmd {
	return func() tea.Msg {
		themes, err := m.api.Themes(context.Background())
		return themesLoadedMsg{themes, err}
	}
}

func (m ConsoleUI) createSession(theme string) tea.Cmd {
	return func() tea.Msg {
		gs, err := m.api.CreateSession(context.Background(), theme)
		return sessionMsg{gameState: gs, err: err}
	}
}

func (m ConsoleUI) updateThemeModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case themesLoadedMsg:
		m.loadingThemes = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.themes = msg.themes
		}

	case sessionMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.gameState = msg.gameState
		m.fromCache = msg.fromCache
		m.showThemeModal = false
		if m.width > 0 && m.height > 0 {
			m.resize()
			m.ready = true
		}
		m.writeSceneContent()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.loadingThemes {
				return m, tea.Quit
			}
			m.showQuitModal = true
			return m, nil
		}
		if m.loadingThemes || m.loading || len(m.themes) == 0 {
			return m, nil
		}

		switch msg.Type {
		case tea.KeyUp:
			if m.selectedTheme > 0 {
				m.selectedTheme--
			}
		case tea.KeyDown:
			if m.selectedTheme < len(m.themes)-1 {
				m.selectedTheme++
			}
		case tea.KeyEnter:
			m.loading = true
			m.err = nil
			return m, m.createSession(m.themes[m.selectedTheme].ID)
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		}
		switch msg.String() {
		case "y", "Y":
			return m, tea.Quit
		case "n", "N":
			m.showQuitModal = false
			return m, nil
		}

	default:
		// keep in-flight results flowing while the modal is open
		m.showQuitModal = false
		model, cmd := m.Update(msg)
		next := model.(ConsoleUI)
		next.showQuitModal = true
		return next, cmd
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to quit your adventure?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderThemeModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingThemes:
		content.WriteString(modalTitleStyle.Render("Loading Themes..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait..."))
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Starting Adventure..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("The narrator is setting the scene..."))
	default:
		content.WriteString(modalTitleStyle.Render("Choose Your Setting"))
		content.WriteString("\n\n")

		for i, theme := range m.themes {
			if i == m.selectedTheme {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", theme.Label)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", theme.Label)))
			}
			content.WriteString("\n")
		}

		if m.err != nil {
			content.WriteString("\n")
			content.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Esc to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showThemeModal {
		return m.renderThemeModal()
	}
	if !m.ready || m.gameState == nil {
		return "\n  Initializing..."
	}

	sceneWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - sceneWidth - 6

	scenePanel := scenePanelStyle.Width(sceneWidth).Height(m.height - 1).Render(m.sceneViewport.View())
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 1).Render(writeMetadata(m.gameState, m.fromCache))

	return lipgloss.JoinHorizontal(lipgloss.Top, scenePanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := min(max(m.sceneViewport.Width-6, 10), 60)

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := range usable {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
