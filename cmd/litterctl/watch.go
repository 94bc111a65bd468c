package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"litterbox-service/internal/messaging"
	"litterbox-service/internal/types"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the motor and weight state",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 500*time.Millisecond, "Poll interval")
	rootCmd.AddCommand(watchCmd)
}

// stateSource is the read side of the Redis client.
type stateSource interface {
	GetMotorStatus() (types.MotorStatus, error)
	GetWeight() (types.Weight, error)
}

// commandSink queues operator keys as service commands.
type commandSink interface {
	SendCommand(channel, command string) error
}

type tickMsg time.Time

type stateMsg struct {
	status types.MotorStatus
	weight types.Weight
	err    error
}

type watchModel struct {
	source   stateSource
	sink     commandSink
	interval time.Duration

	status  types.MotorStatus
	weight  types.Weight
	err     error
	note    string
	updated time.Time
	width   int
}

func newWatchModel(source stateSource, sink commandSink, interval time.Duration) watchModel {
	return watchModel{source: source, sink: sink, interval: interval, width: 60}
}

func (m watchModel) Init() tea.Cmd {
	return m.poll()
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m watchModel) poll() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		status, err := source.GetMotorStatus()
		if err != nil {
			return stateMsg{err: err}
		}
		weight, err := source.GetWeight()
		return stateMsg{status: status, weight: weight, err: err}
	}
}

var watchKeys = map[string]struct{ list, command string }{
	"f": {messaging.MotorCommandList, "forward"},
	"r": {messaging.MotorCommandList, "reverse"},
	"b": {messaging.MotorCommandList, "brake"},
	"c": {messaging.MotorCommandList, "coast"},
	"+": {messaging.MotorCommandList, "speed-up"},
	"-": {messaging.MotorCommandList, "speed-down"},
	"h": {messaging.ActionCommandList, "home"},
	"l": {messaging.ActionCommandList, "clean"},
	"s": {messaging.ActionCommandList, "stop"},
	"t": {messaging.AutoTestCommandList, "start"},
	"T": {messaging.AutoTestCommandList, "stop"},
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		if k, ok := watchKeys[key]; ok && m.sink != nil {
			if err := m.sink.SendCommand(k.list, k.command); err != nil {
				m.note = fmt.Sprintf("%s failed: %v", k.command, err)
			} else {
				m.note = k.command + " queued"
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		return m, m.poll()

	case stateMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.weight = msg.weight
			m.updated = time.Now()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m watchModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Padding(0, 1)
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Width(12)
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))
	busyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11")).
		Bold(true)
	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	action := valueStyle.Render(m.status.Action)
	if m.status.Busy {
		action = busyStyle.Render(m.status.Action)
	}

	row := func(label, value string) string {
		return labelStyle.Render(label) + value
	}
	rows := []string{
		row("action", action),
		row("drive", valueStyle.Render(m.status.Drive)),
		row("cruise", valueStyle.Render(fmt.Sprintf("%d%%", m.status.Speed))),
		row("output", valueStyle.Render(fmt.Sprintf("%d%%", m.status.Output))),
		row("auto test", valueStyle.Render(onOff(m.status.AutoTest))),
		row("weight", valueStyle.Render(fmt.Sprintf("%.1f g (%d)", m.weight.Grams, m.weight.Raw))),
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("litterbox %s:%d", redisHost, redisPort)))
	b.WriteString("\n")
	b.WriteString(boxStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	} else if !m.updated.IsZero() {
		b.WriteString(labelStyle.Render("updated") + m.updated.Format("15:04:05"))
		b.WriteString("\n")
	}
	if m.note != "" {
		b.WriteString(m.note + "\n")
	}
	b.WriteString(labelStyle.Width(0).Render("f/r/b/c drive  +/- speed  h home  l clean  s stop  t/T auto test  q quit"))
	b.WriteString("\n")
	return b.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	p := tea.NewProgram(newWatchModel(client, client, watchInterval), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
