// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/geoffholden/mitemp/data"
	"github.com/geoffholden/mitemp/device"
	"github.com/geoffholden/mitemp/units"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the sensors in the terminal",
	Long:  `Polls the configured sensors and shows the latest values in the terminal.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		viper.BindPFlags(cmd.Flags())
	},
	RunE: watch,
}

func init() {
	RootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("interval", 5*time.Minute, "Time between updates")
	watchCmd.Flags().String("unit", "C", "Temperature unit")
}

func watch(cmd *cobra.Command, args []string) error {
	unit := viper.GetString("unit")
	if _, err := units.Symbol(unit); err != nil {
		return err
	}

	devices, err := openDevices()
	if err != nil {
		return err
	}
	defer closeDevices(devices)

	// log lines would corrupt the screen
	jww.SetStdoutThreshold(jww.LevelFatal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(newWatchModel(ctx, devices, viper.GetDuration("interval"), unit), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

var (
	colorTitleBg = lipgloss.Color("17")
	colorTitleFg = lipgloss.Color("51")
	colorBorder  = lipgloss.Color("62")
	colorName    = lipgloss.Color("147")
	colorDim     = lipgloss.Color("240")
	colorWarn    = lipgloss.Color("220")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTitleFg).Background(colorTitleBg).Padding(0, 1)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1)
	nameStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorName)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarn)
)

type tickMsg time.Time

// updatedMsg carries the result of one round of updates, indexed like the
// devices.
type updatedMsg []error

type watchModel struct {
	ctx      context.Context
	devices  []*device.Device
	interval time.Duration
	unit     string
	errs     []error
	updating bool
}

func newWatchModel(ctx context.Context, devices []*device.Device, interval time.Duration, unit string) watchModel {
	return watchModel{
		ctx:      ctx,
		devices:  devices,
		interval: interval,
		unit:     unit,
		errs:     make([]error, len(devices)),
		updating: true,
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.update()
}

func (m watchModel) update() tea.Cmd {
	ctx, devices := m.ctx, m.devices
	return func() tea.Msg {
		errs := make([]error, len(devices))
		for i, d := range devices {
			_, errs[i] = d.Update(ctx)
		}
		return updatedMsg(errs)
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if !m.updating {
				m.updating = true
				return m, m.update()
			}
		}

	case updatedMsg:
		m.errs = msg
		m.updating = false
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg {
			return tickMsg(t)
		})

	case tickMsg:
		if m.updating {
			return m, nil
		}
		m.updating = true
		return m, m.update()
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("mitemp"))
	if m.updating {
		b.WriteString(dimStyle.Render("  updating..."))
	}
	b.WriteString("\n")

	for i, d := range m.devices {
		b.WriteString(boxStyle.Render(m.deviceView(d, m.errs[i])))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("r refresh • q quit"))
	return b.String()
}

func (m watchModel) deviceView(d *device.Device, err error) string {
	cfg := d.Config()
	lines := []string{nameStyle.Render(cfg.Name) + " " + dimStyle.Render(cfg.MAC)}
	for _, s := range d.Sensors() {
		lines = append(lines, fmt.Sprintf("%-12s %s", s.Key(), m.format(s)))
	}

	reading := d.Reading()
	if reading.Empty() {
		lines = append(lines, dimStyle.Render("no reading yet"))
	} else {
		lines = append(lines, dimStyle.Render("read "+reading.TimeStamp.Local().Format("15:04:05")))
	}
	if err != nil {
		lines = append(lines, warnStyle.Render(err.Error()))
	}
	return strings.Join(lines, "\n")
}

func (m watchModel) format(s *device.Sensor) string {
	if s.Key() != data.KeyTemperature {
		return s.State() + " " + s.Unit()
	}
	value, err := units.Temperature(s.Value()).Get(m.unit)
	if err != nil {
		return s.State() + " " + s.Unit()
	}
	symbol, _ := units.Symbol(m.unit)
	return fmt.Sprintf("%.2f %s", value, symbol)
}
