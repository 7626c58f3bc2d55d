// Command classdb-top is a terminal dashboard showing live buffer-pool
// occupancy, dirty-page count, and the lock manager's waits-for graph size.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hawkmoon910/classdb/godb"
)

var labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))

type tickMsg time.Time

type model struct {
	db       *godb.Database
	occupied progress.Model
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	bp := m.db.BufferPool
	capacity := m.db.Config.BufferPoolPagesOrDefault()
	frac := 0.0
	if capacity > 0 {
		frac = float64(bp.Size()) / float64(capacity)
	}
	return fmt.Sprintf(
		"%s\n%s\n%s %d\n%s %d\n%s %d\n\npress q to quit\n",
		labelStyle.Render("classdb live stats"),
		m.occupied.ViewAs(frac),
		labelStyle.Render("buffer pool pages:"), bp.Size(),
		labelStyle.Render("dirty pages:      "), bp.DirtyCount(),
		labelStyle.Render("blocked txns:     "), m.db.Locks.WaitGraphSize(),
	)
}

func main() {
	configPath := flag.String("config", "", "path to a classdb config YAML file")
	flag.Parse()

	cfg := &godb.Config{}
	if *configPath != "" {
		loaded, err := godb.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	db, err := godb.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	m := model{db: db, occupied: progress.New(progress.WithDefaultGradient())}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatalf("classdb-top: %v", err)
	}
}
