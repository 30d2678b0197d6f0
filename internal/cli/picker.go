package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pcbpeek/pcbpeek/pkg/pipeline"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// LayerListModel is the bubbletea model for interactive layer selection.
// All layers start checked; the user unchecks what they don't want.
type LayerListModel struct {
	Layers    []pipeline.Layer
	Cursor    int
	Checked   map[int]bool
	Confirmed bool
	Height    int
	Offset    int
}

// NewLayerListModel creates a layer list with every layer selected.
func NewLayerListModel(layers []pipeline.Layer) LayerListModel {
	checked := make(map[int]bool, len(layers))
	for i := range layers {
		checked[i] = true
	}
	return LayerListModel{
		Layers:  layers,
		Checked: checked,
		Height:  15,
	}
}

func (m LayerListModel) Init() tea.Cmd {
	return nil
}

func (m LayerListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Layers)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ":
			m.Checked[m.Cursor] = !m.Checked[m.Cursor]
		case "a":
			for i := range m.Layers {
				m.Checked[i] = true
			}
		case "n":
			for i := range m.Layers {
				m.Checked[i] = false
			}
		case "enter":
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m LayerListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Layers"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  a all  n none  ⏎ confirm  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Layers) {
		end = len(m.Layers)
	}
	for i := m.Offset; i < end; i++ {
		layer := m.Layers[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		check := "[ ]"
		if m.Checked[i] {
			check = "[x]"
		}

		style := listNormalStyle
		if i == m.Cursor {
			style = listSelectedStyle
		}
		dims := fmt.Sprintf("%.2f x %.2f mm", layer.WidthMM, layer.HeightMM)
		b.WriteString(cursor + check + " " + style.Render(layer.Name) +
			" " + listDimStyle.Render(dims) + "\n")
	}
	return b.String()
}

// pickLayers runs the interactive picker and returns the kept layers.
// A quit without confirmation returns nil.
func pickLayers(layers []pipeline.Layer) ([]pipeline.Layer, error) {
	final, err := tea.NewProgram(NewLayerListModel(layers)).Run()
	if err != nil {
		return nil, fmt.Errorf("layer picker: %w", err)
	}
	m, ok := final.(LayerListModel)
	if !ok || !m.Confirmed {
		return nil, nil
	}
	var out []pipeline.Layer
	for i, layer := range layers {
		if m.Checked[i] {
			out = append(out, layer)
		}
	}
	return out, nil
}
