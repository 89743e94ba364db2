package surface

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	indicator  = "●"
	labelWidth = 24
)

var (
	labelStyle    = lipgloss.NewStyle().Width(labelWidth).Bold(true)
	textStyle     = lipgloss.NewStyle().Faint(true)
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#39c84e"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	sectionStyle  = lipgloss.NewStyle().PaddingTop(1)
)

// Render draws the board for a terminal: one row per element in creation
// order, then the graph nodes one dependency wave per row.
func (b *Board) Render() string {
	view := b.View()

	rows := make([]string, 0, len(view.Elements))
	for _, el := range view.Elements {
		rows = append(rows, renderElement(el))
	}

	if len(view.Nodes) > 0 {
		layers := Layers(view.Nodes)
		waves := make([]string, 0, len(layers))
		for _, layer := range layers {
			nodes := make([]string, 0, len(layer))
			for _, n := range layer {
				nodes = append(nodes, renderNode(n))
			}
			waves = append(waves, lipgloss.JoinHorizontal(lipgloss.Top, nodes...))
		}
		rows = append(rows, sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, waves...)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderElement(el ElementView) string {
	label := labelStyle.Render(el.Label)
	switch el.Kind {
	case KindStrip:
		var sb strings.Builder
		for _, c := range el.Cells {
			sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(string(c.Color))).Render(indicator))
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, label, sb.String())
	case KindText:
		return lipgloss.JoinHorizontal(lipgloss.Top, label, textStyle.Render(el.Text))
	case KindBadge:
		active := el.Active != nil && *el.Active
		style := inactiveStyle
		if active {
			style = activeStyle
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, label, style.Render(fmt.Sprintf("[%s]", BadgeClass(active))))
	default:
		return label
	}
}

func renderNode(n Node) string {
	stroke := lipgloss.NewStyle()
	if n.Stroke != "" {
		stroke = stroke.Foreground(lipgloss.Color(string(n.Stroke)))
	}
	line := labelStyle.Render(n.Task) + stroke.Render(indicator)
	if len(n.Downstream) > 0 {
		line += textStyle.Render(" -> " + strings.Join(n.Downstream, ", "))
	}
	return line
}
