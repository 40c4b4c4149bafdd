package widgets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Meter renders value/max as a bar of width cells
func Meter(value, max float64, width int, full, empty rune, color lipgloss.Color) string {
	if width <= 0 {
		return ""
	}
	n := 0
	if max > 0 && value > 0 {
		n = int(value / max * float64(width))
	}
	if n > width {
		n = width
	}
	style := lipgloss.NewStyle().Foreground(color)
	return style.Render(strings.Repeat(string(full), n)) + strings.Repeat(string(empty), width-n)
}

// TempoLadder renders the seven tempo names with the active one highlighted
func TempoLadder(names []string, active int, on, off lipgloss.Color) string {
	onStyle := lipgloss.NewStyle().Foreground(on).Bold(true)
	offStyle := lipgloss.NewStyle().Foreground(off)
	parts := make([]string, len(names))
	for i, n := range names {
		if i == active {
			parts[i] = onStyle.Render(n)
		} else {
			parts[i] = offStyle.Render(n)
		}
	}
	return strings.Join(parts, " ")
}

// FadeDots renders a fade-out as steps dots, the first done of them spent
func FadeDots(done, steps int, spent, left rune) string {
	if done < 0 {
		done = 0
	}
	if done > steps {
		done = steps
	}
	return strings.Repeat(string(spent), done) + strings.Repeat(string(left), steps-done)
}

// RenderStack formats a counter stack, bottom first
func RenderStack(stack []int) string {
	if len(stack) == 0 {
		return "[]"
	}
	parts := make([]string, len(stack))
	for i, v := range stack {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
