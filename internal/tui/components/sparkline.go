package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders the last Width samples on a single line, scaled to the
// largest visible sample.
type Sparkline struct {
	Label string
	Width int
	Style lipgloss.Style

	samples []uint64
}

func NewSparkline(width int, label string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Label:   label,
		Width:   width,
		Style:   style,
		samples: make([]uint64, 0, width),
	}
}

func (s *Sparkline) Add(v uint64) {
	s.samples = append(s.samples, v)
	if s.Width > 0 && len(s.samples) > s.Width {
		s.samples = s.samples[len(s.samples)-s.Width:]
	}
}

func (s Sparkline) Samples() []uint64 {
	return s.samples
}

func (s Sparkline) Graph() string {
	var peak uint64
	for _, v := range s.samples {
		if v > peak {
			peak = v
		}
	}

	var b strings.Builder
	for _, v := range s.samples {
		idx := 0
		if peak > 0 {
			idx = int(v * uint64(len(levels)-1) / peak)
		}
		b.WriteRune(levels[idx])
	}
	if pad := s.Width - len(s.samples); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	return b.String()
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}
	return s.Style.Render(s.Label) + "\n" + s.Style.Render(s.Graph())
}
