package server

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"shreddy/internal/device"
)

const clearScreen = "\x1b[2J\x1b[1;1H"

var bannerLogo = []string{
	"   _______  __   __  ______    _______  ______   ______   __   __ ",
	"  |       ||  | |  ||    _ |  |       ||      | |      | |  | |  |",
	"  |  _____||  |_|  ||   | ||  |    ___||  _    ||  _    ||  |_|  |",
	"  | |_____ |       ||   |_||_ |   |___ | | |   || | |   ||       |",
	"  |_____  ||       ||    __  ||    ___|| |_|   || |_|   ||_     _|",
	"   _____| ||   _   ||   |  | ||   |___ |       ||       |  |   |  ",
	"  |_______||__| |__||___|  |_||_______||______| |______|   |___|  ",
}

var bannerVersion = []string{
	"   _______ ",
	"  |       |",
	"  |____   |",
	"   ____|  |",
	"  | ______|",
	"  | |_____ ",
	"  |_______|",
}

const (
	tagline    = "  +++ Shreddy, ready, go! +++"
	disclaimer = "  Disclaimer: There is no guarantee that all data is completely deleted."
)

// Renderer builds the status page with a fixed 16-color ANSI palette.
type Renderer struct {
	logo, version, tagline, disclaimer lipgloss.Style
	done, inserted, failed, removed    lipgloss.Style
	other                              lipgloss.Style
}

func NewRenderer() *Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.ANSI)

	color := func(c string) lipgloss.Style {
		return r.NewStyle().Foreground(lipgloss.Color(c))
	}
	return &Renderer{
		logo:       color("3"),
		version:    color("1"),
		tagline:    color("6"),
		disclaimer: color("1"),
		done:       color("2"),
		inserted:   color("3"),
		failed:     color("1"),
		removed:    r.NewStyle(),
		other:      color("7"),
	}
}

func (r *Renderer) statusStyle(s device.Severity) lipgloss.Style {
	switch s {
	case device.SeverityDone:
		return r.done
	case device.SeverityRemoved:
		return r.removed
	case device.SeverityInserted:
		return r.inserted
	case device.SeverityError:
		return r.failed
	default:
		return r.other
	}
}

// Page renders the full screen for the given records, newest first.
func (r *Renderer) Page(records []device.Snapshot) string {
	var b strings.Builder
	b.WriteString(clearScreen)

	for i := range bannerLogo {
		b.WriteString(r.logo.Render(bannerLogo[i]))
		b.WriteString(r.version.Render(bannerVersion[i]))
		b.WriteByte('\n')
	}
	b.WriteString(r.tagline.Render(tagline))
	b.WriteString("\n\n")
	b.WriteString(r.disclaimer.Render(disclaimer))
	b.WriteString("\n\n")

	if len(records) == 0 {
		b.WriteString("No device(s).\n")
	} else {
		fmt.Fprintf(&b, "%-16s %-30s %-30s\n", "Device", "Model", "Status")
		fmt.Fprintf(&b, "%-16s %-30s %-30s\n\n", strings.Repeat("-", 16), strings.Repeat("-", 30), strings.Repeat("-", 30))
		for _, rec := range records {
			status := fmt.Sprintf("%-30s", rec.StatusText())
			fmt.Fprintf(&b, "%-16s %-30s %s\n", rec.Path, rec.Model, r.statusStyle(rec.Status).Render(status))
		}
	}

	b.WriteString("\n\n")
	return b.String()
}

// RenderPage renders with a default renderer.
func RenderPage(records []device.Snapshot) string {
	return NewRenderer().Page(records)
}
