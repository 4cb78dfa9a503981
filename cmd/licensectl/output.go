package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"licensebridge/internal/license"
)

type styles struct {
	label  lipgloss.Style
	header lipgloss.Style
	good   lipgloss.Style
	bad    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		label:  r.NewStyle().Bold(true).Width(14),
		header: r.NewStyle().Bold(true).Underline(true),
		good:   r.NewStyle().Foreground(lipgloss.Color("#16a34a")),
		bad:    r.NewStyle().Foreground(lipgloss.Color("#dc2626")),
	}
}

// printSummary writes the derived license getters as aligned label/value lines
func printSummary(w io.Writer, m *license.Module) {
	st := newStyles(w)
	state := m.State()

	edition := st.bad.Render(state.Status.Edition)
	if m.IsUltimate() {
		edition = st.good.Render(state.Status.Edition)
	}

	expired := "unknown"
	if isExpired, known := m.IsValidStateExpired(); known {
		expired = yesNo(isExpired)
	}

	trial := "none"
	if t, ok := m.TrialLicense(); ok {
		trial = fmt.Sprintf("#%d until %s", t.ID, t.ValidUntil.UTC().Format(time.DateOnly))
	}

	installation := "-"
	if state.InstallationID != nil {
		installation = *state.InstallationID
	}

	rows := [][2]string{
		{"Edition", edition},
		{"Condition", strings.Join(state.Status.Condition, "; ")},
		{"Licenses", fmt.Sprintf("%d (%d real)", len(state.Licenses), len(m.RealLicenses()))},
		{"Trial", trial},
		{"Trial active", yesNo(m.IsTrial())},
		{"Days left", fmt.Sprintf("%d", m.LicenseDaysLeft())},
		{"Expired", expired},
		{"Installation", installation},
	}
	for _, row := range rows {
		fmt.Fprintln(w, st.label.Render(row[0])+row[1])
	}
}

// printLicenses writes one line per license, keys masked
func printLicenses(w io.Writer, licenses []license.LicenseKey, now time.Time) {
	st := newStyles(w)
	if len(licenses) == 0 {
		fmt.Fprintln(w, "no licenses")
		return
	}

	fmt.Fprintln(w, st.header.Render(fmt.Sprintf("%-4s %-16s %-16s %-12s %s", "ID", "KEY", "TYPE", "VALID UNTIL", "DAYS")))
	for _, l := range licenses {
		days := int(math.Round(l.ValidUntil.Sub(now).Hours() / 24))
		fmt.Fprintf(w, "%-4d %-16s %-16s %-12s %d\n",
			l.ID, license.MaskLicenseKey(l.Key), l.LicenseType, l.ValidUntil.UTC().Format(time.DateOnly), days)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
