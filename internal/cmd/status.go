package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/steipete/codelooper/internal/config"
	"github.com/steipete/codelooper/internal/persist"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration and last known state",
	Long: `Display the effective configuration, the application watch list, and
the locator and counter state saved by the last watch run.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(24)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render("Supervision"))
	b.WriteString("\n")
	writeKV(&b, "interval", cfg.Supervision.Interval().String())
	writeKV(&b, "max parallel", fmt.Sprintf("%d", cfg.Supervision.MaxParallel))
	writeKV(&b, "grace ticks", fmt.Sprintf("%d", cfg.Supervision.GraceTicks))
	writeKV(&b, "observation ticks", fmt.Sprintf("%d", cfg.Supervision.ObservationTicks))
	writeKV(&b, "unrecoverable after", fmt.Sprintf("%d failures", cfg.Supervision.UnrecoverableThreshold))

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Rules"))
	b.WriteString("\n")
	writeKV(&b, "ceiling", fmt.Sprintf("%d per window", cfg.Rules.Ceiling))
	writeKV(&b, "warn margin", fmt.Sprintf("%d", cfg.Rules.WarnMargin))
	writeKV(&b, "stop after loops", onOff(cfg.Rules.StopAfterLoops))
	writeKV(&b, "resume connection", onOff(cfg.Rules.ResumeConnection))

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Watched applications"))
	b.WriteString("\n")
	for _, id := range cfg.Apps.BundleIDs {
		b.WriteString("  " + truncate(id, width-2) + "\n")
	}

	writeSnapshot(&b, cfg, width)

	fmt.Print(b.String())
	return nil
}

// writeSnapshot appends the last saved state, if any.
func writeSnapshot(b *strings.Builder, cfg *config.Config, width int) {
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Saved state"))
	b.WriteString("\n")

	if !cfg.Persistence.Enabled {
		b.WriteString("  persistence disabled\n")
		return
	}

	path := cfg.Persistence.ResolvePath()
	st, err := persist.Load(path)
	if err != nil {
		b.WriteString("  " + warnStyle.Render(truncate(fmt.Sprintf("unreadable: %v", err), width-2)) + "\n")
		return
	}
	if st == nil {
		b.WriteString("  none (no watch run yet)\n")
		return
	}

	writeKV(b, "saved at", st.SavedAt.Format("2006-01-02 15:04:05"))
	writeKV(b, "cached locators", fmt.Sprintf("%d apps", len(st.Locators)))
	for _, app := range st.Locators {
		names := make([]string, 0, len(app.Elements))
		for name := range app.Elements {
			names = append(names, name)
		}
		line := fmt.Sprintf("  pid %d: %s", app.PID, strings.Join(names, ", "))
		b.WriteString(truncate(line, width) + "\n")
	}

	writeKV(b, "counted windows", fmt.Sprintf("%d", len(st.Counters)))
	for _, wc := range st.Counters {
		var total int64
		for _, n := range wc.Counts {
			total += n
		}
		b.WriteString(truncate(fmt.Sprintf("  %s: %d interventions", wc.WindowID, total), width) + "\n")
	}
}

func writeKV(b *strings.Builder, key, value string) {
	b.WriteString("  " + keyStyle.Render(key) + value + "\n")
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// truncate shortens a line to fit the terminal width.
func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
