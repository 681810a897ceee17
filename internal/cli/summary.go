package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/joinboard/join/internal/core"
	"github.com/joinboard/join/pkg/models"
)

var summaryJSON bool

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show board totals",
	Long: `Show the number of tasks per column, the urgent count with the next urgent
deadline, and the number of overdue tasks.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := loadTasks(ctxOf(cmd))
		if err != nil {
			return err
		}
		s := core.Summarize(tasks, now())

		out := cmd.OutOrStdout()
		if summaryJSON {
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting summary as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprintln(out, renderSummary(s))
		return nil
	},
}

func renderSummary(s core.BoardSummary) string {
	tiles := make([]string, 0, len(models.Stages))
	for _, st := range models.Stages {
		tiles = append(tiles, columnStyle.Render(fmt.Sprintf("%s\n%s",
			stageStyle(st).Render(fmt.Sprintf("%d", s.PerStage[st])), st.Label())))
	}

	deadline := "No upcoming deadline"
	if s.NextUrgentDeadline != "" {
		if d, err := time.Parse("2006-01-02", s.NextUrgentDeadline); err == nil {
			deadline = d.Format("January 2, 2006")
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Join board summary"))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tiles...))
	b.WriteString("\n")
	b.WriteString(columnStyle.Render(fmt.Sprintf("%s Urgent\n%s\n%s",
		urgentStyle.Render(fmt.Sprintf("%d", s.Urgent)), deadline, mutedStyle.Render("Upcoming deadline"))))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Tasks in board: %d\n", s.Total)
	overdue := fmt.Sprintf("%d", s.Overdue)
	if s.Overdue > 0 {
		overdue = errorStyle.Render(overdue)
	}
	fmt.Fprintf(&b, "  Overdue:        %s", overdue)
	return b.String()
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "Output the summary as JSON")
	rootCmd.AddCommand(summaryCmd)
}
