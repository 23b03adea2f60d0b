package commands

import (
	"staffcore/internal/printer"
	"strings"

	"github.com/spf13/cobra"
)

type conflictsOptions struct {
	start   string
	end     string
	exclude string
}

func newConflictsCmd(root *rootOptions) *cobra.Command {
	opts := &conflictsOptions{}
	cmd := &cobra.Command{
		Use:   "conflicts TALENT_ID",
		Short: "List allocations overlapping a date range",
		Long: `List the allocations of a talent that overlap [--start, --end].

Examples:
  # Check a week before booking it
  staffcore conflicts 4f1c --start 2024-03-04 --end 2024-03-08

  # Re-check an existing allocation against everything else
  staffcore conflicts 4f1c --start 2024-03-04 --end 2024-03-12 --exclude 9b2e`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDateFlag("start", opts.start)
			if err != nil {
				return err
			}
			end := start
			if opts.end != "" {
				if end, err = parseDateFlag("end", opts.end); err != nil {
					return err
				}
			}
			if end.Before(start) {
				return printer.Error("invalid range", "--end is before --start", nil)
			}

			s, err := openSession(cmd.Context(), root, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			conflicts, err := s.svc.CheckConflicts(cmd.Context(), args[0], start, end, opts.exclude)
			if err != nil {
				return reportServiceError("conflict check", err)
			}
			if len(conflicts) == 0 {
				printer.Success("no conflicts between %s and %s\n", start, end)
				return nil
			}
			printer.Warning("%d conflicting allocation(s)\n", len(conflicts))
			rows := make([][]string, 0, len(conflicts))
			for _, c := range conflicts {
				a := c.Allocation
				notes := ""
				if a.Notes != nil {
					notes = strings.TrimSpace(*a.Notes)
				}
				rows = append(rows, []string{a.ID, c.ProjectName, a.StartDate.String(), a.EndDate.String(), notes})
			}
			printer.Table([]string{"ALLOCATION", "PROJECT", "START", "END", "NOTES"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.start, "start", "", "First day of the range (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Last day of the range (default --start)")
	cmd.Flags().StringVar(&opts.exclude, "exclude", "", "Allocation ID to ignore")
	return cmd
}
