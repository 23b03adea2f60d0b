package commands

import (
	"staffcore/internal/printer"
	"strings"

	"github.com/spf13/cobra"
)

type availableOptions struct {
	date   string
	skills []string
}

func newAvailableCmd(root *rootOptions) *cobra.Command {
	opts := &availableOptions{}
	cmd := &cobra.Command{
		Use:   "available",
		Short: "List talents free on a day",
		Long: `List talents with no allocation and no project assignment on --date.

--skill may be repeated; a talent must hold every listed skill.

Examples:
  staffcore available --date 2024-03-05
  staffcore available --date 2024-03-05 --skill go --skill postgres`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDateFlag("date", opts.date)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), root, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			talents, err := s.svc.AvailableTalents(cmd.Context(), date, opts.skills)
			if err != nil {
				return reportServiceError("availability query", err)
			}
			if len(talents) == 0 {
				printer.Warning("nobody is available on %s\n", date)
				return nil
			}
			printer.Success("%d available on %s\n", len(talents), date)
			rows := make([][]string, 0, len(talents))
			for _, t := range talents {
				rows = append(rows, []string{t.ID, t.Name, strings.Join(t.Skills, ", ")})
			}
			printer.Table([]string{"ID", "NAME", "SKILLS"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.date, "date", "", "Day to check (YYYY-MM-DD, default today)")
	cmd.Flags().StringArrayVar(&opts.skills, "skill", nil, "Required skill (repeatable)")
	return cmd
}
