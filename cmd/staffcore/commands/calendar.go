package commands

import (
	"fmt"
	"staffcore/internal/calendar"
	"staffcore/internal/core"
	"staffcore/internal/printer"
	"staffcore/pkg/domain"
	"time"

	"github.com/spf13/cobra"
)

type calendarOptions struct {
	month string
	from  string
	to    string
}

func newCalendarCmd(root *rootOptions) *cobra.Command {
	opts := &calendarOptions{}
	cmd := &cobra.Command{
		Use:   "calendar TALENT_ID",
		Short: "Show a talent's schedule as a colored grid",
		Long: `Render one cell per day, colored with the project occupying it.

Use --month for a calendar month or --from/--to for an arbitrary range.
Without either flag the current month is shown.

Examples:
  staffcore calendar 4f1c --month 2024-03
  staffcore calendar 4f1c --from 2024-03-01 --to 2024-04-15`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := opts.window(time.Now())
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), root, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			talent, ok := s.svc.GetTalent(args[0])
			if !ok {
				return printer.Error("talent not found", fmt.Sprintf("No talent with ID %s.", args[0]), nil)
			}
			days, err := s.svc.Schedule(cmd.Context(), talent.ID, from, to)
			if err != nil {
				return reportServiceError("schedule", err)
			}
			printer.Println(calendar.Render(fmt.Sprintf("%s  %s → %s", talent.Name, from, to), days))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.month, "month", "", "Month to show (YYYY-MM)")
	cmd.Flags().StringVar(&opts.from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Last day (YYYY-MM-DD)")
	cmd.MarkFlagsMutuallyExclusive("month", "from")
	cmd.MarkFlagsMutuallyExclusive("month", "to")
	return cmd
}

// window resolves the flags to an inclusive date range.
func (o *calendarOptions) window(now time.Time) (core.Date, core.Date, error) {
	if o.from != "" || o.to != "" {
		if o.from == "" || o.to == "" {
			return core.Date{}, core.Date{}, printer.Error("incomplete range", "--from and --to must be given together", nil)
		}
		from, err := parseDateFlag("from", o.from)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		to, err := parseDateFlag("to", o.to)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		return from, to, nil
	}
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if o.month != "" {
		parsed, err := time.Parse("2006-01", o.month)
		if err != nil {
			return core.Date{}, core.Date{}, printer.Error("invalid --month", err.Error(), []string{"Months use the form YYYY-MM"})
		}
		month = parsed
	}
	first := domain.DateOf(month)
	last := domain.DateOf(month.AddDate(0, 1, -1))
	return first, last, nil
}
