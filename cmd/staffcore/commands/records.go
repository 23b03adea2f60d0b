package commands

import (
	"fmt"
	"staffcore/internal/core"
	"staffcore/internal/printer"
	"strings"

	"github.com/spf13/cobra"
)

func newProjectCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "List or delete projects",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List projects",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openSession(cmd.Context(), root, nil)
				if err != nil {
					return err
				}
				defer s.Close()
				rows := [][]string{}
				for _, p := range s.svc.ListProjects() {
					rows = append(rows, []string{p.ID, p.Name, p.Color, string(p.Status), window(p), fmt.Sprint(len(p.AssignedTalents))})
				}
				printer.Table([]string{"ID", "NAME", "COLOR", "STATUS", "WINDOW", "ASSIGNED"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete PROJECT_ID",
			Short: "Delete a project and its allocations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openSession(cmd.Context(), root, nil)
				if err != nil {
					return err
				}
				defer s.Close()
				summary, _, err := s.svc.DeleteProject(cmd.Context(), args[0])
				if err != nil {
					return reportServiceError("project delete", err)
				}
				printSummary(summary)
				return nil
			},
		},
	)
	return cmd
}

func newAreaCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "area",
		Short: "List or delete areas",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List areas",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openSession(cmd.Context(), root, nil)
				if err != nil {
					return err
				}
				defer s.Close()
				rows := [][]string{}
				for _, a := range s.svc.ListAreas() {
					rows = append(rows, []string{a.ID, a.Name})
				}
				printer.Table([]string{"ID", "NAME"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete AREA_ID",
			Short: "Delete an area and remove it from every talent",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openSession(cmd.Context(), root, nil)
				if err != nil {
					return err
				}
				defer s.Close()
				summary, _, err := s.svc.DeleteArea(cmd.Context(), args[0])
				if err != nil {
					return reportServiceError("area delete", err)
				}
				printSummary(summary)
				return nil
			},
		},
	)
	return cmd
}

func window(p core.Project) string {
	start, end := "…", "…"
	if p.StartDate != nil {
		start = p.StartDate.String()
	}
	if p.EndDate != nil {
		end = p.EndDate.String()
	}
	return start + " → " + end
}

func printSummary(summary core.CascadeSummary) {
	printer.Success("deleted %s %s\n", summary.Entity, summary.ID)
	if n := len(summary.AllocationsRemoved); n > 0 {
		printer.Step("removed %d allocation(s): %s\n", n, strings.Join(summary.AllocationsRemoved, ", "))
	}
	if n := len(summary.TalentsUpdated); n > 0 {
		printer.Step("updated %d talent(s): %s\n", n, strings.Join(summary.TalentsUpdated, ", "))
	}
	if n := len(summary.ProjectsUpdated); n > 0 {
		printer.Step("updated %d project(s): %s\n", n, strings.Join(summary.ProjectsUpdated, ", "))
	}
}
