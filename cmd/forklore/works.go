package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newWorksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "works",
		Short: "Manage works",
	}

	cmd.AddCommand(
		newWorksCreateCmd(),
		newWorksShowCmd(),
		newWorksProgressCmd(),
		newWorksBranchingCmd(),
	)

	return cmd
}

func newWorksCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <title>",
		Short: "Create a work and its main branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				work, main, err := d.Services.Works.Create(cmd.Context(), userID, args[0])
				if err != nil {
					return fmt.Errorf("creating work: %w", err)
				}

				fmt.Printf("Created work %q\n", work.Title)
				fmt.Printf("  Work ID:     %s\n", work.ID)
				fmt.Printf("  Main branch: %s\n", main.ID)
				return nil
			})
		},
	}
}

func newWorksShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <work-id>",
		Short: "Show a work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				work, err := d.Services.Works.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				main, err := d.Services.Branches.MainBranch(cmd.Context(), work.ID)
				if err != nil {
					return err
				}

				fmt.Printf("%s\n", work.Title)
				fmt.Printf("  ID:          %s\n", work.ID)
				fmt.Printf("  Author:      %s\n", work.AuthorID)
				fmt.Printf("  Chapters:    %d\n", main.ChapterCount)
				fmt.Printf("  Branches:    %d (%d linked)\n", work.BranchCount, work.LinkedBranchCount)
				fmt.Printf("  Branching:   %s\n", onOff(work.AllowBranching))
				fmt.Printf("  Main branch: %s\n", main.ID)
				return nil
			})
		},
	}
}

func newWorksProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <work-id> <chapter>",
		Short: "Record how far you have read",
		Long:  "Records reading progress. Progress only moves forward.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}
			chapter, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid chapter %q", args[1])
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				if err := d.Services.Works.RecordProgress(cmd.Context(), userID, args[0], chapter); err != nil {
					return fmt.Errorf("recording progress: %w", err)
				}
				fmt.Printf("Progress recorded at chapter %d\n", chapter)
				return nil
			})
		},
	}
}

func newWorksBranchingCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "branching <work-id> <on|off>",
		Short:     "Open or close a work to new forks",
		Long:      "Controls whether readers may fork the work. Existing branches are kept.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			var allow bool
			switch args[1] {
			case "on":
				allow = true
			case "off":
			default:
				return fmt.Errorf("invalid setting %q (use on or off)", args[1])
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				work, err := d.Services.Works.SetAllowBranching(cmd.Context(), userID, args[0], allow)
				if err != nil {
					return fmt.Errorf("changing branching: %w", err)
				}
				fmt.Printf("Branching is %s for %q\n", onOff(work.AllowBranching), work.Title)
				return nil
			})
		},
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
