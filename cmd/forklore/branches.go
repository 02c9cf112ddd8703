package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/services"
)

func newBranchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branches",
		Short: "Fork, list and manage branches",
	}

	cmd.AddCommand(
		newBranchesListCmd(),
		newBranchesForkCmd(),
		newBranchesShowCmd(),
		newBranchesPublishCmd(),
		newBranchesMergeCmd(),
		newBranchesRejectCmd(),
		newBranchesDeleteCmd(),
	)

	return cmd
}

type branchListFlags struct {
	kind       string
	canon      string
	visibility string
	forkPoint  int
	sort       string
	limit      int
}

func newBranchesListCmd() *cobra.Command {
	var flags branchListFlags

	cmd := &cobra.Command{
		Use:   "list <work-id>",
		Short: "List a work's branches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := entities.BranchFilter{
				Kind:        entities.BranchKind(strings.ToUpper(flags.kind)),
				CanonStatus: entities.CanonStatus(strings.ToUpper(flags.canon)),
				Visibility:  entities.Visibility(strings.ToUpper(flags.visibility)),
				Sort:        entities.BranchSort(flags.sort),
				Limit:       flags.limit,
			}
			if cmd.Flags().Changed("fork-point") {
				filter.ForkPointChapter = &flags.forkPoint
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				seq, err := d.Services.Branches.List(cmd.Context(), args[0], filter)
				if err != nil {
					return err
				}

				count := 0
				for branch, err := range seq {
					if err != nil {
						return fmt.Errorf("listing branches: %w", err)
					}
					count++
					printBranchLine(&branch)
				}
				if count == 0 {
					fmt.Println("No branches found.")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.kind, "kind", "", "Filter by kind (main, side_story, if_story, fan_fic)")
	cmd.Flags().StringVar(&flags.canon, "canon", "", "Filter by canon status (non_canon, candidate, merged, rejected)")
	cmd.Flags().StringVar(&flags.visibility, "visibility", "", "Filter by visibility (private, public, linked)")
	cmd.Flags().IntVar(&flags.forkPoint, "fork-point", 0, "Filter by fork-point chapter")
	cmd.Flags().StringVar(&flags.sort, "sort", "votes", "Sort order (votes, newest, oldest)")
	cmd.Flags().IntVarP(&flags.limit, "limit", "l", DefaultListLimit, "Maximum number of branches")

	return cmd
}

type forkFlags struct {
	kind          string
	name          string
	description   string
	voteThreshold int
}

func newBranchesForkCmd() *cobra.Command {
	var flags forkFlags

	cmd := &cobra.Command{
		Use:   "fork <parent-branch-id> <chapter>",
		Short: "Fork a branch at a chapter",
		Long:  "Creates a NON_CANON branch that inherits the parent's story up to and including the chapter.",
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
				branch, err := d.Services.Branches.Create(cmd.Context(), userID, services.BranchCreateInput{
					ParentID:         args[0],
					ForkPointChapter: chapter,
					Kind:             entities.BranchKind(strings.ToUpper(flags.kind)),
					Name:             flags.name,
					Description:      flags.description,
					VoteThreshold:    flags.voteThreshold,
				})
				if err != nil {
					return fmt.Errorf("forking branch: %w", err)
				}

				fmt.Printf("Created branch %s\n", branch.ID)
				printBranchLine(branch)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.kind, "kind", "k", string(entities.BranchSideStory), "Branch kind (side_story, if_story, fan_fic)")
	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "Branch name (required)")
	cmd.Flags().StringVarP(&flags.description, "description", "d", "", "Branch description")
	cmd.Flags().IntVar(&flags.voteThreshold, "vote-threshold", 0, "Votes needed to become a canon candidate (default from config)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newBranchesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <branch-id>",
		Short: "Show a branch and its ancestry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				links, err := d.Services.Branches.Ancestry(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				branch := links[0].Branch
				fmt.Printf("%s\n", branch.Name)
				fmt.Printf("  ID:         %s\n", branch.ID)
				fmt.Printf("  Kind:       %s\n", branch.Kind)
				fmt.Printf("  Canon:      %s\n", branch.CanonStatus)
				fmt.Printf("  Visibility: %s\n", branch.Visibility)
				fmt.Printf("  Author:     %s\n", branch.AuthorID)
				fmt.Printf("  Votes:      %d/%d\n", branch.VoteCount, branch.VoteThreshold)
				fmt.Printf("  Chapters:   %d\n", branch.ChapterCount)
				if branch.Description != "" {
					fmt.Printf("  %s\n", branch.Description)
				}

				if len(links) > 1 {
					fmt.Println("\nAncestry:")
					for _, link := range links[1:] {
						fmt.Printf("  %s (%s) inherited through chapter %d\n", link.Branch.Name, link.Branch.ID, link.InheritedUpTo)
					}
				}
				return nil
			})
		},
	}
}

func newBranchesPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <branch-id>",
		Short: "Publish the next chapter of a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				count, err := d.Services.Works.PublishChapter(cmd.Context(), userID, args[0])
				if err != nil {
					return fmt.Errorf("publishing chapter: %w", err)
				}
				fmt.Printf("Branch now has %d chapters\n", count)
				return nil
			})
		},
	}
}

func newBranchesMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <branch-id>",
		Short: "Merge a canon candidate into canon",
		Long:  "Marks a CANDIDATE branch as MERGED. Only the work's author may merge.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				branch, err := d.Services.Promotion.Merge(cmd.Context(), userID, args[0])
				if err != nil {
					return fmt.Errorf("merging branch: %w", err)
				}
				fmt.Printf("Merged %q (%s)\n", branch.Name, branch.ID)
				return nil
			})
		},
	}
}

func newBranchesRejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <branch-id>",
		Short: "Reject a branch from canon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				branch, err := d.Services.Promotion.Reject(cmd.Context(), userID, args[0], reason)
				if err != nil {
					return fmt.Errorf("rejecting branch: %w", err)
				}
				fmt.Printf("Rejected %q (%s)\n", branch.Name, branch.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Reason recorded in the audit log")

	return cmd
}

func newBranchesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <branch-id>",
		Short: "Delete a branch",
		Long:  "Soft-deletes a branch. Forks of it keep their inherited content.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				if err := d.Services.Branches.Delete(cmd.Context(), userID, args[0]); err != nil {
					return fmt.Errorf("deleting branch: %w", err)
				}
				fmt.Printf("Deleted branch %s\n", args[0])
				return nil
			})
		},
	}
}

func printBranchLine(b *entities.Branch) {
	fork := "root"
	if !b.IsRoot() {
		fork = fmt.Sprintf("fork@%d", b.ForkPoint())
	}
	fmt.Printf("  %s  %-10s %-9s %-8s votes=%-4d %s  %q\n",
		b.ID, b.Kind, b.CanonStatus, fork, b.VoteCount, b.Visibility, b.Name)
}
