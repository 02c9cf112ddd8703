package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

func newLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Request and review links into canon",
	}

	cmd.AddCommand(
		newLinksRequestCmd(),
		newLinksListCmd(),
		newLinksApproveCmd(),
		newLinksRejectCmd(),
	)

	return cmd
}

func newLinksRequestCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "request <branch-id>",
		Short: "Ask the work's author to link your branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				req, err := d.Services.Promotion.RequestLink(cmd.Context(), userID, args[0], message)
				if err != nil {
					return fmt.Errorf("requesting link: %w", err)
				}
				fmt.Printf("Link requested (%s)\n", req.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Message to the work's author")

	return cmd
}

func newLinksListCmd() *cobra.Command {
	var branchID, status string

	cmd := &cobra.Command{
		Use:   "list <work-id>",
		Short: "List a work's link requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := entities.LinkRequestFilter{
				WorkID:   args[0],
				BranchID: branchID,
				Status:   entities.LinkRequestStatus(strings.ToUpper(status)),
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				requests, err := d.Services.Promotion.LinkRequests(cmd.Context(), filter)
				if err != nil {
					return fmt.Errorf("listing link requests: %w", err)
				}
				if len(requests) == 0 {
					fmt.Println("No link requests found.")
					return nil
				}
				for _, req := range requests {
					fmt.Printf("%s  %-8s  branch %s  by %s", req.ID, req.Status, req.BranchID, req.RequesterID)
					if req.Message != "" {
						fmt.Printf("  %s", truncate(req.Message, 60))
					}
					fmt.Println()
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&branchID, "branch", "", "Only requests for this branch")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, approved, rejected)")

	return cmd
}

func newLinksApproveCmd() *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve a link request and merge the branch",
		Long:  "Approves a pending request. The branch must be a CANDIDATE; it becomes MERGED and LINKED.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				req, err := d.Services.Promotion.ApproveLink(cmd.Context(), userID, args[0], comment)
				if err != nil {
					return fmt.Errorf("approving link: %w", err)
				}
				fmt.Printf("Approved; branch %s is now linked\n", req.BranchID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&comment, "comment", "c", "", "Review comment")

	return cmd
}

func newLinksRejectCmd() *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Decline a link request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				req, err := d.Services.Promotion.RejectLink(cmd.Context(), userID, args[0], comment)
				if err != nil {
					return fmt.Errorf("rejecting link: %w", err)
				}
				fmt.Printf("Declined link request for branch %s\n", req.BranchID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&comment, "comment", "c", "", "Review comment")

	return cmd
}
