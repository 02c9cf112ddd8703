package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

type voteAction func(d *Deps) func(ctx context.Context, userID, branchID string) (*entities.VoteResult, error)

func newVoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Vote on branches",
	}

	cmd.AddCommand(
		newVoteActionCmd("toggle", "Toggle your vote on a branch", func(d *Deps) func(context.Context, string, string) (*entities.VoteResult, error) {
			return d.Services.Votes.Toggle
		}),
		newVoteActionCmd("cast", "Vote for a branch", func(d *Deps) func(context.Context, string, string) (*entities.VoteResult, error) {
			return d.Services.Votes.Cast
		}),
		newVoteActionCmd("withdraw", "Withdraw your vote from a branch", func(d *Deps) func(context.Context, string, string) (*entities.VoteResult, error) {
			return d.Services.Votes.Withdraw
		}),
		newVoteActionCmd("status", "Show your vote on a branch", func(d *Deps) func(context.Context, string, string) (*entities.VoteResult, error) {
			return d.Services.Votes.Status
		}),
	)

	return cmd
}

func newVoteActionCmd(name, short string, action voteAction) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <branch-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				result, err := action(d)(cmd.Context(), userID, args[0])
				if err != nil {
					return fmt.Errorf("%s vote: %w", name, err)
				}

				state := "not voted"
				if result.Voted {
					state = "voted"
				}
				fmt.Printf("%s: %s, %d votes, %s\n", result.BranchID, state, result.VoteCount, result.CanonStatus)
				return nil
			})
		},
	}
}
