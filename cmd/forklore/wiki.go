package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/services"
)

func newWikiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wiki",
		Short: "Read and author the spoiler-safe wiki",
	}

	cmd.AddCommand(
		newWikiListCmd(),
		newWikiShowCmd(),
		newWikiAddCmd(),
		newWikiReviseCmd(),
		newWikiHistoryCmd(),
		newWikiSearchCmd(),
		newWikiDraftCmd(),
		newWikiReindexCmd(),
		newWikiTagCmd(),
	)

	return cmd
}

// asOfFlag registers --as-of and returns a getter that yields nil unless
// the flag was set.
func asOfFlag(cmd *cobra.Command) func() *int {
	var chapter int
	cmd.Flags().IntVar(&chapter, "as-of", 0, "Read as of this chapter instead of your recorded progress")
	return func() *int {
		if !cmd.Flags().Changed("as-of") {
			return nil
		}
		return &chapter
	}
}

func newWikiListCmd() *cobra.Command {
	var tagID string

	cmd := &cobra.Command{
		Use:   "list <branch-id>",
		Short: "List the wiki entries visible in a branch",
		Args:  cobra.ExactArgs(1),
	}
	asOf := asOfFlag(cmd)
	cmd.Flags().StringVar(&tagID, "tag", "", "Only entries with this tag ID")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd.Context(), func(d *Deps) error {
			ctx := cmd.Context()
			branch, err := d.Services.Branches.Get(ctx, args[0])
			if err != nil {
				return err
			}
			progress, err := d.Services.Visibility.ReaderProgress(ctx, globalUser, branch.WorkID, asOf())
			if err != nil {
				return err
			}

			views, err := d.Services.Visibility.ListVisibleEntries(ctx, globalUser, branch.ID, progress, tagID)
			if err != nil {
				return fmt.Errorf("listing entries: %w", err)
			}
			if len(views) == 0 {
				fmt.Println("No entries found.")
				return nil
			}

			fmt.Printf("Entries in %q (%s)\n", branch.Name, describeProgress(progress))
			for i := range views {
				printEntryLine(&views[i])
			}
			return nil
		})
	}

	return cmd
}

func newWikiShowCmd() *cobra.Command {
	var branchID string

	cmd := &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show the spoiler-safe content of an entry",
		Args:  cobra.ExactArgs(1),
	}
	asOf := asOfFlag(cmd)
	cmd.Flags().StringVar(&branchID, "branch", "", "Resolve through this branch's lineage")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd.Context(), func(d *Deps) error {
			ctx := cmd.Context()
			workID, err := d.Services.Visibility.EntryWorkID(ctx, args[0])
			if err != nil {
				return err
			}
			progress, err := d.Services.Visibility.ReaderProgress(ctx, globalUser, workID, asOf())
			if err != nil {
				return err
			}

			var view *services.EntryView
			if branchID != "" {
				view, err = d.Services.Visibility.ResolveInBranch(ctx, globalUser, branchID, args[0], progress)
			} else {
				view, err = d.Services.Visibility.Resolve(ctx, globalUser, args[0], progress)
			}
			if err != nil {
				return err
			}

			printEntry(view, progress)
			return nil
		})
	}

	return cmd
}

type addEntryFlags struct {
	firstAppearance int
	content         string
	validFrom       int
	hiddenNote      string
	imageURL        string
	tags            []string
}

func newWikiAddCmd() *cobra.Command {
	var flags addEntryFlags

	cmd := &cobra.Command{
		Use:   "add <branch-id> <name>",
		Short: "Create a wiki entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			in := services.EntryInput{
				BranchID:   args[0],
				Name:       args[1],
				ImageURL:   flags.imageURL,
				HiddenNote: flags.hiddenNote,
				Content:    flags.content,
				ValidFrom:  flags.validFrom,
				TagIDs:     flags.tags,
			}
			if cmd.Flags().Changed("first-appearance") {
				in.FirstAppearance = &flags.firstAppearance
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				entry, err := d.Services.Wiki.CreateEntry(cmd.Context(), userID, in)
				if err != nil {
					return fmt.Errorf("creating entry: %w", err)
				}
				fmt.Printf("Created entry %q (%s)\n", entry.Name, entry.ID)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&flags.firstAppearance, "first-appearance", 0, "Chapter the entry first appears in")
	cmd.Flags().StringVarP(&flags.content, "content", "c", "", "Initial snapshot content")
	cmd.Flags().IntVar(&flags.validFrom, "valid-from", 0, "Chapter the initial snapshot is valid from")
	cmd.Flags().StringVar(&flags.hiddenNote, "hidden-note", "", "Note visible only to the branch author")
	cmd.Flags().StringVar(&flags.imageURL, "image-url", "", "Image URL")
	cmd.Flags().StringSliceVar(&flags.tags, "tag", nil, "Tag IDs to attach (repeatable)")

	return cmd
}

func newWikiReviseCmd() *cobra.Command {
	var contributor string

	cmd := &cobra.Command{
		Use:   "revise <entry-id> <valid-from-chapter> <content>",
		Short: "Append a snapshot to an entry",
		Long:  "Appends a new snapshot. Existing snapshots are never modified.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}
			validFrom, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid chapter %q", args[1])
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				snapshot, err := d.Services.Wiki.AppendSnapshot(cmd.Context(), userID, args[0], services.SnapshotInput{
					Content:          args[2],
					ValidFromChapter: validFrom,
					Contributor:      entities.ContributorKind(strings.ToUpper(contributor)),
				})
				if err != nil {
					return fmt.Errorf("appending snapshot: %w", err)
				}
				fmt.Printf("Added snapshot %s valid from chapter %d\n", snapshot.ID, snapshot.ValidFromChapter)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&contributor, "contributor", string(entities.ContributorUser), "Contributor (user, ai)")

	return cmd
}

func newWikiHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <entry-id>",
		Short: "List the snapshots of an entry you have reached",
		Args:  cobra.ExactArgs(1),
	}
	asOf := asOfFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd.Context(), func(d *Deps) error {
			ctx := cmd.Context()
			workID, err := d.Services.Visibility.EntryWorkID(ctx, args[0])
			if err != nil {
				return err
			}
			progress, err := d.Services.Visibility.ReaderProgress(ctx, globalUser, workID, asOf())
			if err != nil {
				return err
			}

			snapshots, err := d.Services.Wiki.History(ctx, args[0], progress)
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				fmt.Println("No snapshots visible.")
				return nil
			}
			for _, s := range snapshots {
				fmt.Printf("  ch.%-4d %-4s %s  %s\n", s.ValidFromChapter, s.Contributor, s.ID, truncate(s.Content, 60))
			}
			return nil
		})
	}

	return cmd
}

func newWikiSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <branch-id> <query>",
		Short: "Search a branch's wiki without spoilers",
		Args:  cobra.ExactArgs(2),
	}
	asOf := asOfFlag(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultSearchLimit, "Maximum number of results")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd.Context(), func(d *Deps) error {
			if d.SearchHandler == nil {
				return errSearchDisabled
			}

			result, err := d.SearchHandler.Handle(cmd.Context(), globalUser, args[0], args[1], asOf(), limit)
			if err != nil {
				return err
			}
			if len(result.Results) == 0 {
				fmt.Println("No results found.")
				return nil
			}

			fmt.Printf("Results for %q (%s):\n", result.Query, describeProgress(result.Progress))
			for i := range result.Results {
				r := &result.Results[i]
				fmt.Printf("  %.2f ", r.Score)
				printEntryLine(&r.EntryView)
			}
			return nil
		})
	}

	return cmd
}

func newWikiDraftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "draft <entry-id> <valid-from-chapter> <chapter-file>",
		Short: "Draft a snapshot from chapter text with AI",
		Long:  "Sends the chapter text and the entry's current content to the LLM and appends the revised content as an AI snapshot.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}
			validFrom, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid chapter %q", args[1])
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				if d.DraftHandler == nil {
					return errAssistDisabled
				}

				fmt.Printf("Drafting from %s...\n", args[2])
				result, err := d.DraftHandler.Handle(cmd.Context(), userID, args[0], args[2], validFrom)
				if err != nil {
					return err
				}
				fmt.Printf("Added AI snapshot %s valid from chapter %d\n", result.Snapshot.ID, result.Snapshot.ValidFromChapter)
				fmt.Printf("  %s\n", truncate(result.Snapshot.Content, 200))
				return nil
			})
		},
	}
}

func newWikiReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <entry-id>...",
		Short: "Rebuild the search index for entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				if d.Services.Search == nil {
					return errSearchDisabled
				}

				total := 0
				for _, entryID := range args {
					n, err := d.Services.Search.Reindex(cmd.Context(), entryID)
					if err != nil {
						return fmt.Errorf("reindexing %s: %w", entryID, err)
					}
					total += n
				}
				fmt.Printf("Reindexed %d snapshots across %d entries\n", total, len(args))
				return nil
			})
		},
	}
}

func newWikiTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage branch tags",
	}

	var color, description string
	var order int
	create := &cobra.Command{
		Use:   "create <branch-id> <name>",
		Short: "Define a tag in a branch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				tag, err := d.Services.Wiki.CreateTag(cmd.Context(), userID, args[0], services.TagInput{
					Name:         args[1],
					Color:        color,
					Description:  description,
					DisplayOrder: order,
				})
				if err != nil {
					return fmt.Errorf("creating tag: %w", err)
				}
				fmt.Printf("Created tag %q (%s)\n", tag.Name, tag.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&color, "color", "", "Display color")
	create.Flags().StringVarP(&description, "description", "d", "", "Tag description")
	create.Flags().IntVar(&order, "order", 0, "Display order")

	list := &cobra.Command{
		Use:   "list <branch-id>",
		Short: "List a branch's tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				tags, err := d.Services.Wiki.ListTags(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(tags) == 0 {
					fmt.Println("No tags defined.")
					return nil
				}
				for _, t := range tags {
					fmt.Printf("  %s  %-20s %s\n", t.ID, t.Name, t.Description)
				}
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <entry-id> [tag-id...]",
		Short: "Replace an entry's tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				entry, err := d.Services.Wiki.SetTags(cmd.Context(), userID, args[0], args[1:])
				if err != nil {
					return fmt.Errorf("setting tags: %w", err)
				}
				fmt.Printf("%q now has %d tags\n", entry.Name, len(entry.Tags))
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, set)
	return cmd
}

func describeProgress(p entities.ReaderProgress) string {
	switch p.State {
	case entities.ProgressKnown:
		return fmt.Sprintf("as of chapter %d", p.Chapter)
	case entities.ProgressUnavailable:
		return "progress unavailable"
	default:
		return "no progress recorded"
	}
}

func printEntryLine(v *services.EntryView) {
	switch v.Resolution.State {
	case services.ResolutionVisible:
		fmt.Printf("%s  %-24s %s\n", v.Entry.ID, v.Entry.Name, truncate(v.Resolution.Snapshot.Content, 60))
	case services.ResolutionNotYetRevealed:
		fmt.Printf("%s  %-24s [not yet revealed]\n", v.Entry.ID, v.Entry.Name)
	default:
		fmt.Printf("%s  %-24s [no content]\n", v.Entry.ID, v.Entry.Name)
	}
}

func printEntry(v *services.EntryView, progress entities.ReaderProgress) {
	fmt.Printf("%s (%s)\n", v.Entry.Name, describeProgress(progress))
	if v.Entry.HiddenNote != "" {
		fmt.Printf("  Note: %s\n", v.Entry.HiddenNote)
	}
	if len(v.Entry.Tags) > 0 {
		names := make([]string, 0, len(v.Entry.Tags))
		for _, t := range v.Entry.Tags {
			names = append(names, t.Name)
		}
		fmt.Printf("  Tags: %s\n", strings.Join(names, ", "))
	}

	switch v.Resolution.State {
	case services.ResolutionNotYetRevealed:
		fmt.Println("\n  This entry has not been revealed yet.")
		return
	case services.ResolutionNoContent:
		fmt.Println("\n  No content yet.")
		return
	}

	s := v.Resolution.Snapshot
	if v.Spoiler.Gated {
		fmt.Printf("\n  Hidden to avoid spoilers (%s). Use --as-of to read ahead.\n", v.Spoiler.Reason)
		return
	}
	fmt.Printf("\n%s\n\n", s.Content)
	fmt.Printf("  Valid from chapter %d (%s)\n", s.ValidFromChapter, s.Contributor)
	if v.Resolution.Fallback {
		fmt.Println("  Showing the earliest snapshot; the entry first appears later.")
	}
	if v.Resolution.Redact {
		fmt.Println("  Newer revisions exist beyond your progress.")
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
