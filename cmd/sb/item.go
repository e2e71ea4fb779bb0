package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/satyaki-up/sprintboard/internal/board"
)

func newItemCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage work items",
	}
	cmd.AddCommand(
		newItemCreateCmd(a),
		newItemListCmd(a),
		newItemShowCmd(a),
		newItemUpdateCmd(a),
		newItemMoveCmd(a),
		newItemCommentCmd(a),
		newItemWatchCmd(a, true),
		newItemWatchCmd(a, false),
	)
	return cmd
}

func newItemCreateCmd(a *app) *cobra.Command {
	var (
		in               board.ItemInput
		status, priority string
		watchers, due    string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a work item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			in.Reporter = actor
			if in.BoardID == "" {
				in.BoardID = a.cfg.Board
			}
			in.Status = board.ItemStatus(status)
			in.Priority = board.Priority(priority)
			in.Watchers = parseCSV(watchers)
			if in.DueDate, err = parseDate(due); err != nil {
				return err
			}
			item, err := a.store.CreateItem(in)
			if err != nil {
				return err
			}
			a.emit(cmd, item, func(w io.Writer) { fmt.Fprintf(w, "created %s (v%d)\n", item.ID, item.Version) })
			return nil
		},
	}
	cmd.Flags().StringVar(&in.BoardID, "board", "", "board id (default from config)")
	cmd.Flags().StringVar(&in.Title, "title", "", "item title")
	cmd.Flags().StringVar(&status, "status", "", "backlog|todo|in_progress|in_review|done")
	cmd.Flags().StringVar(&priority, "priority", "", "low|medium|high|critical")
	cmd.Flags().StringVar(&in.Assignee, "assignee", "", "assignee")
	cmd.Flags().StringVar(&in.EpicID, "epic", "", "epic id")
	cmd.Flags().StringVar(&in.SprintID, "sprint", "", "sprint id")
	cmd.Flags().StringVar(&in.TeamID, "team", "", "team id")
	cmd.Flags().StringVar(&watchers, "watchers", "", "comma-separated watchers")
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD")
	return cmd
}

func newItemListCmd(a *app) *cobra.Command {
	var (
		f               board.ViewFilter
		statuses, prios string
		viewID          string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items, optionally through a saved view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := f
			for _, s := range parseCSV(statuses) {
				filter.Statuses = append(filter.Statuses, board.ItemStatus(s))
			}
			for _, p := range parseCSV(prios) {
				filter.Priorities = append(filter.Priorities, board.Priority(p))
			}
			if viewID != "" {
				view, err := findView(a, viewID)
				if err != nil {
					return err
				}
				filter = view.Filter
			} else if !anyChanged(cmd, "status", "priority", "assignee", "epic", "sprint", "q") {
				if def, ok := a.store.DefaultView(a.cfg.User); ok {
					filter = def.Filter
				}
			}
			items := a.store.ListItems(a.cfg.Board, filter)
			a.emit(cmd, items, func(w io.Writer) { printItems(w, items) })
			return nil
		},
	}
	cmd.Flags().StringVar(&statuses, "status", "", "comma-separated statuses")
	cmd.Flags().StringVar(&prios, "priority", "", "comma-separated priorities")
	cmd.Flags().StringVar(&f.Assignee, "assignee", "", "assignee")
	cmd.Flags().StringVar(&f.EpicID, "epic", "", "epic id")
	cmd.Flags().StringVar(&f.SprintID, "sprint", "", "sprint id")
	cmd.Flags().StringVar(&f.Text, "q", "", "title text")
	cmd.Flags().StringVar(&viewID, "view", "", "saved view id")
	return cmd
}

func newItemShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := a.store.GetItem(args[0])
			if err != nil {
				return err
			}
			a.emit(cmd, item, func(w io.Writer) { printItem(w, *item) })
			return nil
		},
	}
}

func newItemUpdateCmd(a *app) *cobra.Command {
	var (
		title, status, assignee, priority string
		epic, sprint, team, due           string
		clearDue                          bool
		expectedVersion                   int64
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Edit a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			patch := board.ItemPatch{Actor: actor, ClearDueDate: clearDue}
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("status") {
				st := board.ItemStatus(status)
				patch.Status = &st
			}
			if flags.Changed("assignee") {
				patch.Assignee = &assignee
			}
			if flags.Changed("priority") {
				p := board.Priority(priority)
				patch.Priority = &p
			}
			if flags.Changed("epic") {
				patch.EpicID = &epic
			}
			if flags.Changed("sprint") {
				patch.SprintID = &sprint
			}
			if flags.Changed("team") {
				patch.TeamID = &team
			}
			if flags.Changed("due") {
				if patch.DueDate, err = parseDate(due); err != nil {
					return err
				}
			}
			var expected *int64
			if flags.Changed("expected-version") {
				expected = &expectedVersion
			}
			item, err := a.store.UpdateItem(args[0], patch, expected)
			if err != nil {
				return err
			}
			a.emit(cmd, item, func(w io.Writer) { fmt.Fprintf(w, "updated %s (v%d)\n", item.ID, item.Version) })
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "item title")
	cmd.Flags().StringVar(&status, "status", "", "backlog|todo|in_progress|in_review|done")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee (empty to unassign)")
	cmd.Flags().StringVar(&priority, "priority", "", "low|medium|high|critical")
	cmd.Flags().StringVar(&epic, "epic", "", "epic id (empty to detach)")
	cmd.Flags().StringVar(&sprint, "sprint", "", "sprint id (empty for backlog)")
	cmd.Flags().StringVar(&team, "team", "", "team id")
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().Int64Var(&expectedVersion, "expected-version", 0, "fail with a conflict unless the item is at this version")
	return cmd
}

func newItemMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move ID STATUS",
		Short: "Change a work item's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			item, err := a.store.MoveItem(args[0], board.ItemStatus(args[1]), actor)
			if err != nil {
				return err
			}
			a.emit(cmd, item, func(w io.Writer) { fmt.Fprintf(w, "%s is now %s\n", item.ID, item.Status) })
			return nil
		},
	}
}

func newItemCommentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comment ID BODY...",
		Short: "Comment on a work item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			item, err := a.store.AddComment(args[0], actor, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			a.emit(cmd, item, func(w io.Writer) { fmt.Fprintf(w, "commented on %s\n", item.ID) })
			return nil
		},
	}
}

func newItemWatchCmd(a *app, on bool) *cobra.Command {
	use, short := "watch ID", "Watch a work item"
	if !on {
		use, short = "unwatch ID", "Stop watching a work item"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			var item *board.WorkItem
			if on {
				item, err = a.store.Watch(args[0], actor)
			} else {
				item, err = a.store.Unwatch(args[0], actor)
			}
			if err != nil {
				return err
			}
			a.emit(cmd, item, func(w io.Writer) {
				fmt.Fprintf(w, "watchers of %s: %s\n", item.ID, strings.Join(item.Watchers, ","))
			})
			return nil
		},
	}
}

func printItems(w io.Writer, items []board.WorkItem) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tASSIGNEE\tEPIC\tSPRINT\tTITLE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ID, it.Status, it.Priority, orDash(it.Assignee), orDash(it.Epic), orDash(it.Sprint), it.Title)
	}
	_ = tw.Flush()
}

func printItem(w io.Writer, it board.WorkItem) {
	fmt.Fprintf(w, "id: %s\n", it.ID)
	fmt.Fprintf(w, "board: %s\n", it.BoardID)
	fmt.Fprintf(w, "title: %s\n", it.Title)
	fmt.Fprintf(w, "status: %s\n", it.Status)
	fmt.Fprintf(w, "priority: %s\n", it.Priority)
	fmt.Fprintf(w, "reporter: %s\n", it.Reporter)
	fmt.Fprintf(w, "version: %d\n", it.Version)
	if it.Assignee != "" {
		fmt.Fprintf(w, "assignee: %s\n", it.Assignee)
	}
	if it.EpicID != "" {
		fmt.Fprintf(w, "epic: %s (%s)\n", it.Epic, it.EpicID)
	}
	if it.SprintID != "" {
		fmt.Fprintf(w, "sprint: %s (%s)\n", it.Sprint, it.SprintID)
	}
	if len(it.Watchers) > 0 {
		fmt.Fprintf(w, "watchers: %s\n", strings.Join(it.Watchers, ","))
	}
	if it.DueDate != nil {
		fmt.Fprintf(w, "due: %s\n", formatDate(it.DueDate))
	}
	fmt.Fprintf(w, "created_at: %s\n", it.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "updated_at: %s\n", it.UpdatedAt.Format(time.RFC3339))
	for _, c := range it.Comments {
		fmt.Fprintf(w, "  [%s] %s: %s\n", c.CreatedAt.Format(time.RFC3339), c.Author, c.Body)
	}
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
