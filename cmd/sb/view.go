package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/satyaki-up/sprintboard/internal/board"
)

func newViewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Manage saved item views",
	}

	var (
		v               board.SavedView
		statuses, prios string
		visibility      string
	)
	save := &cobra.Command{
		Use:   "save",
		Short: "Create a view, or update one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			view := v
			view.Owner = actor
			view.Visibility = board.Visibility(visibility)
			view.Filter.Statuses = nil
			for _, s := range parseCSV(statuses) {
				view.Filter.Statuses = append(view.Filter.Statuses, board.ItemStatus(s))
			}
			view.Filter.Priorities = nil
			for _, p := range parseCSV(prios) {
				view.Filter.Priorities = append(view.Filter.Priorities, board.Priority(p))
			}
			saved, err := a.store.SaveView(view)
			if err != nil {
				return err
			}
			a.emit(cmd, saved, func(w io.Writer) { fmt.Fprintf(w, "saved view %s (%s)\n", saved.ID, saved.Name) })
			return nil
		},
	}
	save.Flags().StringVar(&v.ID, "id", "", "existing view id to update")
	save.Flags().StringVar(&v.Name, "name", "", "view name")
	save.Flags().StringVar(&visibility, "visibility", string(board.VisibilityPrivate), "private|group")
	save.Flags().BoolVar(&v.Pinned, "pinned", false, "pin the view")
	save.Flags().BoolVar(&v.Default, "default", false, "make this your default view")
	save.Flags().StringVar(&statuses, "status", "", "comma-separated statuses")
	save.Flags().StringVar(&prios, "priority", "", "comma-separated priorities")
	save.Flags().StringVar(&v.Filter.Assignee, "assignee", "", "assignee")
	save.Flags().StringVar(&v.Filter.EpicID, "epic", "", "epic id")
	save.Flags().StringVar(&v.Filter.SprintID, "sprint", "", "sprint id")
	save.Flags().StringVar(&v.Filter.Text, "q", "", "title text")

	list := &cobra.Command{
		Use:   "list",
		Short: "List your views and the group views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			views := a.store.ListViews(a.cfg.User)
			a.emit(cmd, views, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tOWNER\tVISIBILITY\tPINNED\tDEFAULT\tNAME")
				for _, v := range views {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\n", v.ID, v.Owner, v.Visibility, v.Pinned, v.Default, v.Name)
				}
				_ = tw.Flush()
			})
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete one of your views",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			if err := a.store.DeleteView(args[0], actor); err != nil {
				return err
			}
			a.emit(cmd, map[string]string{"deleted": args[0]}, func(w io.Writer) { fmt.Fprintf(w, "deleted view %s\n", args[0]) })
			return nil
		},
	}

	cmd.AddCommand(save, list, del)
	return cmd
}

// findView resolves id among the views visible to the current user.
func findView(a *app, id string) (board.SavedView, error) {
	for _, v := range a.store.ListViews(a.cfg.User) {
		if v.ID == id {
			return v, nil
		}
	}
	return board.SavedView{}, fmt.Errorf("%w: view %q not found", board.ErrNotFound, id)
}
