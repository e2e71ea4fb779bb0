package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/satyaki-up/sprintboard/internal/board"
	"github.com/satyaki-up/sprintboard/internal/config"
)

type sprintFlags struct {
	board, name, goal, start, end, epics, team string
}

func (f *sprintFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.board, "board", "", "board id (default from config)")
	cmd.Flags().StringVar(&f.name, "name", "", "sprint name")
	cmd.Flags().StringVar(&f.goal, "goal", "", "sprint goal")
	cmd.Flags().StringVar(&f.start, "start", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "end date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.epics, "epics", "", "comma-separated epic ids; their items join the sprint")
	cmd.Flags().StringVar(&f.team, "team", "", "owning team id")
}

// apply overlays the flags that were set on in.
func (f *sprintFlags) apply(cmd *cobra.Command, in *board.SprintInput) error {
	flags := cmd.Flags()
	if flags.Changed("board") {
		in.BoardID = f.board
	}
	if flags.Changed("name") {
		in.Name = f.name
	}
	if flags.Changed("goal") {
		in.Goal = f.goal
	}
	if flags.Changed("start") {
		t, err := parseDate(f.start)
		if err != nil {
			return err
		}
		in.StartDate = t
	}
	if flags.Changed("end") {
		t, err := parseDate(f.end)
		if err != nil {
			return err
		}
		in.EndDate = t
	}
	if flags.Changed("epics") {
		in.EpicIDs = parseCSV(f.epics)
	}
	if flags.Changed("team") {
		in.TeamID = f.team
	}
	return nil
}

func newSprintCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Manage sprints",
	}

	var createFlags sprintFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a sprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			in := board.SprintInput{BoardID: a.cfg.Board, Actor: actor}
			if err := createFlags.apply(cmd, &in); err != nil {
				return err
			}
			sp, err := a.store.SaveSprint(in)
			if err != nil {
				return err
			}
			a.emit(cmd, sp, func(w io.Writer) { fmt.Fprintf(w, "created %s (#%d %s)\n", sp.ID, sp.Number, sp.Name) })
			return nil
		},
	}
	createFlags.bind(create)

	var updateFlags sprintFlags
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Edit a sprint; newly attached epics pull in their items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			cur, err := a.store.GetSprint(args[0])
			if err != nil {
				return err
			}
			in := board.SprintInput{
				ID:        cur.ID,
				BoardID:   cur.BoardID,
				Name:      cur.Name,
				Goal:      cur.Goal,
				StartDate: cur.StartDate,
				EndDate:   cur.EndDate,
				EpicIDs:   cur.EpicIDs,
				TeamID:    cur.TeamID,
				Actor:     actor,
			}
			if err := updateFlags.apply(cmd, &in); err != nil {
				return err
			}
			sp, err := a.store.SaveSprint(in)
			if err != nil {
				return err
			}
			a.emit(cmd, sp, func(w io.Writer) { fmt.Fprintf(w, "updated %s\n", sp.ID) })
			return nil
		},
	}
	updateFlags.bind(update)

	var includeDeleted bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List sprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sprints := a.store.ListSprints(a.cfg.Board, includeDeleted)
			a.emit(cmd, sprints, func(w io.Writer) { printSprints(w, sprints) })
			return nil
		},
	}
	list.Flags().BoolVar(&includeDeleted, "all", false, "include deleted sprints")

	var includeClosed bool
	selectable := &cobra.Command{
		Use:   "selectable",
		Short: "List sprints the current user may assign items to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sprints := a.store.SelectableSprints(a.cfg.User, board.SprintFilter{
				BoardID:       a.cfg.Board,
				IncludeClosed: includeClosed,
			})
			a.emit(cmd, sprints, func(w io.Writer) { printSprints(w, sprints) })
			return nil
		},
	}
	selectable.Flags().BoolVar(&includeClosed, "include-closed", false, "include closed sprints")

	state := &cobra.Command{
		Use:   "state ID STATE",
		Short: "Move a sprint to active|closed|deleted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			to := board.SprintState(args[1])
			if to == board.SprintDeleted {
				return deleteSprint(cmd, a, args[0], "", actor)
			}
			sp, err := a.store.UpdateSprintState(args[0], to, actor)
			if err != nil {
				return err
			}
			a.emit(cmd, sp, func(w io.Writer) { fmt.Fprintf(w, "%s is now %s\n", sp.ID, sp.State) })
			return nil
		},
	}

	var reassign string
	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Soft-delete a sprint; its items are unassigned or reassigned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			return deleteSprint(cmd, a, args[0], reassign, actor)
		},
	}
	del.Flags().StringVar(&reassign, "reassign", "", "move the sprint's items to this sprint id")

	restore := &cobra.Command{
		Use:   "restore ID",
		Short: "Restore a deleted sprint as planned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			sp, err := a.store.RestoreSprint(args[0], actor)
			if err != nil {
				return err
			}
			a.emit(cmd, sp, func(w io.Writer) { fmt.Fprintf(w, "restored %s\n", sp.ID) })
			return nil
		},
	}

	cmd.AddCommand(create, update, list, selectable, state, del, restore)
	return cmd
}

func deleteSprint(cmd *cobra.Command, a *app, id, reassign, actor string) error {
	reassign = strings.TrimSpace(reassign)
	if reassign == "" && a.cfg.Sprint.DeletePolicy == config.PolicyReassign {
		return fmt.Errorf("%w: delete_policy is reassign; pass --reassign SPRINT", board.ErrInvalidInput)
	}
	sp, err := a.store.DeleteSprint(id, board.DeletePolicy{ReassignTo: reassign}, actor)
	if err != nil {
		return err
	}
	a.emit(cmd, sp, func(w io.Writer) {
		if reassign != "" {
			fmt.Fprintf(w, "deleted %s; items moved to %s\n", sp.ID, reassign)
			return
		}
		fmt.Fprintf(w, "deleted %s; items moved to the backlog\n", sp.ID)
	})
	return nil
}

func printSprints(w io.Writer, sprints []board.Sprint) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t#\tSTATE\tSTART\tEND\tEPICS\tNAME")
	for _, sp := range sprints {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			sp.ID, sp.Number, sp.State, formatDate(sp.StartDate), formatDate(sp.EndDate),
			strings.Join(sp.EpicIDs, ","), sp.Name)
	}
	_ = tw.Flush()
}
