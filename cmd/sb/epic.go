package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/satyaki-up/sprintboard/internal/board"
)

func newEpicCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epic",
		Short: "Manage epics and their ICE scores",
	}

	var in board.EpicInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an epic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			in.Actor = actor
			if in.BoardID == "" {
				in.BoardID = a.cfg.Board
			}
			epic, err := a.store.CreateEpic(in)
			if err != nil {
				return err
			}
			a.emit(cmd, epic, func(w io.Writer) {
				fmt.Fprintf(w, "created %s (ICE %.2f)\n", epic.ID, epic.ICEScore)
			})
			return nil
		},
	}
	create.Flags().StringVar(&in.BoardID, "board", "", "board id (default from config)")
	create.Flags().StringVar(&in.Name, "name", "", "epic name")
	create.Flags().StringVar(&in.Description, "description", "", "description")
	create.Flags().IntVar(&in.Ease, "ease", 5, "ease 1-10")
	create.Flags().IntVar(&in.Impact, "impact", 5, "impact 1-10")
	create.Flags().IntVar(&in.Confidence, "confidence", 5, "confidence 1-10")

	var includeDeleted bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List epics by ICE score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			epics := a.store.ListEpics(a.cfg.Board, includeDeleted)
			a.emit(cmd, epics, func(w io.Writer) { printEpics(w, epics) })
			return nil
		},
	}
	list.Flags().BoolVar(&includeDeleted, "all", false, "include deleted epics")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one epic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			epic, err := a.store.GetEpic(args[0])
			if err != nil {
				return err
			}
			a.emit(cmd, epic, func(w io.Writer) { printEpics(w, []board.Epic{*epic}) })
			return nil
		},
	}

	var patchName, patchDesc string
	var patchEase, patchImpact, patchConfidence int
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Edit an epic; ICE is recomputed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			patch := board.EpicPatch{Actor: actor}
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &patchName
			}
			if flags.Changed("description") {
				patch.Description = &patchDesc
			}
			if flags.Changed("ease") {
				patch.Ease = &patchEase
			}
			if flags.Changed("impact") {
				patch.Impact = &patchImpact
			}
			if flags.Changed("confidence") {
				patch.Confidence = &patchConfidence
			}
			epic, err := a.store.UpdateEpic(args[0], patch)
			if err != nil {
				return err
			}
			a.emit(cmd, epic, func(w io.Writer) {
				fmt.Fprintf(w, "updated %s (ICE %.2f)\n", epic.ID, epic.ICEScore)
			})
			return nil
		},
	}
	update.Flags().StringVar(&patchName, "name", "", "epic name")
	update.Flags().StringVar(&patchDesc, "description", "", "description")
	update.Flags().IntVar(&patchEase, "ease", 0, "ease 1-10")
	update.Flags().IntVar(&patchImpact, "impact", 0, "impact 1-10")
	update.Flags().IntVar(&patchConfidence, "confidence", 0, "confidence 1-10")

	status := &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Move an epic to active|on_hold|done|archived|deleted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			epic, err := a.store.UpdateEpicStatus(args[0], board.EpicStatus(args[1]), actor)
			if err != nil {
				return err
			}
			a.emit(cmd, epic, func(w io.Writer) { fmt.Fprintf(w, "%s is now %s\n", epic.ID, epic.Status) })
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Soft-delete an epic and detach its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			epic, err := a.store.DeleteEpic(args[0], actor)
			if err != nil {
				return err
			}
			a.emit(cmd, epic, func(w io.Writer) { fmt.Fprintf(w, "deleted %s\n", epic.ID) })
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore ID",
		Short: "Restore a deleted epic (items stay detached)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor()
			if err != nil {
				return err
			}
			epic, err := a.store.RestoreEpic(args[0], actor)
			if err != nil {
				return err
			}
			a.emit(cmd, epic, func(w io.Writer) { fmt.Fprintf(w, "restored %s\n", epic.ID) })
			return nil
		},
	}

	cmd.AddCommand(create, list, show, update, status, del, restore)
	return cmd
}

func printEpics(w io.Writer, epics []board.Epic) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tICE\tE/I/C\tSTATUS\tNAME")
	for _, e := range epics {
		fmt.Fprintf(tw, "%s\t%.2f\t%d/%d/%d\t%s\t%s\n", e.ID, e.ICEScore, e.Ease, e.Impact, e.Confidence, e.Status, e.Name)
	}
	_ = tw.Flush()
}
