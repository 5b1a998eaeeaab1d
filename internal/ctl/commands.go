package ctl

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

// New builds the physiotrackctl command tree.
func New() *cobra.Command {
	server := os.Getenv("PHYSIOTRACK_SERVER")
	if server == "" {
		server = defaultServer
	}

	cmd := &cobra.Command{
		Use:           "physiotrackctl",
		Short:         "Inspect and drive treatment beds on a physiotrackd server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&server, "server", server, "physiotrackd base URL")

	client := func() *Client { return NewClient(server) }

	cmd.AddCommand(
		&cobra.Command{
			Use:   "beds",
			Short: "List every bed.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				beds, err := client().Beds()
				if err != nil {
					return err
				}
				return printBeds(cmd.OutOrStdout(), beds)
			},
		},
		bedCommand("advance", "Move a bed to its next step.", client),
		bedCommand("pause", "Pause or resume a bed.", client),
		bedCommand("clear", "Return a bed to idle.", client),
		&cobra.Command{
			Use:   "reset",
			Short: "Clear every bed.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				beds, err := client().Reset()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %d beds\n", len(beds))
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the remote sync status.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := client().SyncStatus()
				if err != nil {
					return err
				}
				if st.Error != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", st.Status, st.Error)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), st.Status)
				return nil
			},
		},
	)
	return cmd
}

func bedCommand(name, short string, client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   name + " BED_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid bed id %q", args[0])
			}
			bed, applied, err := client().Command(id, name)
			if err != nil {
				return err
			}
			if !applied {
				fmt.Fprintf(cmd.OutOrStdout(), "bed %d: no change (%s)\n", id, bed.Status)
				return nil
			}
			return printBeds(cmd.OutOrStdout(), []Bed{bed})
		},
	}
}

func printBeds(out io.Writer, beds []Bed) error {
	bold := color.New(color.Bold)
	overtime := color.New(color.FgRed)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("BED"), bold.Sprint("STATUS"), bold.Sprint("PRESET"), bold.Sprint("STEP"), bold.Sprint("REMAINING"))
	for _, b := range beds {
		step := "-"
		if b.CurrentStep != nil {
			step = b.CurrentStep.Name
		}
		preset := "-"
		if id := b.Preset.ID(); id != "" {
			preset = id
		}
		status := string(b.Status)
		if b.IsPaused {
			status += " (paused)"
		}
		remaining := formatRemaining(b)
		if b.RemainingTime < 0 && remaining != "-" {
			remaining = overtime.Sprint(remaining)
		}
		tbl.AddRow(b.ID, status, preset, step, remaining)
	}
	tbl.RightAlign(0)

	_, err := fmt.Fprintln(out, tbl)
	return err
}

func formatRemaining(b Bed) string {
	if b.CurrentStep == nil || !b.CurrentStep.EnableTimer {
		return "-"
	}
	r := b.RemainingTime
	sign := ""
	if r < 0 {
		sign = "-"
		r = -r
	}
	return fmt.Sprintf("%s%d:%02d", sign, r/60, r%60)
}
