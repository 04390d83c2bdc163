// Command duelctl drives a typeduel server from the terminal.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/touchtyped/typeduel/go/clients"
	"github.com/touchtyped/typeduel/go/internal/models"
)

const defaultServer = "http://localhost:8080"

var (
	serverURL string
	timeout   time.Duration
	attempts  int

	submitWPM      int
	submitAccuracy float64
	submitMode     string

	rankingsLimit int
	rankingsMode  string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "duelctl",
		Short:         "Typing duel server client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	server := os.Getenv("TYPEDUEL_SERVER")
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", server, "server base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	rootCmd.PersistentFlags().IntVar(&attempts, "attempts", clients.DefaultMaxAttempts, "attempts per request")

	rootCmd.AddCommand(newQueueCmd())
	rootCmd.AddCommand(newRoomCmd())
	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newRankingsCmd())
	rootCmd.AddCommand(newPositionCmd())

	return rootCmd
}

func newClient() *clients.DuelClient {
	c := clients.NewDuelClient(serverURL)
	c.SetTimeout(timeout)
	c.SetMaxAttempts(attempts)
	return c
}

func newQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue <playerId>",
		Short: "Enter matchmaking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchID, err := newClient().Queue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if matchID == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "waiting for an opponent")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "matched: %s\n", matchID)
			return nil
		},
	}
}

func newRoomCmd() *cobra.Command {
	var closeRoom bool
	cmd := &cobra.Command{
		Use:   "room <matchId>",
		Short: "Show or close a match room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if closeRoom {
				if err := c.CloseRoom(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "closed: %s\n", args[0])
				return nil
			}
			room, err := c.GetRoom(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), room)
		},
	}
	cmd.Flags().BoolVar(&closeRoom, "close", false, "close the room instead of showing it")
	return cmd
}

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <playerName>",
		Short: "Submit a result to the leaderboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().SubmitRanking(cmd.Context(), models.PlayerRanking{
				PlayerName: args[0],
				WPM:        submitWPM,
				Accuracy:   submitAccuracy,
				GameMode:   submitMode,
				Timestamp:  time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&submitWPM, "wpm", 0, "words per minute")
	cmd.Flags().Float64Var(&submitAccuracy, "accuracy", 0, "accuracy percentage (0-100)")
	cmd.Flags().StringVar(&submitMode, "mode", "", "game mode label")
	_ = cmd.MarkFlagRequired("wpm")
	return cmd
}

func newRankingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "List the leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := newClient().Rankings(cmd.Context(), rankingsLimit, rankingsMode)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i, r := range list {
				fmt.Fprintf(w, "%3d  %-20s %4d wpm  %6.2f%%  %s\n", i+1, r.PlayerName, r.WPM, r.Accuracy, r.GameMode)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&rankingsLimit, "limit", 0, "show at most this many entries")
	cmd.Flags().StringVar(&rankingsMode, "mode", "", "filter by game mode")
	return cmd
}

func newPositionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "position <playerName>",
		Short: "Show a player's leaderboard position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := newClient().Position(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if pos < 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not ranked\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is #%d\n", args[0], pos)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
