package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/franz/gym-league/internal/league"
	"github.com/franz/gym-league/internal/util"
	"github.com/spf13/cobra"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke [invocation-json]",
	Short: "Run one league command and print its reply as JSON",
	Long: `Run a league command against the database the way the chat gateway does.

The invocation is read from the argument, or from stdin when no argument is
given:

  gymbot invoke '{"command":"leaderboard","guild_id":"g1","actor_id":"u1"}'

Available commands: ` + strings.Join(league.NewDispatcher(nil, "").Commands(), ", "),
	Args: cobra.MaximumNArgs(1),
	RunE: runInvoke,
}

func init() {
	rootCmd.AddCommand(invokeCmd)
}

func runInvoke(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) == 1 {
		in = strings.NewReader(args[0])
	}

	s, closeStore, err := openStore(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer closeStore()

	return invoke(cmd.Context(), league.NewDispatcher(s, dashboardURL()), in, cmd.OutOrStdout())
}

// invoke decodes one invocation from r, dispatches it and writes the reply to w
func invoke(ctx context.Context, d *league.Dispatcher, r io.Reader, w io.Writer) error {
	var inv league.Invocation
	if err := json.NewDecoder(r).Decode(&inv); err != nil {
		return fmt.Errorf("failed to parse invocation: %w", err)
	}
	if inv.Command == "" {
		return fmt.Errorf("invocation has no command")
	}

	reply := d.Dispatch(ctx, &inv)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reply)
}

// dashboardURL is the base URL replies link trainer profiles to
func dashboardURL() string {
	return "http://" + net.JoinHostPort(util.GetWebHost(), strconv.Itoa(util.GetWebPort())) + "/"
}
