package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/server"
	"github.com/go-go-golems/parley/pkg/stream"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var ChatCmd = &cobra.Command{
	Use:   "chat [query]",
	Short: "run a conversation against a parley server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		useWebsocket, _ := cmd.Flags().GetBool("ws")
		continuous, _ := cmd.Flags().GetBool("continuous")
		maxTurns, _ := cmd.Flags().GetInt("max-turns")
		save, _ := cmd.Flags().GetBool("save")
		resume, _ := cmd.Flags().GetString("resume")
		rosterPath, _ := cmd.Flags().GetString("roster")

		query := strings.Join(args, " ")
		if query == "" && resume == "" {
			return errors.New("a query is required unless --resume is given")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		hc := server.NewHistoryClient(serverURL)
		state, err := initialState(ctx, hc, resume, rosterPath, query)
		if err != nil {
			return err
		}

		c := &chatLoop{
			client:       stream.NewClient(serverURL),
			useWebsocket: useWebsocket,
			continuous:   continuous,
			maxTurns:     maxTurns,
			live:         isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
			out:          os.Stdout,
		}
		state, err = c.run(ctx, state)
		if err != nil {
			return err
		}

		if save {
			// the loop context may be cancelled by Ctrl-C, the snapshot should still land
			id, err := hc.Save(context.WithoutCancel(ctx), server.SaveHistoryRequest{
				History: state.History,
				Agents:  state.Agents,
				Summary: state.Summary,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(os.Stderr, "saved conversation %s\n", id)
		}
		return nil
	},
}

// SeedMessage is the opening message of a conversation: the first agent asks
// the second one the query.
func SeedMessage(agents []conversation.Agent, query string) (string, error) {
	if len(agents) < 2 {
		return "", errors.Errorf("a conversation needs at least two agents, got %d", len(agents))
	}
	target := agents[1].Name
	return conversation.WithDirectives(&conversation.Directives{
		Author: agents[0].Name,
		Target: &target,
	}, query), nil
}

func initialState(
	ctx context.Context,
	hc *server.HistoryClient,
	resume string,
	rosterPath string,
	query string,
) (conversation.State, error) {
	var state conversation.State

	if resume != "" {
		snap, err := hc.Load(ctx, resume)
		if err != nil {
			return state, err
		}
		state = conversation.State{History: snap.History, Summary: snap.Summary, Agents: snap.Agents}
		log.Debug().Str("id", resume).Int("history", len(snap.History)).Msg("resumed conversation")
	} else {
		agents, err := loadAgents(rosterPath, "")
		if err != nil {
			return state, err
		}
		state.Agents = agents
	}

	if query != "" {
		seed, err := SeedMessage(state.Agents, query)
		if err != nil {
			return state, err
		}
		state.History = append(state.History, seed)
	}
	return state, nil
}

// chatLoop prints partials as they stream when live is set, otherwise each
// message once it is complete.
type chatLoop struct {
	client       *stream.Client
	useWebsocket bool
	continuous   bool
	maxTurns     int
	live         bool
	out          io.Writer
}

func (c *chatLoop) turn(ctx context.Context, state conversation.State, onPartial stream.PartialFunc) (conversation.TurnResult, error) {
	if c.useWebsocket {
		return stream.CallWebsocket(ctx, c.client, server.ChatOperation, state, onPartial)
	}
	return stream.Call(ctx, c.client, server.ChatOperation, state, onPartial)
}

// run plays turns until the conversation is over, the turn limit is hit, or
// the user interrupts. An interrupted turn is dropped and the state before it
// is returned.
func (c *chatLoop) run(ctx context.Context, state conversation.State) (conversation.State, error) {
	for _, m := range state.History {
		_, _ = fmt.Fprintf(c.out, "%s\n\n", m)
	}

	for turn := 0; c.maxTurns <= 0 || turn < c.maxTurns; turn++ {
		printed := 0
		var onPartial stream.PartialFunc
		if c.live {
			onPartial = func(partial string) {
				if len(partial) > printed {
					_, _ = io.WriteString(c.out, partial[printed:])
					printed = len(partial)
				}
			}
		}
		res, err := c.turn(ctx, state, onPartial)
		if err != nil {
			if errors.Is(err, stream.ErrAborted) {
				_, _ = fmt.Fprintln(c.out, "\n[interrupted]")
				return state, nil
			}
			return state, err
		}

		if slices.Equal(res.History, state.History) {
			log.Info().Msg("every agent is done")
			return state, nil
		}

		if last := res.History[len(res.History)-1]; len(last) > printed {
			_, _ = io.WriteString(c.out, last[printed:])
		}
		_, _ = io.WriteString(c.out, "\n\n")

		state.History = res.History
		state.Summary = res.Summary

		if !c.continuous {
			break
		}
	}

	return state, nil
}

func init() {
	ChatCmd.Flags().String("server", "http://localhost:8080", "Server URL")
	ChatCmd.Flags().Bool("ws", false, "Use the websocket transport")
	ChatCmd.Flags().Bool("continuous", false, "Keep playing turns until every agent is done")
	ChatCmd.Flags().Int("max-turns", 0, "Stop after this many turns (0 means no limit)")
	ChatCmd.Flags().Bool("save", false, "Save the conversation on the server when done")
	ChatCmd.Flags().String("resume", "", "Resume a saved conversation by id")
	ChatCmd.Flags().String("roster", "", "Roster YAML file (default: built-in roster)")
}
