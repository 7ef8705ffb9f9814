package cmds

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/inference"
	"github.com/go-go-golems/parley/pkg/orchestrator"
	"github.com/go-go-golems/parley/pkg/server"
	"github.com/go-go-golems/parley/pkg/steps/ai/openai"
	"github.com/go-go-golems/parley/pkg/steps/ai/settings"
	"github.com/go-go-golems/parley/pkg/store"
	"github.com/go-go-golems/parley/pkg/summarizer"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the conversation operations over HTTP and websockets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		dbPath, _ := cmd.Flags().GetString("db")
		logEvents, _ := cmd.Flags().GetBool("log-events")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, viper.GetViper(), addr, dbPath, logEvents)
	},
}

func serve(ctx context.Context, v *viper.Viper, addr string, dbPath string, logEvents bool) error {
	ss, err := settings.NewStepSettingsFromViper(v)
	if err != nil {
		return err
	}

	router, err := events.NewEventRouter(events.WithVerbose(logEvents))
	if err != nil {
		return err
	}
	defer func() {
		_ = router.Close()
	}()
	router.AddHandler("log", events.TopicChat, events.LogEvents)

	sink := inference.NewWatermillSink(router.Publisher, events.TopicChat)
	e, err := openai.NewOpenAIEngine(ss, inference.WithSink(sink))
	if err != nil {
		return err
	}

	s := summarizer.New(e, ss.SummaryModel(), summarizer.WithWindow(ss.Summary.Window))
	o := orchestrator.New(e, s, orchestrator.WithSlack(ss.Summary.Slack))

	var st store.Store
	if dbPath != "" {
		bs, err := store.OpenBoltStore(dbPath)
		if err != nil {
			return err
		}
		defer func() {
			_ = bs.Close()
		}()
		st = bs
	}

	srv, err := server.NewServer(server.Config{
		Engine:       e,
		Summarizer:   s,
		Orchestrator: o,
		DefaultModel: ss.Chat.Model(),
		Store:        st,
	})
	if err != nil {
		return err
	}

	log.Info().
		Fields(ss.GetMetadata()).
		Str("addr", addr).
		Str("db", dbPath).
		Msg("starting parley server")

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		<-router.Running()
		return srv.Run(ctx, addr)
	})

	return eg.Wait()
}

func init() {
	ServeCmd.Flags().String("addr", ":8080", "Address to listen on")
	ServeCmd.Flags().String("db", "parley.db", "Snapshot database path (empty disables history endpoints)")
	ServeCmd.Flags().Bool("log-events", false, "Log every inference event, partial completions included")
}
