package cmds

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rupeshbug/sec-policy-lens/pkg/events"
	"github.com/rupeshbug/sec-policy-lens/pkg/ui"
	"github.com/rupeshbug/sec-policy-lens/pkg/versions"
)

type chatOptions struct {
	version string
}

func (a *app) newChatCommand() *cobra.Command {
	opts := chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive question-answering session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.version, "version", "", "initial version filter (none, 2024_final, 2022_proposed)")
	return cmd
}

func (a *app) runChat(cmd *cobra.Command, opts chatOptions) error {
	if err := a.initLogging(true); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := events.NewBus(ctx, a.cfg.Redis, log.Logger.With().Str("component", "events").Logger())
	if err != nil {
		return errors.Wrap(err, "create session event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn().Err(err).Msg("closing session event bus")
		}
	}()

	ctrl := a.newController()
	unsubscribe := ctrl.Subscribe(bus.Listener())
	defer unsubscribe()

	if opts.version != "" {
		v, err := versions.Parse(opts.version)
		if err != nil {
			return err
		}
		if err := ctrl.SetVersionFilter(v); err != nil {
			return err
		}
	}

	model := ui.NewModel(ctrl,
		ui.WithContext(ctx),
		ui.WithGlamourStyle(a.cfg.UI.GlamourStyle),
	)
	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if a.cfg.UI.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	p := tea.NewProgram(model, programOpts...)

	eg, groupCtx := errgroup.WithContext(ctx)
	forwardCtx, cancelForward := context.WithCancel(groupCtx)

	eg.Go(func() error {
		return bus.Run(forwardCtx, ui.ForwardFunc(p))
	})
	eg.Go(func() error {
		defer cancelForward()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})

	log.Info().Str("service_url", a.cfg.Service.URL).Msg("chat session started")
	if err := eg.Wait(); err != nil {
		return errors.Wrap(err, "chat session")
	}
	log.Info().Int("turns", len(ctrl.Snapshot().Transcript)).Msg("chat session ended")
	return nil
}
