package cmds

import (
	"io"
	"os"
	"time"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rupeshbug/sec-policy-lens/pkg/answer"
	"github.com/rupeshbug/sec-policy-lens/pkg/config"
	"github.com/rupeshbug/sec-policy-lens/pkg/logging"
	"github.com/rupeshbug/sec-policy-lens/pkg/session"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath   string
	serviceURL   string
	timeout      time.Duration
	logLevel     string
	logFile      string
	logFormat    string
	redisEnabled bool
	redisAddr    string

	cfg        *config.Config
	logCloser  io.Closer
	unanswered bool
}

// Execute runs the command line and reports a fallback answer from ask as
// an error so the exit code is non-zero.
func Execute() error {
	a, root := newRootCommand()
	return a.execute(root)
}

func (a *app) execute(root *cobra.Command) error {
	defer a.close()
	if err := root.Execute(); err != nil {
		return err
	}
	if a.unanswered {
		return errNotAnswered
	}
	return nil
}

func newRootCommand() (*app, *cobra.Command) {
	a := &app{}

	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Ask questions about the SEC climate disclosure rules",
		Long: "sec-policy-lens is a client for a regulatory question-answering service " +
			"covering the SEC climate-related disclosure rules (2022 proposed and 2024 final).\n" +
			"Without a subcommand it starts the interactive chat when attached to a terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()) {
				return a.runChat(cmd, chatOptions{})
			}
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	pf.StringVar(&a.serviceURL, "service-url", "", "base URL of the answering service")
	pf.DurationVar(&a.timeout, "timeout", 0, "timeout for a single answering-service request")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, disabled)")
	pf.StringVar(&a.logFile, "log-file", "", "write logs to this file (rotated)")
	pf.StringVar(&a.logFormat, "log-format", "", "log format (auto, json, console)")
	pf.BoolVar(&a.redisEnabled, "redis-enabled", false, "carry session events over Redis Streams")
	pf.StringVar(&a.redisAddr, "redis-addr", "", "Redis address for the session event bus")

	askCmd, err := newAskCommand(a)
	cobra.CheckErr(err)
	examplesCmd, err := NewExamplesCommand()
	cobra.CheckErr(err)
	versionsCmd, err := NewVersionsCommand()
	cobra.CheckErr(err)

	cobraAskCmd, err := cli.BuildCobraCommand(askCmd)
	cobra.CheckErr(err)
	cobraExamplesCmd, err := cli.BuildCobraCommand(examplesCmd)
	cobra.CheckErr(err)
	cobraVersionsCmd, err := cli.BuildCobraCommand(versionsCmd)
	cobra.CheckErr(err)

	root.AddCommand(
		a.newChatCommand(),
		cobraAskCmd,
		cobraExamplesCmd,
		cobraVersionsCmd,
		a.newHealthCommand(),
		a.newConfigCommand(),
	)
	return a, root
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("service-url") {
		cfg.Service.URL = a.serviceURL
	}
	if flags.Changed("timeout") {
		cfg.Service.Timeout = a.timeout
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = a.logFile
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if flags.Changed("redis-enabled") {
		cfg.Redis.Enabled = a.redisEnabled
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Addr = a.redisAddr
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	a.cfg = cfg
	return nil
}

// initLogging installs the global logger. The interactive client logs to a
// file unless one is configured, so the screen stays clean.
func (a *app) initLogging(interactive bool) error {
	s := a.cfg.Logging
	if interactive && s.File == "" {
		s.File = config.DefaultLogFile()
	}
	w, err := logging.Init(s)
	if err != nil {
		return err
	}
	a.logCloser = w
	log.Debug().
		Str("service_url", a.cfg.Service.URL).
		Dur("timeout", a.cfg.Service.Timeout).
		Bool("redis", a.cfg.Redis.Enabled).
		Msg("configuration loaded")
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

func (a *app) newClient() *answer.Client {
	return answer.NewClient(
		a.cfg.Service.URL,
		answer.WithTimeout(a.cfg.Service.Timeout),
		answer.WithLogger(log.Logger.With().Str("component", "answer").Logger()),
	)
}

func (a *app) newController(opts ...session.Option) *session.Controller {
	opts = append([]session.Option{
		session.WithLogger(log.Logger.With().Str("component", "session").Logger()),
	}, opts...)
	return session.New(a.newClient(), opts...)
}
