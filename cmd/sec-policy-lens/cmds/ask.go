package cmds

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"

	"github.com/rupeshbug/sec-policy-lens/pkg/session"
	"github.com/rupeshbug/sec-policy-lens/pkg/versions"
)

var errNotAnswered = errors.New("the question could not be answered")

type AskCommand struct {
	*cmds.CommandDescription
	app *app
}

var _ cmds.GlazeCommand = &AskCommand{}

type AskSettings struct {
	Version  string   `glazed:"version"`
	Example  int      `glazed:"example"`
	Question []string `glazed:"question"`
}

func newAskCommand(a *app) (*AskCommand, error) {
	glazedSection, err := settings.NewGlazedSection()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed section")
	}

	return &AskCommand{
		app: a,
		CommandDescription: cmds.NewCommandDescription(
			"ask",
			cmds.WithShort("Ask a single question and print the answer"),
			cmds.WithLong("Ask one question and emit the answer as a row with its citations.\n"+
				"The command fails when the service could not answer.\n\n"+
				"  sec-policy-lens ask --version 2024_final Are companies required to disclose Scope 3 emissions?\n"+
				"  sec-policy-lens ask --example 2 --output json"),
			cmds.WithFlags(
				fields.New(
					"version",
					fields.TypeString,
					fields.WithHelp("Version filter (none, 2024_final, 2022_proposed)"),
					fields.WithDefault(""),
				),
				fields.New(
					"example",
					fields.TypeInteger,
					fields.WithHelp("Ask example question N (see the examples command)"),
					fields.WithDefault(0),
				),
			),
			cmds.WithArguments(
				fields.New(
					"question",
					fields.TypeStringList,
					fields.WithHelp("The question to ask"),
				),
			),
			cmds.WithSections(glazedSection),
		),
	}, nil
}

func (c *AskCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *values.Values,
	gp middlewares.Processor,
) error {
	s := &AskSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	return c.app.ask(ctx, s, gp)
}

// ask submits one question and emits the assistant turn as a row. A
// fallback answer is still emitted; the process exit code reports it.
func (a *app) ask(ctx context.Context, s *AskSettings, gp middlewares.Processor) error {
	question := strings.TrimSpace(strings.Join(s.Question, " "))
	if s.Example != 0 && question != "" {
		return errors.New("pass either a question or --example, not both")
	}
	if s.Example == 0 && question == "" {
		return errors.New("a question is required")
	}
	v, err := versions.Parse(s.Version)
	if err != nil {
		return err
	}

	if err := a.initLogging(false); err != nil {
		return err
	}

	ctrl := a.newController()
	if err := ctrl.SetVersionFilter(v); err != nil {
		return err
	}
	if s.Example != 0 {
		err = ctrl.SelectExample(ctx, s.Example-1)
	} else {
		err = ctrl.Submit(ctx, question)
	}
	if err != nil {
		return err
	}

	state := ctrl.Snapshot()
	reply, ok := state.LastAssistant()
	if !ok {
		return errors.New("no answer was recorded")
	}
	if err := gp.AddRow(ctx, answerRow(state.Transcript[0].Content, v, reply)); err != nil {
		return err
	}
	if reply.Failed {
		a.unanswered = true
	}
	return nil
}

func answerRow(question string, v versions.Version, reply session.Turn) types.Row {
	citations := make([]map[string]interface{}, 0, len(reply.Citations))
	for _, c := range reply.Citations {
		citations = append(citations, map[string]interface{}{
			"doc":     c.Document,
			"version": c.Version,
			"section": c.Section,
		})
	}
	return types.NewRow(
		types.MRP("question", question),
		types.MRP("version", v.String()),
		types.MRP("answer", reply.Content),
		types.MRP("failed", reply.Failed),
		types.MRP("citations", citations),
		types.MRP("turn_id", reply.ID),
		types.MRP("created_at", reply.CreatedAt.Format(time.RFC3339)),
	)
}
