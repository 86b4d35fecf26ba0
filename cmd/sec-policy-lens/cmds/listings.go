package cmds

import (
	"context"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"

	"github.com/rupeshbug/sec-policy-lens/pkg/session"
	"github.com/rupeshbug/sec-policy-lens/pkg/versions"
)

type ExamplesCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &ExamplesCommand{}

func NewExamplesCommand() (*ExamplesCommand, error) {
	glazedSection, err := settings.NewGlazedSection()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed section")
	}
	return &ExamplesCommand{
		CommandDescription: cmds.NewCommandDescription(
			"examples",
			cmds.WithShort("List the example questions"),
			cmds.WithSections(glazedSection),
		),
	}, nil
}

func (c *ExamplesCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	_ *values.Values,
	gp middlewares.Processor,
) error {
	return exampleRows(ctx, session.DefaultExamples, gp)
}

func exampleRows(ctx context.Context, examples []string, gp middlewares.Processor) error {
	for i, e := range examples {
		row := types.NewRow(
			types.MRP("index", i+1),
			types.MRP("question", e),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

type VersionsCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &VersionsCommand{}

func NewVersionsCommand() (*VersionsCommand, error) {
	glazedSection, err := settings.NewGlazedSection()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed section")
	}
	return &VersionsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"versions",
			cmds.WithShort("List the regulation versions a question can be filtered by"),
			cmds.WithSections(glazedSection),
		),
	}, nil
}

func (c *VersionsCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	_ *values.Values,
	gp middlewares.Processor,
) error {
	for _, v := range versions.All() {
		row := types.NewRow(
			types.MRP("version", v.String()),
			types.MRP("label", v.Label()),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
