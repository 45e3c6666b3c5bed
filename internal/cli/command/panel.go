package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/sakif/snippet-box/internal/panel"
	"github.com/sakif/snippet-box/internal/service"
	"github.com/sakif/snippet-box/internal/tui"
)

// WidthCommand returns the width command.
func WidthCommand() *cli.Command {
	return &cli.Command{
		Name:      "width",
		Usage:     fmt.Sprintf("Show or store the panel width (%d-%d)", service.MinWidth, service.MaxWidth),
		ArgsUsage: "[WIDTH]",
		Action:    panelWidth,
	}
}

// PaletteCommand returns the interactive palette command.
func PaletteCommand() *cli.Command {
	return &cli.Command{
		Name:    "palette",
		Aliases: []string{"p"},
		Usage:   "Search snippets and commands interactively",
		Action:  runPalette,
	}
}

func panelWidth(c *cli.Context) error {
	s := GetSession(c)
	if s == nil {
		return cli.Exit("not initialized", 1)
	}

	width := s.Controller.State().Width
	if c.NArg() > 0 {
		n, err := strconv.Atoi(c.Args().First())
		if err != nil {
			return cli.Exit(fmt.Sprintf("width must be a number, got %q", c.Args().First()), 2)
		}
		out, err := dispatch(c, panel.SetWidth{Width: n})
		if err != nil {
			return err
		}
		width = out.State.Width
	}

	if s.Output == FormatJSON {
		return printJSON(c, struct {
			Width int `json:"width"`
		}{width})
	}
	fmt.Fprintln(c.App.Writer, width)
	return nil
}

func runPalette(c *cli.Context) error {
	s := GetSession(c)
	if s == nil {
		return cli.Exit("not initialized", 1)
	}

	final, err := tui.Run(c.Context, s.Controller, c.App.Reader, c.App.Writer)
	if err != nil {
		return cli.Exit(fmt.Sprintf("palette: %v", err), 1)
	}
	if _, ok := final.Copied(); ok {
		printToasts(c, final.Toasts())
	}
	return nil
}
