package command

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/sakif/snippet-box/internal/apperror"
	"github.com/sakif/snippet-box/internal/model"
	"github.com/sakif/snippet-box/internal/palette"
	"github.com/sakif/snippet-box/internal/panel"
)

// codePreview is how many characters of code the list shows.
const codePreview = 40

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List snippets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Only show snippets whose title or code contains this text",
			},
		},
		Action: listSnippets,
	}
}

// AddCommand returns the add command.
func AddCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add a local snippet (prompts when --title is not given)",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "title",
				Aliases: []string{"t"},
				Usage:   "Snippet title",
			},
		}, codeFlags()...),
		Action: addSnippet,
	}
}

// TitleCommand returns the title command.
func TitleCommand() *cli.Command {
	return &cli.Command{
		Name:      "title",
		Usage:     "Rename a snippet",
		ArgsUsage: "ID TITLE",
		Action:    renameSnippet,
	}
}

// SaveCommand returns the save command.
func SaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Replace a snippet's code",
		ArgsUsage: "ID",
		Flags:     codeFlags(),
		Action:    saveSnippet,
	}
}

// DeleteCommand returns the delete command.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete a snippet",
		ArgsUsage: "ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Do not ask for confirmation",
			},
		},
		Action: deleteSnippet,
	}
}

// RefreshCommand returns the refresh command.
func RefreshCommand() *cli.Command {
	return &cli.Command{
		Name:   "refresh",
		Usage:  "Merge the external snippet list into the local one",
		Action: refreshSnippets,
	}
}

// CopyCommand returns the copy command.
func CopyCommand() *cli.Command {
	return &cli.Command{
		Name:      "copy",
		Aliases:   []string{"cp"},
		Usage:     "Copy a snippet's code to the clipboard",
		ArgsUsage: "ID",
		Action:    copySnippet,
	}
}

func codeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "code",
			Aliases: []string{"C"},
			Usage:   "Snippet code",
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Read the code from this file (- for standard input)",
		},
	}
}

// =========================================================================
// ACTIONS
// =========================================================================

func listSnippets(c *cli.Context) error {
	s := GetSession(c)
	if s == nil {
		return cli.Exit("not initialized", 1)
	}

	snippets := panel.Visible(s.App.Snippets.Snippets(), c.String("query"))
	unsaved := s.App.Snippets.Unsaved()

	if s.Output == FormatJSON {
		return printJSON(c, struct {
			Snippets model.Collection `json:"snippets"`
			Unsaved  []string         `json:"unsaved"`
		}{snippets, unsaved})
	}

	if len(snippets) == 0 {
		fmt.Fprintln(c.App.Writer, "No snippets.")
	} else {
		tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tSTATE\tCODE")
		for _, snippet := range snippets {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				snippet.ID, snippet.DisplayTitle(), stateOf(snippet), preview(snippet.Code))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if len(unsaved) > 0 {
		fmt.Fprintf(c.App.ErrWriter, "warning: %d change(s) not yet persisted\n", len(unsaved))
	}
	return nil
}

func addSnippet(c *cli.Context) error {
	if !c.IsSet("title") {
		// Same path as the palette's Add command: the prompt collects both fields.
		if _, err := dispatch(c, panel.OpenPalette{}); err != nil {
			return err
		}
		out, err := dispatch(c, panel.Pick{Index: commandIndex(palette.CommandAdd)})
		if err != nil {
			return err
		}
		return printSnippet(c, out)
	}

	code, err := readCode(c)
	if err != nil {
		return err
	}
	out, err := dispatch(c, panel.Add{Title: c.String("title"), Code: code})
	if err != nil {
		return err
	}
	return printSnippet(c, out)
}

func renameSnippet(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: snipbox title ID TITLE", 2)
	}
	out, err := dispatch(c, panel.SaveTitle{ID: c.Args().Get(0), Title: c.Args().Get(1)})
	if err != nil {
		return err
	}
	return printSnippet(c, out)
}

func saveSnippet(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: snipbox save ID --code CODE", 2)
	}
	if !c.IsSet("code") && !c.IsSet("file") {
		return cli.Exit("one of --code or --file is required", 2)
	}
	code, err := readCode(c)
	if err != nil {
		return err
	}
	out, err := dispatch(c, panel.SaveEdit{ID: c.Args().First(), Code: code})
	if err != nil {
		return err
	}
	return printSnippet(c, out)
}

func deleteSnippet(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: snipbox delete ID", 2)
	}
	id := c.Args().First()
	if err := requireSnippet(c, id); err != nil {
		return err
	}

	out, err := dispatch(c, panel.Delete{ID: id, Confirmed: c.Bool("yes")})
	if err != nil {
		return err
	}
	_, remaining := GetSession(c).App.Snippets.Get(id)
	deleted := !remaining

	if GetSession(c).Output == FormatJSON {
		return printJSON(c, struct {
			ID      string   `json:"id"`
			Deleted bool     `json:"deleted"`
			Toasts  []string `json:"toasts"`
		}{id, deleted, out.Toasts})
	}
	if !deleted {
		fmt.Fprintln(c.App.Writer, "Cancelled.")
	}
	return nil
}

func refreshSnippets(c *cli.Context) error {
	out, err := dispatch(c, panel.Refresh{})
	if GetSession(c).Output == FormatJSON && out.Result != nil {
		if jerr := printJSON(c, struct {
			Total    int      `json:"total"`
			Imported int      `json:"imported"`
			Skipped  int      `json:"skipped"`
			Toasts   []string `json:"toasts"`
		}{len(out.Result.Collection), out.Result.Imported, out.Result.Skipped, out.Toasts}); jerr != nil {
			return jerr
		}
	}
	return err
}

func copySnippet(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: snipbox copy ID", 2)
	}
	id := c.Args().First()
	if err := requireSnippet(c, id); err != nil {
		return err
	}
	snippet, _ := GetSession(c).App.Snippets.Get(id)

	// Narrow the palette to the title so the record is within MaxResults.
	if _, err := dispatch(c, panel.OpenPalette{}); err != nil {
		return err
	}
	open, err := dispatch(c, panel.PaletteQuery{Query: snippet.DisplayTitle()})
	if err != nil {
		return err
	}
	index := -1
	for i, candidate := range open.State.Palette.Results {
		if !candidate.IsCommand() && candidate.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return exitError(apperror.NotFound("snippet", id))
	}

	out, err := dispatch(c, panel.Pick{Index: index})
	if err != nil {
		return err
	}
	if GetSession(c).Output == FormatJSON {
		return printJSON(c, struct {
			ID     string   `json:"id"`
			Copied bool     `json:"copied"`
			Toasts []string `json:"toasts"`
		}{id, out.Copied != nil, out.Toasts})
	}
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

// readCode returns the code from --code, or from the file named by --file.
func readCode(c *cli.Context) (string, error) {
	if c.IsSet("code") {
		return c.String("code"), nil
	}
	path := c.String("file")
	switch path {
	case "":
		return "", nil
	case "-":
		b, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return "", cli.Exit(fmt.Sprintf("read standard input: %v", err), 1)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", cli.Exit(fmt.Sprintf("read %s: %v", path, err), 1)
	}
	return string(b), nil
}

func requireSnippet(c *cli.Context, id string) error {
	s := GetSession(c)
	if s == nil {
		return cli.Exit("not initialized", 1)
	}
	if _, ok := s.App.Snippets.Get(id); !ok {
		return exitError(apperror.NotFound("snippet", id))
	}
	return nil
}

// commandIndex is the palette position of a fixed command under an empty query.
func commandIndex(id string) int {
	for i, cmd := range palette.Commands() {
		if cmd.ID == id {
			return i
		}
	}
	return -1
}

func printSnippet(c *cli.Context, out panel.Outcome) error {
	if out.Snippet == nil {
		return nil
	}
	if GetSession(c).Output == FormatJSON {
		return printJSON(c, struct {
			Snippet *model.Snippet `json:"snippet"`
			Toasts  []string       `json:"toasts"`
		}{out.Snippet, out.Toasts})
	}
	fmt.Fprintln(c.App.Writer, out.Snippet.ID)
	return nil
}

func printToasts(c *cli.Context, toasts []string) {
	for _, t := range toasts {
		fmt.Fprintln(c.App.ErrWriter, t)
	}
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stateOf(s model.Snippet) string {
	switch {
	case s.Imported():
		return "bundled"
	case s.LocalEdited:
		return "local"
	}
	return "-"
}

func preview(code string) string {
	line, _, more := strings.Cut(code, "\n")
	if r := []rune(line); len(r) > codePreview {
		return string(r[:codePreview]) + "…"
	}
	if more {
		return line + " …"
	}
	return line
}
