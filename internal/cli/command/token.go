package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/sakif/snippet-box/internal/auth"
)

// TokenCommand returns the token command.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue an API token signed with auth.secret",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "subject",
				Usage: "Who the token is for",
				Value: auth.DefaultSubject,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: auth.DefaultTTL,
			},
		},
		Action: issueToken,
	}
}

func issueToken(c *cli.Context) error {
	s := GetSession(c)
	if s == nil {
		return cli.Exit("not initialized", 1)
	}

	secret := s.App.Config.Auth.Secret
	if secret == "" {
		return cli.Exit("auth.secret is not set (SNIPBOX_AUTH_SECRET)", 2)
	}
	if c.Duration("ttl") <= 0 {
		return cli.Exit("--ttl must be positive", 2)
	}

	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	token, err := tokens.IssueFor(c.String("subject"), c.Duration("ttl"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if s.Output == FormatJSON {
		return printJSON(c, struct {
			Token   string `json:"token"`
			Subject string `json:"subject"`
		}{token, c.String("subject")})
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
