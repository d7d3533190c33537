// Command flatmapper builds mapping plans and hydrates flat rows (from JSON, SQL or Neo4j) using a YAML schema
package main

import (
	"context"
	"fmt"
	"github.com/urfave/cli/v3"
	"os"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "flatmapper",
		Usage: "Hydrate flat rows into object graphs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "config file (default: " + configFileName + " discovered from the working directory)",
			},
			&cli.StringFlag{
				Name:    "schema",
				Aliases: []string{"s"},
				Usage:   "YAML schema file",
				Sources: cli.EnvVars("FLATMAPPER_SCHEMA"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "root type name",
			},
			&cli.BoolFlag{
				Name:  "no-validate",
				Usage: "skip plan validation",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output format (json or dump)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "verbose (debug) logging",
			},
		},
		Commands: []*cli.Command{
			planCommand(),
			mapCommand(),
			queryCommand(),
		},
	}
}
