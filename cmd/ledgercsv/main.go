// Command ledgercsv imports and exports transaction CSV files against the
// PostgreSQL store used by the server.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var commands = []subcommands.Command{
	&importCmd{},
	&exportCmd{},
	&assetAddCmd{},
	&assetsCmd{},
	&historyCmd{},
	&auditPurgeCmd{},
	&migrateCmd{},
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
