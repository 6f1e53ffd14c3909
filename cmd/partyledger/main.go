package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))

	commander.Register(subcommands.HelpCommand(), "")
	commander.Register(&serveCmd{}, "")
	commander.Register(&partyCmd{}, "")
	commander.Register(&addExpenseCmd{}, "")
	commander.Register(&rmExpenseCmd{}, "")
	commander.Register(&balancesCmd{}, "")
	commander.Register(&migrateCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
