package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/livekit/tutor-room/cmd/cli/commands"
	"github.com/livekit/tutor-room/version"
)

// command line client for tutoring rooms
func main() {
	app := &cli.App{
		Name:    "tutor-room",
		Usage:   "join and manage two-participant tutoring rooms",
		Flags:   commands.GlobalFlags,
		Version: version.Version,
	}

	app.Commands = append(app.Commands, commands.JoinCommands...)
	app.Commands = append(app.Commands, commands.RoomCommands...)
	app.Commands = append(app.Commands, commands.TokenCommands...)
	app.Commands = append(app.Commands, commands.SessionCommands...)

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
