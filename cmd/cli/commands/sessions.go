package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/livekit/tutor-room/pkg/store"
)

var (
	SessionCommands = []*cli.Command{
		{
			Name:  "sessions",
			Usage: "past and current sessions remembered on this machine",
			Subcommands: []*cli.Command{
				{
					Name:   "list",
					Action: listSessions,
				},
				{
					Name:   "remove",
					Action: removeSession,
					Flags: []cli.Flag{
						roomFlag,
					},
				},
			},
		},
	}
)

func listSessions(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	sessionStore, err := store.NewSessionStore(conf)
	if err != nil {
		return err
	}

	records, err := sessionStore.List(context.Background())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no sessions")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Room", "Tutor", "Subject", "Participant", "Last Joined"})
	for _, rec := range records {
		table.Append([]string{
			rec.RoomID,
			rec.TutorName,
			rec.Subject,
			rec.ParticipantName,
			humanize.Time(rec.Timestamp),
		})
	}
	table.Render()
	return nil
}

func removeSession(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	sessionStore, err := store.NewSessionStore(conf)
	if err != nil {
		return err
	}

	roomID := c.String("room-id")
	if err := sessionStore.Remove(context.Background(), roomID); err != nil {
		return err
	}
	fmt.Println("removed session", roomID)
	return nil
}
