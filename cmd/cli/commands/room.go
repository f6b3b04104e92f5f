package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

var (
	RoomCommands = []*cli.Command{
		{
			Name:   "create-room",
			Usage:  "create a two-participant tutoring room",
			Action: createRoom,
			Flags: []cli.Flag{
				roomFlag,
				&cli.StringFlag{
					Name:  "tutor",
					Usage: "name of the tutor, used to recognize them on join",
				},
				&cli.StringFlag{
					Name:  "subject",
					Usage: "subject of the session",
				},
				&cli.StringFlag{
					Name:  "name",
					Usage: "name of the participant creating the room",
				},
			},
		},
		{
			Name:   "delete-room",
			Action: deleteRoom,
			Flags: []cli.Flag{
				roomFlag,
			},
		},
		{
			Name:   "capacity",
			Usage:  "check whether a room has space for one more participant",
			Action: roomCapacity,
			Flags: []cli.Flag{
				roomFlag,
			},
		},
		{
			Name:   "list-rooms",
			Action: listRooms,
		},
		{
			Name:   "health",
			Usage:  "check the admission API",
			Action: health,
		},
	}
)

func createRoom(c *cli.Context) error {
	conf, client, err := admissionClient(c)
	if err != nil {
		return err
	}

	roomID := c.String("room-id")
	md := types.RoomMetadata{
		TutorName:       c.String("tutor"),
		Subject:         c.String("subject"),
		ParticipantName: c.String("name"),
	}
	if err := client.CreateRoom(context.Background(), roomID, conf.Session.MaxParticipants, md); err != nil {
		return err
	}

	fmt.Println("created room", roomID)
	return nil
}

func deleteRoom(c *cli.Context) error {
	_, client, err := admissionClient(c)
	if err != nil {
		return err
	}

	roomID := c.String("room-id")
	if err := client.DeleteRoom(context.Background(), roomID); err != nil {
		return err
	}

	fmt.Println("deleted room", roomID)
	return nil
}

func roomCapacity(c *cli.Context) error {
	_, client, err := admissionClient(c)
	if err != nil {
		return err
	}

	roomID := c.String("room-id")
	canJoin, err := client.CheckCapacity(context.Background(), roomID)
	if err != nil {
		return err
	}
	if canJoin {
		fmt.Println(roomID, "has space")
	} else {
		fmt.Println(roomID, "is full")
	}
	return nil
}

func listRooms(c *cli.Context) error {
	_, client, err := admissionClient(c)
	if err != nil {
		return err
	}

	rooms, err := client.ListRooms(context.Background())
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Room", "Participants", "Created", "Metadata"})
	for _, room := range rooms {
		created := "-"
		if room.CreatedAt != 0 {
			created = humanize.Time(time.Unix(room.CreatedAt, 0))
		}
		table.Append([]string{
			room.RoomID,
			fmt.Sprintf("%d/%d", room.NumParticipants, room.MaxParticipants),
			created,
			room.Metadata,
		})
	}
	table.Render()
	return nil
}

func health(c *cli.Context) error {
	_, client, err := admissionClient(c)
	if err != nil {
		return err
	}

	res, err := client.Health(context.Background())
	if err != nil {
		return err
	}
	PrintJSON(res)
	return nil
}
