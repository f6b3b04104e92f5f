package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/livekit/tutor-room/pkg/rtc"
	"github.com/livekit/tutor-room/pkg/rtc/types"
)

var (
	TokenCommands = []*cli.Command{
		{
			Name:   "create-token",
			Usage:  "request a room join token from the admission API",
			Action: createToken,
			Flags: []cli.Flag{
				roomFlag,
				&cli.StringFlag{
					Name:     "identity",
					Aliases:  []string{"p"},
					Usage:    "unique identity of the participant",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "name",
					Usage: "display name of the participant, defaults to the identity",
				},
				&cli.BoolFlag{
					Name:  "tutor",
					Usage: "join as the room's tutor",
				},
			},
		},
	}
)

func createToken(c *cli.Context) error {
	_, client, err := admissionClient(c)
	if err != nil {
		return err
	}

	identity := c.String("identity")
	name := c.String("name")
	if name == "" {
		name = identity
	}
	role := types.RoleStudent
	if c.Bool("tutor") {
		role = types.RoleTutor
	}

	cred, err := client.FetchAccessToken(context.Background(), c.String("room-id"), identity, name, rtc.LocalMetadata(name, role))
	if err != nil {
		return err
	}

	fmt.Println("server url:  ", cred.ServerURL)
	fmt.Println("access token:", cred.Token)
	return nil
}
