package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/livekit/tutor-room/pkg/config"
	"github.com/livekit/tutor-room/pkg/rtc"
	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/service"
)

func printPorts(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	fmt.Println("TCP Ports")
	fmt.Printf("%d - admission API\n", conf.Server.Port)
	if conf.Prometheus.Port != 0 {
		fmt.Printf("%d - prometheus\n", conf.Prometheus.Port)
	}
	return nil
}

func helpVerbose(c *cli.Context) error {
	generatedFlags, err := config.GenerateCLIFlags(baseFlags, false)
	if err != nil {
		return err
	}

	c.App.Flags = append(baseFlags, generatedFlags...)
	return cli.ShowAppHelp(c)
}

func createToken(c *cli.Context) error {
	conf, err := getConfig(c)
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
	metadata, err := json.Marshal(rtc.LocalMetadata(name, role))
	if err != nil {
		return err
	}

	token, err := service.NewTokenIssuer(conf).Issue(c.String("room"), identity, name, string(metadata))
	if err != nil {
		return err
	}

	fmt.Println("Token:", token)
	return nil
}
