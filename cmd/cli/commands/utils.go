package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/admission"
	"github.com/livekit/tutor-room/pkg/config"
)

var (
	roomFlag = &cli.StringFlag{
		Name:     "room-id",
		Required: true,
	}
	hostFlag = &cli.StringFlag{
		Name:    "host",
		Usage:   "admission API url, overrides admission.url from config",
		EnvVars: []string{"TUTOR_ROOM_HOST"},
	}
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "path to tutor-room config file",
		Value:   "~/.tutor-room/config.yaml",
		EnvVars: []string{"TUTOR_ROOM_CONFIG_FILE"},
	}
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "log at debug level",
	}

	GlobalFlags = []cli.Flag{
		hostFlag,
		configFlag,
		verboseFlag,
	}
)

// loadConfig reads the config file when it exists and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var confString string
	if path := c.String("config"); path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, err
		}
		body, err := os.ReadFile(expanded)
		switch {
		case err == nil:
			confString = string(body)
		case os.IsNotExist(err) && !c.IsSet("config"):
		default:
			return nil, err
		}
	}

	conf, err := config.NewConfig(confString, true, nil, nil)
	if err != nil {
		return nil, err
	}
	if host := c.String("host"); host != "" {
		conf.Admission.URL = host
	}
	if c.Bool("verbose") {
		conf.Logging.Level = "debug"
	}
	config.InitLoggerFromConfig(&conf.Logging)
	return conf, nil
}

func admissionClient(c *cli.Context) (*config.Config, *admission.Client, error) {
	conf, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	return conf, admission.NewClient(conf.Admission, logger.GetLogger()), nil
}

func PrintJSON(obj interface{}) {
	txt, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Println(string(txt))
}
