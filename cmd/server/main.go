package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/livekit/protocol/logger"
	redisLiveKit "github.com/livekit/protocol/redis"

	"github.com/livekit/tutor-room/pkg/config"
	"github.com/livekit/tutor-room/pkg/service"
	"github.com/livekit/tutor-room/pkg/telemetry/prometheus"
	"github.com/livekit/tutor-room/pkg/utils"
	"github.com/livekit/tutor-room/version"
)

const nodePrefix = "ND_"

var baseFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:  "bind",
		Usage: "IP address to listen on, use flag multiple times to specify multiple addresses",
	},
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to tutor-room config file",
	},
	&cli.StringFlag{
		Name:    "config-body",
		Usage:   "tutor-room config in YAML, typically passed in as an environment var in a container",
		EnvVars: []string{"TUTOR_ROOM_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "redis-host",
		Usage:   "host (incl. port) to redis server, rooms are kept in memory without it",
		EnvVars: []string{"REDIS_HOST"},
	},
	&cli.StringFlag{
		Name:    "redis-password",
		Usage:   "password to redis",
		EnvVars: []string{"REDIS_PASSWORD"},
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "sets log-level to debug and binds to localhost. insecure for production",
	},
	&cli.BoolFlag{
		Name:   "disable-strict-config",
		Usage:  "disables strict config parsing",
		Hidden: true,
	},
}

func main() {
	generatedFlags, err := config.GenerateCLIFlags(baseFlags, true)
	if err != nil {
		fmt.Println(err)
	}

	app := &cli.App{
		Name:        "tutor-room-server",
		Usage:       "Admission API for tutoring rooms",
		Description: "run without subcommands to start the server",
		Flags:       append(baseFlags, generatedFlags...),
		Action:      startServer,
		Commands: []*cli.Command{
			{
				Name:   "create-join-token",
				Usage:  "create a room join token for development use",
				Action: createToken,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "room",
						Usage:    "name of room to join",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "identity",
						Usage:    "identity of participant that holds the token",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "display name of the participant",
					},
					&cli.BoolFlag{
						Name:  "tutor",
						Usage: "marks the participant as the room's tutor",
					},
				},
			},
			{
				Name:   "ports",
				Usage:  "print ports that server is configured to use",
				Action: printPorts,
			},
			{
				Name:   "help-verbose",
				Usage:  "prints app help, including all generated configuration flags",
				Action: helpVerbose,
			},
		},
		Version: version.Version,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
	}
}

func getConfig(c *cli.Context) (*config.Config, error) {
	confString, err := getConfigString(c.String("config"), c.String("config-body"))
	if err != nil {
		return nil, err
	}

	strictMode := true
	if c.Bool("disable-strict-config") {
		strictMode = false
	}

	conf, err := config.NewConfig(confString, strictMode, c, baseFlags)
	if err != nil {
		return nil, err
	}
	config.InitLoggerFromConfig(&conf.Logging)

	if conf.Development {
		logger.Infow("starting in development mode")
		if !conf.LiveKit.IsConfigured() {
			logger.Infow("no LiveKit credentials provided, signing tokens with placeholder keys",
				"API Key", conf.Server.DevAPIKey,
				"API Secret", conf.Server.DevAPISecret,
			)
		}
		// when dev mode, we'll bind to localhost by default
		if conf.Server.BindAddresses == nil {
			conf.Server.BindAddresses = []string{
				"127.0.0.1",
				"::1",
			}
		}
	}
	return conf, nil
}

func startServer(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	prometheus.Init(utils.NewGuid(nodePrefix))
	if promServer := prometheus.NewServer(conf.Prometheus.Port); promServer != nil {
		go func() {
			logger.Infow("starting prometheus server", "port", conf.Prometheus.Port)
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("could not start prometheus server", err)
			}
		}()
		defer promServer.Close()
	}

	rc, err := redisLiveKit.GetRedisClient(&conf.Redis)
	if err != nil {
		return err
	}

	server := service.NewAdmissionServer(conf, service.NewRoomProvider(conf, rc), service.NewTokenIssuer(conf))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		sig := <-sigChan
		logger.Infow("exit requested, shutting down", "signal", sig)
		server.Stop(false)
	}()

	return server.Start()
}

func getConfigString(configFile string, inConfigBody string) (string, error) {
	if inConfigBody != "" || configFile == "" {
		return inConfigBody, nil
	}

	outConfigBody, err := os.ReadFile(configFile)
	if err != nil {
		return "", err
	}

	return string(outConfigBody), nil
}
