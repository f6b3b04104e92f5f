package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/cmd/cli/client"
	"github.com/livekit/tutor-room/pkg/admission"
	"github.com/livekit/tutor-room/pkg/config"
	"github.com/livekit/tutor-room/pkg/identity"
	"github.com/livekit/tutor-room/pkg/rtc"
	"github.com/livekit/tutor-room/pkg/store"
	"github.com/livekit/tutor-room/pkg/telemetry/prometheus"
	"github.com/livekit/tutor-room/pkg/transport"
	"github.com/livekit/tutor-room/pkg/utils"
)

const joinHelp = `commands:
  /camera on|off   toggle the camera
  /mic on|off      toggle the microphone
  /who             show participants
  /history         show the chat log
  /leave           leave the room
anything else is sent as a chat message`

var (
	JoinCommands = []*cli.Command{
		{
			Name:   "join",
			Usage:  "join a tutoring room",
			Action: joinRoom,
			Flags: []cli.Flag{
				roomFlag,
				&cli.StringFlag{
					Name:  "name",
					Usage: "display name",
				},
				&cli.StringFlag{
					Name:  "identity",
					Usage: "identity to join with, a persisted one is used by default",
				},
				&cli.StringFlag{
					Name:  "tutor",
					Usage: "name of the room's tutor, you join as tutor when it matches --name",
				},
				&cli.StringFlag{
					Name:  "subject",
					Usage: "subject of the session",
				},
				&cli.BoolFlag{
					Name:  "ai-tutor",
					Usage: "join as an AI tutor",
				},
				&cli.StringFlag{
					Name:  "camera",
					Usage: "an ivf file to publish as camera",
				},
				&cli.StringFlag{
					Name:  "mic",
					Usage: "an ogg file to publish as microphone",
				},
				&cli.BoolFlag{
					Name:  "synthetic",
					Usage: "publish generated media when no file is given",
				},
				&cli.BoolFlag{
					Name:  "no-media",
					Usage: "join without camera and microphone",
				},
			},
		},
	}
)

func joinRoom(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	if f := c.String("camera"); f != "" {
		conf.Media.CameraFile = ExpandUser(f)
	}
	if f := c.String("mic"); f != "" {
		conf.Media.MicrophoneFile = ExpandUser(f)
	}
	if c.Bool("synthetic") {
		conf.Media.Synthetic = true
	}

	log := logger.GetLogger()
	if conf.Prometheus.Port != 0 {
		prometheus.Init(utils.NewGuid("CL_"))
		promServer := prometheus.NewServer(conf.Prometheus.Port)
		go func() {
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("could not start prometheus server", err)
			}
		}()
		defer promServer.Close()
	}

	console := client.NewConsole(os.Stdout, log)
	manager, err := newSessionManager(conf, console, log)
	if err != nil {
		return err
	}
	defer manager.Close()
	console.Bind(manager)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := manager.Join(ctx, rtc.JoinRequest{
		RoomID:      c.String("room-id"),
		Identity:    c.String("identity"),
		DisplayName: c.String("name"),
		TutorName:   c.String("tutor"),
		Subject:     c.String("subject"),
		IsAITutor:   c.Bool("ai-tutor"),
		SkipMedia:   c.Bool("no-media"),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	fmt.Printf("joined %s as %s (%s)\n%s\n", session.RoomID, session.DisplayName, session.Role, joinHelp)

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			leave, err := handleLine(ctx, manager, console, line)
			if err != nil {
				fmt.Println("!", err)
			}
			if leave {
				return nil
			}
		}
	}
}

func newSessionManager(conf *config.Config, console *client.Console, log logger.Logger) (*rtc.SessionManager, error) {
	sessionStore, err := store.NewSessionStore(conf)
	if err != nil {
		return nil, err
	}
	adm := admission.NewClient(conf.Admission, log)

	return rtc.NewSessionManager(rtc.SessionManagerParams{
		Config:     conf.Session,
		LiveKitURL: conf.LiveKit.URL,
		Identity:   identity.NewResolver(identity.NewFileStore(conf.Identity.File), log),
		Tokens:     adm,
		Admin:      adm,
		Transport:  transport.NewLiveKitTransport(log),
		Devices:    transport.NewFileDevices(conf.Media, log),
		Store:      sessionStore,
		Logger:     log,
		Callback:   console.Callback(),
	}), nil
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

// handleLine runs one line of input. It reports whether the user asked to leave.
func handleLine(ctx context.Context, manager *rtc.SessionManager, console *client.Console, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, manager.SendChat(ctx, line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/leave", "/quit":
		return true, nil
	case "/who":
		console.PrintRoster()
	case "/history":
		console.PrintChat()
	case "/camera", "/mic":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return false, fmt.Errorf("usage: %s on|off", fields[0])
		}
		enabled := fields[1] == "on"
		if fields[0] == "/camera" {
			return false, manager.SetCameraEnabled(ctx, enabled)
		}
		return false, manager.SetMicrophoneEnabled(ctx, enabled)
	case "/help":
		fmt.Println(joinHelp)
	default:
		return false, errors.New("unknown command, /help lists them")
	}
	return false, nil
}

func ExpandUser(p string) string {
	if expanded, err := homedir.Expand(p); err == nil {
		return expanded
	}
	return p
}
