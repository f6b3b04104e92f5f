package client

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/rtc"
	"github.com/livekit/tutor-room/pkg/rtc/types"
)

const rosterDelay = 300 * time.Millisecond

const LocalIdentity = "local"

// SessionView is the part of a session manager the console drives.
type SessionView interface {
	Participants() []types.Participant
	ChatLog() []types.ChatMessage
	RegisterRenderTarget(identity string, kind types.MediaKind, target types.RenderTarget)
	UnregisterRenderTarget(identity string, kind types.MediaKind)
	SetLocalPreview(kind types.MediaKind, target types.RenderTarget)
	IsMediaEnabled(kind types.MediaKind) bool
}

type sinkKey struct {
	identity string
	kind     types.MediaKind
}

// Console renders a session to a terminal. Every remote participant gets one sink per media
// kind, registered as soon as the participant appears.
type Console struct {
	out    io.Writer
	logger logger.Logger
	redraw func(func())

	lock    sync.Mutex
	session SessionView
	sinks   map[sinkKey]*TrackSink
}

func NewConsole(out io.Writer, log logger.Logger) *Console {
	return &Console{
		out:    out,
		logger: log,
		redraw: debounce.New(rosterDelay),
		sinks:  make(map[sinkKey]*TrackSink),
	}
}

// Bind attaches the console to a session and sets up local previews.
func (c *Console) Bind(session SessionView) {
	c.lock.Lock()
	c.session = session
	c.lock.Unlock()

	for _, kind := range types.MediaKinds {
		session.SetLocalPreview(kind, c.sink(LocalIdentity, kind))
	}
}

func (c *Console) Callback() *rtc.SessionCallback {
	return &rtc.SessionCallback{
		OnStateChange: func(state types.ConnectionState) {
			c.printf("* %s\n", state)
		},
		OnParticipantsChanged: func(participants []types.Participant) {
			c.syncSinks(participants)
			c.redraw(c.PrintRoster)
		},
		OnChatMessage: func(msg types.ChatMessage) {
			c.printf("[%s] %s: %s\n", msg.ReceivedAt.Format("15:04"), msg.Sender, msg.Message)
		},
		OnError: func(kind types.ErrorKind, detail string) {
			c.printf("! %s: %s\n", kind, detail)
		},
		OnTrackUnavailable: func(identity string, kind types.MediaKind) {
			c.printf("! %s of %s could not be shown\n", kind, identity)
		},
	}
}

func (c *Console) sink(identity string, kind types.MediaKind) *TrackSink {
	c.lock.Lock()
	defer c.lock.Unlock()

	key := sinkKey{identity, kind}
	s, ok := c.sinks[key]
	if !ok {
		s = NewTrackSink(identity+"/"+kind.String(), c.logger)
		c.sinks[key] = s
	}
	return s
}

// syncSinks registers sinks for new participants and releases those of departed ones.
func (c *Console) syncSinks(participants []types.Participant) {
	c.lock.Lock()
	session := c.session
	present := make(map[string]bool, len(participants))
	for _, p := range participants {
		present[p.Identity] = true
	}
	var added, removed []sinkKey
	for _, p := range participants {
		for _, kind := range types.MediaKinds {
			key := sinkKey{p.Identity, kind}
			if _, ok := c.sinks[key]; !ok {
				c.sinks[key] = NewTrackSink(p.Identity+"/"+kind.String(), c.logger)
				added = append(added, key)
			}
		}
	}
	for key := range c.sinks {
		if key.identity != LocalIdentity && !present[key.identity] {
			delete(c.sinks, key)
			removed = append(removed, key)
		}
	}
	sinks := make(map[sinkKey]*TrackSink, len(added))
	for _, key := range added {
		sinks[key] = c.sinks[key]
	}
	c.lock.Unlock()

	if session == nil {
		return
	}
	for _, key := range removed {
		session.UnregisterRenderTarget(key.identity, key.kind)
	}
	for key, s := range sinks {
		session.RegisterRenderTarget(key.identity, key.kind, s)
	}
}

// PrintRoster writes the participant table.
func (c *Console) PrintRoster() {
	c.lock.Lock()
	session := c.session
	c.lock.Unlock()
	if session == nil {
		return
	}

	participants := session.Participants()
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].DisplayName < participants[j].DisplayName
	})

	c.lock.Lock()
	defer c.lock.Unlock()

	table := tablewriter.NewWriter(c.out)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Name", "Role", "Camera", "Microphone"})
	table.Append([]string{
		"(you)",
		"",
		localState(session, types.MediaKindCamera),
		localState(session, types.MediaKindMicrophone),
	})
	for _, p := range participants {
		table.Append([]string{
			p.DisplayName,
			p.Role.String(),
			c.trackState(p, types.MediaKindCamera),
			c.trackState(p, types.MediaKindMicrophone),
		})
	}
	table.Render()
}

// PrintChat writes the chat history.
func (c *Console) PrintChat() {
	c.lock.Lock()
	session := c.session
	c.lock.Unlock()
	if session == nil {
		return
	}
	for _, msg := range session.ChatLog() {
		c.printf("[%s] %s: %s\n", humanize.Time(msg.ReceivedAt), msg.Sender, msg.Message)
	}
}

func (c *Console) trackState(p types.Participant, kind types.MediaKind) string {
	ts, ok := p.Tracks[kind]
	switch {
	case !ok || !ts.Published:
		return "-"
	case !ts.Subscribed:
		return "published"
	case !ts.IsAttached():
		return "subscribed"
	}
	if s := c.sinks[sinkKey{p.Identity, kind}]; s != nil {
		if _, bytes, _ := s.Stats(); bytes > 0 {
			return "live " + humanize.Bytes(bytes)
		}
	}
	return "attached"
}

func localState(session SessionView, kind types.MediaKind) string {
	if session.IsMediaEnabled(kind) {
		return "on"
	}
	return "off"
}

func (c *Console) printf(format string, args ...interface{}) {
	c.lock.Lock()
	defer c.lock.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}
