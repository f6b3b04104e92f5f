package config

import (
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/livekit/protocol/logger"
	redisLiveKit "github.com/livekit/protocol/redis"

	"github.com/livekit/tutor-room/pkg/config/configtest"
)

func TestConfig_DefaultsKept(t *testing.T) {
	const content = `session:
  retry_delay: 1s
  attach_attempts: 4`
	conf, err := NewConfig(content, true, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 3, conf.Session.MaxRetryAttempts)
	require.Equal(t, time.Second, conf.Session.RetryDelay)
	require.Equal(t, 15*time.Second, conf.Session.ConnectTimeout)
	require.Equal(t, 4, conf.Session.AttachAttempts)
	require.Equal(t, 500*time.Millisecond, conf.Session.AttachInterval)
	require.Equal(t, 2, conf.Session.MaxParticipants)
	require.True(t, conf.Session.AutoReconnect)
}

func TestConfig_UnknownKeys(t *testing.T) {
	const content = `unknown: 10
session:
  max_retry_attempts: 5`

	_, err := NewConfig(content, true, nil, nil)
	require.Error(t, err)

	conf, err := NewConfig(content, false, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 5, conf.Session.MaxRetryAttempts)
}

func TestConfig_ExpandsPaths(t *testing.T) {
	conf, err := NewConfig("", true, nil, nil)
	require.NoError(t, err)
	require.False(t, strings.HasPrefix(conf.Identity.File, "~"))
	require.True(t, strings.HasSuffix(conf.Identity.File, "identity.yaml"))
	require.False(t, strings.HasPrefix(conf.Store.File, "~"))
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		content string
		err     error
	}{
		{"zero attempts", "session:\n  max_retry_attempts: -1", ErrInvalidRetryAttempts},
		{"negative delay", "session:\n  retry_delay: -1s", ErrInvalidRetryDelay},
		{"single participant room", "session:\n  max_participants: 1", ErrInvalidMaxParticipants},
		{"unknown store", "store:\n  kind: sqlite", ErrInvalidStoreKind},
		{"redis without address", "store:\n  kind: redis", ErrRedisNotConfigured},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewConfig(c.content, true, nil, nil)
			require.ErrorIs(t, err, c.err)
		})
	}

	conf, err := NewConfig("store:\n  kind: redis\nredis:\n  address: localhost:6379", true, nil, nil)
	require.NoError(t, err)
	require.Equal(t, StoreKindRedis, conf.Store.Kind)
}

func TestConfig_DevelopmentLogging(t *testing.T) {
	conf, err := NewConfig("development: true", true, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "debug", conf.Logging.Level)
	require.Equal(t, "error", conf.Logging.ComponentLevels["pion"])
}

func TestGeneratedFlags(t *testing.T) {
	generatedFlags, err := GenerateCLIFlags(nil, false)
	require.NoError(t, err)

	app := cli.NewApp()
	app.Flags = append(app.Flags, generatedFlags...)

	set := flag.NewFlagSet("test", 0)
	set.Bool("session.check_capacity", true, "")
	set.String("admission.url", "http://tutor.local", "")
	set.Int64("session.max_retry_attempts", 5, "")
	set.Uint64("server.port", 9999, "")
	set.Duration("session.connect_timeout", 3*time.Second, "")
	set.String("redis.address", "localhost:6379", "")

	c := cli.NewContext(app, set, nil)
	conf, err := NewConfig("", true, c, nil)
	require.NoError(t, err)

	require.True(t, conf.Session.CheckCapacity)
	require.Equal(t, "http://tutor.local", conf.Admission.URL)
	require.Equal(t, 5, conf.Session.MaxRetryAttempts)
	require.Equal(t, uint32(9999), conf.Server.Port)
	require.Equal(t, 3*time.Second, conf.Session.ConnectTimeout)
	require.Equal(t, "localhost:6379", conf.Redis.Address)
}

func TestYAMLTags(t *testing.T) {
	require.NoError(t, configtest.CheckYAMLTags(Config{}, logger.Config{}, redisLiveKit.RedisConfig{}))
}
