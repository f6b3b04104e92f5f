// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/livekit/protocol/logger"
	redisLiveKit "github.com/livekit/protocol/redis"
)

type StoreKind string

const (
	StoreKindMemory StoreKind = "memory"
	StoreKindFile   StoreKind = "file"
	StoreKindRedis  StoreKind = "redis"
)

const (
	generatedCLIFlagUsage = "generated"
	envVarPrefix          = "TUTOR_ROOM_"
	loggerName            = "tutor-room"
)

var (
	ErrInvalidRetryAttempts   = errors.New("session.max_retry_attempts must be at least 1")
	ErrInvalidRetryDelay      = errors.New("session.retry_delay cannot be negative")
	ErrInvalidMaxParticipants = errors.New("session.max_participants must be at least 2")
	ErrInvalidStoreKind       = errors.New("store.kind must be one of memory, file, redis")
	ErrRedisNotConfigured     = errors.New("store.kind is redis but redis.address is not set")
)

type Config struct {
	Session    SessionConfig            `yaml:"session,omitempty"`
	Admission  AdmissionConfig          `yaml:"admission,omitempty"`
	LiveKit    LiveKitConfig            `yaml:"livekit,omitempty"`
	Identity   IdentityConfig           `yaml:"identity,omitempty"`
	Store      StoreConfig              `yaml:"store,omitempty"`
	Redis      redisLiveKit.RedisConfig `yaml:"redis,omitempty"`
	Media      MediaConfig              `yaml:"media,omitempty"`
	Server     ServerConfig             `yaml:"server,omitempty"`
	Prometheus PrometheusConfig         `yaml:"prometheus,omitempty"`
	Logging    LoggingConfig            `yaml:"logging,omitempty"`

	Development bool `yaml:"development,omitempty"`
}

// SessionConfig drives the connection state machine and the track reconciler.
type SessionConfig struct {
	MaxRetryAttempts int           `yaml:"max_retry_attempts,omitempty"`
	RetryDelay       time.Duration `yaml:"retry_delay,omitempty"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout,omitempty"`
	MaxParticipants  int           `yaml:"max_participants,omitempty"`
	AutoReconnect    bool          `yaml:"auto_reconnect,omitempty"`
	CheckCapacity    bool          `yaml:"check_capacity,omitempty"`

	// remote tracks that arrive before their render target is registered
	AttachAttempts  int           `yaml:"attach_attempts,omitempty"`
	AttachInterval  time.Duration `yaml:"attach_interval,omitempty"`
	AttachQueueSize int           `yaml:"attach_queue_size,omitempty"`

	ChatHistory    int `yaml:"chat_history,omitempty"`
	EventQueueSize int `yaml:"event_queue_size,omitempty"`
}

type AdmissionConfig struct {
	URL     string        `yaml:"url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

type LiveKitConfig struct {
	URL          string `yaml:"url,omitempty"`
	APIKey       string `yaml:"api_key,omitempty"`
	APISecret    string `yaml:"api_secret,omitempty"`
	EmptyTimeout uint32 `yaml:"empty_timeout,omitempty"`
}

func (l LiveKitConfig) IsConfigured() bool {
	return l.URL != "" && l.APIKey != "" && l.APISecret != ""
}

type IdentityConfig struct {
	File string `yaml:"file,omitempty"`
}

type StoreConfig struct {
	Kind StoreKind `yaml:"kind,omitempty"`
	File string    `yaml:"file,omitempty"`
}

type MediaConfig struct {
	CameraFile     string `yaml:"camera_file,omitempty"`
	MicrophoneFile string `yaml:"microphone_file,omitempty"`
	// publish generated frames when no file is configured
	Synthetic bool `yaml:"synthetic,omitempty"`
}

type ServerConfig struct {
	Port          uint32        `yaml:"port,omitempty"`
	BindAddresses []string      `yaml:"bind_addresses,omitempty"`
	CORSOrigins   []string      `yaml:"cors_origins,omitempty"`
	TokenTTL      time.Duration `yaml:"token_ttl,omitempty"`
	// used to mint tokens when livekit credentials are absent
	DevAPIKey    string `yaml:"dev_api_key,omitempty"`
	DevAPISecret string `yaml:"dev_api_secret,omitempty"`
}

type PrometheusConfig struct {
	Port uint32 `yaml:"port,omitempty"`
}

type LoggingConfig struct {
	logger.Config `yaml:",inline"`
	PionLevel     string `yaml:"pion_level,omitempty"`
}

var DefaultConfig = Config{
	Session: SessionConfig{
		MaxRetryAttempts: 3,
		RetryDelay:       2 * time.Second,
		ConnectTimeout:   15 * time.Second,
		MaxParticipants:  2,
		AutoReconnect:    true,
		AttachAttempts:   10,
		AttachInterval:   500 * time.Millisecond,
		AttachQueueSize:  16,
		ChatHistory:      200,
		EventQueueSize:   256,
	},
	Admission: AdmissionConfig{
		URL:     "http://localhost:7890",
		Timeout: 10 * time.Second,
	},
	LiveKit: LiveKitConfig{
		URL:          "ws://localhost:7880",
		EmptyTimeout: 300,
	},
	Identity: IdentityConfig{
		File: "~/.tutor-room/identity.yaml",
	},
	Store: StoreConfig{
		Kind: StoreKindFile,
		File: "~/.tutor-room/sessions.yaml",
	},
	Server: ServerConfig{
		Port:         7890,
		CORSOrigins:  []string{"*"},
		TokenTTL:     6 * time.Hour,
		DevAPIKey:    "devkey",
		DevAPISecret: "secret",
	},
	Logging: LoggingConfig{
		PionLevel: "error",
	},
}

func NewConfig(confString string, strictMode bool, c *cli.Context, baseFlags []cli.Flag) (*Config, error) {
	// start with defaults
	marshalled, err := yaml.Marshal(&DefaultConfig)
	if err != nil {
		return nil, err
	}

	var conf Config
	err = yaml.Unmarshal(marshalled, &conf)
	if err != nil {
		return nil, err
	}

	if confString != "" {
		decoder := yaml.NewDecoder(strings.NewReader(confString))
		decoder.KnownFields(strictMode)
		if err := decoder.Decode(&conf); err != nil {
			return nil, fmt.Errorf("could not parse config: %v", err)
		}
	}

	if c != nil {
		if err := conf.updateFromCLI(c, baseFlags); err != nil {
			return nil, err
		}
	}

	// expand env vars in filenames
	for _, path := range []*string{&conf.Identity.File, &conf.Store.File, &conf.Media.CameraFile, &conf.Media.MicrophoneFile} {
		if *path == "" {
			continue
		}
		expanded, err := homedir.Expand(os.ExpandEnv(*path))
		if err != nil {
			return nil, err
		}
		*path = expanded
	}

	if conf.Logging.Level == "" && conf.Development {
		conf.Logging.Level = "debug"
	}
	if conf.Logging.PionLevel != "" {
		if conf.Logging.ComponentLevels == nil {
			conf.Logging.ComponentLevels = map[string]string{}
		}
		conf.Logging.ComponentLevels["pion"] = conf.Logging.PionLevel
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (conf *Config) Validate() error {
	if conf.Session.MaxRetryAttempts < 1 {
		return ErrInvalidRetryAttempts
	}
	if conf.Session.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}
	if conf.Session.MaxParticipants < 2 {
		return ErrInvalidMaxParticipants
	}
	switch conf.Store.Kind {
	case StoreKindMemory, StoreKindFile:
	case StoreKindRedis:
		if !conf.Redis.IsConfigured() {
			return ErrRedisNotConfigured
		}
	default:
		return ErrInvalidStoreKind
	}
	return nil
}

type configNode struct {
	TypeNode  reflect.Value
	TagPrefix string
}

func (conf *Config) ToCLIFlagNames(existingFlags []cli.Flag) map[string]reflect.Value {
	existingFlagNames := map[string]bool{}
	for _, flag := range existingFlags {
		for _, flagName := range flag.Names() {
			existingFlagNames[flagName] = true
		}
	}

	flagNames := map[string]reflect.Value{}
	var currNode configNode
	nodes := []configNode{{reflect.ValueOf(conf).Elem(), ""}}
	for len(nodes) > 0 {
		currNode, nodes = nodes[0], nodes[1:]
		for i := 0; i < currNode.TypeNode.NumField(); i++ {
			// inspect yaml tag from struct field to get path
			field := currNode.TypeNode.Type().Field(i)
			yamlTagArray := strings.SplitN(field.Tag.Get("yaml"), ",", 2)
			yamlTag := yamlTagArray[0]
			isInline := len(yamlTagArray) > 1 && yamlTagArray[1] == "inline"
			if (yamlTag == "" && (!isInline || currNode.TagPrefix == "")) || yamlTag == "-" {
				continue
			}
			yamlPath := yamlTag
			if currNode.TagPrefix != "" {
				if isInline {
					yamlPath = currNode.TagPrefix
				} else {
					yamlPath = fmt.Sprintf("%s.%s", currNode.TagPrefix, yamlTag)
				}
			}
			if existingFlagNames[yamlPath] {
				continue
			}

			value := currNode.TypeNode.Field(i)
			if value.Kind() == reflect.Struct {
				nodes = append(nodes, configNode{value, yamlPath})
			} else {
				flagNames[yamlPath] = value
			}
		}
	}

	return flagNames
}

func GenerateCLIFlags(existingFlags []cli.Flag, hidden bool) ([]cli.Flag, error) {
	blankConfig := &Config{}
	flags := make([]cli.Flag, 0)
	for name, value := range blankConfig.ToCLIFlagNames(existingFlags) {
		kind := value.Kind()
		if kind == reflect.Ptr {
			kind = value.Type().Elem().Kind()
		}

		envVar := envVarPrefix + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		var flag cli.Flag
		switch {
		case value.Type() == reflect.TypeOf(time.Duration(0)):
			flag = &cli.DurationFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Bool:
			flag = &cli.BoolFlag{
				Name:   name,
				Usage:  generatedCLIFlagUsage,
				Hidden: hidden,
			}
		case kind == reflect.String:
			flag = &cli.StringFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Int, kind == reflect.Int32, kind == reflect.Int64:
			flag = &cli.Int64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Uint8, kind == reflect.Uint16, kind == reflect.Uint32, kind == reflect.Uint64:
			flag = &cli.Uint64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Float32, kind == reflect.Float64:
			flag = &cli.Float64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Slice:
			if value.Type().Elem().Kind() != reflect.String {
				continue
			}
			flag = &cli.StringSliceFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Map, kind == reflect.Struct, kind == reflect.Interface, kind == reflect.Func:
			continue
		default:
			return flags, fmt.Errorf("cli flag generation unsupported for config type: %s is a %s", name, kind.String())
		}

		flags = append(flags, flag)
	}

	return flags, nil
}

func (conf *Config) updateFromCLI(c *cli.Context, baseFlags []cli.Flag) error {
	generatedFlagNames := conf.ToCLIFlagNames(baseFlags)
	for _, flag := range c.App.Flags {
		flagName := flag.Names()[0]

		// the `c.App.Name != "test"` check is needed because `c.IsSet(...)` is always false in unit tests
		if !c.IsSet(flagName) && c.App.Name != "test" {
			continue
		}

		configValue, ok := generatedFlagNames[flagName]
		if !ok {
			continue
		}

		kind := configValue.Kind()
		if kind == reflect.Ptr {
			// instantiate value to be set
			configValue.Set(reflect.New(configValue.Type().Elem()))

			kind = configValue.Type().Elem().Kind()
			configValue = configValue.Elem()
		}

		switch {
		case configValue.Type() == reflect.TypeOf(time.Duration(0)):
			configValue.SetInt(int64(c.Duration(flagName)))
		case kind == reflect.Bool:
			configValue.SetBool(c.Bool(flagName))
		case kind == reflect.String:
			configValue.SetString(c.String(flagName))
		case kind == reflect.Int, kind == reflect.Int32, kind == reflect.Int64:
			configValue.SetInt(c.Int64(flagName))
		case kind == reflect.Uint8, kind == reflect.Uint16, kind == reflect.Uint32, kind == reflect.Uint64:
			configValue.SetUint(c.Uint64(flagName))
		case kind == reflect.Float32, kind == reflect.Float64:
			configValue.SetFloat(c.Float64(flagName))
		case kind == reflect.Slice:
			configValue.Set(reflect.ValueOf(c.StringSlice(flagName)))
		default:
			return fmt.Errorf("unsupported generated cli flag type for config: %s is a %s", flagName, kind.String())
		}
	}

	if c.IsSet("dev") {
		conf.Development = c.Bool("dev")
	}
	if c.IsSet("bind") {
		conf.Server.BindAddresses = c.StringSlice("bind")
	}
	if c.IsSet("redis-host") {
		conf.Redis.Address = c.String("redis-host")
	}
	if c.IsSet("redis-password") {
		conf.Redis.Password = c.String("redis-password")
	}
	return nil
}

func InitLoggerFromConfig(config *LoggingConfig) {
	logger.InitFromConfig(&config.Config, loggerName)
}
