package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/syncspace/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

func (v configVar[T]) bind() {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

var (
	secret = configVar[string]{
		envKey:  "SERVER_SECRET",
		flagKey: "secret",
		usage:   "Key used to decode session tokens",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	instanceId = configVar[string]{
		envKey:  "SERVER_INSTANCE_ID",
		flagKey: "instance-id",
		usage:   "Id tagging events published to other instances (random when empty)",
	}
	queueLimit = configVar[int]{
		envKey:       "SERVER_QUEUE_LIMIT",
		flagKey:      "queue-limit",
		defaultValue: 20,
		usage:        "Maximum number of songs in a space queue",
	}
	broadcastInterval = configVar[time.Duration]{
		envKey:       "SERVER_BROADCAST_INTERVAL",
		flagKey:      "broadcast-interval",
		defaultValue: 5 * time.Second,
		usage:        "Interval between timestamp syncs while playing",
	}
	seekSettleDelay = configVar[time.Duration]{
		envKey:       "SERVER_SEEK_SETTLE_DELAY",
		flagKey:      "seek-settle-delay",
		defaultValue: 2 * time.Second,
		usage:        "Pause of periodic syncs after a seek",
	}
	voteCooldown = configVar[time.Duration]{
		envKey:       "SERVER_VOTE_COOLDOWN",
		flagKey:      "vote-cooldown",
		defaultValue: 20 * time.Minute,
		usage:        "Minimum time between vote changes of a listener",
	}
	workers = configVar[int]{
		envKey:       "SERVER_WORKERS",
		flagKey:      "workers",
		defaultValue: 4,
		usage:        "Number of metadata resolution workers",
	}
	workerTaskTimeout = configVar[time.Duration]{
		envKey:       "SERVER_WORKER_TASK_TIMEOUT",
		flagKey:      "worker-task-timeout",
		defaultValue: 15 * time.Second,
		usage:        "Timeout of one resolution task",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:  "REDIS_PASSWORD",
		flagKey: "redis-password",
		usage:   "Redis password",
	}
	spotifyClientID = configVar[string]{
		envKey:  "SPOTIFY_CLIENT_ID",
		flagKey: "spotify-client-id",
		usage:   "Spotify client id (spotify links are rejected when empty)",
	}
	spotifyClientSecret = configVar[string]{
		envKey:  "SPOTIFY_CLIENT_SECRET",
		flagKey: "spotify-client-secret",
		usage:   "Spotify client secret",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, secret.usage)
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.String(instanceId.flagKey, instanceId.defaultValue, instanceId.usage)
	pflag.Int(queueLimit.flagKey, queueLimit.defaultValue, queueLimit.usage)
	pflag.Duration(broadcastInterval.flagKey, broadcastInterval.defaultValue, broadcastInterval.usage)
	pflag.Duration(seekSettleDelay.flagKey, seekSettleDelay.defaultValue, seekSettleDelay.usage)
	pflag.Duration(voteCooldown.flagKey, voteCooldown.defaultValue, voteCooldown.usage)
	pflag.Int(workers.flagKey, workers.defaultValue, workers.usage)
	pflag.Duration(workerTaskTimeout.flagKey, workerTaskTimeout.defaultValue, workerTaskTimeout.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.String(spotifyClientID.flagKey, spotifyClientID.defaultValue, spotifyClientID.usage)
	pflag.String(spotifyClientSecret.flagKey, spotifyClientSecret.defaultValue, spotifyClientSecret.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	secret.bind()
	port.bind()
	host.bind()
	logLevel.bind()
	instanceId.bind()
	queueLimit.bind()
	broadcastInterval.bind()
	seekSettleDelay.bind()
	voteCooldown.bind()
	workers.bind()
	workerTaskTimeout.bind()
	redisPort.bind()
	redisHost.bind()
	redisPassword.bind()
	spotifyClientID.bind()
	spotifyClientSecret.bind()

	config := &app.AppConfig{
		Secret:              viper.GetString(secret.flagKey),
		Host:                viper.GetString(host.flagKey),
		Port:                viper.GetInt(port.flagKey),
		LogLevel:            strings.ToUpper(viper.GetString(logLevel.flagKey)),
		InstanceId:          viper.GetString(instanceId.flagKey),
		QueueLimit:          viper.GetInt(queueLimit.flagKey),
		BroadcastInterval:   viper.GetDuration(broadcastInterval.flagKey),
		SeekSettleDelay:     viper.GetDuration(seekSettleDelay.flagKey),
		VoteCooldown:        viper.GetDuration(voteCooldown.flagKey),
		Workers:             viper.GetInt(workers.flagKey),
		WorkerTaskTimeout:   viper.GetDuration(workerTaskTimeout.flagKey),
		RedisPort:           viper.GetInt(redisPort.flagKey),
		RedisHost:           viper.GetString(redisHost.flagKey),
		RedisPassword:       viper.GetString(redisPassword.flagKey),
		SpotifyClientID:     viper.GetString(spotifyClientID.flagKey),
		SpotifyClientSecret: viper.GetString(spotifyClientSecret.flagKey),
	}
	if config.InstanceId == "" {
		config.InstanceId = uuid.NewString()
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
