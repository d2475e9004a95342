package config

import (
	"flag"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
)

// Kafka drivers accepted by Config.KafkaDriver.
const (
	DriverSarama  = "sarama"
	DriverKafkaGo = "kafka-go"
	DriverNone    = "none"
)

// Config defines how the server is wired.
type Config struct {
	ListenAddr string
	DataDir    string

	// WatchFile, when set, is republished every time it changes.
	WatchFile string

	KafkaDriver       string
	Brokers           []string
	Topic             string
	BroadcastInterval time.Duration
	PruneInterval     time.Duration

	// PayloadFormat is "proto" or "json".
	PayloadFormat   string
	MaxDocumentSize int64
}

func Default() Config {
	return Config{
		ListenAddr:        ":50051",
		DataDir:           "./cell_data",
		KafkaDriver:       DriverNone,
		Brokers:           []string{"localhost:9092"},
		Topic:             "cell.documents",
		BroadcastInterval: 250 * time.Millisecond,
		PruneInterval:     time.Minute,
		PayloadFormat:     "proto",
		MaxDocumentSize:   1 << 20,
	}
}

// RegisterFlags binds every field to fs, using the current values as
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "gRPC listen address")
	fs.StringVar(&c.DataDir, "data", c.DataDir, "Data folder for the pebble store")
	fs.StringVar(&c.WatchFile, "watch", c.WatchFile, "JSON file to publish on every change")
	fs.StringVar(&c.KafkaDriver, "kafka-driver", c.KafkaDriver, "Outbox sink: sarama, kafka-go or none")
	fs.Func("brokers", "Comma separated Kafka brokers (default "+strings.Join(c.Brokers, ",")+")", func(s string) error {
		c.Brokers = splitList(s)
		return nil
	})
	fs.StringVar(&c.Topic, "topic", c.Topic, "Kafka topic for document changes")
	fs.DurationVar(&c.BroadcastInterval, "broadcast-interval", c.BroadcastInterval, "Outbox drain interval")
	fs.DurationVar(&c.PruneInterval, "prune-interval", c.PruneInterval, "Acked outbox cleanup interval")
	fs.StringVar(&c.PayloadFormat, "format", c.PayloadFormat, "Stored and broadcast payload format: proto or json")
	fs.Func("max-size", "Largest accepted document body, e.g. 512KiB (default "+units.BytesSize(float64(c.MaxDocumentSize))+")", func(s string) error {
		n, err := units.RAMInBytes(s)
		if err != nil {
			return errors.Wrapf(err, "max-size %q", s)
		}
		c.MaxDocumentSize = n
		return nil
	})
}

// Validate reports the first setting the server cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("config: listen address is required")
	}
	if c.DataDir == "" {
		return errors.New("config: data dir is required")
	}
	switch c.KafkaDriver {
	case DriverNone:
	case DriverSarama, DriverKafkaGo:
		if len(c.Brokers) == 0 {
			return errors.Newf("config: %s driver needs at least one broker", c.KafkaDriver)
		}
		if c.Topic == "" {
			return errors.New("config: topic is required")
		}
	default:
		return errors.Newf("config: unknown kafka driver %q", c.KafkaDriver)
	}
	if c.BroadcastInterval <= 0 || c.PruneInterval <= 0 {
		return errors.New("config: intervals must be positive")
	}
	if c.MaxDocumentSize < 0 {
		return errors.Newf("config: negative max document size %d", c.MaxDocumentSize)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
