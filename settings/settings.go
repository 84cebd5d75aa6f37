// Package settings resolves the deployment configuration from the
// environment. Every command runs inside a container whose orchestrator
// injects these variables; nothing is read from disk.
package settings

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the Kafka/ZooKeeper deployment configuration.
type Settings struct {
	// ZookeeperHosts from ZOOKEEPER_HOST (comma separated host:port).
	ZookeeperHosts []string

	// ZookeeperUser and ZookeeperPassword from ZOOKEEPER_USER and
	// ZOOKEEPER_PW: the administrative principal.
	ZookeeperUser     string
	ZookeeperPassword string

	// KafkaSecret from KAFKA_SECRET: the shared secret tenant passwords
	// derive from.
	KafkaSecret string

	// SettleDelay from ZK_LAG_TIME: the wait between user creation and
	// permission grants. Accepts a Go duration ("3s") or bare seconds
	// ("3"). Defaults to 3s.
	SettleDelay time.Duration

	// JournalPath from JOURNAL_PATH: optional local provisioning
	// journal; empty disables it.
	JournalPath string

	// Debug from DEBUG.
	Debug bool
}

// Load reads the environment. Per-command required values are checked by
// the Require helpers, not here, so informational commands can run with a
// partial environment.
func Load() (Settings, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("ZK_LAG_TIME", "3s")

	delay, err := parseDelay(v.GetString("ZK_LAG_TIME"))
	if err != nil {
		return Settings{}, fmt.Errorf("parse ZK_LAG_TIME: %w", err)
	}

	var hosts []string
	for _, host := range strings.Split(v.GetString("ZOOKEEPER_HOST"), ",") {
		if host = strings.TrimSpace(host); host != "" {
			hosts = append(hosts, host)
		}
	}

	return Settings{
		ZookeeperHosts:    hosts,
		ZookeeperUser:     v.GetString("ZOOKEEPER_USER"),
		ZookeeperPassword: v.GetString("ZOOKEEPER_PW"),
		KafkaSecret:       v.GetString("KAFKA_SECRET"),
		SettleDelay:       delay,
		JournalPath:       v.GetString("JOURNAL_PATH"),
		Debug:             v.GetBool("DEBUG"),
	}, nil
}

// parseDelay accepts "3s" style durations or bare seconds for
// compatibility with older deployments.
func parseDelay(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return time.Duration(secs) * time.Second, nil
}

// RequireZookeeper reports the missing session variables, if any.
func (s Settings) RequireZookeeper() error {
	var missing []string
	if len(s.ZookeeperHosts) == 0 {
		missing = append(missing, "ZOOKEEPER_HOST")
	}
	if s.ZookeeperUser == "" {
		missing = append(missing, "ZOOKEEPER_USER")
	}
	if s.ZookeeperPassword == "" {
		missing = append(missing, "ZOOKEEPER_PW")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequireKafkaSecret reports a missing shared secret.
func (s Settings) RequireKafkaSecret() error {
	if s.KafkaSecret == "" {
		return fmt.Errorf("missing environment: KAFKA_SECRET")
	}
	return nil
}
