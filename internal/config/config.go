package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Push module types accepted in the pushModules map.
const (
	ModuleTypeApple  = "apple"
	ModuleTypeGoogle = "google"
	ModuleTypeDemo   = "demo"
)

// Config is the full settings document (settings.json).
type Config struct {
	Component   ComponentConfig             `json:"component"`
	PushModules map[string]PushModuleConfig `json:"pushModules"`
	Timeout     TimeoutConfig               `json:"timeout"`
	OpsServer   OpsServerConfig             `json:"opsServer"`
}

// ComponentConfig describes the XMPP component connection.
type ComponentConfig struct {
	ComponentHostname string `json:"componentHostname"`
	ComponentKey      string `json:"componentKey"`
	ServerHostname    string `json:"serverHostname"`
	ServerPort        int    `json:"serverPort"`
}

type TimeoutConfig struct {
	XMPPConnectionError Duration `json:"xmppconnectionError"`
}

// OpsServerConfig configures the operational HTTP listener
// (/health, /stats, /metrics). An empty listen address disables it.
type OpsServerConfig struct {
	ListenAddress string `json:"listenAddress"`
}

// PushModuleConfig is one entry of the pushModules map, tagged by "type".
type PushModuleConfig struct {
	Type            string          `json:"type"`
	APNS            *APNSConfig     `json:"apns,omitempty"`
	FCM             *FCMConfig      `json:"fcm,omitempty"`
	Blacklist       BlacklistConfig `json:"blacklist"`
	Ratelimit       RatelimitConfig `json:"ratelimit"`
	IsDefaultModule bool            `json:"isDefaultModule"`
}

// APNSConfig carries the credentials and payload settings of one Apple
// push module.
type APNSConfig struct {
	CertFilePath    string                 `json:"certFilePath"`
	CertPassword    string                 `json:"certPassword"`
	Topic           string                 `json:"topic"`
	AdditionalData  map[string]interface{} `json:"additionalData,omitempty"`
	Environment     string                 `json:"environment,omitempty"`
	PoolIdleTimeout Duration               `json:"poolIdleTimeout,omitempty"`
	RequestTimeout  Duration               `json:"requestTimeout,omitempty"`
}

const (
	APNSEnvironmentProduction = "production"
	APNSEnvironmentSandbox    = "sandbox"
)

// FCMConfig points at the Google service-account JSON; the project id is
// read from that file.
type FCMConfig struct {
	FCMSecretPath string `json:"fcmSecretPath"`
}

// BlacklistConfig holds the blocking windows of one module's token
// blocklist.
type BlacklistConfig struct {
	InvalidToken   BlockingTimes `json:"invalidToken"`
	PushError      BlockingTimes `json:"pushError"`
	BlockExtension Duration      `json:"blockExtension"`
}

// BlockingTimes is an (initial, extended) pair of block durations.
// The "inital" spelling is the wire format.
type BlockingTimes struct {
	InitialBlocking  Duration `json:"initalBlocking"`
	ExtendedBlocking Duration `json:"extendedBlocking"`
}

// RatelimitConfig holds the per-token pacing settings of one module.
// Enabled is a pointer so an omitted field defaults to true.
type RatelimitConfig struct {
	HardRatelimitTime        Duration `json:"hardRatelimitTime"`
	RatelimitTime            Duration `json:"ratelimitTime"`
	RatelimitCleanupInterval Duration `json:"ratelimitCleanupInterval"`
	Enabled                  *bool    `json:"enabled"`
}

func (r RatelimitConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Load reads the settings file, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open settings file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides lets deploy environments override the connection
// settings without editing settings.json.
func (c *Config) applyEnvOverrides() {
	c.Component.ComponentHostname = getEnv("PUSHGATE_COMPONENT_HOSTNAME", c.Component.ComponentHostname)
	c.Component.ComponentKey = getEnv("PUSHGATE_COMPONENT_KEY", c.Component.ComponentKey)
	c.Component.ServerHostname = getEnv("PUSHGATE_SERVER_HOSTNAME", c.Component.ServerHostname)
	if v := getEnvInt("PUSHGATE_SERVER_PORT", 0); v > 0 {
		c.Component.ServerPort = v
	}
	c.OpsServer.ListenAddress = getEnv("PUSHGATE_OPS_LISTEN", c.OpsServer.ListenAddress)
}

func (c *Config) applyDefaults() {
	if c.Component.ServerPort == 0 {
		c.Component.ServerPort = 5347
	}
	if c.Timeout.XMPPConnectionError == 0 {
		c.Timeout.XMPPConnectionError = Duration(10 * time.Second)
	}

	for name, mod := range c.PushModules {
		mod.Blacklist.applyDefaults()
		mod.Ratelimit.applyDefaults()
		if mod.APNS != nil {
			mod.APNS.applyDefaults()
		}
		c.PushModules[name] = mod
	}
}

func (b *BlacklistConfig) applyDefaults() {
	if b.InvalidToken.InitialBlocking == 0 {
		b.InvalidToken.InitialBlocking = Duration(24 * time.Hour)
	}
	if b.InvalidToken.ExtendedBlocking == 0 {
		b.InvalidToken.ExtendedBlocking = Duration(5 * 24 * time.Hour)
	}
	if b.PushError.InitialBlocking == 0 {
		b.PushError.InitialBlocking = Duration(10 * time.Minute)
	}
	if b.PushError.ExtendedBlocking == 0 {
		b.PushError.ExtendedBlocking = Duration(20 * time.Minute)
	}
	if b.BlockExtension == 0 {
		b.BlockExtension = Duration(10 * time.Minute)
	}
}

func (r *RatelimitConfig) applyDefaults() {
	if r.HardRatelimitTime == 0 {
		r.HardRatelimitTime = Duration(600 * time.Second)
	}
	if r.RatelimitTime == 0 {
		r.RatelimitTime = Duration(20 * time.Second)
	}
	if r.RatelimitCleanupInterval == 0 {
		r.RatelimitCleanupInterval = Duration(300 * time.Second)
	}
}

func (a *APNSConfig) applyDefaults() {
	if a.Environment == "" {
		a.Environment = APNSEnvironmentProduction
	}
	if a.PoolIdleTimeout == 0 {
		a.PoolIdleTimeout = Duration(600 * time.Second)
	}
	if a.RequestTimeout == 0 {
		a.RequestTimeout = Duration(5 * time.Second)
	}
}

func (c *Config) validate() error {
	if c.Component.ComponentHostname == "" {
		return fmt.Errorf("component.componentHostname must be set")
	}
	if c.Component.ServerHostname == "" {
		return fmt.Errorf("component.serverHostname must be set")
	}
	if len(c.PushModules) == 0 {
		return fmt.Errorf("no push modules configured")
	}

	defaults := 0
	for name, mod := range c.PushModules {
		if name == "" {
			return fmt.Errorf("push module with empty identifier")
		}
		switch mod.Type {
		case ModuleTypeApple:
			if mod.APNS == nil {
				return fmt.Errorf("push module %s: type apple requires an apns section", name)
			}
			if mod.APNS.Environment != APNSEnvironmentProduction && mod.APNS.Environment != APNSEnvironmentSandbox {
				return fmt.Errorf("push module %s: unknown apns environment %q", name, mod.APNS.Environment)
			}
		case ModuleTypeGoogle:
			if mod.FCM == nil || mod.FCM.FCMSecretPath == "" {
				return fmt.Errorf("push module %s: type google requires fcm.fcmSecretPath", name)
			}
		case ModuleTypeDemo:
		default:
			return fmt.Errorf("push module %s: unknown type %q", name, mod.Type)
		}
		if mod.IsDefaultModule {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("at most one push module can be flagged isDefaultModule, found %d", defaults)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
