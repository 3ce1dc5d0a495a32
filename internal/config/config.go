// /internal/config/config.go
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the single typed configuration for the bot and the engagement
// engine. Every knob has a documented default; Validate rejects values that
// would break the decision loop.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`
	StoragePath  string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	AIProvider   string `env:"AI_PROVIDER" envDefault:"pollinations"`

	// Group permission list. ListMode "blacklist" lets every group through
	// except the listed ones; "whitelist" only the listed ones.
	ListMode string   `env:"GROUP_LIST_MODE" envDefault:"blacklist"`
	Groups   []string `env:"GROUP_LIST" envSeparator:","`

	Engine EngineConfig
}

// EngineConfig holds every tunable of the engagement engine. Defaults mirror
// the values the decision formulas were calibrated with.
type EngineConfig struct {
	// Interest scoring weights (normalized by their sum on evaluation).
	KeywordWeight float64 `env:"INTEREST_KEYWORD_WEIGHT" envDefault:"0.4"`
	ContextWeight float64 `env:"INTEREST_CONTEXT_WEIGHT" envDefault:"0.3"`
	SenderWeight  float64 `env:"INTEREST_SENDER_WEIGHT" envDefault:"0.2"`
	TimeWeight    float64 `env:"INTEREST_TIME_WEIGHT" envDefault:"0.1"`

	// Interest scores below InterestThreshold are damped by InterestDamp.
	InterestThreshold float64 `env:"INTEREST_THRESHOLD" envDefault:"0.5"`
	InterestDamp      float64 `env:"INTEREST_DAMP" envDefault:"0.5"`

	// Focus (focused-chat) state machine.
	FocusEnabled        bool          `env:"FOCUS_ENABLED" envDefault:"true"`
	FocusThreshold      float64       `env:"FOCUS_THRESHOLD" envDefault:"0.7"`
	FocusTimeout        time.Duration `env:"FOCUS_TIMEOUT" envDefault:"5m"`
	FocusMaxResponses   int           `env:"FOCUS_MAX_RESPONSES" envDefault:"10"`
	ModeSwitchCooldown  time.Duration `env:"MODE_SWITCH_COOLDOWN" envDefault:"30s"`
	ObservationActivity float64       `env:"OBSERVATION_ACTIVITY_THRESHOLD" envDefault:"0.2"`

	// Fatigue tracking.
	FatigueEnabled    bool          `env:"FATIGUE_ENABLED" envDefault:"true"`
	FatigueThreshold  float64       `env:"FATIGUE_THRESHOLD" envDefault:"5"`
	FatigueDecayRate  float64       `env:"FATIGUE_DECAY_RATE" envDefault:"0.5"`
	FatigueRecovery   time.Duration `env:"FATIGUE_RECOVERY" envDefault:"5m"`
	MaxSessionReplies int           `env:"MAX_SESSION_REPLIES" envDefault:"10"`

	// Willingness blend and decision.
	BaseProbability       float64 `env:"BASE_PROBABILITY" envDefault:"0.3"`
	AirReadingEnabled     bool    `env:"AIR_READING_ENABLED" envDefault:"true"`
	NoReplyMarker         string  `env:"AIR_READING_NO_REPLY_MARKER" envDefault:"[DO_NOT_REPLY]"`
	MaxConsecutiveReplies int     `env:"MAX_CONSECUTIVE_REPLIES" envDefault:"3"`

	// Engagement energy ("heartflow") gate.
	EnergyBaseCooldown time.Duration `env:"ENERGY_BASE_COOLDOWN" envDefault:"45s"`

	// Proactive heartbeat loop.
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"15s"`
	TriggerCooldown   time.Duration `env:"TRIGGER_COOLDOWN" envDefault:"5s"`

	// Typing simulation before a decided reply.
	TypingEnabled  bool          `env:"TYPING_ENABLED" envDefault:"true"`
	TypingMinDelay time.Duration `env:"TYPING_MIN_DELAY" envDefault:"1s"`
	TypingMaxDelay time.Duration `env:"TYPING_MAX_DELAY" envDefault:"3s"`

	// Generation call budget.
	GenerateTimeout time.Duration `env:"GENERATE_TIMEOUT" envDefault:"60s"`
	FallbackReply   string        `env:"FALLBACK_REPLY" envDefault:"Sorry, I zoned out for a second. Say that again?"`

	// Conversation buffer cap per group.
	HistoryLimit int `env:"HISTORY_LIMIT" envDefault:"100"`
}

// New loads .env (if present), parses the environment into Config and
// validates it. Fatal on a missing token or invalid values.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("[ERR] config parse: %v", err)
	}
	if cfg.DiscordToken == "" {
		log.Fatal("DISCORD_TOKEN is not set")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[ERR] config: %v", err)
	}
	return cfg
}

// Validate checks value ranges. Kept separate from New so tests can build
// configs by hand.
func (c *Config) Validate() error {
	e := c.Engine
	for name, v := range map[string]float64{
		"INTEREST_THRESHOLD": e.InterestThreshold,
		"INTEREST_DAMP":      e.InterestDamp,
		"FOCUS_THRESHOLD":    e.FocusThreshold,
		"BASE_PROBABILITY":   e.BaseProbability,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	if e.FatigueDecayRate < 0 || e.FatigueDecayRate >= 1 {
		return fmt.Errorf("FATIGUE_DECAY_RATE must be in [0,1), got %v", e.FatigueDecayRate)
	}
	if e.MaxConsecutiveReplies < 1 {
		return fmt.Errorf("MAX_CONSECUTIVE_REPLIES must be >= 1")
	}
	if e.TypingMinDelay > e.TypingMaxDelay {
		return fmt.Errorf("TYPING_MIN_DELAY exceeds TYPING_MAX_DELAY")
	}
	if e.HistoryLimit < 10 {
		return fmt.Errorf("HISTORY_LIMIT must be >= 10")
	}
	if c.ListMode != "blacklist" && c.ListMode != "whitelist" {
		return fmt.Errorf("GROUP_LIST_MODE must be blacklist or whitelist, got %q", c.ListMode)
	}
	return nil
}

// DefaultEngine returns EngineConfig with all defaults applied, for tests and
// embedded use without environment parsing.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		KeywordWeight:         0.4,
		ContextWeight:         0.3,
		SenderWeight:          0.2,
		TimeWeight:            0.1,
		InterestThreshold:     0.5,
		InterestDamp:          0.5,
		FocusEnabled:          true,
		FocusThreshold:        0.7,
		FocusTimeout:          5 * time.Minute,
		FocusMaxResponses:     10,
		ModeSwitchCooldown:    30 * time.Second,
		ObservationActivity:   0.2,
		FatigueEnabled:        true,
		FatigueThreshold:      5,
		FatigueDecayRate:      0.5,
		FatigueRecovery:       5 * time.Minute,
		MaxSessionReplies:     10,
		BaseProbability:       0.3,
		AirReadingEnabled:     true,
		NoReplyMarker:         "[DO_NOT_REPLY]",
		MaxConsecutiveReplies: 3,
		EnergyBaseCooldown:    45 * time.Second,
		HeartbeatInterval:     15 * time.Second,
		TriggerCooldown:       5 * time.Second,
		TypingEnabled:         true,
		TypingMinDelay:        time.Second,
		TypingMaxDelay:        3 * time.Second,
		GenerateTimeout:       60 * time.Second,
		FallbackReply:         "Sorry, I zoned out for a second. Say that again?",
		HistoryLimit:          100,
	}
}
