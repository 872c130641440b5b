package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/tablewire/rummy/internal/deck"
	"github.com/tablewire/rummy/internal/game"
	"github.com/tablewire/rummy/internal/matchmaking"
	"github.com/tablewire/rummy/internal/meld"
	"github.com/tablewire/rummy/internal/store"
)

// Config represents the complete server configuration
type Config struct {
	Server *ServerSettings `hcl:"server,block"`
	Game   *GameSettings   `hcl:"game,block"`
	Store  *StoreSettings  `hcl:"store,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings contains the rule variant knobs
type GameSettings struct {
	NumDecks              int  `hcl:"num_decks,optional"`
	NumJokers             int  `hcl:"num_jokers,optional"`
	CardsPerHand          int  `hcl:"cards_per_hand,optional"`
	MinPlayers            int  `hcl:"min_players,optional"`
	NoRecycleDiscards     bool `hcl:"no_recycle_discards,optional"`
	WildRank              int  `hcl:"wild_rank,optional"`
	AllowWrapAround       bool `hcl:"allow_wraparound,optional"`
	RequiredPureSequences int  `hcl:"required_pure_sequences,optional"`
}

// StoreSettings selects and tunes the persistence backend
type StoreSettings struct {
	Backend     string `hcl:"backend,optional"`
	NATSURL     string `hcl:"nats_url,optional"`
	SessionTTL  string `hcl:"session_ttl,optional"`
	IndexTTL    string `hcl:"index_ttl,optional"`
	QueueRefTTL string `hcl:"queue_ref_ttl,optional"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: &GameSettings{
			NumDecks:              2,
			NumJokers:             2,
			CardsPerHand:          13,
			MinPlayers:            2,
			RequiredPureSequences: 1,
		},
		Store: &StoreSettings{
			Backend:     "memory",
			NATSURL:     "nats://localhost:4222",
			SessionTTL:  "24h",
			IndexTTL:    "24h",
			QueueRefTTL: "1h",
		},
	}
}

// LoadConfig loads server configuration from an HCL file; a missing
// file yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()

	// Apply defaults for missing blocks and values
	if config.Server == nil {
		config.Server = defaults.Server
	}
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}

	if config.Game == nil {
		config.Game = defaults.Game
	}
	if config.Game.NumDecks == 0 {
		config.Game.NumDecks = defaults.Game.NumDecks
	}
	if config.Game.CardsPerHand == 0 {
		config.Game.CardsPerHand = defaults.Game.CardsPerHand
	}
	if config.Game.MinPlayers == 0 {
		config.Game.MinPlayers = defaults.Game.MinPlayers
	}
	if config.Game.RequiredPureSequences == 0 {
		config.Game.RequiredPureSequences = defaults.Game.RequiredPureSequences
	}

	if config.Store == nil {
		config.Store = defaults.Store
	}
	if config.Store.Backend == "" {
		config.Store.Backend = defaults.Store.Backend
	}
	if config.Store.NATSURL == "" {
		config.Store.NATSURL = defaults.Store.NATSURL
	}
	if config.Store.SessionTTL == "" {
		config.Store.SessionTTL = defaults.Store.SessionTTL
	}
	if config.Store.IndexTTL == "" {
		config.Store.IndexTTL = defaults.Store.IndexTTL
	}
	if config.Store.QueueRefTTL == "" {
		config.Store.QueueRefTTL = defaults.Store.QueueRefTTL
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Game.NumDecks < 1 {
		return fmt.Errorf("num_decks must be at least 1")
	}
	if c.Game.NumJokers < 0 {
		return fmt.Errorf("num_jokers must not be negative")
	}
	if c.Game.CardsPerHand < 1 {
		return fmt.Errorf("cards_per_hand must be at least 1")
	}
	if c.Game.MinPlayers < matchmaking.MinGameSize {
		return fmt.Errorf("min_players must be at least %d", matchmaking.MinGameSize)
	}
	if c.Game.WildRank < 0 || c.Game.WildRank > int(deck.King) {
		return fmt.Errorf("wild_rank must be between 0 (disabled) and %d", int(deck.King))
	}

	// The largest supported game must still be dealable
	need := c.Game.CardsPerHand*matchmaking.MaxGameSize + 1
	have := c.Game.NumDecks*52 + c.Game.NumJokers
	if have < need {
		return fmt.Errorf("deck of %d cards cannot deal %d-card hands to %d players",
			have, c.Game.CardsPerHand, matchmaking.MaxGameSize)
	}

	switch c.Store.Backend {
	case "memory", "nats":
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}

	for _, ttl := range []string{c.Store.SessionTTL, c.Store.IndexTTL, c.Store.QueueRefTTL} {
		if _, err := time.ParseDuration(ttl); err != nil {
			return fmt.Errorf("invalid TTL %q: %w", ttl, err)
		}
	}

	return nil
}

// Address returns the full listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GameConfig converts the settings into the engine's config
func (c *Config) GameConfig() game.Config {
	return game.Config{
		NumDecks:        c.Game.NumDecks,
		NumJokers:       c.Game.NumJokers,
		CardsPerHand:    c.Game.CardsPerHand,
		MinPlayers:      c.Game.MinPlayers,
		RecycleDiscards: !c.Game.NoRecycleDiscards,
		Meld: meld.Rules{
			WildRank:              deck.Rank(c.Game.WildRank),
			AllowWrapAround:       c.Game.AllowWrapAround,
			RequiredPureSequences: c.Game.RequiredPureSequences,
		},
	}
}

// TTLs converts the store settings into expiry windows. Call Validate
// first; unparseable values fall back to the defaults.
func (c *Config) TTLs() store.TTLs {
	ttls := store.DefaultTTLs()
	if d, err := time.ParseDuration(c.Store.SessionTTL); err == nil {
		ttls.Session = d
	}
	if d, err := time.ParseDuration(c.Store.IndexTTL); err == nil {
		ttls.Index = d
	}
	if d, err := time.ParseDuration(c.Store.QueueRefTTL); err == nil {
		ttls.QueueRef = d
	}
	return ttls
}
