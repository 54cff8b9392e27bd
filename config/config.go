package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"dealvault/core"
	"dealvault/crypto"
)

// GenesisAlloc prefunds a native balance at first start.
type GenesisAlloc struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

type Config struct {
	RPCAddress  string         `toml:"RPCAddress"`
	DataDir     string         `toml:"DataDir"`
	NetworkName string         `toml:"NetworkName"`
	Owner       string         `toml:"Owner"`
	OwnerKey    string         `toml:"OwnerKeyFile"`
	Arbiters    []string       `toml:"Arbiters"`
	Alloc       []GenesisAlloc `toml:"Alloc"`
}

// Load loads the configuration from the given path, creating a default file
// (and a fresh owner key) when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "dealvault-local"
	}
	if cfg.Arbiters == nil {
		cfg.Arbiters = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every configured address parses.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Owner) == "" {
		return fmt.Errorf("config: Owner address required")
	}
	if _, err := crypto.ParseAccount(cfg.Owner); err != nil {
		return fmt.Errorf("config: invalid Owner address: %w", err)
	}
	for _, addr := range cfg.Arbiters {
		if _, err := crypto.ParseAccount(addr); err != nil {
			return fmt.Errorf("config: invalid arbiter address %q: %w", addr, err)
		}
	}
	for _, alloc := range cfg.Alloc {
		if _, err := crypto.ParseAccount(alloc.Address); err != nil {
			return fmt.Errorf("config: invalid alloc address %q: %w", alloc.Address, err)
		}
		if _, ok := new(big.Int).SetString(strings.TrimSpace(alloc.Balance), 10); !ok {
			return fmt.Errorf("config: invalid alloc balance %q", alloc.Balance)
		}
	}
	return nil
}

// Genesis converts the configured bootstrap data into the node's genesis
// document.
func (cfg *Config) Genesis() (core.Genesis, error) {
	if err := cfg.Validate(); err != nil {
		return core.Genesis{}, err
	}
	owner, err := crypto.ParseAccount(cfg.Owner)
	if err != nil {
		return core.Genesis{}, err
	}
	genesis := core.Genesis{
		Owner: owner,
		Alloc: make(map[[20]byte]*big.Int),
	}
	for _, addr := range cfg.Arbiters {
		parsed, err := crypto.ParseAccount(addr)
		if err != nil {
			return core.Genesis{}, err
		}
		genesis.Arbiters = append(genesis.Arbiters, parsed)
	}
	for _, alloc := range cfg.Alloc {
		parsed, err := crypto.ParseAccount(alloc.Address)
		if err != nil {
			return core.Genesis{}, err
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(alloc.Balance), 10)
		if !ok {
			return core.Genesis{}, fmt.Errorf("config: invalid alloc balance %q", alloc.Balance)
		}
		genesis.Alloc[parsed] = balance
	}
	return genesis, nil
}

// createDefault creates and saves a default configuration file together with
// a fresh owner key.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keyPath := defaultOwnerKeyPath(path)
	if err := writeOwnerKey(keyPath, key); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:  ":8545",
		DataDir:     "./dealvault-data",
		NetworkName: "dealvault-local",
		Owner:       key.PubKey().Address().String(),
		OwnerKey:    keyPath,
		Arbiters:    []string{},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeOwnerKey(path string, key *crypto.PrivateKey) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(hex.EncodeToString(key.Bytes())), 0o600)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultOwnerKeyPath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "owner.key")
}
