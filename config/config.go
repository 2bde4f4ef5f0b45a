// Package config loads daemon settings from TRUSTCHAIN_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	"xdao.co/trustchain/attest"
	"xdao.co/trustchain/domain"
)

// Config is the full daemon configuration.
type Config struct {
	HTTPAddr string `env:"TRUSTCHAIN_HTTP_ADDR" envDefault:":8080"`
	DBPath   string `env:"TRUSTCHAIN_DB_PATH" envDefault:"trustchain.db"`

	// With both CAS settings, evidence is written to the local directory and
	// the remote daemon, and read from whichever has it.
	CASDir        string `env:"TRUSTCHAIN_CAS_DIR"`
	CASGRPCTarget string `env:"TRUSTCHAIN_CAS_GRPC_TARGET"`

	ChainID         uint64 `env:"TRUSTCHAIN_CHAIN_ID" envDefault:"1"`
	DomainName      string `env:"TRUSTCHAIN_DOMAIN_NAME" envDefault:"AIScoreOracle"`
	DomainVersion   string `env:"TRUSTCHAIN_DOMAIN_VERSION" envDefault:"1"`
	VerifyingModule string `env:"TRUSTCHAIN_VERIFYING_MODULE" envDefault:"trustchain"`

	AdminAddress   string   `env:"TRUSTCHAIN_ADMIN_ADDRESS"`
	CustodyAddress string   `env:"TRUSTCHAIN_CUSTODY_ADDRESS" envDefault:"custody"`
	PenaltySink    string   `env:"TRUSTCHAIN_PENALTY_SINK"`
	Attestors      []string `env:"TRUSTCHAIN_ATTESTORS" envSeparator:","`

	JWTSecret string `env:"TRUSTCHAIN_JWT_SECRET"`

	// DevMint credits every newly registered stakeholder on the in-memory
	// token ledger. Zero disables it.
	DevMint uint64 `env:"TRUSTCHAIN_DEV_MINT"`

	OTELEndpoint string `env:"TRUSTCHAIN_OTEL_ENDPOINT"`
	OTELEnabled  bool   `env:"TRUSTCHAIN_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings a daemon cannot start without.
func (c Config) Validate() error {
	if _, err := domain.ParseAddress(c.AdminAddress); err != nil {
		return fmt.Errorf("TRUSTCHAIN_ADMIN_ADDRESS: %w", err)
	}
	if _, err := domain.ParseAddress(c.CustodyAddress); err != nil {
		return fmt.Errorf("TRUSTCHAIN_CUSTODY_ADDRESS: %w", err)
	}
	if strings.TrimSpace(c.PenaltySink) != "" {
		if _, err := domain.ParseAddress(c.PenaltySink); err != nil {
			return fmt.Errorf("TRUSTCHAIN_PENALTY_SINK: %w", err)
		}
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("TRUSTCHAIN_JWT_SECRET is required")
	}
	return nil
}

// Domain returns the attestation signing domain.
func (c Config) Domain() attest.Domain {
	return attest.Domain{
		Name:            c.DomainName,
		Version:         c.DomainVersion,
		ChainID:         c.ChainID,
		VerifyingModule: c.VerifyingModule,
	}
}

// Admin returns the parsed admin address. Call after Validate.
func (c Config) Admin() domain.Address {
	return domain.Address(strings.ToLower(strings.TrimSpace(c.AdminAddress)))
}

// Custody returns the parsed custody account address.
func (c Config) Custody() domain.Address {
	return domain.Address(strings.ToLower(strings.TrimSpace(c.CustodyAddress)))
}

// Sink returns the penalty sink, or the zero address when unset.
func (c Config) Sink() domain.Address {
	return domain.Address(strings.ToLower(strings.TrimSpace(c.PenaltySink)))
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
