package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type bridgeConfig struct {
	ID           string
	Listen       string
	ProfilesFile string
	Profile      string
	Addr         string
	PasswordEnv  string
	TokenEnv     string
	Timeout      time.Duration
	CorsOrigins  []string
	StripColors  bool
}

func defaultBridgeConfig() bridgeConfig {
	return bridgeConfig{
		ID:           "rconctl.bridge",
		Listen:       "127.0.0.1:9300",
		ProfilesFile: "rcon.toml",
		PasswordEnv:  passwordEnv,
		CorsOrigins:  []string{"http://localhost:3000"},
		StripColors:  true,
	}
}

type fileConfig struct {
	ID           string   `toml:"id"`
	Listen       string   `toml:"listen"`
	ProfilesFile string   `toml:"profiles_file"`
	Profile      string   `toml:"profile"`
	Addr         string   `toml:"addr"`
	PasswordEnv  string   `toml:"password_env"`
	TokenEnv     string   `toml:"token_env"`
	Timeout      string   `toml:"timeout"`
	CorsOrigins  []string `toml:"cors_origins"`
	StripColors  bool     `toml:"strip_colors"`
}

func loadBridgeConfig(path string) (bridgeConfig, error) {
	cfg := defaultBridgeConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return bridgeConfig{}, fmt.Errorf("load bridge config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}

	if meta.IsDefined("profiles_file") {
		cfg.ProfilesFile = strings.TrimSpace(raw.ProfilesFile)
	}

	if meta.IsDefined("profile") {
		cfg.Profile = strings.TrimSpace(raw.Profile)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}

	if meta.IsDefined("password_env") {
		cfg.PasswordEnv = strings.TrimSpace(raw.PasswordEnv)
	}

	if meta.IsDefined("token_env") {
		cfg.TokenEnv = strings.TrimSpace(raw.TokenEnv)
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return bridgeConfig{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	if meta.IsDefined("strip_colors") {
		cfg.StripColors = raw.StripColors
	}

	if cfg.Listen == "" {
		return bridgeConfig{}, fmt.Errorf("bridge config %s: listen is required", path)
	}
	return cfg, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
