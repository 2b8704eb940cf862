package config

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/rconctl/internal/protocol/session"
	"github.com/pelletier/go-toml/v2"
)

// ProfileFile is the on-disk list of RCON targets.
type ProfileFile struct {
	Default  string          `toml:"default"`
	Profiles []ServerProfile `toml:"profiles"`
}

type ServerProfile struct {
	Name               string `toml:"name"`
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	Password           string `toml:"password"`
	PasswordEnv        string `toml:"password_env"`
	Timeout            string `toml:"timeout"`
	ConcurrentRequests bool   `toml:"concurrent_requests"`
	TLS                bool   `toml:"tls"`
	TLSCAFile          string `toml:"tls_ca_file"`
	TLSServerName      string `toml:"tls_server_name"`
}

func LoadProfiles(path string) (ProfileFile, error) {
	var file ProfileFile
	if err := loadToml(path, &file); err != nil {
		return ProfileFile{}, err
	}
	for i := range file.Profiles {
		if file.Profiles[i].Port == 0 {
			file.Profiles[i].Port = session.DefaultPort
		}
	}
	if file.Default == "" && len(file.Profiles) > 0 {
		file.Default = file.Profiles[0].Name
	}
	if err := ValidateProfiles(file); err != nil {
		return ProfileFile{}, err
	}
	return file, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateProfiles(file ProfileFile) error {
	seen := make(map[string]struct{}, len(file.Profiles))
	for i, p := range file.Profiles {
		if err := ValidateProfile(p); err != nil {
			return fmt.Errorf("profile[%d] invalid: %w", i, err)
		}
		key := strings.TrimSpace(p.Name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("profile[%d] duplicate name %q", i, key)
		}
		seen[key] = struct{}{}
	}
	if file.Default != "" {
		if _, ok := seen[strings.TrimSpace(file.Default)]; !ok {
			return fmt.Errorf("default profile %q not defined", file.Default)
		}
	}
	return nil
}

func ValidateProfile(p ServerProfile) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("port out of range: %d", p.Port)
	}
	if strings.TrimSpace(p.Timeout) != "" {
		if _, err := time.ParseDuration(strings.TrimSpace(p.Timeout)); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
	}
	return nil
}

// Lookup returns the named profile, or the default one when name is empty.
func (f ProfileFile) Lookup(name string) (ServerProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(f.Default)
	}
	for _, p := range f.Profiles {
		if strings.TrimSpace(p.Name) == name {
			return p, nil
		}
	}
	return ServerProfile{}, fmt.Errorf("profile %q not found", name)
}

func (f ProfileFile) Names() []string {
	out := make([]string, 0, len(f.Profiles))
	for _, p := range f.Profiles {
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}

// Addr is host:port.
func (p ServerProfile) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ResolvePassword prefers the inline password, then the named environment variable.
func (p ServerProfile) ResolvePassword() string {
	if p.Password != "" {
		return p.Password
	}
	if env := strings.TrimSpace(p.PasswordEnv); env != "" {
		return os.Getenv(env)
	}
	return ""
}

// SessionConfig applies the profile's transport settings on top of defaults.
func (p ServerProfile) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	if d, err := time.ParseDuration(strings.TrimSpace(p.Timeout)); err == nil && d > 0 {
		cfg.RequestTimeout = d
	}
	cfg.ConcurrentRequests = p.ConcurrentRequests
	cfg.TLS.Enabled = p.TLS
	cfg.TLS.CAFile = strings.TrimSpace(p.TLSCAFile)
	cfg.TLS.ServerName = strings.TrimSpace(p.TLSServerName)
	return cfg
}
