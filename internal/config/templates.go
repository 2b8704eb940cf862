package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "profiles", "":
		return profilesTemplate, nil
	case "bridge":
		return bridgeTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const profilesTemplate = `default = "local"

[[profiles]]
name = "local"
host = "127.0.0.1"
port = 25575
password_env = "RCON_PASSWORD"
timeout = "3s"

[[profiles]]
name = "survival"
host = "mc.example.net"
port = 25575
password_env = "SURVIVAL_RCON_PASSWORD"
concurrent_requests = false
`

const bridgeTemplate = `listen = "127.0.0.1:9300"
profile = "local"
profiles_file = "rcon.toml"
cors_origins = ["http://localhost:3000"]
strip_colors = true
# token_env = "RCONCTL_BRIDGE_TOKEN"
`
