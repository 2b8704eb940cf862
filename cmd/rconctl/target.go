package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/rconctl/internal/config"
	"github.com/danmuck/rconctl/internal/protocol/session"
	"github.com/danmuck/rconctl/internal/rcon"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const passwordEnv = "RCON_PASSWORD"

// targetFlags selects a server either by profile or by explicit address.
type targetFlags struct {
	profilesFile string
	profile      string
	addr         string
	password     string
	timeout      time.Duration
}

func (f *targetFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.profilesFile, "profiles", "rcon.toml", "server profiles file")
	cmd.Flags().StringVarP(&f.profile, "profile", "p", "", "profile name (defaults to the file's default)")
	cmd.Flags().StringVarP(&f.addr, "addr", "a", "", "server host:port, bypasses profiles")
	cmd.Flags().StringVar(&f.password, "password", "", "rcon password (falls back to $"+passwordEnv+")")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "per-request timeout override")
}

type target struct {
	host     string
	port     int
	password string
	session  session.Config
}

func (f *targetFlags) resolve() (target, error) {
	var t target
	if addr := strings.TrimSpace(f.addr); addr != "" {
		host, port, err := splitAddr(addr)
		if err != nil {
			return target{}, err
		}
		t = target{host: host, port: port, session: session.DefaultConfig()}
	} else {
		file, err := config.LoadProfiles(f.profilesFile)
		if err != nil {
			return target{}, err
		}
		p, err := file.Lookup(f.profile)
		if err != nil {
			return target{}, err
		}
		t = target{host: p.Host, port: p.Port, password: p.ResolvePassword(), session: p.SessionConfig()}
	}

	if f.password != "" {
		t.password = f.password
	}
	if t.password == "" {
		t.password = os.Getenv(passwordEnv)
	}
	if f.timeout > 0 {
		t.session.RequestTimeout = f.timeout
	}
	return t, nil
}

// connect builds a client and opens it against t.
func (t target) connect(metrics *rcon.Metrics) (*rcon.Client, error) {
	cfg := rcon.DefaultConfig()
	cfg.Session = t.session
	cfg.Metrics = metrics
	cfg.OnFailure = func(f rcon.Failure) {
		log.Debug().Msgf("rconctl failure kind=%s id=%d cmd=%q err=%v", f.Kind, f.RequestID, f.Command, f.Err)
	}
	client := rcon.NewClient(cfg)
	if err := client.Configure(t.host, t.port, t.password); err != nil {
		return nil, fmt.Errorf("connect %s: %w", net.JoinHostPort(t.host, strconv.Itoa(t.port)), err)
	}
	return client, nil
}

func splitAddr(addr string) (string, int, error) {
	host, rawPort, err := net.SplitHostPort(addr)
	if err != nil {
		// bare host
		return addr, session.DefaultPort, nil
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	return host, port, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
