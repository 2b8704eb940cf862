package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger tags the already configured global logger with app and installs
// the result as the global logger. Output, level and format are left to
// internal/logging.
func InitLogger(app string) zerolog.Logger {
	return initLogger(log.Logger, app)
}

func initLogger(base zerolog.Logger, app string) zerolog.Logger {
	logger := base.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
