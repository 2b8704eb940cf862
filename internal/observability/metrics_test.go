package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/rconctl/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("bridge-a", "POST", "/v1/exec", 200, 12*time.Millisecond)
	RecordBridgeCommand("bridge-a", "")
	RecordBridgeCommand("bridge-a", "timeout")

	if got := testutil.ToFloat64(httpRequests.WithLabelValues("bridge-a", "POST", "/v1/exec", "200")); got < 1 {
		t.Fatalf("http request not counted: %v", got)
	}
	if got := testutil.ToFloat64(bridgeCommands.WithLabelValues("bridge-a", "timeout")); got < 1 {
		t.Fatalf("bridge failure not counted: %v", got)
	}
}

func TestInitLoggerKeepsConfiguredOutput(t *testing.T) {
	testlog.Start(t)
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf).Level(zerolog.WarnLevel)
	logger := InitLogger("rconctl-test")

	logger.Info().Msg("dropped")
	log.Warn().Msg("hello")
	out := buf.String()
	if !strings.Contains(out, `"app":"rconctl-test"`) || !strings.Contains(out, "hello") {
		t.Fatalf("expected tagged line on the configured writer, got %q", out)
	}
	if strings.Contains(out, "dropped") {
		t.Fatalf("configured level was not kept: %q", out)
	}
}
