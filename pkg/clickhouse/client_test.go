package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	cfg := defaultConfig()
	WithHost("ch")(cfg)
	WithDatabase("riskwatch")(cfg)
	WithCredentials("default", "secret")(cfg)

	assert.Equal(t, "clickhouse://default:secret@ch:9000/riskwatch?dial_timeout=5s&read_timeout=10s", buildDSN(*cfg))

	WithAsyncInsert(true, true)(cfg)
	WithMaxExecutionTime(30 * time.Second)(cfg)
	WithHTTP(true)(cfg)
	WithPort(8123)(cfg)
	assert.Equal(t,
		"http://default:secret@ch:8123/riskwatch?async_insert=1&dial_timeout=5s&max_execution_time=30&read_timeout=10s&wait_for_async_insert=1",
		buildDSN(*cfg))
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
