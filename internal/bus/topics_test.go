package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTopicsDefaultsRootWhenEmpty(t *testing.T) {
	topics := NewTopics("")
	assert.Equal(t, "NLDF_TEST", topics.Root)
}

func TestNewTopicsKeepsExplicitRoot(t *testing.T) {
	topics := NewTopics("myroot")
	assert.Equal(t, "myroot", topics.Root)
}

func TestTopicFormattersNamespaceUnderRoot(t *testing.T) {
	topics := NewTopics("R")

	assert.Equal(t, "R/line1/Station/StationA/status", topics.DeviceStatus("line1", "Station", "StationA"))
	assert.Equal(t, "R/line1/alerts", topics.Alerts("line1"))
	assert.Equal(t, "R/orders/status", topics.OrdersStatus())
	assert.Equal(t, "R/kpi/status", topics.KPIStatus())
	assert.Equal(t, "R/result/status", topics.ResultStatus())
	assert.Equal(t, "R/command/line1", topics.CommandIn("line1"))
	assert.Equal(t, "R/response/line1", topics.ResponseOut("line1"))
}
