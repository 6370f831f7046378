package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopPublisherDiscardsPublish(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NotPanics(t, func() { p.Publish("topic", Alert{Kind: "fault"}) })
}

func TestRecordingPublisherCapturesTopicAndPayload(t *testing.T) {
	rec := &RecordingPublisher{}
	rec.Publish("R/line1/alerts", Alert{Kind: "fault", Message: "boom"})

	require.Len(t, rec.Records, 1)
	assert.Equal(t, "R/line1/alerts", rec.Records[0].Topic)
	assert.Contains(t, string(rec.Records[0].Payload), `"kind":"fault"`)
}

func TestRecordingPublisherAppendsInOrder(t *testing.T) {
	rec := &RecordingPublisher{}
	rec.Publish("t1", 1)
	rec.Publish("t2", 2)

	require.Len(t, rec.Records, 2)
	assert.Equal(t, "t1", rec.Records[0].Topic)
	assert.Equal(t, "t2", rec.Records[1].Topic)
}

func TestRecordingPublisherFallsBackToNullOnUnmarshalableValue(t *testing.T) {
	rec := &RecordingPublisher{}
	rec.Publish("t", func() {}) // funcs can't be marshaled to JSON
	require.Len(t, rec.Records, 1)
	assert.Equal(t, "null", string(rec.Records[0].Payload))
}
