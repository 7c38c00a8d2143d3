package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	body, err := encodePayload("analysis", []byte(`{"riskScore":80}`), time.Unix(1700000000, 0))
	require.NoError(t, err)

	event, data, err := decodePayload(string(body))
	require.NoError(t, err)
	assert.Equal(t, "analysis", event)
	assert.JSONEq(t, `{"riskScore":80}`, string(data))
}

func TestDecodePayload_Rejects(t *testing.T) {
	_, _, err := decodePayload("not json")
	assert.Error(t, err)
	_, _, err = decodePayload(`{"data":{}}`)
	assert.Error(t, err)
}
