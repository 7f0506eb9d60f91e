package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadRoundTrip(t *testing.T) {
	raw, err := EncodePayload(&FetchDPEPayload{
		Department:    "75",
		SinceDate:     "2024-01-01",
		EnergyClasses: []string{"F", "G"},
		PageSize:      1000,
	})
	require.NoError(t, err)

	got, err := DecodePayload(TypeFetchDPERecords, raw)
	require.NoError(t, err)

	p, ok := got.(*FetchDPEPayload)
	require.True(t, ok)
	assert.Equal(t, "75", p.Department)
	assert.Equal(t, []string{"F", "G"}, p.EnergyClasses)
}

func TestDecodePayloadUnknownTypeIsAnError(t *testing.T) {
	_, err := DecodePayload(JobType("mystery-job"), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery-job")
}

func TestDecodePayloadMalformedJSON(t *testing.T) {
	_, err := DecodePayload(TypeScrapeNotaryListings, []byte(`{broken`))
	require.Error(t, err)
}

func TestJobNextDelayGrowsLinearly(t *testing.T) {
	j := &Job{Backoff: Backoff{BaseDelay: 2 * time.Second}}

	j.Attempt = 1
	assert.Equal(t, 2*time.Second, j.NextDelay())
	j.Attempt = 2
	assert.Equal(t, 4*time.Second, j.NextDelay())
	j.Attempt = 3
	assert.Equal(t, 6*time.Second, j.NextDelay())
}

func TestJobExhausted(t *testing.T) {
	j := &Job{MaxAttempts: 3}
	j.Attempt = 2
	assert.False(t, j.Exhausted())
	j.Attempt = 3
	assert.True(t, j.Exhausted())

	// Zero MaxAttempts falls back to the default budget.
	j = &Job{Attempt: 3}
	assert.True(t, j.Exhausted())
}
