package chatapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-chat-lab/internal/model"
)

func TestToISO_LocalLayouts(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)

	got, err := ToISO("2026-03-01T10:30", loc)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T08:30:00.000Z", got)

	got, err = ToISO("2026-03-01T10:30:15", loc)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T08:30:15.000Z", got)
}

func TestToISO_RFC3339KeepsOffset(t *testing.T) {
	got, err := ToISO("2026-03-01T10:30:00-05:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T15:30:00.000Z", got)
}

func TestToISO_Invalid(t *testing.T) {
	_, err := ToISO("yesterday", time.UTC)
	assert.Error(t, err)
}

func TestMessageQuery_OmitsEmpty(t *testing.T) {
	params, err := MessageQuery{LocationID: "loc", ContactID: "con"}.Values(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "contactID=con&locationID=loc", params.Encode())
}

func TestMessageQuery_AllFilters(t *testing.T) {
	q := MessageQuery{
		LocationID: "loc",
		ContactID:  "con",
		Limit:      "30",
		Offset:     "0",
		Direction:  model.DirectionContact,
		UnreadBy:   model.DirectionLocation,
		StartTime:  "2026-01-01T00:00",
		EndTime:    "2026-01-02T00:00",
	}
	params, err := q.Values(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "30", params.Get("limit"))
	assert.Equal(t, "0", params.Get("offset"))
	assert.Equal(t, "contact", params.Get("direction"))
	assert.Equal(t, "location", params.Get("unreadBy"))
	assert.Equal(t, "2026-01-01T00:00:00.000Z", params.Get("startTime"))
	assert.Equal(t, "2026-01-02T00:00:00.000Z", params.Get("endTime"))
}

func TestMessageQuery_BadTime(t *testing.T) {
	_, err := MessageQuery{LocationID: "l", ContactID: "c", EndTime: "nope"}.Values(time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endTime")
}
