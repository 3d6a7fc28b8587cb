package chatapi

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"contact-chat-lab/internal/model"
)

// ISOLayout matches what browsers emit from Date.toISOString.
const ISOLayout = "2006-01-02T15:04:05.000Z"

var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ToISO converts a datetime-local style value, interpreted in loc, to UTC ISO-8601.
// RFC 3339 input keeps its own offset.
func ToISO(value string, loc *time.Location) (string, error) {
	value = strings.TrimSpace(value)
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format(ISOLayout), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC().Format(ISOLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time value %q", value)
}

// MessageQuery is the filter set for a message listing. Empty fields are omitted.
type MessageQuery struct {
	LocationID string
	ContactID  string
	Limit      string
	Offset     string
	Direction  model.Direction
	UnreadBy   model.Direction
	StartTime  string
	EndTime    string
}

// Values builds the query string, converting start and end times to ISO-8601.
func (q MessageQuery) Values(loc *time.Location) (url.Values, error) {
	params := url.Values{}
	params.Set("locationID", q.LocationID)
	params.Set("contactID", q.ContactID)
	if q.Limit != "" {
		params.Set("limit", q.Limit)
	}
	if q.Offset != "" {
		params.Set("offset", q.Offset)
	}
	if q.Direction != model.DirectionAny {
		params.Set("direction", string(q.Direction))
	}
	if q.UnreadBy != model.DirectionAny {
		params.Set("unreadBy", string(q.UnreadBy))
	}
	if q.StartTime != "" {
		iso, err := ToISO(q.StartTime, loc)
		if err != nil {
			return nil, fmt.Errorf("startTime: %w", err)
		}
		params.Set("startTime", iso)
	}
	if q.EndTime != "" {
		iso, err := ToISO(q.EndTime, loc)
		if err != nil {
			return nil, fmt.Errorf("endTime: %w", err)
		}
		params.Set("endTime", iso)
	}
	return params, nil
}

func conversationValues(locationID, contactID string) url.Values {
	params := url.Values{}
	params.Set("locationID", locationID)
	params.Set("contactID", contactID)
	return params
}
