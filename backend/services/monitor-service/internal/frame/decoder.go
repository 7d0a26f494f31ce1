package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// eventTimeLayout matches the station firmware, which does not zero-pad
// date or time fields ("2026/1/12 23:14:13").
const eventTimeLayout = "2006/1/2 15:4:5"

var (
	// ErrMalformed marks an envelope that cannot be parsed at all.
	ErrMalformed = errors.New("frame: malformed envelope")
	// ErrMissingStation marks an envelope without a station identifier.
	ErrMissingStation = errors.New("frame: missing station identifier")
)

// Decoded is the result of parsing one inbound frame.
type Decoded struct {
	StationID string
	Timestamp time.Time
	Values    Quantities
	Seen      CodeSet
}

// Decoder turns raw transport payloads into typed frames.
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder returns a decoder.
func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// Decode parses a payload received on topic at arrival time. Encoding errors
// in the payload bytes are tolerated; structural errors reject the frame.
func (d *Decoder) Decode(topic string, payload []byte, arrival time.Time) (*Decoded, error) {
	text := strings.ToValidUTF8(string(payload), "")

	var env Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	stationID := strings.TrimSpace(env.StationID)
	if stationID == "" {
		return nil, ErrMissingStation
	}

	timestamp := arrival
	if raw := strings.TrimSpace(env.EventTime); raw != "" {
		parsed, err := time.ParseInLocation(eventTimeLayout, raw, time.Local)
		if err != nil {
			d.logger.Warn("unparsable event time, using arrival time",
				zap.String("station_id", stationID),
				zap.String("event_time", raw),
				zap.Error(err))
		} else {
			timestamp = parsed
		}
	}

	decoded := &Decoded{StationID: stationID, Timestamp: timestamp, Seen: make(CodeSet)}
	for _, pair := range env.Content {
		code := strings.TrimSpace(pair.Code)
		if code == "" {
			continue
		}
		if decoded.Values.apply(code, float64(pair.Value)) {
			decoded.Seen.Add(code)
		} else {
			d.logger.Debug("ignoring unknown sensor code",
				zap.String("station_id", stationID),
				zap.String("topic", topic),
				zap.String("code", code))
		}
	}

	return decoded, nil
}
