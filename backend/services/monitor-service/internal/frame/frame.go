package frame

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Envelope is the wire record a station publishes. Field names match the
// deployed firmware and must not change.
type Envelope struct {
	StationID string       `json:"did"`
	EventTime string       `json:"Utime"`
	Content   []SensorPair `json:"content"`
}

// SensorPair carries one sensor code and its value.
type SensorPair struct {
	Code  string  `json:"Addr"`
	Value Numeric `json:"Addrv"`
}

// Numeric accepts both JSON numbers and numeric strings; stations in the
// field emit either depending on firmware revision.
type Numeric float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Numeric) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*n = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*n = Numeric(parsed)
		return nil
	}

	var parsed float64
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*n = Numeric(parsed)
	return nil
}

// CodeSet records which known sensor codes a frame actually carried. Zone
// thresholds are only evaluated for codes that were present, so a station
// omitting a sensor does not alarm on the zero default.
type CodeSet map[string]struct{}

// Add marks a code as seen.
func (s CodeSet) Add(code string) {
	s[code] = struct{}{}
}

// Has reports whether a code was seen.
func (s CodeSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Quantities is the fixed, strongly typed set of physical quantities a frame
// can carry. Codes absent from the frame stay zero; that conflates "absent"
// with "reads zero" but is what the deployed stations and dashboard expect.
type Quantities struct {
	DifferentialPressure   float64 // T10 (IWC)
	StaticPressure         float64 // T11 (PSI)
	Temperature            float64 // T12 (F)
	TotalVolumeFlow        float64 // T13 (MCF/day)
	Volume                 float64 // T14 (MCF)
	Battery                float64 // T15 (V)
	MaxStaticPressure      float64 // T16 (PSI)
	MinStaticPressure      float64 // T17 (PSI)
	LastHourFlowTime       float64 // T18 (s)
	LastHourDiffPressure   float64 // T19 (IWC)
	LastHourStaticPressure float64 // T110 (PSI)
	LastHourTemperature    float64 // T111 (F)
	LastHourVolume         float64 // T112 (MCF)
	LastHourEnergy         float64 // T113
	SpecificGravity        float64 // T114
}

// apply maps one sensor code onto its quantity. Returns false for codes the
// platform does not know. Applying codes in wire order gives last-write-wins
// for a code duplicated within one frame.
func (q *Quantities) apply(code string, value float64) bool {
	switch code {
	case "T10":
		q.DifferentialPressure = value
	case "T11":
		q.StaticPressure = value
	case "T12":
		q.Temperature = value
	case "T13":
		q.TotalVolumeFlow = value
	case "T14":
		q.Volume = value
	case "T15":
		q.Battery = value
	case "T16":
		q.MaxStaticPressure = value
	case "T17":
		q.MinStaticPressure = value
	case "T18":
		q.LastHourFlowTime = value
	case "T19":
		q.LastHourDiffPressure = value
	case "T110":
		q.LastHourStaticPressure = value
	case "T111":
		q.LastHourTemperature = value
	case "T112":
		q.LastHourVolume = value
	case "T113":
		q.LastHourEnergy = value
	case "T114":
		q.SpecificGravity = value
	default:
		return false
	}
	return true
}
