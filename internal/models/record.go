package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Soft error strings reported by the telemetry API in the "error" field
const (
	ErrorPlantNotFound = "plant not found"
	ErrorSensorFault   = "plant sensor fault"
	ErrorOnLoan        = "plant on loan to another museum"
)

// RawRecord is one API response for a single candidate plant ID
type RawRecord struct {
	PlantID        *int            `json:"plant_id"`
	Name           *string         `json:"name"`
	ScientificName ScientificName  `json:"scientific_name"`
	SoilMoisture   *float64        `json:"soil_moisture"`
	Temperature    *float64        `json:"temperature"`
	RecordingTaken *string         `json:"recording_taken"`
	LastWatered    *string         `json:"last_watered"`
	Botanist       *Botanist       `json:"botanist"`
	OriginLocation *OriginLocation `json:"origin_location"`
	Images         *Images         `json:"images"`
	Error          string          `json:"error,omitempty"`
}

// UnmarshalJSON accepts plant_id, soil_moisture and temperature as numbers
// or quoted numbers. Values that are neither decode as nil so one bad field
// does not discard the rest of the record.
func (r *RawRecord) UnmarshalJSON(b []byte) error {
	type plain RawRecord
	aux := struct {
		*plain
		PlantID      json.RawMessage `json:"plant_id"`
		SoilMoisture json.RawMessage `json:"soil_moisture"`
		Temperature  json.RawMessage `json:"temperature"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	r.PlantID = looseInt(aux.PlantID)
	r.SoilMoisture = looseFloat(aux.SoilMoisture)
	r.Temperature = looseFloat(aux.Temperature)
	return nil
}

func looseFloat(raw json.RawMessage) *float64 {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return nil
		}
		s = strings.TrimSpace(unquoted)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func looseInt(raw json.RawMessage) *int {
	f := looseFloat(raw)
	if f == nil || *f != math.Trunc(*f) || math.Abs(*f) > math.MaxInt32 {
		return nil
	}
	n := int(*f)
	return &n
}

// Botanist is the nested botanist object of a RawRecord
type Botanist struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// OriginLocation is the nested origin object. Coordinates arrive as strings.
type OriginLocation struct {
	City      *string     `json:"city"`
	Country   *string     `json:"country"`
	Latitude  *FlexString `json:"latitude"`
	Longitude *FlexString `json:"longitude"`
}

// Images covers both image payload shapes served by the API:
// {license_url, original_url, thumbnail} and {license, license_name, medium_url}.
type Images struct {
	LicenseURL  *string `json:"license_url"`
	OriginalURL *string `json:"original_url"`
	Thumbnail   *string `json:"thumbnail"`
	LicenseName *string `json:"license_name"`
	MediumURL   *string `json:"medium_url"`
}

// ScientificName accepts either a JSON list of names or a single string
type ScientificName []string

func (s *ScientificName) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = nil
		return nil
	}
	if b[0] == '[' {
		var names []*string
		if err := json.Unmarshal(b, &names); err != nil {
			return fmt.Errorf("failed to decode scientific_name list: %w", err)
		}
		out := make([]string, 0, len(names))
		for _, n := range names {
			if n != nil {
				out = append(out, *n)
			}
		}
		*s = out
		return nil
	}
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("failed to decode scientific_name: %w", err)
	}
	*s = ScientificName{name}
	return nil
}

// First returns the first listed name, or nil
func (s ScientificName) First() *string {
	if len(s) == 0 {
		return nil
	}
	name := s[0]
	return &name
}

// FlexString decodes a JSON string or number into its textual form
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(b))
	}
	*f = FlexString(n.String())
	return nil
}

// Ptr returns the value as a *string, nil-safe
func (f *FlexString) Ptr() *string {
	if f == nil {
		return nil
	}
	s := string(*f)
	return &s
}

// Classify tags the record by the API's soft error field.
// Anything other than "plant not found" counts as found.
func (r *RawRecord) Classify() (Outcome, string) {
	switch r.Error {
	case "":
		return OutcomeFound, ""
	case ErrorPlantNotFound:
		return OutcomeNotFound, ""
	default:
		return OutcomeSoftAnomaly, r.Error
	}
}

// ID returns the plant ID as a log-friendly string
func (r *RawRecord) ID() string {
	if r.PlantID == nil {
		return "unknown"
	}
	return strconv.Itoa(*r.PlantID)
}
