package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Analysis is the structured result produced by the summarization model.
// The JSON keys match what the prompts ask the model to emit.
type Analysis struct {
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	KeyPoints        []string `json:"keyPoints"`
	Category         string   `json:"category"`
	Sentiment        string   `json:"sentiment"`
	Difficulty       string   `json:"difficulty"`
	DurationEstimate string   `json:"duration_estimate"`
	Tags             []string `json:"tags"`
}

// UnmarshalJSON accepts a number or boolean wherever a free-text field is
// expected and keeps its literal text, so "duration_estimate": 10 reads as "10".
func (a *Analysis) UnmarshalJSON(data []byte) error {
	var wire struct {
		Title            looseString `json:"title"`
		Summary          string      `json:"summary"`
		KeyPoints        []string    `json:"keyPoints"`
		Category         looseString `json:"category"`
		Sentiment        looseString `json:"sentiment"`
		Difficulty       looseString `json:"difficulty"`
		DurationEstimate looseString `json:"duration_estimate"`
		Tags             []string    `json:"tags"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = Analysis{
		Title:            string(wire.Title),
		Summary:          wire.Summary,
		KeyPoints:        wire.KeyPoints,
		Category:         string(wire.Category),
		Sentiment:        string(wire.Sentiment),
		Difficulty:       string(wire.Difficulty),
		DurationEstimate: string(wire.DurationEstimate),
		Tags:             wire.Tags,
	}
	return nil
}

// looseString decodes a JSON string, number or boolean as text.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*s = ""
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	case data[0] == 't' || data[0] == 'f' || data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*s = looseString(data)
	default:
		return fmt.Errorf("expected text, got %s", data)
	}
	return nil
}
