package summarizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"video-digest/pkg/domain"
)

// ErrMalformedModelOutput matches every *MalformedOutputError.
var ErrMalformedModelOutput = errors.New("malformed model output")

// MalformedOutputError carries the raw model text that could not be decoded.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	if e.Err == nil {
		return ErrMalformedModelOutput.Error()
	}
	return fmt.Sprintf("%s: %v", ErrMalformedModelOutput, e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrMalformedModelOutput.
func (e *MalformedOutputError) Is(target error) bool {
	return target == ErrMalformedModelOutput
}

// DecodeAnalysis parses a model response into an Analysis.
// The raw text is decoded directly first; failing that, the first balanced
// {...} object embedded in it is decoded. A result without a summary is rejected.
func DecodeAnalysis(raw string) (*domain.Analysis, error) {
	a, err := decodeStrict(strings.TrimSpace(raw))
	if err == nil {
		return a, nil
	}

	obj, ok := firstObject(raw)
	if !ok {
		return nil, &MalformedOutputError{Raw: raw, Err: err}
	}

	a, err = decodeStrict(obj)
	if err != nil {
		return nil, &MalformedOutputError{Raw: raw, Err: err}
	}
	return a, nil
}

func decodeStrict(s string) (*domain.Analysis, error) {
	var a domain.Analysis
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&a); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	if strings.TrimSpace(a.Summary) == "" {
		return nil, errors.New("summary is missing")
	}
	return &a, nil
}

// firstObject returns the first top-level brace-balanced substring of s.
// Braces inside JSON strings are ignored.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
