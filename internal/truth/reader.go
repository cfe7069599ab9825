package truth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/voxlabel/internal/fsutil"
)

// MaxEventFileSize caps event files read by LoadEvents.
const MaxEventFileSize = 256 * 1024 * 1024

// ReadEvents decodes a JSON array of events and validates each one.
func ReadEvents(r io.Reader) ([]RawEvent, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var events []RawEvent
	if err := dec.Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to parse events JSON: %w", err)
	}
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = fmt.Sprintf("%d", i)
		}
		if err := events[i].Validate(); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// LoadEvents reads an events file. The path must have a .json extension.
func LoadEvents(fs fsutil.FileSystem, path string) ([]RawEvent, error) {
	data, err := fsutil.ReadBounded(fs, path, ".json", "events", MaxEventFileSize)
	if err != nil {
		return nil, err
	}
	return ReadEvents(bytes.NewReader(data))
}

// WriteEvents encodes events as indented JSON.
func WriteEvents(w io.Writer, events []RawEvent) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}
