package store

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// EncodeAll and DecodeAll are safe for concurrent use, so one coder serves
// every store.
var (
	encoder = mustZstd(zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)))
	decoder = mustZstd(zstd.NewReader(nil))
)

// mustZstd panics when a zstd coder cannot be built. The options are
// constant, so this only fires on a broken build.
func mustZstd[T any](coder T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("store: init zstd: %v", err))
	}
	return coder
}

// marshalEvents converts a tick's events to the canonical JSON the checksum is
// computed over.
func marshalEvents(events []ir.Event) ([]byte, error) {
	list := make([]any, len(events))
	for i, ev := range events {
		list[i] = ev.Canonical()
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return nil, fmt.Errorf("marshal events: %w", err)
	}
	return data, nil
}

// compressEvents returns the zstd payload stored next to a tick checksum.
func compressEvents(events []ir.Event) ([]byte, error) {
	data, err := marshalEvents(events)
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// decompressEvents parses a tick payload back into events.
func decompressEvents(payload []byte) ([]ir.Event, error) {
	data, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress events: %w", err)
	}
	var events []ir.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	if events == nil {
		events = []ir.Event{}
	}
	return events, nil
}
