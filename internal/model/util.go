package model

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// PayloadEncoding selects how an observation document is put on the wire.
type PayloadEncoding string

const (
	// EncodingDouble re-encodes the JSON document as a JSON string.
	// Existing consumers of the stream expect this form.
	EncodingDouble PayloadEncoding = "double"
	// EncodingSingle writes the JSON document as-is.
	EncodingSingle PayloadEncoding = "single"
)

const (
	timestampLayout      = "2006-01-02T15:04:05"
	timestampLayoutMicro = "2006-01-02T15:04:05.000000"
)

var jsonFast = jsoniter.ConfigFastest

// ParsePayloadEncoding validates a configured encoding name. Empty means double.
func ParsePayloadEncoding(s string) (PayloadEncoding, error) {
	switch PayloadEncoding(s) {
	case "", EncodingDouble:
		return EncodingDouble, nil
	case EncodingSingle:
		return EncodingSingle, nil
	default:
		return "", fmt.Errorf("unknown payload encoding %q", s)
	}
}

// FormatTimestamp renders t in UTC without a zone suffix. The fractional part
// is microseconds and is omitted entirely when it is zero.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format(timestampLayout)
	}
	return t.Format(timestampLayoutMicro)
}

// EncodeObservation serializes obs with ", " and ": " separators and a fixed
// key order: datetime, network, meta_id, data, node_id, sensor.
func EncodeObservation(obs Observation, enc PayloadEncoding) ([]byte, error) {
	doc, err := encodeDocument(obs)
	if err != nil {
		return nil, err
	}
	if enc != EncodingDouble {
		return doc, nil
	}

	stream := jsonFast.BorrowStream(nil)
	defer jsonFast.ReturnStream(stream)
	stream.WriteString(string(doc))
	if stream.Error != nil {
		return nil, fmt.Errorf("encode payload string: %w", stream.Error)
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func encodeDocument(obs Observation) ([]byte, error) {
	stream := jsonFast.BorrowStream(nil)
	defer jsonFast.ReturnStream(stream)

	stream.WriteRaw("{")
	writeKey(stream, "datetime")
	stream.WriteString(FormatTimestamp(obs.Timestamp))
	stream.WriteRaw(", ")
	writeKey(stream, "network")
	stream.WriteString(obs.Network)
	stream.WriteRaw(", ")
	writeKey(stream, "meta_id")
	stream.WriteInt(obs.MetaID)
	stream.WriteRaw(", ")
	writeKey(stream, "data")
	stream.WriteRaw("{")
	for i, m := range obs.Data {
		if i > 0 {
			stream.WriteRaw(", ")
		}
		writeKey(stream, m.Property)
		stream.WriteInt(m.Value)
	}
	stream.WriteRaw("}, ")
	writeKey(stream, "node_id")
	stream.WriteInt(obs.NodeID)
	stream.WriteRaw(", ")
	writeKey(stream, "sensor")
	stream.WriteString(obs.Sensor)
	stream.WriteRaw("}")

	if stream.Error != nil {
		return nil, fmt.Errorf("encode observation: %w", stream.Error)
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func writeKey(stream *jsoniter.Stream, key string) {
	stream.WriteString(key)
	stream.WriteRaw(": ")
}

// DecodePayload reverses EncodeObservation into a generic document.
func DecodePayload(data []byte, enc PayloadEncoding) (map[string]any, error) {
	doc := data
	if enc == EncodingDouble {
		var inner string
		if err := jsonFast.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("decode payload string: %w", err)
		}
		doc = []byte(inner)
	}
	var out map[string]any
	if err := jsonFast.Unmarshal(doc, &out); err != nil {
		return nil, fmt.Errorf("decode observation: %w", err)
	}
	return out, nil
}
