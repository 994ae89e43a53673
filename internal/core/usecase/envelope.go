package usecase

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pancudaniel7/blocksync-service/internal/core/entity"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
)

// TimestampLayout renders envelope timestamps in UTC with microseconds and a
// literal Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp formats t for an envelope.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Fingerprint is the hex SHA-256 of timestamp followed by the canonical block.
func Fingerprint(timestamp string, canonical []byte) string {
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// NewEnvelope wraps block for sending at instant now. The resulting id depends
// on now, so re-sending the same block yields a different id.
func NewEnvelope(now time.Time, block entity.Block) (*entity.Envelope, error) {
	if _, ok := block.Height(); !ok {
		return nil, apperr.NewInvalidArgErr("block has no numeric height", nil)
	}
	canonical, err := CanonicalJSON(block)
	if err != nil {
		return nil, apperr.NewInvalidArgErr("failed to serialize block", err)
	}
	ts := FormatTimestamp(now)
	return &entity.Envelope{
		Timestamp: ts,
		Data:      block,
		ID:        Fingerprint(ts, canonical),
	}, nil
}

// MarshalEnvelopeJSON encodes the envelope as the broker message value.
func MarshalEnvelopeJSON(env *entity.Envelope) ([]byte, error) {
	if env == nil {
		return nil, apperr.NewInvalidArgErr("envelope is required", nil)
	}
	return encodeJSON(env)
}

// UnmarshalBlockJSON decodes a block document, keeping numbers as json.Number.
func UnmarshalBlockJSON(data []byte) (entity.Block, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var block entity.Block
	if err := dec.Decode(&block); err != nil {
		return nil, err
	}
	if block == nil {
		return nil, apperr.NewInvalidArgErr("block document is null", nil)
	}
	return block, nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
