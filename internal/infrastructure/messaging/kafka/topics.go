// Package kafka carries scan jobs from the API to the worker fleet.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/qsarlab/adscan/pkg/errors"
)

// ScanJobMessage is the wire format of one queued scan job. The payload is
// deliberately minimal: workers load the run and its dataset from the
// database, so a stale message never carries stale inputs.
type ScanJobMessage struct {
	RunID       uuid.UUID `json:"run_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Encode serialises the message for the wire.
func (m ScanJobMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode scan job message")
	}
	return data, nil
}

// DecodeScanJobMessage parses a wire payload.
func DecodeScanJobMessage(data []byte) (ScanJobMessage, error) {
	var m ScanJobMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ScanJobMessage{}, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode scan job message")
	}
	if m.RunID == uuid.Nil {
		return ScanJobMessage{}, errors.New(errors.ErrCodeSerialization, "scan job message has no run id")
	}
	return m, nil
}
