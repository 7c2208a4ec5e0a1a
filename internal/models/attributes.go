package models

import "encoding/json"

// DecodeAttributes unmarshals a task attribute document into a generic map.
// Nil or empty input yields an empty map.
func DecodeAttributes(raw json.RawMessage) (map[string]any, error) {
	attrs := map[string]any{}
	if len(raw) == 0 {
		return attrs, nil
	}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// TransferTarget returns the transferTo stamp from a task attribute document,
// or "" when absent or unreadable.
func TransferTarget(raw json.RawMessage) string {
	attrs, err := DecodeAttributes(raw)
	if err != nil {
		return ""
	}
	target, _ := attrs[TransferToField].(string)
	return target
}

// StampTransferTo merges base with {"transferTo": workerSid} and returns the
// re-encoded document. Every other field of base is carried unchanged.
func StampTransferTo(base json.RawMessage, workerSid string) (json.RawMessage, error) {
	attrs, err := DecodeAttributes(base)
	if err != nil {
		return nil, err
	}
	attrs[TransferToField] = workerSid
	return json.Marshal(attrs)
}

// StripTransferTo removes the transferTo stamp from the document so the same
// stamp cannot be reprocessed on a later update.
func StripTransferTo(raw json.RawMessage) (json.RawMessage, error) {
	attrs, err := DecodeAttributes(raw)
	if err != nil {
		return nil, err
	}
	delete(attrs, TransferToField)
	return json.Marshal(attrs)
}
