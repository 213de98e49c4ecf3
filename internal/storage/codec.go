package storage

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// recordAPI decodes integers into int64 so launch counters survive a round trip
var recordAPI = sonic.Config{
	EscapeHTML: true,
	UseInt64:   true,
}.Froze()

// EncodeRecord serializes attributes for storage
func EncodeRecord(attributes Attributes) ([]byte, error) {
	if attributes == nil {
		attributes = Attributes{}
	}
	data, err := recordAPI.Marshal(attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}
	return data, nil
}

// DecodeRecord parses a stored record; anything that is not a JSON object is malformed
func DecodeRecord(data []byte) (Attributes, error) {
	var attributes Attributes
	if err := recordAPI.Unmarshal(data, &attributes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if attributes == nil {
		// a literal null is stored as an empty record
		attributes = Attributes{}
	}
	return attributes, nil
}
