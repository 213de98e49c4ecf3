package storage

import (
	"errors"
	"fmt"
	"strings"

	"skill_persistence/pkg"
)

// PartitionKeyFn derives the record key for a request. It must be pure and
// return the same non-empty key for every request of the same logical owner.
type PartitionKeyFn func(envelope *pkg.RequestEnvelope) (string, error)

var (
	// ErrMissingIdentity is returned when the envelope lacks the identity a generator needs
	ErrMissingIdentity = errors.New("request envelope is missing identity")
	// ErrUnknownKeyGenerator is returned by KeyGenerator for unsupported names
	ErrUnknownKeyGenerator = errors.New("unknown partition key generator")
)

// ApplicationID keys records by skill application id
func ApplicationID(envelope *pkg.RequestEnvelope) (string, error) {
	if envelope == nil || envelope.Context.System.Application.ApplicationID == "" {
		return "", fmt.Errorf("%w: context.System.application.applicationId", ErrMissingIdentity)
	}
	return envelope.Context.System.Application.ApplicationID, nil
}

// UserID keys records by user id
func UserID(envelope *pkg.RequestEnvelope) (string, error) {
	if envelope == nil || envelope.Context.System.User.UserID == "" {
		return "", fmt.Errorf("%w: context.System.user.userId", ErrMissingIdentity)
	}
	return envelope.Context.System.User.UserID, nil
}

// DeviceID keys records by device id
func DeviceID(envelope *pkg.RequestEnvelope) (string, error) {
	if envelope == nil || envelope.Context.System.Device == nil || envelope.Context.System.Device.DeviceID == "" {
		return "", fmt.Errorf("%w: context.System.device.deviceId", ErrMissingIdentity)
	}
	return envelope.Context.System.Device.DeviceID, nil
}

// KeyGenerator resolves a configured generator name
func KeyGenerator(name string) (PartitionKeyFn, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "application", "applicationid":
		return ApplicationID, nil
	case "user", "userid":
		return UserID, nil
	case "device", "deviceid":
		return DeviceID, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyGenerator, name)
	}
}
