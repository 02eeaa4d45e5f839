package device

import "errors"

var (
	// ErrUnsupportedCommand is returned by ParseCommand for action types
	// that are not device commands.
	ErrUnsupportedCommand = errors.New("device: unsupported command")

	// ErrNotConnected is returned when the command transport is unavailable.
	ErrNotConnected = errors.New("device: command transport not connected")

	// ErrUnknownDevice is returned when no routing information exists for a device.
	ErrUnknownDevice = errors.New("device: unknown device")

	// ErrInvalidCommand is returned when a command is missing its device or feature.
	ErrInvalidCommand = errors.New("device: invalid command")
)
