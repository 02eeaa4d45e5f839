package state

import "errors"

var (
	// ErrInvalidTopic is returned when a state message arrives on a topic
	// that is not graylogic/state/{protocol}/{device}.
	ErrInvalidTopic = errors.New("state: invalid topic")

	// ErrInvalidPayload is returned when a state message body is not a
	// JSON device state document.
	ErrInvalidPayload = errors.New("state: invalid payload")
)
