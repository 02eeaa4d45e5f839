package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrSceneNotFound) {
//	    // handle not found case
//	}
var (
	// ErrSceneNotFound is returned when no scene has the given selector.
	ErrSceneNotFound = errors.New("scene: not found")

	// ErrInvalidScene is returned when scene validation fails.
	ErrInvalidScene = errors.New("scene: invalid")

	// ErrInvalidAction is returned when an action spec is malformed.
	ErrInvalidAction = errors.New("scene: invalid action")

	// ErrInvalidCondition is returned when a condition is malformed.
	ErrInvalidCondition = errors.New("scene: invalid condition")

	// ErrEngineClosed is returned by Execute after Close.
	ErrEngineClosed = errors.New("scene: engine closed")

	// ErrPathNotFound is returned when a scope path does not resolve.
	ErrPathNotFound = errors.New("scene: scope path not found")

	// ErrFeatureNotFound is returned when an action names a device feature
	// the state store has never seen.
	ErrFeatureNotFound = errors.New("scene: device feature not found")
)
