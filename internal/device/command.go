package device

import (
	"context"
	"fmt"
	"strings"
)

// Feature identifies the part of a device a command targets.
//
// Selector names a concrete feature when known (device.set-value); device
// command actions address a feature by category and type instead.
type Feature struct {
	Selector string `json:"selector,omitempty"`
	Category string `json:"category"`
	Type     string `json:"type"`
}

// String returns the selector when set, otherwise category:type.
func (f Feature) String() string {
	if f.Selector != "" {
		return f.Selector
	}
	return f.Category + ":" + f.Type
}

// FeatureTypeBinary is the on/off feature type.
const FeatureTypeBinary = "binary"

// Binary values.
const (
	ValueOn  = 1
	ValueOff = 0
)

// Commander sets device feature values. Implementations must be safe for
// concurrent use; a scene stage calls SetValue from several goroutines.
type Commander interface {
	SetValue(ctx context.Context, device string, feature Feature, value any) error
}

// ParseCommand maps a device command action type such as "light.turn-on"
// to the feature and value it sets. The part before the dot is the feature
// category; turn-on and turn-off drive its binary feature.
func ParseCommand(actionType string) (Feature, any, error) {
	category, verb, ok := strings.Cut(actionType, ".")
	if !ok || category == "" || !commandCategories[category] {
		return Feature{}, nil, fmt.Errorf("%w: %q", ErrUnsupportedCommand, actionType)
	}

	feature := Feature{Category: category, Type: FeatureTypeBinary}
	switch verb {
	case "turn-on":
		return feature, ValueOn, nil
	case "turn-off":
		return feature, ValueOff, nil
	default:
		return Feature{}, nil, fmt.Errorf("%w: %q", ErrUnsupportedCommand, actionType)
	}
}

// commandCategories lists the categories with binary turn-on/turn-off commands.
var commandCategories = map[string]bool{
	"light":  true,
	"switch": true,
}

// Origin describes what caused a command, carried on the context so the
// command document can name the scene run that issued it.
type Origin struct {
	Scene       string
	ExecutionID string
}

type originKey struct{}

// WithOrigin returns a context carrying origin.
func WithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the origin stored on ctx, if any.
func OriginFrom(ctx context.Context) (Origin, bool) {
	origin, ok := ctx.Value(originKey{}).(Origin)
	return origin, ok
}
