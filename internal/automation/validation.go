package automation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength      = 100
	maxSelectorLength  = 64
	maxStages          = 50
	maxActionsPerStage = 50
	maxConditions      = 20
	maxDescriptionLen  = 500
	maxDelay           = 1 * time.Hour
	selectorPattern    = `^[a-z0-9]+(?:[-_][a-z0-9]+)*$`
	minPathSegments    = 2
)

var selectorRegex = regexp.MustCompile(selectorPattern)

// ValidateScene checks a scene's structure. Malformed scenes are
// programming errors and are rejected before they reach the registry;
// references to scenes, devices or features that do not exist are not
// checked here and are tolerated at run time.
func ValidateScene(s *Scene) error {
	if s == nil {
		return ErrInvalidScene
	}

	if err := ValidateSelector(s.Selector); err != nil {
		return err
	}

	if len(s.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidScene, maxNameLength)
	}
	if s.Description != nil && len(*s.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidScene, maxDescriptionLen)
	}

	if len(s.Actions) > maxStages {
		return fmt.Errorf("%w: exceeds maximum of %d stages", ErrInvalidScene, maxStages)
	}
	for i, stage := range s.Actions {
		if len(stage) > maxActionsPerStage {
			return fmt.Errorf("%w: stage %d exceeds maximum of %d actions", ErrInvalidScene, i, maxActionsPerStage)
		}
		for j, action := range stage {
			if err := ValidateAction(action); err != nil {
				return fmt.Errorf("stage[%d].action[%d]: %w", i, j, err)
			}
		}
	}

	return nil
}

// ValidateSelector checks a scene selector.
func ValidateSelector(selector string) error {
	if selector == "" {
		return fmt.Errorf("%w: selector cannot be empty", ErrInvalidScene)
	}
	if len(selector) > maxSelectorLength {
		return fmt.Errorf("%w: selector exceeds %d characters", ErrInvalidScene, maxSelectorLength)
	}
	if !selectorRegex.MatchString(selector) {
		return fmt.Errorf("%w: selector %q must be lowercase alphanumeric with hyphens", ErrInvalidScene, selector)
	}
	return nil
}

// ValidateAction checks the fields an action's type requires. Unknown
// types pass; they are skipped with a warning when run.
func ValidateAction(a ActionSpec) error {
	if a.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidAction)
	}

	switch a.Type.Kind() {
	case KindDeviceCommand:
		if len(a.Devices) == 0 {
			return fmt.Errorf("%w: %s requires devices", ErrInvalidAction, a.Type)
		}
		for i, d := range a.Devices {
			if strings.TrimSpace(d) == "" {
				return fmt.Errorf("%w: devices[%d] is empty", ErrInvalidAction, i)
			}
		}

	case KindSetValue:
		if a.DeviceFeature == "" {
			return fmt.Errorf("%w: %s requires device_feature", ErrInvalidAction, a.Type)
		}
		if a.Value == nil {
			return fmt.Errorf("%w: %s requires value", ErrInvalidAction, a.Type)
		}

	case KindReadFeatureValue:
		if a.DeviceFeature == "" {
			return fmt.Errorf("%w: %s requires device_feature", ErrInvalidAction, a.Type)
		}

	case KindConditionGate:
		if len(a.Conditions) == 0 {
			return fmt.Errorf("%w: %s requires conditions", ErrInvalidAction, a.Type)
		}
		if len(a.Conditions) > maxConditions {
			return fmt.Errorf("%w: exceeds maximum of %d conditions", ErrInvalidAction, maxConditions)
		}
		for i, c := range a.Conditions {
			if err := ValidateCondition(c); err != nil {
				return fmt.Errorf("conditions[%d]: %w", i, err)
			}
		}

	case KindStartScene:
		if a.Scene == "" {
			return fmt.Errorf("%w: %s requires scene", ErrInvalidAction, a.Type)
		}

	case KindDelay:
		if _, err := delayDuration(a); err != nil {
			return err
		}

	case KindUnknown:
	}

	return nil
}

// ValidateCondition checks a condition's path and operator.
func ValidateCondition(c Condition) error {
	segments := strings.Split(c.Variable, ".")
	if len(segments) < minPathSegments {
		return fmt.Errorf("%w: variable %q must be a <stage>.<action>[.field] path", ErrInvalidCondition, c.Variable)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("%w: variable %q has an empty segment", ErrInvalidCondition, c.Variable)
		}
	}
	if !validOperators[c.Operator] {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, c.Operator)
	}
	return nil
}

// GenerateSelector derives a selector from a scene name.
func GenerateSelector(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}

	selector := b.String()
	for strings.Contains(selector, "--") {
		selector = strings.ReplaceAll(selector, "--", "-")
	}
	selector = strings.Trim(selector, "-")

	if len(selector) > maxSelectorLength {
		selector = strings.TrimRight(selector[:maxSelectorLength], "-")
	}
	return selector
}

// GenerateID creates a new UUID for a scope or execution.
func GenerateID() string {
	return uuid.New().String()
}
