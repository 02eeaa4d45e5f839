package automation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// sceneFile is the on-disk layout of a scene definition file.
type sceneFile struct {
	Scenes []Scene `yaml:"scenes"`
}

// LoadScenesFile reads and validates the scenes in a YAML file.
//
//	scenes:
//	  - selector: evening
//	    name: Evening
//	    actions:
//	      - - type: light.turn-on
//	          devices: [light-1]
func LoadScenesFile(path string) ([]Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenes file: %w", err)
	}
	return ParseScenes(data)
}

// ParseScenes decodes and validates YAML scene definitions. Unknown keys
// are rejected, as are duplicate selectors. A scene without a selector
// gets one derived from its name.
func ParseScenes(data []byte) ([]Scene, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file sceneFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing scenes file: %w", err)
	}

	seen := make(map[string]int, len(file.Scenes))
	for i := range file.Scenes {
		scene := &file.Scenes[i]
		if scene.Actions == nil {
			scene.Actions = [][]ActionSpec{}
		}
		if scene.Selector == "" {
			scene.Selector = GenerateSelector(scene.Name)
		}
		if err := ValidateScene(scene); err != nil {
			return nil, fmt.Errorf("scene %d (%q): %w", i, scene.Selector, err)
		}
		if prev, dup := seen[scene.Selector]; dup {
			return nil, fmt.Errorf("%w: selector %q defined by scenes %d and %d",
				ErrInvalidScene, scene.Selector, prev, i)
		}
		seen[scene.Selector] = i
	}

	return file.Scenes, nil
}
