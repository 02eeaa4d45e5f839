package automation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadScenesFile(t *testing.T) {
	scenes, err := LoadScenesFile(filepath.Join("testdata", "scenes.yaml"))
	if err != nil {
		t.Fatalf("LoadScenesFile() error = %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("scenes = %d, want 2", len(scenes))
	}

	evening := scenes[0]
	if evening.Selector != "evening" || evening.Name != "Evening" {
		t.Errorf("scene = %s/%s", evening.Selector, evening.Name)
	}
	if evening.Description == nil || *evening.Description != "Dim the house after sunset" {
		t.Errorf("Description = %v", evening.Description)
	}
	if len(evening.Triggers) != 1 || evening.Triggers[0]["type"] != "sunset" {
		t.Errorf("Triggers = %v", evening.Triggers)
	}
	if len(evening.Actions) != 4 {
		t.Fatalf("stages = %d, want 4", len(evening.Actions))
	}

	gate := evening.Actions[1][0]
	if gate.Type.Kind() != KindConditionGate || len(gate.Conditions) != 1 {
		t.Fatalf("stage 1 = %+v, want a condition gate", gate)
	}
	if c := gate.Conditions[0]; c.Variable != "0.0.last_value" || c.Operator != OpLess || c.Value != 50 {
		t.Errorf("condition = %+v", c)
	}

	if got := evening.Actions[2][0].Devices; len(got) != 2 || got[1] != "light-lounge" {
		t.Errorf("devices = %v", got)
	}
	if d := evening.Actions[3][0]; d.Unit != UnitSeconds || d.Value != 30 {
		t.Errorf("delay = %+v", d)
	}

	if len(scenes[1].Actions) != 1 {
		t.Errorf("blinds-down stages = %d, want 1", len(scenes[1].Actions))
	}
}

func TestParseScenes_SelectorFromName(t *testing.T) {
	data := []byte(`
scenes:
  - name: Movie Night
  - name: Wake Up
    selector: morning
`)
	scenes, err := ParseScenes(data)
	if err != nil {
		t.Fatalf("ParseScenes() error = %v", err)
	}
	if got := scenes[0].Selector; got != "movie-night" {
		t.Errorf("derived selector = %q, want movie-night", got)
	}
	if got := scenes[1].Selector; got != "morning" {
		t.Errorf("explicit selector = %q, want morning", got)
	}

	// Two names that derive the same selector collide.
	_, err = ParseScenes([]byte("scenes:\n  - name: Movie Night\n  - name: movie_night\n"))
	if !errors.Is(err, ErrInvalidScene) {
		t.Errorf("duplicate derived selector error = %v, want ErrInvalidScene", err)
	}

	// No name and no selector still fails validation.
	if _, err := ParseScenes([]byte("scenes:\n  - description: nothing\n")); !errors.Is(err, ErrInvalidScene) {
		t.Errorf("anonymous scene error = %v, want ErrInvalidScene", err)
	}
}

func TestLoadScenesFile_Missing(t *testing.T) {
	_, err := LoadScenesFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestParseScenes(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    int
		wantErr string
	}{
		{name: "empty document", yaml: "", want: 0},
		{name: "no scenes", yaml: "scenes: []\n", want: 0},
		{
			name: "scene without actions",
			yaml: "scenes:\n  - selector: idle\n",
			want: 1,
		},
		{
			name:    "unknown field",
			yaml:    "scenes:\n  - selector: a\n    colour: red\n",
			wantErr: "parsing scenes file",
		},
		{
			name:    "invalid selector",
			yaml:    "scenes:\n  - selector: Not Valid\n",
			wantErr: "scene 0",
		},
		{
			name:    "invalid action",
			yaml:    "scenes:\n  - selector: a\n    actions:\n      - - type: light.turn-on\n",
			wantErr: "requires devices",
		},
		{
			name:    "duplicate selector",
			yaml:    "scenes:\n  - selector: a\n  - selector: a\n",
			wantErr: "defined by scenes 0 and 1",
		},
		{
			name:    "malformed yaml",
			yaml:    "scenes: [",
			wantErr: "parsing scenes file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenes, err := ParseScenes([]byte(tt.yaml))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ParseScenes() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScenes() error = %v", err)
			}
			if len(scenes) != tt.want {
				t.Errorf("scenes = %d, want %d", len(scenes), tt.want)
			}
			for _, s := range scenes {
				if s.Actions == nil {
					t.Error("Actions should default to an empty slice")
				}
			}
		})
	}
}
