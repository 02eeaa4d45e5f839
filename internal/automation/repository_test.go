package automation

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-scenes/migrations"
)

// setupTestDB opens an in-memory database with the production schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

func TestSQLiteRepository_SaveAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	scene := sampleScene("evening")
	scene.Actions = append(scene.Actions, []ActionSpec{
		{Type: ActionDeviceSetValue, DeviceFeature: "hall-dimmer", Value: 40.0},
		{Type: ActionDelay, Value: 2.0, Unit: UnitSeconds},
		startScene("night"),
	})
	if err := repo.Save(ctx, scene); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if scene.CreatedAt.IsZero() || scene.UpdatedAt.IsZero() {
		t.Error("Save() should stamp CreatedAt and UpdatedAt")
	}

	got, err := repo.GetBySelector(ctx, "evening")
	if err != nil {
		t.Fatalf("GetBySelector() error = %v", err)
	}
	if got.Name != scene.Name || got.Description == nil || *got.Description != *scene.Description {
		t.Errorf("scene metadata = %+v, want %+v", got, scene)
	}
	if !reflect.DeepEqual(got.Triggers, []map[string]any{{"type": "time", "at": "18:00"}}) {
		t.Errorf("Triggers = %#v", got.Triggers)
	}
	if len(got.Actions) != 3 || len(got.Actions[2]) != 3 {
		t.Fatalf("Actions = %+v, want 3 stages", got.Actions)
	}
	if got.Actions[2][0].Value != 40.0 || got.Actions[2][1].Unit != UnitSeconds || got.Actions[2][2].Scene != "night" {
		t.Errorf("stage 2 = %+v", got.Actions[2])
	}
	if !got.CreatedAt.Equal(scene.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, scene.CreatedAt)
	}
}

func TestSQLiteRepository_SaveUpserts(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	first := sampleScene("evening")
	if err := repo.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	created := first.CreatedAt

	second := sampleScene("evening")
	second.Name = "Renamed"
	second.Description = nil
	second.Actions = [][]ActionSpec{}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("Save() update error = %v", err)
	}

	got, err := repo.GetBySelector(ctx, "evening")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Renamed" || got.Description != nil || len(got.Actions) != 0 {
		t.Errorf("scene not replaced: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on update: %v, want %v", got.CreatedAt, created)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("List() = %d scenes, want 1", len(list))
	}
}

func TestSQLiteRepository_ListAndDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, sel := range []string{"zeta", "alpha", "mid"} {
		if err := repo.Save(ctx, sampleScene(sel)); err != nil {
			t.Fatal(err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var got []string
	for _, s := range list {
		got = append(got, s.Selector)
	}
	if !reflect.DeepEqual(got, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("List() = %v, want sorted by selector", got)
	}

	if err := repo.Delete(ctx, "mid"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetBySelector(ctx, "mid"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("GetBySelector(deleted) error = %v, want ErrSceneNotFound", err)
	}
	if err := repo.Delete(ctx, "mid"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrSceneNotFound", err)
	}
}

func TestSQLiteRepository_Executions(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	stage := 1
	msg := "scene: engine closed"
	records := []SceneExecution{
		{ID: "e1", SceneSelector: "evening", RootID: "r1", Status: StatusCompleted, StagesTotal: 2, StagesRun: 2, ActionsRun: 3, StartedAt: base},
		{ID: "e2", SceneSelector: "evening", RootID: "r2", Status: StatusAborted, StagesTotal: 3, StagesRun: 2, AbortStage: &stage, StartedAt: base.Add(time.Second)},
		{ID: "e3", SceneSelector: "evening", RootID: "r3", Status: StatusFailed, Error: &msg, StartedAt: base.Add(2 * time.Second)},
		{ID: "e4", SceneSelector: "morning", RootID: "r4", Status: StatusNotFound, StartedAt: base},
	}
	for i := range records {
		records[i].CompletedAt = records[i].StartedAt.Add(150 * time.Millisecond)
		records[i].DurationMS = 150
		if err := repo.CreateExecution(ctx, &records[i]); err != nil {
			t.Fatalf("CreateExecution(%s) error = %v", records[i].ID, err)
		}
	}

	got, err := repo.ListExecutions(ctx, "evening", 0)
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListExecutions() = %d records, want 3", len(got))
	}
	if got[0].ID != "e3" || got[1].ID != "e2" || got[2].ID != "e1" {
		t.Errorf("order = %s, %s, %s; want newest first", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[0].Error == nil || *got[0].Error != msg {
		t.Errorf("Error = %v, want %q", got[0].Error, msg)
	}
	if got[1].AbortStage == nil || *got[1].AbortStage != 1 {
		t.Errorf("AbortStage = %v, want 1", got[1].AbortStage)
	}
	if got[2].AbortStage != nil || got[2].Error != nil {
		t.Error("nullable columns should stay nil")
	}
	if !got[2].StartedAt.Equal(base) || got[2].DurationMS != 150 || got[2].RootID != "r1" {
		t.Errorf("record = %+v", got[2])
	}

	limited, err := repo.ListExecutions(ctx, "evening", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].ID != "e3" {
		t.Errorf("ListExecutions(limit 1) = %+v", limited)
	}
}

func TestSQLiteRepository_ExecutionLogObserver(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	observer := NewExecutionLog(repo, nil)
	exec := &SceneExecution{
		ID:            "x1",
		SceneSelector: "evening",
		Status:        StatusCompleted,
		StartedAt:     time.Now().UTC(),
		CompletedAt:   time.Now().UTC(),
	}
	observer.ObserveExecution(ctx, exec)
	// A duplicate ID fails the insert; the observer logs and carries on.
	observer.ObserveExecution(ctx, exec)

	got, err := repo.ListExecutions(ctx, "evening", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("stored records = %d, want 1", len(got))
	}
}
