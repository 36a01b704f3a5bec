package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cardforge/internal/domain"
)

func storedJob(id string) *domain.Job {
	now := time.Now().UTC()
	return &domain.Job{
		ID:        id,
		Status:    domain.JobStatusQueued,
		Spec:      domain.GameSpec{Theme: "t", GameType: "g"},
		Aggregate: domain.AggregateState{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, storedJob("a")); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := store.Create(ctx, storedJob("a")); err == nil {
		t.Fatal("duplicate Create should fail")
	}

	job, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if job.ID != "a" || job.Status != domain.JobStatusQueued {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Update(context.Background(), storedJob("nope")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on Update, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, storedJob("a")); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	read, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	read.Status = domain.JobStatusFailed
	read.Aggregate[domain.StageGameDesign] = json.RawMessage(`{}`)

	again, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if again.Status != domain.JobStatusQueued {
		t.Fatalf("mutating a read snapshot leaked into the store: %s", again.Status)
	}
	if again.Aggregate.Has(domain.StageGameDesign) {
		t.Fatal("mutating a read snapshot's aggregate leaked into the store")
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	job := storedJob("a")
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	job.Status = domain.JobStatusComplete
	job.Version = 8
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	read, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if read.Status != domain.JobStatusComplete || read.Version != 8 {
		t.Fatalf("update not applied: %+v", read)
	}
}
