package jobs_test

import (
	"context"
	"testing"
	"time"

	"shelfpair/internal/insight"
	"shelfpair/internal/jobs"
	"shelfpair/internal/testsupport"
)

func TestCreateAndGetRoundtrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, []string{"a.jpg", "b.jpg"}, "secret-token")

	fetched, err := store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected job, got nil")
	}
	if fetched.State != jobs.StatePending {
		t.Fatalf("expected pending state, got %s", fetched.State)
	}
	if fetched.TotalImages != 2 || fetched.ProcessedCount != 0 {
		t.Fatalf("unexpected counts: total=%d processed=%d", fetched.TotalImages, fetched.ProcessedCount)
	}
	if fetched.AccessCredential != "secret-token" {
		t.Fatal("expected credential preserved on pending job")
	}
	if len(fetched.Images) != 2 || fetched.Images[0] != "a.jpg" {
		t.Fatalf("unexpected images %v", fetched.Images)
	}
}

func TestCreateCollapsesDuplicateIdentifiers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, []string{"a.jpg", "b.jpg", "a.jpg", "b.jpg"}, "")

	if job.TotalImages != 2 {
		t.Fatalf("expected total=2 after collapsing duplicates, got %d", job.TotalImages)
	}
	if len(job.Images) != 2 || job.Images[0] != "a.jpg" || job.Images[1] != "b.jpg" {
		t.Fatalf("unexpected images %v", job.Images)
	}
}

func TestGetUnknownJobReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.Get(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for unknown id, got %+v", job)
	}
}

func TestUpdatePersistsInsights(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, []string{"a.jpg", "b.jpg"}, "")
	job.State = jobs.StateProcessing
	job.ProcessedCount = 1
	job.Insights = []insight.ImageInsight{
		{Key: "a.jpg", Role: insight.RoleFront, Brand: "Acme", Confidence: 0.8},
	}
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fetched, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.ProcessedCount != 1 {
		t.Fatalf("expected processed count 1, got %d", fetched.ProcessedCount)
	}
	if len(fetched.Insights) != 1 || fetched.Insights[0].Brand != "Acme" {
		t.Fatalf("unexpected insights %+v", fetched.Insights)
	}
}

func TestUpdateRejectsInvalidState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, []string{"a.jpg"}, "")
	job.State = jobs.State("bogus")
	if err := store.Update(context.Background(), job); err == nil {
		t.Fatal("expected error for invalid state")
	}
}

func TestChunkLockClaimIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, []string{"a.jpg", "b.jpg"}, "")

	ok, err := store.AcquireChunkLock(ctx, job.ID, 0, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = store.AcquireChunkLock(ctx, job.ID, 0, time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to fail while lock held")
	}

	if err := store.ReleaseChunkLock(ctx, job.ID, 0); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = store.AcquireChunkLock(ctx, job.ID, 0, time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestChunkLockExpiryAllowsReclaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, []string{"a.jpg"}, "")

	ok, err := store.AcquireChunkLock(ctx, job.ID, 0, 10*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	time.Sleep(30 * time.Millisecond)

	ok, err = store.AcquireChunkLock(ctx, job.ID, 0, time.Minute)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !ok {
		t.Fatal("expected expired lock to be reclaimable")
	}
}

func TestPurgeExpiredRemovesOldJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.Create(ctx, "owner", []string{"a.jpg"}, "", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if fetched, err := store.Get(ctx, job.ID); err != nil || fetched != nil {
		t.Fatalf("expected expired job hidden from Get, got %+v err=%v", fetched, err)
	}

	purged, err := store.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged job, got %d", purged)
	}
}
