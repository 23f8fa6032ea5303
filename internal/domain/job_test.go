package domain

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestJob(t *testing.T) DownloadJob {
	t.Helper()
	job, err := NewDownloadJob("https://example.test/v/X", "best", testNow)
	if err != nil {
		t.Fatalf("NewDownloadJob: %v", err)
	}
	return job
}

func TestNewDownloadJob(t *testing.T) {
	job := newTestJob(t)
	if job.ID == "" {
		t.Fatal("job id is empty")
	}
	if job.Status != JobPending {
		t.Fatalf("status = %q, want pending", job.Status)
	}
	if job.Progress.Phase != PhaseStarting || job.Progress.Percentage != 0 {
		t.Fatalf("initial progress = %+v", job.Progress)
	}
	if !job.CreatedAt.Equal(testNow) || !job.UpdatedAt.Equal(testNow) {
		t.Fatalf("timestamps = %v / %v", job.CreatedAt, job.UpdatedAt)
	}
	if err := job.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestNewDownloadJob_InvalidURL(t *testing.T) {
	cases := []string{"", "   ", "ftp://example.test/v", "not a url", "//no-scheme", "https://"}
	for _, raw := range cases {
		if _, err := NewDownloadJob(raw, "best", testNow); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("NewDownloadJob(%q) err = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestJobStart(t *testing.T) {
	job := newTestJob(t)
	event, err := job.Start(testNow.Add(time.Second))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.Status != JobProcessing {
		t.Fatalf("status = %q, want processing", job.Status)
	}
	started, ok := event.(JobStartedEvent)
	if !ok {
		t.Fatalf("event type = %T", event)
	}
	if started.JobID != job.ID || started.URL != job.URL {
		t.Fatalf("event = %+v", started)
	}
}

func TestJobStart_Idempotent(t *testing.T) {
	job := newTestJob(t)
	if _, err := job.Start(testNow.Add(time.Second)); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	updatedAfterFirst := job.UpdatedAt

	event, err := job.Start(testNow.Add(2 * time.Second))
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if event != nil {
		t.Fatalf("second Start emitted event %+v", event)
	}
	if !job.UpdatedAt.Equal(updatedAfterFirst) {
		t.Fatalf("updatedAt changed on idempotent start: %v -> %v", updatedAfterFirst, job.UpdatedAt)
	}
}

func TestJobStart_Terminal(t *testing.T) {
	job := newTestJob(t)
	job.Fail("boom", CategorySystemError, testNow.Add(time.Second))
	if _, err := job.Start(testNow.Add(2 * time.Second)); !errors.Is(err, ErrJobState) {
		t.Fatalf("Start on failed job err = %v, want ErrJobState", err)
	}
}

func TestJobComplete(t *testing.T) {
	job := newTestJob(t)
	if _, err := job.Start(testNow.Add(time.Second)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	expireAt := testNow.Add(10 * time.Minute)
	event, err := job.Complete("/api/v1/downloads/file/tok", DownloadToken("tok"), expireAt, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if job.Status != JobCompleted {
		t.Fatalf("status = %q", job.Status)
	}
	if job.Progress.Percentage != 100 || job.Progress.Phase != PhaseCompleted {
		t.Fatalf("completion did not force progress: %+v", job.Progress)
	}
	if job.DownloadToken == "" || job.DownloadURL == "" || job.ExpireAt == nil {
		t.Fatalf("download fields unset: %+v", job)
	}
	completed, ok := event.(JobCompletedEvent)
	if !ok {
		t.Fatalf("event type = %T", event)
	}
	if !completed.ExpireAt.Equal(expireAt) {
		t.Fatalf("event expireAt = %v", completed.ExpireAt)
	}
}

func TestJobComplete_FromPending(t *testing.T) {
	job := newTestJob(t)
	if _, err := job.Complete("u", "t", testNow.Add(time.Hour), testNow); !errors.Is(err, ErrJobState) {
		t.Fatalf("Complete on pending job err = %v, want ErrJobState", err)
	}
}

func TestJobFail_AlwaysAllowed(t *testing.T) {
	job := newTestJob(t)
	event := job.Fail("first", CategoryNetworkError, testNow.Add(time.Second))
	if job.Status != JobFailed {
		t.Fatalf("status = %q", job.Status)
	}
	if failed := event.(JobFailedEvent); failed.ErrorCategory != CategoryNetworkError {
		t.Fatalf("event = %+v", failed)
	}

	// A later fail replaces the prior error.
	job.Fail("second", CategorySystemError, testNow.Add(2*time.Second))
	if job.ErrorMessage != "second" || job.ErrorCategory != CategorySystemError {
		t.Fatalf("error not replaced: %q / %q", job.ErrorMessage, job.ErrorCategory)
	}
}

func TestJobSetProgress_OnlyWhileProcessing(t *testing.T) {
	job := newTestJob(t)
	if _, err := job.SetProgress(DownloadingProgress(50, nil, nil), testNow); !errors.Is(err, ErrJobState) {
		t.Fatalf("SetProgress on pending err = %v, want ErrJobState", err)
	}

	if _, err := job.Start(testNow.Add(time.Second)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := job.SetProgress(DownloadingProgress(50, nil, nil), testNow.Add(2*time.Second)); err != nil {
		t.Fatalf("SetProgress while processing: %v", err)
	}
}

func TestJobUpdatedAt_Monotone(t *testing.T) {
	job := newTestJob(t)
	if _, err := job.Start(testNow.Add(time.Minute)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// A mutation with an older clock must not move updatedAt backwards.
	if _, err := job.SetProgress(DownloadingProgress(20, nil, nil), testNow.Add(30*time.Second)); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if job.UpdatedAt.Before(testNow.Add(time.Minute)) {
		t.Fatalf("updatedAt went backwards: %v", job.UpdatedAt)
	}
	if !job.CreatedAt.Equal(testNow) {
		t.Fatalf("createdAt changed: %v", job.CreatedAt)
	}
}

func TestJobTimeRemaining(t *testing.T) {
	job := newTestJob(t)
	if got := job.TimeRemaining(testNow); got != 0 {
		t.Fatalf("TimeRemaining without link = %d", got)
	}
	expireAt := testNow.Add(10 * time.Minute)
	job.ExpireAt = &expireAt
	if got := job.TimeRemaining(testNow); got != 600 {
		t.Fatalf("TimeRemaining = %d, want 600", got)
	}
	if got := job.TimeRemaining(testNow.Add(time.Hour)); got != 0 {
		t.Fatalf("TimeRemaining past expiry = %d, want 0", got)
	}
}
