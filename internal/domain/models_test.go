package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJobStatusPredicates(t *testing.T) {
	for _, status := range []JobStatus{JobPending, JobProcessing} {
		if status.IsTerminal() {
			t.Fatalf("%q reported terminal", status)
		}
		if !status.IsActive() {
			t.Fatalf("%q not active", status)
		}
	}
	for _, status := range []JobStatus{JobCompleted, JobFailed} {
		if !status.IsTerminal() {
			t.Fatalf("%q not terminal", status)
		}
		if status.IsActive() {
			t.Fatalf("%q reported active", status)
		}
	}
}

func TestNewDownloadToken(t *testing.T) {
	seen := map[DownloadToken]struct{}{}
	for i := 0; i < 64; i++ {
		token, err := NewDownloadToken()
		if err != nil {
			t.Fatalf("NewDownloadToken: %v", err)
		}
		if len(token) < 32 {
			t.Fatalf("token %q shorter than 32", token)
		}
		if _, err := ParseDownloadToken(string(token)); err != nil {
			t.Fatalf("generated token %q failed validation: %v", token, err)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = struct{}{}
	}
}

func TestParseDownloadToken_Alphabet(t *testing.T) {
	base := strings.Repeat("a", 31)
	valid := []string{base + "Z", base + "_0", base + "-9"}
	for _, raw := range valid {
		if _, err := ParseDownloadToken(raw); err != nil {
			t.Fatalf("ParseDownloadToken(%q): %v", raw, err)
		}
	}
	invalid := []string{"short", base + "!", base + " ", base + "+", base + "/", base + "="}
	for _, raw := range invalid {
		if _, err := ParseDownloadToken(raw); err == nil {
			t.Fatalf("ParseDownloadToken(%q) accepted", raw)
		}
	}
}

func TestDownloadingProgress_Clamp(t *testing.T) {
	if p := DownloadingProgress(3, nil, nil); p.Percentage != 10 {
		t.Fatalf("low clamp = %v", p.Percentage)
	}
	if p := DownloadingProgress(99.9, nil, nil); p.Percentage != 95 {
		t.Fatalf("high clamp = %v", p.Percentage)
	}
	if p := DownloadingProgress(47.5, nil, nil); p.Percentage != 47.5 {
		t.Fatalf("mid value = %v", p.Percentage)
	}
	if p := CompletedProgress(); p.Percentage != 100 || p.Phase != PhaseCompleted {
		t.Fatalf("completed = %+v", p)
	}
}

func TestDownloadedFile_Invariants(t *testing.T) {
	size := int64(3)
	file, err := NewDownloadedFile("job/t.mp4", "j1", "t.mp4", &size, 10*time.Minute, testNow)
	if err != nil {
		t.Fatalf("NewDownloadedFile: %v", err)
	}
	if !file.ExpiresAt.After(file.CreatedAt) {
		t.Fatalf("expiresAt %v not after createdAt %v", file.ExpiresAt, file.CreatedAt)
	}
	if err := file.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if file.IsExpired(testNow.Add(5 * time.Minute)) {
		t.Fatal("expired too early")
	}
	if !file.IsExpired(testNow.Add(10 * time.Minute)) {
		t.Fatal("not expired at deadline")
	}

	if _, err := NewDownloadedFile("p", "j1", "f", nil, 0, testNow); err == nil {
		t.Fatal("zero ttl accepted")
	}
	if _, err := NewDownloadedFile("p", "j1", "f", nil, -time.Minute, testNow); err == nil {
		t.Fatal("negative ttl accepted")
	}
}

func TestNewJobArchive_TerminalOnly(t *testing.T) {
	job := newTestJob(t)
	if _, err := NewJobArchive(job, testNow); err == nil {
		t.Fatal("archived a pending job")
	}
	if _, err := job.Start(testNow); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := NewJobArchive(job, testNow); err == nil {
		t.Fatal("archived a processing job")
	}

	job.Fail("boom", CategoryDownloadFailed, testNow.Add(time.Second))
	archive, err := NewJobArchive(job, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("NewJobArchive: %v", err)
	}
	if archive.Status != JobFailed || archive.ErrorMessage != "boom" {
		t.Fatalf("archive = %+v", archive)
	}
	if !archive.ArchivedAt.Equal(testNow.Add(time.Minute)) {
		t.Fatalf("archivedAt = %v", archive.ArchivedAt)
	}
}

func TestClientIP_HashForKey(t *testing.T) {
	ip, err := ParseClientIP("203.0.113.1")
	if err != nil {
		t.Fatalf("ParseClientIP: %v", err)
	}
	hash := ip.HashForKey()
	if len(hash) != 16 {
		t.Fatalf("hash %q length = %d, want 16", hash, len(hash))
	}
	if hash == "203.0.113.1" || strings.Contains(hash, ".") {
		t.Fatalf("hash leaks address: %q", hash)
	}

	again, _ := ParseClientIP("203.0.113.1")
	if again.HashForKey() != hash {
		t.Fatal("hash not deterministic")
	}
	other, _ := ParseClientIP("203.0.113.2")
	if other.HashForKey() == hash {
		t.Fatal("distinct addresses share a hash")
	}

	if _, err := ParseClientIP("not-an-ip"); err == nil {
		t.Fatal("parsed garbage address")
	}
	if _, err := ParseClientIP("2001:db8::1"); err != nil {
		t.Fatalf("ParseClientIP v6: %v", err)
	}
}

func TestClientIP_Whitelist(t *testing.T) {
	ip, _ := ParseClientIP("10.0.0.1")
	if !ip.IsWhitelisted([]string{"10.0.0.1", "192.0.2.7"}) {
		t.Fatal("whitelisted address not matched")
	}
	if ip.IsWhitelisted([]string{"192.0.2.7"}) {
		t.Fatal("non-whitelisted address matched")
	}
	if ip.IsWhitelisted([]string{"garbage", ""}) {
		t.Fatal("garbage whitelist entry matched")
	}
}

func TestRateLimit_NextReset(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 42, 30, 0, time.UTC)
	daily, _ := NewRateLimit(5, 24*time.Hour, "daily_video-only")
	if got := daily.NextReset(now); !got.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("daily reset = %v", got)
	}
	hourly, _ := NewRateLimit(5, time.Hour, "hourly_endpoint:/api/v1/videos/resolutions")
	if got := hourly.NextReset(now); !got.Equal(time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)) {
		t.Fatalf("hourly reset = %v", got)
	}
	minute, _ := NewRateLimit(5, time.Minute, "per_minute_batch")
	if got := minute.NextReset(now); !got.Equal(time.Date(2026, 3, 14, 15, 43, 0, 0, time.UTC)) {
		t.Fatalf("minute reset = %v", got)
	}
}

func TestRateLimitStatus(t *testing.T) {
	ip, _ := ParseClientIP("203.0.113.1")
	status := RateLimitStatus{ClientIP: ip, LimitType: "daily_total", Count: 5, Limit: 5, ResetAt: testNow}
	if status.IsExceeded() {
		t.Fatal("count == limit reported exceeded")
	}
	if status.Remaining() != 0 {
		t.Fatalf("remaining = %d", status.Remaining())
	}
	status.Count = 6
	if !status.IsExceeded() {
		t.Fatal("count > limit not exceeded")
	}
	headers := status.Headers()
	if headers["X-RateLimit-Limit"] != "5" || headers["X-RateLimit-Remaining"] != "0" {
		t.Fatalf("headers = %v", headers)
	}
}

func TestNewRateLimit_Validation(t *testing.T) {
	if _, err := NewRateLimit(0, time.Minute, "x"); err == nil {
		t.Fatal("zero limit accepted")
	}
	if _, err := NewRateLimit(1, 0, "x"); err == nil {
		t.Fatal("zero window accepted")
	}
	if _, err := NewRateLimit(1, time.Minute, " "); err == nil {
		t.Fatal("blank limit type accepted")
	}
}

func TestRateLimit_CounterKey(t *testing.T) {
	ip, _ := ParseClientIP("203.0.113.1")
	limit, _ := NewRateLimit(5, time.Minute, "per_minute_batch")
	key := limit.CounterKey(ip)
	if !strings.HasPrefix(key, "ratelimit:per_minute_batch:") {
		t.Fatalf("key = %q", key)
	}
	if strings.Contains(key, "203.0.113.1") {
		t.Fatalf("key leaks address: %q", key)
	}
}

func TestEventFields(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	speed := 1024.0
	eta := int64(34)

	cases := []struct {
		event Event
		kind  string
	}{
		{JobStartedEvent{JobID: "j1", URL: "https://example.test/v", FormatID: "best", OccurredAt: at}, KindJobStarted},
		{JobProgressUpdatedEvent{JobID: "j1", Progress: DownloadingProgress(20, &speed, &eta), OccurredAt: at}, KindJobProgressUpdated},
		{JobCompletedEvent{JobID: "j1", DownloadURL: "/f/tok", ExpireAt: at.Add(10 * time.Minute), OccurredAt: at}, KindJobCompleted},
		{JobFailedEvent{JobID: "j1", ErrorMessage: "boom", ErrorCategory: CategoryLoginRequired, OccurredAt: at}, KindJobFailed},
		{JobCancelledEvent{JobID: "j1", OccurredAt: at}, KindJobCancelled},
	}

	for _, tc := range cases {
		if tc.event.Kind() != tc.kind {
			t.Fatalf("kind = %q, want %q", tc.event.Kind(), tc.kind)
		}
		if tc.event.Job() != "j1" {
			t.Fatalf("%s job = %q", tc.kind, tc.event.Job())
		}
		fields := tc.event.Fields()
		if fields["job_id"] != "j1" {
			t.Fatalf("%s fields = %v", tc.kind, fields)
		}
		if fields["occurred_at"] != "2026-03-14T12:00:00Z" {
			t.Fatalf("%s occurred_at = %v", tc.kind, fields["occurred_at"])
		}
		if _, err := json.Marshal(fields); err != nil {
			t.Fatalf("%s fields not serializable: %v", tc.kind, err)
		}
	}
}

func TestJobJSONRoundTrip(t *testing.T) {
	job := newTestJob(t)
	if _, err := job.Start(testNow.Add(time.Second)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	expireAt := testNow.Add(10 * time.Minute)
	if _, err := job.Complete("/f/tok", "tok", expireAt, testNow.Add(time.Minute)); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded DownloadJob
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != job.ID || decoded.Status != job.Status || decoded.DownloadToken != job.DownloadToken {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, job)
	}
	if !decoded.ExpireAt.Equal(*job.ExpireAt) || !decoded.CreatedAt.Equal(job.CreatedAt) {
		t.Fatalf("timestamps mismatch: %+v vs %+v", decoded, job)
	}
}

func TestCategoryDetail(t *testing.T) {
	detail := CategoryRateLimited.Detail()
	if detail.Title != "Rate limit exceeded" || detail.Action == "" {
		t.Fatalf("detail = %+v", detail)
	}
	// Unknown categories fall back to the system-error triple.
	if got := ErrorCategory("nonsense").Detail(); got != CategorySystemError.Detail() {
		t.Fatalf("fallback detail = %+v", got)
	}
}

func TestVideoFormat_EstimatedSize(t *testing.T) {
	f := VideoFormat{Filesize: 100, FilesizeApprox: 200, TBR: 1000}
	if f.EstimatedSize(60) != 100 {
		t.Fatal("exact size not preferred")
	}
	f.Filesize = 0
	if f.EstimatedSize(60) != 200 {
		t.Fatal("approx size not used")
	}
	f.FilesizeApprox = 0
	// 1000 kbit/s * 60 s / 8 = 7_500_000 bytes
	if got := f.EstimatedSize(60); got != 7_500_000 {
		t.Fatalf("bitrate estimate = %d", got)
	}
	f.TBR = 0
	if f.EstimatedSize(60) != 0 {
		t.Fatal("empty format yielded a size")
	}
}
