package file

import (
	"context"
	"errors"
	"testing"
	"time"

	"mediafetch/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeFileRepo struct {
	byToken map[domain.DownloadToken]domain.DownloadedFile
	byJob   map[domain.JobID]domain.DownloadToken
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{
		byToken: make(map[domain.DownloadToken]domain.DownloadedFile),
		byJob:   make(map[domain.JobID]domain.DownloadToken),
	}
}

func (f *fakeFileRepo) Save(_ context.Context, file domain.DownloadedFile) error {
	if prior, ok := f.byJob[file.JobID]; ok {
		delete(f.byToken, prior)
	}
	f.byToken[file.Token] = file
	f.byJob[file.JobID] = file.Token
	return nil
}

func (f *fakeFileRepo) GetByToken(_ context.Context, token domain.DownloadToken) (domain.DownloadedFile, error) {
	file, ok := f.byToken[token]
	if !ok {
		return domain.DownloadedFile{}, domain.ErrNotFound
	}
	return file, nil
}

func (f *fakeFileRepo) GetByJobID(_ context.Context, id domain.JobID) (domain.DownloadedFile, error) {
	token, ok := f.byJob[id]
	if !ok {
		return domain.DownloadedFile{}, domain.ErrNotFound
	}
	return f.byToken[token], nil
}

func (f *fakeFileRepo) DeleteByToken(_ context.Context, token domain.DownloadToken) (bool, error) {
	file, ok := f.byToken[token]
	if !ok {
		return false, nil
	}
	delete(f.byToken, token)
	delete(f.byJob, file.JobID)
	return true, nil
}

func (f *fakeFileRepo) ListExpired(_ context.Context, now time.Time) ([]domain.DownloadedFile, error) {
	var out []domain.DownloadedFile
	for _, file := range f.byToken {
		if file.IsExpired(now) {
			out = append(out, file)
		}
	}
	return out, nil
}

type fakeStorage struct {
	files map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string][]byte)}
}

func (f *fakeStorage) Save(path string, content []byte) error {
	f.files[path] = content
	return nil
}

func (f *fakeStorage) Get(path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (f *fakeStorage) Delete(path string) error {
	delete(f.files, path)
	return nil
}

func (f *fakeStorage) Exists(path string) bool {
	_, ok := f.files[path]
	return ok
}

func (f *fakeStorage) Size(path string) (int64, error) {
	data, ok := f.files[path]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return int64(len(data)), nil
}

func (f *fakeStorage) BasePath() string { return "/data/downloads" }

func newManager(repo *fakeFileRepo, storage *fakeStorage) Manager {
	return Manager{Repo: repo, Storage: storage, Now: func() time.Time { return testNow }}
}

func TestManagerRegisterFile(t *testing.T) {
	repo := newFakeFileRepo()
	storage := newFakeStorage()
	mgr := newManager(repo, storage)
	ctx := context.Background()

	_ = storage.Save("job-1/clip.mp4", []byte("ABC"))
	file, err := mgr.RegisterFile(ctx, "job-1/clip.mp4", "job-1", "clip.mp4", 10*time.Minute)
	if err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	if len(file.Token) < 32 {
		t.Fatalf("token = %q", file.Token)
	}
	if file.Filesize == nil || *file.Filesize != 3 {
		t.Fatalf("filesize = %v", file.Filesize)
	}
	if !file.ExpiresAt.Equal(testNow.Add(10 * time.Minute)) {
		t.Fatalf("expiresAt = %v", file.ExpiresAt)
	}

	// Re-registration replaces the prior entry for the job.
	second, err := mgr.RegisterFile(ctx, "job-1/clip.mp4", "job-1", "clip.mp4", 10*time.Minute)
	if err != nil {
		t.Fatalf("second RegisterFile: %v", err)
	}
	if _, err := mgr.GetByToken(ctx, file.Token); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("stale token err = %v", err)
	}
	byJob, err := mgr.GetByJobID(ctx, "job-1")
	if err != nil || byJob.Token != second.Token {
		t.Fatalf("GetByJobID = %+v, %v", byJob, err)
	}
}

func TestManagerGetByToken_LazyExpiry(t *testing.T) {
	repo := newFakeFileRepo()
	storage := newFakeStorage()
	mgr := newManager(repo, storage)
	ctx := context.Background()

	_ = storage.Save("job-1/clip.mp4", []byte("ABC"))
	file, err := mgr.RegisterFile(ctx, "job-1/clip.mp4", "job-1", "clip.mp4", time.Second)
	if err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}

	// Live immediately after registration.
	if _, err := mgr.GetByToken(ctx, file.Token); err != nil {
		t.Fatalf("GetByToken live: %v", err)
	}

	// Past expiry the read deletes metadata and bytes and reports expired.
	mgr.Now = func() time.Time { return testNow.Add(2 * time.Second) }
	if _, err := mgr.GetByToken(ctx, file.Token); !errors.Is(err, domain.ErrFileExpired) {
		t.Fatalf("expired GetByToken err = %v", err)
	}
	if _, ok := repo.byToken[file.Token]; ok {
		t.Fatal("expired metadata survived the read")
	}
	if storage.Exists("job-1/clip.mp4") {
		t.Fatal("expired bytes survived the read")
	}

	// A second read sees a plain miss.
	if _, err := mgr.GetByToken(ctx, file.Token); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second read err = %v", err)
	}
}

func TestManagerDeleteByToken(t *testing.T) {
	repo := newFakeFileRepo()
	storage := newFakeStorage()
	mgr := newManager(repo, storage)
	ctx := context.Background()

	_ = storage.Save("job-1/clip.mp4", []byte("ABC"))
	file, _ := mgr.RegisterFile(ctx, "job-1/clip.mp4", "job-1", "clip.mp4", 10*time.Minute)

	removed, err := mgr.DeleteByToken(ctx, file.Token, false)
	if err != nil || !removed {
		t.Fatalf("DeleteByToken = %v, %v", removed, err)
	}
	if !storage.Exists("job-1/clip.mp4") {
		t.Fatal("bytes removed despite deletePhysical=false")
	}

	_ = storage.Save("job-2/clip.mp4", []byte("DEF"))
	file2, _ := mgr.RegisterFile(ctx, "job-2/clip.mp4", "job-2", "clip.mp4", 10*time.Minute)
	removed, err = mgr.DeleteByToken(ctx, file2.Token, true)
	if err != nil || !removed {
		t.Fatalf("DeleteByToken = %v, %v", removed, err)
	}
	if storage.Exists("job-2/clip.mp4") {
		t.Fatal("bytes survived deletePhysical=true")
	}

	removed, err = mgr.DeleteByToken(ctx, file2.Token, true)
	if err != nil || removed {
		t.Fatalf("repeat DeleteByToken = %v, %v", removed, err)
	}
}

func TestManagerCleanupExpired(t *testing.T) {
	repo := newFakeFileRepo()
	storage := newFakeStorage()
	mgr := newManager(repo, storage)
	ctx := context.Background()

	_ = storage.Save("job-1/a.mp4", []byte("A"))
	_ = storage.Save("job-2/b.mp4", []byte("B"))
	expired, _ := mgr.RegisterFile(ctx, "job-1/a.mp4", "job-1", "a.mp4", time.Minute)
	live, _ := mgr.RegisterFile(ctx, "job-2/b.mp4", "job-2", "b.mp4", time.Hour)

	mgr.Now = func() time.Time { return testNow.Add(30 * time.Minute) }
	removed, err := mgr.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}
	if _, ok := repo.byToken[expired.Token]; ok {
		t.Fatal("expired entry survived")
	}
	if storage.Exists("job-1/a.mp4") {
		t.Fatal("expired bytes survived")
	}
	if _, ok := repo.byToken[live.Token]; !ok {
		t.Fatal("live entry removed")
	}
}

func TestDownloadURLFor(t *testing.T) {
	token := domain.DownloadToken("abcdefghijklmnopqrstuvwxyz012345")
	got := DownloadURLFor(token, "https://dl.example.test/")
	want := "https://dl.example.test/api/v1/downloads/file/" + token.String()
	if got != want {
		t.Fatalf("DownloadURLFor = %q, want %q", got, want)
	}
}
