package ports

// FileStorageRepository abstracts artifact byte storage so the core
// never touches a filesystem directly. Paths are relative to the
// backend's base; Delete is idempotent.
type FileStorageRepository interface {
	Save(path string, content []byte) error
	Get(path string) ([]byte, error)
	Delete(path string) error
	Exists(path string) bool
	Size(path string) (int64, error)
	// BasePath lets services compose absolute paths or public URLs.
	// Non-filesystem backends return a logical base URI.
	BasePath() string
}
