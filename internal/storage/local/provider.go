package local

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"mediafetch/internal/domain"
)

// Provider stores artifacts under a single base directory. Every path
// argument is resolved against the base and refused when it escapes it.
type Provider struct {
	base string
}

func NewProvider(baseDir string) (*Provider, error) {
	base := strings.TrimSpace(baseDir)
	if base == "" {
		return nil, errors.New("base dir is required")
	}
	base = filepath.Clean(base)
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &Provider{base: base}, nil
}

// resolve joins the relative path onto the base and rejects traversal.
func (p *Provider) resolve(path string) (string, error) {
	joined := filepath.Join(p.base, filepath.FromSlash(path))
	joined = filepath.Clean(joined)
	if abs, err := filepath.Abs(joined); err == nil {
		joined = abs
	}
	if joined == p.base {
		return "", errors.New("path resolves to base dir")
	}
	if !strings.HasPrefix(joined, p.base+string(filepath.Separator)) {
		return "", errors.New("path escapes base dir")
	}
	return joined, nil
}

func (p *Provider) Save(path string, content []byte) error {
	resolved, err := p.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return err
	}
	return os.WriteFile(resolved, content, 0o644)
}

func (p *Provider) Get(path string) ([]byte, error) {
	resolved, err := p.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (p *Provider) Delete(path string) error {
	resolved, err := p.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (p *Provider) Exists(path string) bool {
	resolved, err := p.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(resolved)
	return err == nil && !info.IsDir()
}

func (p *Provider) Size(path string) (int64, error) {
	resolved, err := p.resolve(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

func (p *Provider) BasePath() string { return p.base }
