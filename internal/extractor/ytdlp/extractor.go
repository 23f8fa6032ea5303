package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mediafetch/internal/domain"
	"mediafetch/internal/domain/ports"
)

// Extractor shells out to the yt-dlp binary. Metadata queries use the
// single-JSON dump mode; downloads stream templated progress lines on
// stdout which are decoded into the port's tick callbacks.
type Extractor struct {
	Binary              string
	SocketTimeout       int
	Retries             int
	FragmentRetries     int
	ConcurrentFragments int
	HTTPChunkSize       string
	BufferSize          string
	Logger              *slog.Logger

	// runCommand is swapped out by tests.
	runCommand func(ctx context.Context, args []string, onLine func(string)) (stderr string, err error)
}

func New(binary string) *Extractor {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Extractor{
		Binary:              binary,
		SocketTimeout:       30,
		Retries:             3,
		FragmentRetries:     3,
		ConcurrentFragments: 4,
		HTTPChunkSize:       "10M",
		BufferSize:          "16K",
	}
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Extractor) ValidateURL(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := e.run(ctx, []string{"--simulate", "--quiet", "--no-warnings", "--no-playlist", url}, nil)
	return err == nil
}

func (e *Extractor) ExtractMetadata(ctx context.Context, url string) (domain.VideoMetadata, error) {
	info, err := e.dumpInfo(ctx, url)
	if err != nil {
		return domain.VideoMetadata{}, err
	}
	return domain.VideoMetadata{
		ID:        info.ID,
		Title:     info.Title,
		Uploader:  info.Uploader,
		Duration:  info.Duration,
		Thumbnail: info.Thumbnail,
	}, nil
}

func (e *Extractor) ListFormats(ctx context.Context, url string) ([]domain.VideoFormat, error) {
	info, err := e.dumpInfo(ctx, url)
	if err != nil {
		return nil, err
	}
	formats := make([]domain.VideoFormat, 0, len(info.Formats))
	for _, f := range info.Formats {
		formats = append(formats, domain.VideoFormat{
			FormatID:       f.FormatID,
			Ext:            f.Ext,
			Height:         f.Height,
			Width:          f.Width,
			FPS:            f.FPS,
			VCodec:         f.VCodec,
			ACodec:         f.ACodec,
			Filesize:       f.Filesize,
			FilesizeApprox: f.FilesizeApprox,
			TBR:            f.TBR,
			FormatNote:     f.FormatNote,
		})
	}
	return formats, nil
}

// Download runs the tool and returns the path of the produced file.
func (e *Extractor) Download(ctx context.Context, req ports.DownloadRequest) (string, error) {
	if err := os.MkdirAll(filepath.Dir(req.OutputTemplate), 0o755); err != nil {
		return "", err
	}
	onLine := func(line string) {
		if tick, ok := parseProgressLine(line); ok {
			if req.OnProgress != nil {
				req.OnProgress(tick)
			}
			return
		}
		if tick, ok := parsePostProcessLine(line); ok && req.OnPostProcess != nil {
			req.OnPostProcess(tick)
		}
	}
	stderr, err := e.run(ctx, e.downloadArgs(req), onLine)
	if err != nil {
		return "", classifyRunError(stderr, err)
	}
	return findOutput(req.OutputTemplate)
}

// downloadArgs assembles the full flag set for one download run.
func (e *Extractor) downloadArgs(req ports.DownloadRequest) []string {
	args := []string{
		"--newline",
		"--no-warnings",
		"--no-playlist",
		"--progress-template", progressTemplate,
		"--progress-template", postProcessTemplate,
		"--socket-timeout", strconv.Itoa(e.SocketTimeout),
		"--retries", strconv.Itoa(e.Retries),
		"--fragment-retries", strconv.Itoa(e.FragmentRetries),
		"--concurrent-fragments", strconv.Itoa(e.ConcurrentFragments),
		"--http-chunk-size", e.HTTPChunkSize,
		"--buffer-size", e.BufferSize,
		"-o", req.OutputTemplate,
	}
	if req.Format != "" {
		args = append(args, "-f", req.Format)
	}
	if req.DownloadSections != "" {
		args = append(args, "--download-sections", req.DownloadSections)
		if req.ForceKeyframesAtCuts {
			args = append(args, "--force-keyframes-at-cuts")
		}
	}
	if req.RemuxContainer != "" {
		args = append(args, "--remux-video", req.RemuxContainer)
	}
	return append(args, req.URL)
}

type infoDoc struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Uploader  string      `json:"uploader"`
	Duration  float64     `json:"duration"`
	Thumbnail string      `json:"thumbnail"`
	Formats   []formatDoc `json:"formats"`
}

type formatDoc struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	Width          int     `json:"width"`
	FPS            float64 `json:"fps"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	TBR            float64 `json:"tbr"`
	FormatNote     string  `json:"format_note"`
}

func (e *Extractor) dumpInfo(ctx context.Context, url string) (infoDoc, error) {
	var out bytes.Buffer
	onLine := func(line string) {
		out.WriteString(line)
		out.WriteByte('\n')
	}
	stderr, err := e.run(ctx, []string{"-J", "--no-warnings", "--no-playlist", url}, onLine)
	if err != nil {
		return infoDoc{}, classifyRunError(stderr, err)
	}
	var info infoDoc
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		return infoDoc{}, &ExtractorError{Msg: "unparseable metadata output"}
	}
	return info, nil
}

func (e *Extractor) run(ctx context.Context, args []string, onLine func(string)) (string, error) {
	if e.runCommand != nil {
		return e.runCommand(ctx, args, onLine)
	}
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	if err := cmd.Start(); err != nil {
		return "", err
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	if err := cmd.Wait(); err != nil {
		e.logger().Debug("extractor exited with error",
			slog.String("error", err.Error()),
		)
		return stderr.String(), err
	}
	return stderr.String(), nil
}

// findOutput locates the produced file for the given output template.
// Literal templates resolve directly; templated names fall back to the
// newest finished file in the template's directory.
func findOutput(template string) (string, error) {
	if !strings.Contains(template, "%(") {
		if _, err := os.Stat(template); err != nil {
			return "", fmt.Errorf("expected output file missing: %s", template)
		}
		return template, nil
	}
	dir := filepath.Dir(template)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || isTransient(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, entry.Name())
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", errors.New("no output file produced in " + dir)
	}
	return newest, nil
}

// isTransient reports the tool's in-progress artifacts.
func isTransient(name string) bool {
	return strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".ytdl") ||
		strings.HasSuffix(name, ".temp")
}
