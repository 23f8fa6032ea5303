package ytdlp

import (
	"strconv"
	"strings"

	"mediafetch/internal/domain/ports"
)

// Machine-readable progress lines. The tool substitutes each field and
// prints one line per tick; "NA" marks fields without a value.
const (
	progressPrefix   = "PROGRESS|"
	progressTemplate = "download:" + progressPrefix +
		"%(progress.status)s|%(progress.downloaded_bytes)s|%(progress.total_bytes)s|%(progress.total_bytes_estimate)s|%(progress.speed)s|%(progress.eta)s"

	postProcessPrefix   = "POSTPROCESS|"
	postProcessTemplate = "postprocess:" + postProcessPrefix +
		"%(progress.status)s|%(postprocessor)s"
)

// parseProgressLine decodes one templated download tick. ok is false
// for any other output line.
func parseProgressLine(line string) (ports.ProgressTick, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, progressPrefix) {
		return ports.ProgressTick{}, false
	}
	fields := strings.Split(strings.TrimPrefix(line, progressPrefix), "|")
	if len(fields) != 6 {
		return ports.ProgressTick{}, false
	}
	return ports.ProgressTick{
		Status:             fields[0],
		DownloadedBytes:    parseBytes(fields[1]),
		TotalBytes:         parseBytes(fields[2]),
		TotalBytesEstimate: parseBytes(fields[3]),
		Speed:              parseFloat(fields[4]),
		ETASeconds:         parseBytes(fields[5]),
	}, true
}

// parsePostProcessLine decodes one templated post-processor tick.
func parsePostProcessLine(line string) (ports.PostProcessTick, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, postProcessPrefix) {
		return ports.PostProcessTick{}, false
	}
	fields := strings.Split(strings.TrimPrefix(line, postProcessPrefix), "|")
	if len(fields) != 2 {
		return ports.PostProcessTick{}, false
	}
	return ports.PostProcessTick{Status: fields[0], PostProcessor: fields[1]}, true
}

// parseBytes tolerates the tool printing integers as floats.
func parseBytes(raw string) int64 {
	f := parseFloat(raw)
	if f <= 0 {
		return 0
	}
	return int64(f)
}

func parseFloat(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "NA" || raw == "None" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}
