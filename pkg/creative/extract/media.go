package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tendant/creative-analysis/pkg/creative"
)

// ErrInvalidFrameRate indicates a frame rate that is not a num/den pair.
var ErrInvalidFrameRate = errors.New("invalid frame rate")

// MediaInfo is the container and first-video-stream metadata of a media
// file. Pointer fields are nil when the prober did not report them.
type MediaInfo struct {
	Duration    *float64
	BitrateKbps *int
	Width       int
	Height      int
	FrameRate   *float64
	HasVideo    bool
}

// Dimensions returns the video stream dimensions, or nil when there is no
// video stream or its size is unknown.
func (m *MediaInfo) Dimensions() *creative.Dimensions {
	if m == nil || !m.HasVideo || m.Width <= 0 || m.Height <= 0 {
		return nil
	}
	return &creative.Dimensions{Width: m.Width, Height: m.Height}
}

// Prober extracts media metadata from a byte buffer.
type Prober interface {
	Probe(ctx context.Context, data []byte, nameHint string) (*MediaInfo, error)
}

// FFProbe shells out to the ffprobe binary.
type FFProbe struct {
	// Path to the ffprobe binary; "ffprobe" resolves through PATH.
	Path string
	// TempDir for the materialized buffer; empty uses os.TempDir.
	TempDir string
}

// NewFFProbe returns an FFProbe using path, or "ffprobe" when empty.
func NewFFProbe(path string) *FFProbe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFProbe{Path: path}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format *struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// Probe writes data to a temporary file and runs ffprobe against it.
func (p *FFProbe) Probe(ctx context.Context, data []byte, nameHint string) (*MediaInfo, error) {
	tmp, err := os.CreateTemp(p.TempDir, "creative-*"+filepath.Ext(filepath.Base(nameHint)))
	if err != nil {
		return nil, fmt.Errorf("create temp file for ffprobe: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			slog.Warn("Failed to remove ffprobe temp file", "path", tmp.Name(), "error", err)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file for ffprobe: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file for ffprobe: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.Path, "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", tmp.Name())
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParseFFProbeJSON(out.Bytes())
}

// ParseFFProbeJSON converts ffprobe's JSON output into MediaInfo.
func ParseFFProbeJSON(raw []byte) (*MediaInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if probe.Format == nil {
		return nil, errors.New("ffprobe output has no format section")
	}

	info := &MediaInfo{}
	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && d >= 0 {
		info.Duration = &d
	}
	if bps, err := strconv.ParseFloat(probe.Format.BitRate, 64); err == nil && bps > 0 {
		kbps := int(math.Round(bps / 1000))
		info.BitrateKbps = &kbps
	}
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.HasVideo = true
		info.Width = s.Width
		info.Height = s.Height
		if fps, err := ParseFrameRate(s.RFrameRate); err == nil {
			info.FrameRate = &fps
		}
		break
	}
	return info, nil
}

// ParseFrameRate parses a rational "num/den" frame rate, or a plain number.
// A zero denominator is rejected.
func ParseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidFrameRate
	}
	numStr, denStr, isRatio := strings.Cut(s, "/")
	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		if isRatio {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
		}
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
		}
		return f, nil
	}
	if num < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
	}
	if !isRatio {
		return float64(num), nil
	}
	den, err := strconv.ParseInt(strings.TrimSpace(denStr), 10, 64)
	if err != nil || den <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
	}
	return float64(num) / float64(den), nil
}

// BreakerSettings tune the circuit breaker around a Prober.
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	Logger              *slog.Logger
}

// BreakerProber trips after repeated probe failures so a missing or broken
// prober fails fast instead of paying the exec cost on every run.
type BreakerProber struct {
	next Prober
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerProber wraps next in a circuit breaker.
func NewBreakerProber(next Prober, st BreakerSettings) *BreakerProber {
	if st.Name == "" {
		st.Name = "media-prober"
	}
	if st.ConsecutiveFailures == 0 {
		st.ConsecutiveFailures = 5
	}
	if st.OpenTimeout == 0 {
		st.OpenTimeout = 30 * time.Second
	}
	logger := st.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := st.ConsecutiveFailures
	return &BreakerProber{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        st.Name,
			MaxRequests: 1,
			Timeout:     st.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Prober circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Probe runs the wrapped prober unless the breaker is open.
func (b *BreakerProber) Probe(ctx context.Context, data []byte, nameHint string) (*MediaInfo, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Probe(ctx, data, nameHint)
	})
	if err != nil {
		return nil, err
	}
	return res.(*MediaInfo), nil
}

// State reports the breaker state, e.g. for readiness checks.
func (b *BreakerProber) State() gobreaker.State {
	return b.cb.State()
}
