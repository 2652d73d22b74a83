package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FFmpeg is the VideoCodec/AudioCodec/ImageCodec implementation shelling
// out to the ffmpeg/ffprobe binaries on PATH, the way the teacher's
// tui/audio.go shells out to a platform audio player: build an
// *exec.Cmd, run it, surface stderr on failure.
type FFmpeg struct {
	// BinDir, if set, is prepended to "ffmpeg"/"ffprobe" so a bundled
	// binary can be used instead of relying on PATH.
	BinDir string
}

func (f *FFmpeg) bin(name string) string {
	if f.BinDir == "" {
		return name
	}
	return filepath.Join(f.BinDir, name)
}

func (f *FFmpeg) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, f.bin(name), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("codec: %s %s: %w: %s", name, strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	BitRate      string `json:"bit_rate"`
	SampleRate   string `json:"sample_rate"`
	RFrameRate   string `json:"r_frame_rate"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

func (f *FFmpeg) probe(ctx context.Context, path string) (ffprobeOutput, error) {
	out, err := f.run(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	if err != nil {
		return ffprobeOutput{}, err
	}
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return ffprobeOutput{}, fmt.Errorf("codec: parse ffprobe output: %w", err)
	}
	return probe, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return parseFloat(s)
	}
	num := parseFloat(parts[0])
	den := parseFloat(parts[1])
	if den == 0 {
		return 0
	}
	return num / den
}

func (f *FFmpeg) ProbeVideo(ctx context.Context, path string) (VideoProbe, error) {
	probe, err := f.probe(ctx, path)
	if err != nil {
		return VideoProbe{}, err
	}
	out := VideoProbe{
		DurationMs: int64(parseFloat(probe.Format.Duration) * 1000),
		BitRate:    int64(parseFloat(probe.Format.BitRate)),
	}
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			out.Width = s.Width
			out.Height = s.Height
			out.FPS = parseFrameRate(s.RFrameRate)
		case "audio":
			out.HasAudio = true
			out.AudioBitRate = int64(parseFloat(s.BitRate))
			out.AudioDurationMs = out.DurationMs
		}
	}
	return out, nil
}

func (f *FFmpeg) Thumbnail(ctx context.Context, path string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "thumbnail-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("codec: temp file: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	_, err = f.run(ctx, "ffmpeg",
		"-y", "-ss", "0", "-i", path,
		"-frames:v", "1", "-q:v", "2",
		tmp.Name(),
	)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(tmp.Name())
}

// Frames extracts key frames at fps frames per second into a temp
// directory, then reads them back as Frame values keyed by millisecond
// offset (offset = index/fps).
func (f *FFmpeg) Frames(ctx context.Context, path string, fps float64) ([]Frame, error) {
	if fps <= 0 {
		fps = 1.0
	}
	dir, err := os.MkdirTemp("", "frames-*")
	if err != nil {
		return nil, fmt.Errorf("codec: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pattern := filepath.Join(dir, "frame-%06d.jpg")
	_, err = f.run(ctx, "ffmpeg",
		"-y", "-i", path,
		"-vf", fmt.Sprintf("fps=%g", fps),
		"-q:v", "2",
		pattern,
	)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("codec: read frames dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	frames := make([]Frame, 0, len(names))
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("codec: read frame %s: %w", name, err)
		}
		frames = append(frames, Frame{
			TimestampMs: int64(float64(i) / fps * 1000),
			JPEG:        data,
		})
	}
	return frames, nil
}

func (f *FFmpeg) DemuxAudio(ctx context.Context, path string) ([]byte, error) {
	return f.resampleMono16k(ctx, path)
}

func (f *FFmpeg) ProbeAudio(ctx context.Context, path string) (AudioProbe, error) {
	probe, err := f.probe(ctx, path)
	if err != nil {
		return AudioProbe{}, err
	}
	out := AudioProbe{
		DurationMs: int64(parseFloat(probe.Format.Duration) * 1000),
		BitRate:    int64(parseFloat(probe.Format.BitRate)),
	}
	for _, s := range probe.Streams {
		if s.CodecType == "audio" {
			rate, _ := strconv.Atoi(s.SampleRate)
			out.SampleRate = rate
		}
	}
	return out, nil
}

func (f *FFmpeg) ResampleMono16k(ctx context.Context, path string) ([]byte, error) {
	return f.resampleMono16k(ctx, path)
}

func (f *FFmpeg) resampleMono16k(ctx context.Context, path string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "audio-*.wav")
	if err != nil {
		return nil, fmt.Errorf("codec: temp file: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	_, err = f.run(ctx, "ffmpeg",
		"-y", "-i", path,
		"-ac", "1", "-ar", "16000",
		"-c:a", "pcm_s16le",
		tmp.Name(),
	)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(tmp.Name())
}

func (f *FFmpeg) ProbeImage(ctx context.Context, path string) (int, int, string, error) {
	probe, err := f.probe(ctx, path)
	if err != nil {
		return 0, 0, "", err
	}
	for _, s := range probe.Streams {
		if s.CodecType == "video" { // ffprobe reports still images as a video stream
			return s.Width, s.Height, strings.ToLower(filepath.Ext(path)), nil
		}
	}
	return 0, 0, "", fmt.Errorf("codec: no image stream found in %s", path)
}

var (
	_ VideoCodec = (*FFmpeg)(nil)
	_ AudioCodec = (*FFmpeg)(nil)
	_ ImageCodec = (*FFmpeg)(nil)
)
