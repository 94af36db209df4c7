package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
)

// waveformTool is the external renderer looked up on PATH.
const waveformTool = "audiowaveform"

// Waveform is the parsed audiowaveform JSON output.
type Waveform struct {
	SampleRate      int   `json:"sample_rate"`
	SamplesPerPixel int   `json:"samples_per_pixel"`
	Bits            int   `json:"bits"`
	Length          int   `json:"length"`
	Data            []int `json:"data"`
}

// RMS summarizes a waveform's level.
type RMS struct {
	RMS       float64 `json:"rms"`
	Peak      float64 `json:"peak"`
	RMSToPeak float64 `json:"rmsToPeak"`
}

// waveformFor renders a track's waveform by downloading its audio and running
// the external tool. format is "json" or "png".
func (s *Service) waveformFor(ctx context.Context, audioURL, format string) ([]byte, error) {
	toolPath, err := exec.LookPath(waveformTool)
	if err != nil {
		return nil, apperrors.NewMissingDependencyError(waveformTool)
	}

	workDir, err := os.MkdirTemp("", "vibin-waveform-")
	if err != nil {
		return nil, apperrors.NewInternalError("create waveform workspace: " + err.Error())
	}
	defer os.RemoveAll(workDir)

	audioPath, err := s.downloadAudio(ctx, audioURL, workDir)
	if err != nil {
		return nil, err
	}

	outPath := filepath.Join(workDir, "waveform."+format)
	args := []string{
		"-i", audioPath,
		"-o", outPath,
		"--bits", "16",
		"--split-channels=false",
	}
	if format == "png" {
		args = append(args, "--width", "800", "--height", "250")
	}

	cmd := exec.CommandContext(ctx, toolPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("%s failed: %v: %s", waveformTool, err, output))
	}

	rendered, err := os.ReadFile(outPath)
	if err != nil {
		return nil, apperrors.NewInternalError("read waveform output: " + err.Error())
	}
	return rendered, nil
}

// rmsFor computes level statistics from the JSON waveform.
func (s *Service) rmsFor(ctx context.Context, audioURL string) (RMS, error) {
	rendered, err := s.waveformFor(ctx, audioURL, "json")
	if err != nil {
		return RMS{}, err
	}

	var waveform Waveform
	if err := json.Unmarshal(rendered, &waveform); err != nil {
		return RMS{}, apperrors.NewInternalError("parse waveform output: " + err.Error())
	}
	if len(waveform.Data) == 0 {
		return RMS{}, nil
	}

	// 16-bit output; normalize samples to [-1, 1].
	const scale = 1 << 15
	var sumSquares, peak float64
	for _, sample := range waveform.Data {
		value := math.Abs(float64(sample)) / scale
		sumSquares += value * value
		if value > peak {
			peak = value
		}
	}
	rms := math.Sqrt(sumSquares / float64(len(waveform.Data)))

	result := RMS{RMS: rms, Peak: peak}
	if peak > 0 {
		result.RMSToPeak = rms / peak
	}
	return result, nil
}

// downloadAudio fetches the track's audio URL into the workspace. The
// extension is preserved so the tool picks the right decoder.
func (s *Service) downloadAudio(ctx context.Context, audioURL, workDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", apperrors.NewInternalError(err.Error())
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewMediaServerError("audio download failed: "+err.Error(), nil)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", apperrors.NewMediaServerError(fmt.Sprintf("audio download returned http %d", resp.StatusCode), nil)
	}

	ext := filepath.Ext(audioURL)
	if ext == "" || len(ext) > 6 {
		ext = ".audio"
	}
	audioPath := filepath.Join(workDir, "track"+ext)

	out, err := os.Create(audioPath)
	if err != nil {
		return "", apperrors.NewInternalError(err.Error())
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", apperrors.NewInternalError("write audio file: " + err.Error())
	}
	return audioPath, nil
}
