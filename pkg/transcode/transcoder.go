package transcode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"baraagdl/pkg/config"
	"baraagdl/pkg/logger"
)

// VideoExtension is the attachment extension that triggers transcoding
const VideoExtension = ".mp4"

// Runner executes the external transcoding tool. It exists so tests can
// observe invocations without spawning ffmpeg.
type Runner interface {
	Run(ctx context.Context, path string, args []string) error
}

// execRunner runs ffmpeg as a subprocess
type execRunner struct{}

func (execRunner) Run(ctx context.Context, path string, args []string) error {
	cmd := exec.CommandContext(ctx, path, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Transcoder produces looping-image derivatives from downloaded videos
type Transcoder struct {
	settings config.Settings
	runner   Runner
	logger   logger.Logger
}

// New creates a Transcoder for the given settings
func New(settings config.Settings, log logger.Logger) *Transcoder {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Transcoder{
		settings: settings,
		runner:   execRunner{},
		logger:   log,
	}
}

// NewWithRunner creates a Transcoder with a custom runner (for tests)
func NewWithRunner(settings config.Settings, runner Runner, log logger.Logger) *Transcoder {
	t := New(settings, log)
	t.runner = runner
	return t
}

// Enabled reports whether transcoding is switched on at all
func (t *Transcoder) Enabled() bool {
	return t.settings.UseFFmpeg
}

// MaybeConvert produces the enabled derivative formats for a downloaded
// video file. Files over the configured size limit are skipped entirely.
// Conversion failures are logged and non-fatal: one bad file or format
// never aborts the run.
func (t *Transcoder) MaybeConvert(ctx context.Context, videoPath string, sizeMB float64) {
	if !t.settings.UseFFmpeg {
		return
	}

	if sizeMB > t.settings.FileSizeLimit {
		t.logger.InfoWithFields("skipping transcode, file over size limit", map[string]interface{}{
			"file":     videoPath,
			"size_mb":  sizeMB,
			"limit_mb": t.settings.FileSizeLimit,
		})
		return
	}

	ffmpeg, err := t.resolveTool()
	if err != nil {
		t.logger.WithError(err).Error("ffmpeg not available, skipping transcode")
		return
	}

	if t.settings.ConvertGIF {
		t.convert(ctx, ffmpeg, videoPath, "gif")
	}
	if t.settings.ConvertAPNG {
		t.convert(ctx, ffmpeg, videoPath, "apng")
	}
}

// convert produces a single derivative, skipping when the output exists
func (t *Transcoder) convert(ctx context.Context, ffmpeg, videoPath, format string) {
	output := OutputPath(videoPath, format)

	if _, err := os.Stat(output); err == nil {
		t.logger.DebugWithFields("derivative already exists, skipping", map[string]interface{}{
			"output": output,
		})
		return
	}

	args := Args(videoPath, output, format)

	t.logger.InfoWithFields("transcoding", map[string]interface{}{
		"input":  videoPath,
		"output": output,
		"format": format,
	})

	if err := t.runner.Run(ctx, ffmpeg, args); err != nil {
		// Non-fatal: log and move on to the next format or file
		t.logger.WithError(err).WithFields(map[string]interface{}{
			"input":  videoPath,
			"format": format,
		}).Error("transcode failed")
		os.Remove(output)
		return
	}

	t.logger.InfoWithFields("transcode complete", map[string]interface{}{
		"output": output,
	})
}

// resolveTool locates the ffmpeg binary, resolving the System sentinel
// against PATH
func (t *Transcoder) resolveTool() (string, error) {
	path := t.settings.FFmpegPath
	if path == "" || path == config.FFmpegPathSystem {
		resolved, err := exec.LookPath("ffmpeg")
		if err != nil {
			return "", fmt.Errorf("ffmpeg not found on PATH: %w", err)
		}
		return resolved, nil
	}

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("configured ffmpeg path not usable: %w", err)
	}
	return path, nil
}

// OutputPath derives the derivative file path for a source video
func OutputPath(videoPath, format string) string {
	base := strings.TrimSuffix(videoPath, VideoExtension)
	return base + "." + format
}

// Args builds the fixed ffmpeg argument list for a derivative format.
// The GIF pipeline is a two-pass filter graph in a single invocation:
// an adaptive palette is generated from the source, then the source is
// re-encoded against that palette with ordered (bayer) dithering.
func Args(input, output, format string) []string {
	switch format {
	case "gif":
		return []string{
			"-i", input,
			"-filter_complex", "[0:v]split[a][b];[a]palettegen=stats_mode=diff[p];[b][p]paletteuse=dither=bayer:bayer_scale=5",
			"-loop", "0",
			"-y", output,
		}
	case "apng":
		return []string{
			"-i", input,
			"-f", "apng",
			"-plays", "0",
			"-y", output,
		}
	}
	return nil
}
