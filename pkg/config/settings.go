package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// SettingsFileName is the transcode settings file in the working directory.
const SettingsFileName = "baraag_dl_settings"

// FFmpegPathSystem is the sentinel meaning "resolve ffmpeg from PATH".
const FFmpegPathSystem = "System"

// Settings holds the transcoding configuration persisted as plain key=value
// lines. The file format and defaults are an on-disk compatibility surface:
// exactly five keys, order-insensitive, booleans written Python-style
// (True/False). Anything else regenerates the file with defaults.
type Settings struct {
	UseFFmpeg     bool
	FFmpegPath    string
	ConvertGIF    bool
	ConvertAPNG   bool
	FileSizeLimit float64 // megabytes
}

// DefaultSettings returns the hardcoded settings defaults
func DefaultSettings() Settings {
	return Settings{
		UseFFmpeg:     false,
		FFmpegPath:    FFmpegPathSystem,
		ConvertGIF:    true,
		ConvertAPNG:   true,
		FileSizeLimit: 50.0,
	}
}

// settingsKeys are the mandatory keys, in the order they are written.
var settingsKeys = []string{
	"use_ffmpeg",
	"ffmpeg_path",
	"convert_gif",
	"convert_apng",
	"file_size_limit",
}

// LoadSettings reads the settings file at path. A missing file, missing or
// extra keys, or unparsable values all cause the defaults to be written
// back to disk and returned.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return regenerateSettings(path)
		}
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	settings, err := ParseSettings(string(data))
	if err != nil {
		return regenerateSettings(path)
	}

	return settings, nil
}

// ParseSettings parses and validates the key=value settings format.
func ParseSettings(data string) (Settings, error) {
	values := make(map[string]string)

	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return Settings{}, fmt.Errorf("malformed settings line: %q", line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if _, dup := values[key]; dup {
			return Settings{}, fmt.Errorf("duplicate settings key: %q", key)
		}
		values[key] = value
	}

	if len(values) != len(settingsKeys) {
		return Settings{}, fmt.Errorf("expected %d settings keys, got %d", len(settingsKeys), len(values))
	}
	for _, key := range settingsKeys {
		if _, ok := values[key]; !ok {
			return Settings{}, fmt.Errorf("missing settings key: %q", key)
		}
	}

	useFFmpeg, err := strconv.ParseBool(values["use_ffmpeg"])
	if err != nil {
		return Settings{}, fmt.Errorf("invalid use_ffmpeg value: %w", err)
	}
	convertGIF, err := strconv.ParseBool(values["convert_gif"])
	if err != nil {
		return Settings{}, fmt.Errorf("invalid convert_gif value: %w", err)
	}
	convertAPNG, err := strconv.ParseBool(values["convert_apng"])
	if err != nil {
		return Settings{}, fmt.Errorf("invalid convert_apng value: %w", err)
	}
	sizeLimit, err := strconv.ParseFloat(values["file_size_limit"], 64)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid file_size_limit value: %w", err)
	}

	ffmpegPath := values["ffmpeg_path"]
	if ffmpegPath == "" {
		return Settings{}, fmt.Errorf("ffmpeg_path must not be empty")
	}

	settings := Settings{
		UseFFmpeg:     useFFmpeg,
		FFmpegPath:    ffmpegPath,
		ConvertGIF:    convertGIF,
		ConvertAPNG:   convertAPNG,
		FileSizeLimit: sizeLimit,
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

// Validate checks settings invariants beyond parseability
func (s Settings) Validate() error {
	if s.FileSizeLimit <= 0 {
		return fmt.Errorf("file_size_limit must be positive, got %g", s.FileSizeLimit)
	}
	return nil
}

// Save writes the settings to path in the key=value format
func (s Settings) Save(path string) error {
	var b strings.Builder
	for _, key := range settingsKeys {
		fmt.Fprintf(&b, "%s=%s\n", key, s.formatValue(key))
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// formatValue renders a settings value in the file's notation
func (s Settings) formatValue(key string) string {
	switch key {
	case "use_ffmpeg":
		return formatBool(s.UseFFmpeg)
	case "ffmpeg_path":
		return s.FFmpegPath
	case "convert_gif":
		return formatBool(s.ConvertGIF)
	case "convert_apng":
		return formatBool(s.ConvertAPNG)
	case "file_size_limit":
		return strconv.FormatFloat(s.FileSizeLimit, 'f', 1, 64)
	}
	return ""
}

// Booleans are written Python-style for compatibility with existing
// settings files; ParseBool accepts both notations on the way in.
func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// regenerateSettings writes defaults to disk and returns them
func regenerateSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if err := settings.Save(path); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Keys returns the mandatory settings keys, sorted. Mainly for diagnostics.
func Keys() []string {
	keys := append([]string(nil), settingsKeys...)
	sort.Strings(keys)
	return keys
}
