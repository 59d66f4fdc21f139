// config.go: This file contains the configuration for the SiteLenz application. It defines the settings struct and functions to load and save the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // Path to the log file
	Rotation RotationType // Type of log rotation
	MaxSize  int64        // Max size in bytes for RotationSize
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// ClassifierSettings contains settings for the wall defect classifier.
type ClassifierSettings struct {
	ModelPath string  // path to the ViT tflite model file
	Threads   int     // number of tflite interpreter threads, 0 for runtime default
	Optional  bool    // true to keep serving when the model fails to load
	Threshold float64 // minimum confidence (0-100) for a classification to be logged
}

// GoogleSpeechSettings contains settings for the Google Cloud Speech engine.
type GoogleSpeechSettings struct {
	APIKey string // API key for the speech-to-text REST endpoint
}

// WhisperSettings contains settings for the local whisper.cpp engine.
type WhisperSettings struct {
	BinaryPath string // path to the whisper-cli executable
	ModelPath  string // path to the whisper model file
}

// SpeechSettings contains settings for speech recognition.
type SpeechSettings struct {
	Engine   string // recognition engine, "google" or "whisper"
	Language string // language code for recognition, e.g. "en-US"
	Google   GoogleSpeechSettings
	Whisper  WhisperSettings
}

// AudioCaptureSettings contains settings for microphone capture.
type AudioCaptureSettings struct {
	Device          string // audio capture device name, empty for default
	SampleRate      int    // capture sample rate in Hz
	ProcessInterval int    // seconds of audio per transcription chunk
}

// CameraCaptureSettings contains settings for camera capture.
type CameraCaptureSettings struct {
	Device          string // camera device id or path, empty for device 0
	Width           int // requested frame width
	Height          int // requested frame height
	CaptureInterval int // seconds between classified frames
}

// CaptureSettings contains settings for the unified monitoring loops.
type CaptureSettings struct {
	Audio  AudioCaptureSettings
	Camera CameraCaptureSettings
	Export struct {
		BasePath          string // base directory for capture logs
		AudioDir          string // subdirectory for WAV chunks
		FrameDir          string // subdirectory for captured frames
		TranscriptDir     string // subdirectory for transcript session files
		ClassificationDir string // subdirectory for classification session files
		UnifiedDir        string // subdirectory for synchronized capture logs
	}
}

// ReconstructionSettings contains settings for the 3D reconstruction pipeline.
type ReconstructionSettings struct {
	ColmapPath  string // path to the colmap executable
	SessionsDir string // directory for reconstruction session workspaces
	OutputDir   string // directory for finished models
	MinImages   int    // minimum images required before a build is accepted
	MaxImages   int    // maximum images accepted per session
}

// SQLiteSettings contains settings for the SQLite history database.
type SQLiteSettings struct {
	Enabled bool   // true to mirror session entries into SQLite
	Path    string // path to the SQLite database file
}

// SentrySettings contains settings for error telemetry.
type SentrySettings struct {
	Enabled bool   // true to enable Sentry error reporting
	DSN     string // Sentry project DSN
}

// Settings contains all configuration for the SiteLenz backend.
type Settings struct {
	Debug bool // true to enable debug logging

	Version   string `yaml:"-"` // build version, runtime value
	BuildDate string `yaml:"-"` // build date, runtime value

	Main struct {
		Name string    // node name for this deployment
		Log  LogConfig // main log file settings
	}

	WebServer struct {
		Enabled bool   // true to run the REST API
		Port    string // port to listen on
		Debug   bool   // true to enable API debug logging
	}

	Classifier     ClassifierSettings
	Speech         SpeechSettings
	Capture        CaptureSettings
	Reconstruction ReconstructionSettings

	Output struct {
		SQLite SQLiteSettings
	}

	Sentry SentrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Defaults defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading embedded config file: %v", err)
	}
	return string(data)
}

// Setting returns the current settings instance, loading it if needed.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetDefaultConfigPaths returns the config search paths in priority order:
// the working directory first, then the OS user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fall back to the working directory only
		return paths, nil //nolint:nilerr // degraded path list is still usable
	}

	paths = append(paths, filepath.Join(configDir, "sitelenz"))
	return paths, nil
}

// FindConfigFile returns the path of the first config file found in the
// default search paths.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		configFilePath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFilePath); err == nil {
			return configFilePath, nil
		}
	}

	return "", errors.New("config file not found")
}

// SaveSettings writes the current settings back to the config file.
func SaveSettings() error {
	settingsMutex.RLock()
	settingsCopy := *settingsInstance
	settingsMutex.RUnlock()

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write through a temporary file for an atomic replace
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
