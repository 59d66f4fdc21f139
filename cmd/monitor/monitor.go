package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ShashidharM0118/sitelenz/internal/capture"
	"github.com/ShashidharM0118/sitelenz/internal/classifier"
	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/session"
	"github.com/ShashidharM0118/sitelenz/internal/speech"
)

// Command creates the monitor command which records a capture session
// from the local microphone and camera without starting the API server.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Record an inspection session",
		Long:  "Capture microphone audio and camera frames until interrupted, saving transcripts and classifications to session files.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runMonitor(settings *conf.Settings) error {
	store, err := session.NewStore(settings)
	if err != nil {
		return err
	}

	var predictor capture.Predictor
	cls, err := classifier.New(settings)
	if err != nil {
		slog.Warn("defect model unavailable, frames will not be classified", "error", err)
	} else {
		predictor = cls
		defer cls.Close()
	}

	transcriber, err := speech.New(settings, nil)
	if err != nil {
		slog.Warn("speech engine unavailable, audio will not be transcribed", "error", err)
		transcriber = nil
	}

	manager := capture.NewManager(settings, store, predictor, transcriber, nil, nil)

	var sessionID string
	var stopCapture func() error
	switch {
	case predictor != nil && transcriber != nil:
		sessionID, err = manager.StartUnified()
		stopCapture = manager.StopUnified
	case transcriber != nil:
		sessionID, err = manager.StartAudio()
		stopCapture = manager.StopAudio
	case predictor != nil:
		sessionID, err = manager.StartCamera()
		stopCapture = manager.StopCamera
	default:
		return fmt.Errorf("neither the defect model nor a speech engine is available, nothing to record")
	}
	if err != nil {
		return err
	}
	fmt.Printf("Recording session %s, press Ctrl+C to stop\n", sessionID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("Stopping capture")
	return stopCapture()
}

// setupFlags configures flags specific to the monitor command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Capture.Audio.Device, "audio-device", viper.GetString("capture.audio.device"), "Audio capture device name")
	cmd.Flags().StringVar(&settings.Capture.Camera.Device, "camera-device", viper.GetString("capture.camera.device"), "Camera device index or path")
	cmd.Flags().StringVar(&settings.Capture.Export.BasePath, "export-path", viper.GetString("capture.export.basepath"), "Base directory for session files")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
