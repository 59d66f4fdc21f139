// conf/validate.go settings validation
package conf

import (
	"errors"
	"fmt"
)

// ValidateSettings checks the loaded settings for values that would prevent
// the application from operating and collects all problems found.
func ValidateSettings(settings *Settings) error {
	var errs []error

	if err := validateWebServerSettings(settings); err != nil {
		errs = append(errs, err)
	}
	if err := validateSpeechSettings(&settings.Speech); err != nil {
		errs = append(errs, err)
	}
	if err := validateCaptureSettings(&settings.Capture); err != nil {
		errs = append(errs, err)
	}
	if err := validateReconstructionSettings(&settings.Reconstruction); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateWebServerSettings(settings *Settings) error {
	if settings.WebServer.Enabled && settings.WebServer.Port == "" {
		return errors.New("webserver.port must not be empty when the webserver is enabled")
	}
	return nil
}

func validateSpeechSettings(speech *SpeechSettings) error {
	switch speech.Engine {
	case "google", "whisper":
	default:
		return fmt.Errorf("speech.engine must be \"google\" or \"whisper\", got %q", speech.Engine)
	}
	if speech.Language == "" {
		return errors.New("speech.language must not be empty")
	}
	if speech.Engine == "whisper" && speech.Whisper.BinaryPath == "" {
		return errors.New("speech.whisper.binarypath must not be empty when the whisper engine is selected")
	}
	return nil
}

func validateCaptureSettings(capture *CaptureSettings) error {
	if capture.Audio.SampleRate <= 0 {
		return fmt.Errorf("capture.audio.samplerate must be positive, got %d", capture.Audio.SampleRate)
	}
	if capture.Audio.ProcessInterval <= 0 {
		return fmt.Errorf("capture.audio.processinterval must be positive, got %d", capture.Audio.ProcessInterval)
	}
	if capture.Camera.CaptureInterval <= 0 {
		return fmt.Errorf("capture.camera.captureinterval must be positive, got %d", capture.Camera.CaptureInterval)
	}
	if capture.Export.BasePath == "" {
		return errors.New("capture.export.basepath must not be empty")
	}
	return nil
}

func validateReconstructionSettings(recon *ReconstructionSettings) error {
	if recon.ColmapPath == "" {
		return errors.New("reconstruction.colmappath must not be empty")
	}
	if recon.MinImages < 2 {
		return fmt.Errorf("reconstruction.minimages must be at least 2, got %d", recon.MinImages)
	}
	if recon.MaxImages < recon.MinImages {
		return fmt.Errorf("reconstruction.maximages (%d) must not be below reconstruction.minimages (%d)",
			recon.MaxImages, recon.MinImages)
	}
	return nil
}
