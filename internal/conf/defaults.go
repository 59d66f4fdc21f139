// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "SiteLenz")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/sitelenz.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "5000")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("classifier.modelpath", "models/vit_wall_defects.tflite")
	viper.SetDefault("classifier.threads", 0)
	viper.SetDefault("classifier.optional", false)
	viper.SetDefault("classifier.threshold", 0.0)

	viper.SetDefault("speech.engine", "google")
	viper.SetDefault("speech.language", "en-US")
	viper.SetDefault("speech.google.apikey", "")
	viper.SetDefault("speech.whisper.binarypath", "whisper-cli")
	viper.SetDefault("speech.whisper.modelpath", "models/ggml-base.en.bin")

	viper.SetDefault("capture.audio.device", "")
	viper.SetDefault("capture.audio.samplerate", 16000)
	viper.SetDefault("capture.audio.processinterval", 5)

	viper.SetDefault("capture.camera.device", "0")
	viper.SetDefault("capture.camera.width", 640)
	viper.SetDefault("capture.camera.height", 480)
	viper.SetDefault("capture.camera.captureinterval", 5)

	viper.SetDefault("capture.export.basepath", "logs/")
	viper.SetDefault("capture.export.audiodir", "audio")
	viper.SetDefault("capture.export.framedir", "frames")
	viper.SetDefault("capture.export.transcriptdir", "transcripts")
	viper.SetDefault("capture.export.classificationdir", "classifications")
	viper.SetDefault("capture.export.unifieddir", "unified")

	viper.SetDefault("reconstruction.colmappath", "colmap")
	viper.SetDefault("reconstruction.sessionsdir", "reconstruction/sessions")
	viper.SetDefault("reconstruction.outputdir", "reconstruction/output")
	viper.SetDefault("reconstruction.minimages", 10)
	viper.SetDefault("reconstruction.maximages", 200)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "sitelenz.db")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
