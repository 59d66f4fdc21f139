package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ShashidharM0118/sitelenz/cmd/classify"
	"github.com/ShashidharM0118/sitelenz/cmd/monitor"
	"github.com/ShashidharM0118/sitelenz/cmd/serve"
	"github.com/ShashidharM0118/sitelenz/cmd/transcribe"
	"github.com/ShashidharM0118/sitelenz/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sitelenz",
		Short: "SiteLenz building inspection backend",
		Long:  "SiteLenz captures audio notes and camera frames on site, classifies wall defects, and reconstructs rooms in 3D.",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		classify.Command(settings),
		transcribe.Command(settings),
		monitor.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines global flags and binds them to viper so command
// line arguments take precedence over the config file.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Classifier.ModelPath, "model", viper.GetString("classifier.modelpath"), "Path to the defect model file")
	rootCmd.PersistentFlags().StringVar(&settings.Speech.Engine, "engine", viper.GetString("speech.engine"), "Speech engine, google or whisper")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
