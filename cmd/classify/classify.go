package classify

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShashidharM0118/sitelenz/internal/classifier"
	"github.com/ShashidharM0118/sitelenz/internal/conf"
)

// Command creates the classify command for classifying image files.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [image ...]",
		Short: "Classify wall images",
		Long:  "Classify one or more wall images for surface defects and print the results as JSON.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return classifyFiles(settings, args)
		},
	}
}

func classifyFiles(settings *conf.Settings, paths []string) error {
	cls, err := classifier.New(settings)
	if err != nil {
		return err
	}
	defer cls.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}

		prediction, err := cls.PredictReader(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to classify %s: %w", path, err)
		}

		if err := enc.Encode(map[string]any{
			"file":       path,
			"prediction": prediction.Label,
			"confidence": prediction.Confidence,
		}); err != nil {
			return err
		}
	}

	return nil
}
