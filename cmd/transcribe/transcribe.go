package transcribe

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/speech"
)

// Command creates the transcribe command for transcribing WAV files.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe [input.wav ...]",
		Short: "Transcribe audio files",
		Long:  "Transcribe one or more 16-bit PCM WAV files using the configured speech engine.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transcribeFiles(settings, args)
		},
	}
}

func transcribeFiles(settings *conf.Settings, paths []string) error {
	transcriber, err := speech.New(settings, nil)
	if err != nil {
		return err
	}

	for _, path := range paths {
		chunk, err := readWAV(path)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		text, err := transcriber.Transcribe(ctx, chunk)
		cancel()
		if err != nil {
			if errors.Is(err, speech.ErrNoSpeech) {
				fmt.Printf("%s: no speech detected\n", path)
				continue
			}
			return fmt.Errorf("failed to transcribe %s: %w", path, err)
		}

		fmt.Printf("%s: %s\n", path, text)
	}

	return nil
}

// readWAV loads a 16-bit PCM WAV file into a speech chunk.
func readWAV(path string) (speech.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return speech.Chunk{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return speech.Chunk{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if decoder.BitDepth != 16 {
		return speech.Chunk{}, fmt.Errorf("%s: unsupported bit depth %d, expected 16", path, decoder.BitDepth)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}

	return speech.Chunk{
		PCM:        pcm,
		SampleRate: int(decoder.SampleRate),
		WAVPath:    path,
	}, nil
}
