package transcribestream

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ncecere/voice_gateway/internal/pipeline"
)

// convertToRawPCM re-encodes inputPath to single-channel signed-16-bit
// little-endian PCM at sampleRate, writing outputPath. The streaming
// service only accepts raw PCM at the negotiated rate.
func convertToRawPCM(ctx context.Context, ffmpegPath, inputPath, outputPath string, sampleRate int) error {
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-y",
		"-i", inputPath,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-f", "s16le",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return pipeline.Wrap(pipeline.StepConversion, fmt.Errorf("ffmpeg: %w: %s", err, detail))
	}
	return nil
}
