package extract

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

const ocrTimeout = 2 * time.Minute

// ocrRunner shells out to tesseract. Availability is detected once at
// construction; when the binary is absent every call returns empty text.
type ocrRunner struct {
	binary    string
	lang      string
	available bool
	logger    *zap.Logger

	// run is swappable for tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func newOCRRunner(binary, lang string, logger *zap.Logger) *ocrRunner {
	if binary == "" {
		binary = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	_, err := exec.LookPath(binary)
	return &ocrRunner{
		binary:    binary,
		lang:      lang,
		available: err == nil,
		logger:    logger,
		run:       runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = nil
	err := cmd.Run()
	return out.Bytes(), err
}

// Available reports whether the OCR binary was found on PATH.
func (o *ocrRunner) Available() bool { return o.available }

// Text runs OCR on the image at path. Any failure degrades to empty text.
func (o *ocrRunner) Text(path string) string {
	if !o.available {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), ocrTimeout)
	defer cancel()

	out, err := o.run(ctx, o.binary, path, "stdout", "-l", o.lang)
	if err != nil {
		o.logger.Warn("OCR failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	return string(bytes.TrimSpace(out))
}
