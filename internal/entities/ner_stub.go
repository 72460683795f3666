//go:build !cgo
// +build !cgo

package entities

import "errors"

// ONNXRecognizer stub type when built without CGO (see ner.go for the real
// implementation).
type ONNXRecognizer struct{}

// NewONNXRecognizer returns an error when built without CGO; callers fall
// back to pattern-based organization detection.
func NewONNXRecognizer(_ string) (*ONNXRecognizer, error) {
	return nil, errors.New("ONNX recognizer requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

func (r *ONNXRecognizer) Available() bool { return false }

func (r *ONNXRecognizer) Organizations(_ string) ([]string, error) {
	return nil, errors.New("ONNX recognizer unavailable")
}

func (r *ONNXRecognizer) Close() error { return nil }
