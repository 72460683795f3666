//go:build cgo
// +build cgo

package entities

import (
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	nerMaxTokens = 256
	nerNumLabels = 9 // CoNLL BIO tagging: O, B/I x PER, ORG, LOC, MISC
)

// label indices for the ORG class in the CoNLL label set.
const (
	labelBeginOrg  = 3
	labelInsideOrg = 4
)

// ONNXRecognizer runs a token-classification model through ONNX Runtime.
// Requires CGO and the onnxruntime shared library; when either is missing
// the constructor fails and callers fall back to pattern matching.
type ONNXRecognizer struct {
	session             *ort.AdvancedSession
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXRecognizer loads the model at modelPath. InitializeEnvironment is
// called if not already done.
func NewONNXRecognizer(modelPath string) (*ONNXRecognizer, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	inputIDs := make([]int64, nerMaxTokens)
	attentionMask := make([]int64, nerMaxTokens)

	inputIDsTensor, err := ort.NewTensor(ort.NewShape(1, nerMaxTokens), inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMaskTensor, err := ort.NewTensor(ort.NewShape(1, nerMaxTokens), attentionMask)
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	outputData := make([]float32, nerMaxTokens*nerNumLabels)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, nerMaxTokens, nerNumLabels), outputData)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXRecognizer{
		session:             session,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		outputTensor:        outputTensor,
	}, nil
}

// Available reports that the model loaded.
func (r *ONNXRecognizer) Available() bool { return true }

// Organizations tags the text's tokens and returns the surface form of each
// contiguous ORG span.
func (r *ONNXRecognizer) Organizations(text string) ([]string, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}
	if len(words) > nerMaxTokens {
		words = words[:nerMaxTokens]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	inputIDs := r.inputIDsTensor.GetData()
	attentionMask := r.attentionMaskTensor.GetData()
	for i := range inputIDs {
		inputIDs[i] = 0
		attentionMask[i] = 0
	}
	for i, w := range words {
		inputIDs[i] = hashToken(w)
		attentionMask[i] = 1
	}

	if err := r.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	logits := r.outputTensor.GetData()
	var orgs []string
	var span []string
	flush := func() {
		if len(span) > 0 {
			orgs = append(orgs, strings.Join(span, " "))
			span = nil
		}
	}
	for i := range words {
		switch argmax(logits[i*nerNumLabels : (i+1)*nerNumLabels]) {
		case labelBeginOrg:
			flush()
			span = append(span, words[i])
		case labelInsideOrg:
			if len(span) > 0 {
				span = append(span, words[i])
			}
		default:
			flush()
		}
	}
	flush()
	return orgs, nil
}

// Close releases the session and tensors.
func (r *ONNXRecognizer) Close() error {
	r.session.Destroy()
	r.inputIDsTensor.Destroy()
	r.attentionMaskTensor.Destroy()
	r.outputTensor.Destroy()
	return nil
}

func hashToken(s string) int64 {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return int64(h%30000) + 1
}

func argmax(scores []float32) int {
	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}
	return best
}
