package entities

// MockRecognizer is a deterministic Recognizer for tests. It returns a fixed
// organization list regardless of input.
type MockRecognizer struct {
	Orgs []string
	Err  error
	Down bool
}

func (m *MockRecognizer) Available() bool { return !m.Down }

func (m *MockRecognizer) Organizations(_ string) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Orgs, nil
}
