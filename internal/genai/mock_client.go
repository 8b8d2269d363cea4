package genai

import "context"

// MockClient is a function-field mock of Client for testing.
type MockClient struct {
	CompleteFunc func(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, model, systemPrompt, userPrompt)
	}
	return "", nil
}
