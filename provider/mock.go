package provider

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/glideidentity/phone-auth-core/api"
)

// Mock implements Client for testing. Behavior is configured per test via
// testify's mock expectations.
type Mock struct {
	mock.Mock
}

func (m *Mock) Prepare(ctx context.Context, req *api.PrepareRequest) (*api.PrepareResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*api.PrepareResponse)
	return resp, args.Error(1)
}

func (m *Mock) Process(ctx context.Context, req *api.ProcessRequest, bindingSecret string) (*api.ProcessResponse, error) {
	args := m.Called(ctx, req, bindingSecret)
	resp, _ := args.Get(0).(*api.ProcessResponse)
	return resp, args.Error(1)
}

func (m *Mock) ReportInvocation(ctx context.Context, sessionID string) (*api.InvokeResponse, error) {
	args := m.Called(ctx, sessionID)
	resp, _ := args.Get(0).(*api.InvokeResponse)
	return resp, args.Error(1)
}

func (m *Mock) Complete(ctx context.Context, sessionKey, feCode, aggCode string) error {
	args := m.Called(ctx, sessionKey, feCode, aggCode)
	return args.Error(0)
}

func (m *Mock) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}
