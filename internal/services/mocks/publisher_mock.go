// filepath: internal/services/mocks/publisher_mock.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/events"
)

type MockPublisher struct {
	mock.Mock
}

var _ events.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, topic string, event any) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
