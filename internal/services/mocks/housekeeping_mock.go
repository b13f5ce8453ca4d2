// filepath: internal/services/mocks/housekeeping_mock.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
)

// MockHousekeepingService is a mock implementation of services.HousekeepingService
type MockHousekeepingService struct {
	mock.Mock
}

var _ services.HousekeepingService = (*MockHousekeepingService)(nil)

func (m *MockHousekeepingService) Start() {
	m.Called()
}

func (m *MockHousekeepingService) Stop() {
	m.Called()
}

func (m *MockHousekeepingService) TriggerHousekeeping() (*models.HousekeepingReport, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HousekeepingReport), args.Error(1)
}

func (m *MockHousekeepingService) Watch(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
