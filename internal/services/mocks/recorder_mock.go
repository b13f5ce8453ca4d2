// filepath: internal/services/mocks/recorder_mock.go
package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
)

type MockRecorder struct {
	mock.Mock
}

var _ services.Recorder = (*MockRecorder)(nil)

func (m *MockRecorder) Record(op models.Operation) (models.Operation, error) {
	args := m.Called(op)
	return args.Get(0).(models.Operation), args.Error(1)
}

func (m *MockRecorder) Get(id string) (*models.Operation, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Operation), args.Error(1)
}

func (m *MockRecorder) List(filter models.OperationFilter) ([]models.Operation, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Operation), args.Error(1)
}
