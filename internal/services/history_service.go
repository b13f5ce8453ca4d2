// filepath: internal/services/history_service.go
package services

import (
	"fmt"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// History lists recorded operations, newest first.
func (s *Service) History(filter models.OperationFilter) ([]models.Operation, error) {
	if s.Journal == nil {
		return nil, fmt.Errorf("%w: the journal is disabled", ErrConfig)
	}
	ops, err := s.Journal.List(filter)
	return ops, wrap(err)
}

// Operation returns one recorded operation.
func (s *Service) Operation(id string) (*models.Operation, error) {
	if s.Journal == nil {
		return nil, fmt.Errorf("%w: the journal is disabled", ErrConfig)
	}
	op, err := s.Journal.Get(id)
	return op, wrap(err)
}
