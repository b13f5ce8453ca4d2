// filepath: internal/services/info_service.go
package services

import (
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
)

// GetInfo describes the configuration tree and the tool's state. Parts that
// cannot be read are reported as zero counts.
func (s *Service) GetInfo(version string) models.Info {
	info := models.Info{
		ServiceName:    "VTS Parameter Control Panel",
		Version:        version,
		VTSRoot:        s.Tree.Root,
		TreeFound:      storage.Exists(s.Tree.GlobalConfig()),
		StateDir:       s.Config.Paths.StateDir,
		LockMode:       string(s.lockMode()),
		JournalEnabled: s.Journal != nil,
		EventsEnabled:  s.Config.Events.NATSURL != "",
		UploadBucket:   s.Config.S3.Bucket,
	}
	if docs, err := s.Tree.ModelDocuments(); err == nil {
		info.Models = len(docs)
	}
	if list, err := s.Profiles.List(); err == nil {
		info.Profiles = len(list)
	}
	if list, err := s.ListArchives(); err == nil {
		info.Archives = len(list)
	}
	return info
}
