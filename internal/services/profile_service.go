// filepath: internal/services/profile_service.go
package services

import (
	"context"
	"fmt"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/events"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/profile"
)

// SaveProfile captures the live global settings selected by cat as a profile.
func (s *Service) SaveProfile(ctx context.Context, name string, cat models.ProfileCategory, opts profile.SaveOptions) (*models.Profile, error) {
	g, _, err := s.Loader.LoadGlobal(s.Tree.GlobalConfig())
	if err != nil {
		return nil, wrap(fmt.Errorf("could not load global settings: %w", err))
	}
	if opts.AppVersion == "" {
		opts.AppVersion = s.Config.Archive.AppVersion
	}
	p, err := s.Profiles.Save(g, name, cat, opts)
	if err != nil {
		return nil, wrap(err)
	}
	s.Auditor.Log(ctx, "profile.save", s.Actor, name, map[string]interface{}{"category": string(cat), "settings": p.Settings.Len()})
	return p, nil
}

// LoadProfile reads one profile.
func (s *Service) LoadProfile(name string) (*models.Profile, error) {
	p, err := s.Profiles.Load(name)
	return p, wrap(err)
}

// ListProfiles lists the stored profiles.
func (s *Service) ListProfiles() ([]models.ProfileInfo, error) {
	list, err := s.Profiles.List()
	return list, wrap(err)
}

// DeleteProfile removes a stored profile.
func (s *Service) DeleteProfile(ctx context.Context, name string) error {
	if err := s.Profiles.Delete(name); err != nil {
		return wrap(err)
	}
	s.Auditor.Log(ctx, "profile.delete", s.Actor, name, nil)
	return nil
}

// DiffProfiles compares two stored profiles.
func (s *Service) DiffProfiles(a, b string) (*models.ProfileDiff, error) {
	d, err := s.Profiles.Diff(a, b)
	return d, wrap(err)
}

// ExportProfile writes a stored profile to path.
func (s *Service) ExportProfile(ctx context.Context, name, path string) error {
	if err := s.Profiles.Export(name, path); err != nil {
		return wrap(err)
	}
	s.Auditor.Log(ctx, "profile.export", s.Actor, name, map[string]interface{}{"path": path})
	return nil
}

// ImportProfile adds the profile file at path to the store.
func (s *Service) ImportProfile(ctx context.Context, path string, overwrite bool) (*models.Profile, error) {
	p, err := s.Profiles.Import(path, overwrite)
	if err != nil {
		return nil, wrap(err)
	}
	s.Auditor.Log(ctx, "profile.import", s.Actor, p.Name, map[string]interface{}{"path": path, "overwrite": overwrite})
	return p, nil
}

// ApplyProfile merges a stored profile into the live global settings.
func (s *Service) ApplyProfile(ctx context.Context, name string, opts profile.ApplyOptions) (*models.ProfileApplyResult, error) {
	started := s.now()
	if opts.LockMode == "" {
		opts.LockMode = s.lockMode()
	}
	globalPath := s.Tree.GlobalConfig()

	res, err := s.Profiles.ApplyProfile(ctx, name, globalPath, opts)
	if opts.DryRun || res == nil {
		return res, wrap(err)
	}
	s.Loader.Invalidate(globalPath)
	if res.Applied || err != nil {
		s.finish(ctx, operation{
			Kind:       "profile.apply",
			Topic:      events.TopicProfileApplied,
			Target:     globalPath,
			Started:    started,
			Success:    err == nil,
			Summary:    fmt.Sprintf("profile %s: %d updated, %d added", name, res.Updated, res.Added) + failureSuffix(err),
			BackupPath: res.BackupPath,
			Details:    map[string]any{"profile": name, "unchanged": res.Unchanged, "rolled_back": res.RolledBack},
		})
	}
	return res, wrap(err)
}
