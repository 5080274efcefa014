package app

import (
	"context"
	"time"

	"fightlog/internal/domain"
	"fightlog/internal/repository"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// ProfileService encapsulates profile use cases.
type ProfileService struct {
	repo domain.ProfileRepository
	now  func() time.Time
}

// NewProfileService creates a ProfileService backed by the given repository.
func NewProfileService(repo domain.ProfileRepository) *ProfileService {
	return &ProfileService{repo: repo, now: time.Now}
}

// Get returns the profile or nil when none has been saved.
func (s *ProfileService) Get(ctx context.Context) (*domain.Profile, error) {
	return s.repo.Profile(ctx)
}

// Update applies patch, creating the profile on first use. Switching to a
// cut or bulk without a start date starts the phase now.
func (s *ProfileService) Update(ctx context.Context, patch domain.ProfilePatch) (domain.Profile, error) {
	if patch.Unit != nil && !domain.ValidUnit(*patch.Unit) {
		return domain.Profile{}, domain.Invalid("unit must be \"kg\" or \"lb\"")
	}
	if patch.Phase != nil && *patch.Phase != domain.PhaseNone && patch.PhaseStart == nil {
		cur, err := s.repo.Profile(ctx)
		if err != nil {
			return domain.Profile{}, err
		}
		if cur == nil || cur.Goals.Phase != *patch.Phase {
			start := s.now()
			patch.PhaseStart = &start
		}
	}
	return s.repo.UpdateProfile(ctx, patch)
}

// tolerate drops schema-only list errors after logging them; the listed
// entities are still usable.
func tolerate(log logrus.FieldLogger, err error) error {
	_, err = skipUnreadable(log, err)
	return err
}

// skipUnreadable is tolerate that also returns how many records were left out.
func skipUnreadable(log logrus.FieldLogger, err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	if repository.IsSchemaOnly(err) {
		skipped := len(multierr.Errors(err))
		log.WithError(err).WithField("skipped", skipped).Warn("skipped unreadable records")
		return skipped, nil
	}
	return 0, err
}
