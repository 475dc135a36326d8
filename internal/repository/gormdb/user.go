package gormdb

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

type UserStore struct {
	db *gorm.DB
}

// UpsertBySubject is the race-safe find-or-create.
//
// ONE STATEMENT, NOT READ-THEN-WRITE:
// Two browser tabs finishing sign-in at the same moment both call this for a
// brand-new subject. A SELECT followed by INSERT would let both see "no row"
// and one INSERT would then fail (or, without the unique index, create a
// duplicate). Instead we issue
//
//	INSERT INTO users (...) VALUES (...)
//	ON CONFLICT (subject_id) DO UPDATE SET <only the columns we have data for>
//
// and let the database serialise the two. GORM renders the MySQL flavour
// (ON DUPLICATE KEY UPDATE) from the same clause.
//
// SELECTIVE REFRESH:
// A claim the provider did not send (nil field) is left out of the SET list,
// so it never blanks a value we already hold. The row is read back afterwards
// because the id we generated is discarded when the row already existed.
func (s *UserStore) UpsertBySubject(ctx context.Context, u *model.User, opts repository.UpsertOptions) (*model.User, error) {
	if u.SubjectID == "" {
		return nil, apperror.ValidationFailed("subjectId", "subject id is required")
	}

	row := *u
	row.ID = ""
	row.Role = model.RoleAthlete
	if opts.Promote {
		row.Role = model.RoleHIM
	}
	if row.Email == nil {
		row.Email = opts.FallbackEmail
	}

	refresh := []string{"updated_at"}
	if u.Email != nil {
		refresh = append(refresh, "email")
	}
	if u.FirstName != nil {
		refresh = append(refresh, "first_name")
	}
	if u.LastName != nil {
		refresh = append(refresh, "last_name")
	}
	if u.Handle != nil {
		refresh = append(refresh, "handle")
	}
	if u.PhotoURL != nil {
		refresh = append(refresh, "photo_url")
	}
	if opts.Promote {
		refresh = append(refresh, "role")
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subject_id"}},
			DoUpdates: clause.AssignmentColumns(refresh),
		}).
		Create(&row).Error
	if err != nil {
		return nil, apperror.Persistence(
			fmt.Sprintf("saving user for subject %s", u.SubjectID),
			err,
		)
	}

	return s.GetBySubject(ctx, u.SubjectID)
}

func (s *UserStore) GetBySubject(ctx context.Context, subjectID string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("subject_id = ?", subjectID).Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", subjectID)
		}
		return nil, apperror.Persistence("loading user by subject", err)
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, apperror.Persistence("loading user", err)
	}
	return &u, nil
}

// FindByEmails matches emails exactly, as stored.
func (s *UserStore) FindByEmails(ctx context.Context, emails []string) ([]model.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	var users []model.User
	err := s.db.WithContext(ctx).Where("email IN ?", emails).Find(&users).Error
	if err != nil {
		return nil, apperror.Persistence("looking up users by email", err)
	}
	return users, nil
}
