package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/f3-invigorate/invigorate/internal/auth"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/repository"
)

// IdentityService maps a verified Firebase subject to a local User.
//
//	IdentityHandler (HTTP) → IdentityService → UserRepository (upsert)
//	Authenticator          ↗ (BySubject on every request)
type IdentityService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewIdentityService(users repository.UserRepository, logger *slog.Logger) *IdentityService {
	return &IdentityService{users: users, logger: logger}
}

// ResolveOptions tune one Resolve call.
//
//   - FallbackEmail: written on insert when the token carries no email
//     (some providers, e.g. phone sign-in, never do)
//   - Role: RoleHIM promotes the user; anything else leaves the stored
//     role alone (new rows default to ATHLETE)
type ResolveOptions struct {
	FallbackEmail string
	Role          model.Role
}

// Resolve is find-or-create keyed on the subject.
//
// WHY ONE UPSERT (not "get, then create if missing")?
// Two tabs finishing sign-in at the same moment would both miss the read and
// both insert. The repository does a single INSERT … ON CONFLICT (subject_id)
// DO UPDATE, so the database serialises them and both get the same row.
//
// Claims the token did not carry are left nil, and nil fields are never
// written on update, so an existing name or photo is not clobbered.
func (s *IdentityService) Resolve(ctx context.Context, claims *auth.Claims, opts ResolveOptions) (*model.User, error) {
	first, last := SplitDisplayName(claims.Name)

	u := &model.User{
		SubjectID: claims.Subject,
		Email:     nonEmpty(claims.Email),
		FirstName: first,
		LastName:  last,
		PhotoURL:  nonEmpty(claims.Picture),
	}
	upsert := repository.UpsertOptions{
		FallbackEmail: nonEmpty(opts.FallbackEmail),
		Promote:       opts.Role == model.RoleHIM,
	}

	user, err := s.users.UpsertBySubject(ctx, u, upsert)
	if err != nil {
		s.logger.Error("identity upsert failed",
			slog.String("subject", claims.Subject),
			slog.Bool("promote", upsert.Promote),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("identity resolved",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// BySubject loads an existing user. ErrNotFound when the subject has signed
// in with Firebase but never hit a create endpoint.
func (s *IdentityService) BySubject(ctx context.Context, subject string) (*model.User, error) {
	return s.users.GetBySubject(ctx, subject)
}

// SplitDisplayName splits "Sam Houston Jr" into "Sam" and "Houston Jr".
// Either part is nil when there is nothing to put in it.
func SplitDisplayName(name string) (first, last *string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return nil, nil
	}
	first = &parts[0]
	if len(parts) > 1 {
		rest := strings.Join(parts[1:], " ")
		last = &rest
	}
	return first, last
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
