package application

import (
	"context"
	"errors"

	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// ProfileService serves user claims from the user store.
type ProfileService struct {
	users  domain.UserStore
	logger *zap.Logger
}

func NewProfileService(users domain.UserStore, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		users:  users,
		logger: logger,
	}
}

// GetProfileData returns the user's claims limited to the requested claim types
func (s *ProfileService) GetProfileData(ctx context.Context, req *domain.ProfileDataRequest) (domain.Claims, error) {
	if !req.Subject.IsAuthenticated() {
		return nil, nil
	}

	s.logger.Debug("Getting profile data",
		zap.String("sub", req.Subject.SubjectID),
		zap.String("caller", req.Caller),
		zap.Strings("claim_types", req.RequestedClaimTypes))

	user, err := s.users.FindBySubjectID(ctx, req.Subject.SubjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil
		}
		s.logger.Error("Failed to load user", zap.String("sub", req.Subject.SubjectID), zap.Error(err))
		return nil, err
	}

	claims := user.Claims.FilterTypes(req.RequestedClaimTypes)
	for _, t := range req.RequestedClaimTypes {
		if t == domain.ClaimPreferredUsername {
			if _, ok := claims.Find(domain.ClaimPreferredUsername); !ok {
				claims = append(claims, domain.NewClaim(domain.ClaimPreferredUsername, user.Username))
			}
			break
		}
	}
	return claims, nil
}

// IsActive reports whether the subject may still obtain tokens
func (s *ProfileService) IsActive(ctx context.Context, subject *domain.Principal, client *domain.Client, caller string) (bool, error) {
	if !subject.IsAuthenticated() {
		return false, nil
	}
	user, err := s.users.FindBySubjectID(ctx, subject.SubjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsActive, nil
}
