// Package library provides the service façade of the engine: search,
// faceted reads, bounded memberships, bulk mutations.
package library

import (
	"context"
	"fmt"

	apperrors "github.com/kimhsiao/refnexus/internal/errors"
)

// Actor is the authorization context of one request: the acting user
// and their permission level.
type Actor struct {
	UserID int64
	Admin  bool
}

// VerifyProject gates every project-scoped operation on membership of
// the acting user. It is a precondition: no project-scoped read or
// write may run before it passes, and a failure is never retried.
func (s *Service) VerifyProject(ctx context.Context, userID, projectID int64) error {
	exists, err := s.repo.ProjectExists(ctx, projectID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "project lookup failed", err)
	}
	if !exists {
		return apperrors.New(apperrors.ErrProjectNotFound,
			fmt.Sprintf("project %d does not exist", projectID))
	}

	member, err := s.repo.IsProjectMember(ctx, projectID, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "project membership lookup failed", err)
	}
	if !member {
		return apperrors.New(apperrors.ErrNotAuthorized,
			fmt.Sprintf("user %d is not a member of project %d", userID, projectID))
	}
	return nil
}
