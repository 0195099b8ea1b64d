package library

import (
	"context"

	"github.com/kimhsiao/refnexus/internal/db"
	"github.com/kimhsiao/refnexus/internal/dbx"
)

// Actions is the bulk mutation map applied to a resolved result set
// instead of rendering it. Actions are independent; they apply in
// declaration order (clipboard, project, tag, delete), so a later
// action may observe the effects of an earlier one.
type Actions struct {
	ClipboardAdd    bool
	ClipboardRemove bool

	// ProjectAdd / ProjectRemove name the target project; zero means
	// the action is not requested.
	ProjectAdd    int64
	ProjectRemove int64

	AddTags    []int64
	RemoveTags []int64

	// Delete removes the items outright. Administrator only; for
	// anyone else this one action is silently skipped while the rest
	// still apply.
	Delete bool
}

// MutationResult summarizes the side effects of one dispatch.
type MutationResult struct {
	Applied          []string
	MaxCountExceeded bool
}

// Dispatch applies the requested actions to the whole id set inside a
// single transaction scope. Project actions are authorization-gated; a
// guard failure rolls the entire dispatch back.
func (s *Service) Dispatch(ctx context.Context, actor Actor, ids []int64, actions *Actions) (*MutationResult, error) {
	result := &MutationResult{}
	if len(ids) == 0 || actions == nil {
		return result, nil
	}

	err := dbx.WithTx(ctx, s.repo.Conn(), func(ctx context.Context, _ dbx.DBTX) error {
		if actions.ClipboardAdd {
			exceeded, err := s.repo.AddMembers(ctx, db.ClipboardSet, actor.UserID, ids, s.cfg.MaxItems)
			if err != nil {
				return err
			}
			result.MaxCountExceeded = result.MaxCountExceeded || exceeded
			if err := s.logAction(ctx, actor, "clipboard_add", actor.UserID, len(ids)); err != nil {
				return err
			}
			result.Applied = append(result.Applied, "clipboard_add")
		}
		if actions.ClipboardRemove {
			if err := s.repo.RemoveMembers(ctx, db.ClipboardSet, actor.UserID, ids); err != nil {
				return err
			}
			if err := s.logAction(ctx, actor, "clipboard_remove", actor.UserID, len(ids)); err != nil {
				return err
			}
			result.Applied = append(result.Applied, "clipboard_remove")
		}

		if actions.ProjectAdd != 0 {
			if err := s.VerifyProject(ctx, actor.UserID, actions.ProjectAdd); err != nil {
				return err
			}
			exceeded, err := s.repo.AddMembers(ctx, db.ProjectSet, actions.ProjectAdd, ids, s.cfg.MaxItems)
			if err != nil {
				return err
			}
			result.MaxCountExceeded = result.MaxCountExceeded || exceeded
			if err := s.logAction(ctx, actor, "project_add", actions.ProjectAdd, len(ids)); err != nil {
				return err
			}
			result.Applied = append(result.Applied, "project_add")
		}
		if actions.ProjectRemove != 0 {
			if err := s.VerifyProject(ctx, actor.UserID, actions.ProjectRemove); err != nil {
				return err
			}
			if err := s.repo.RemoveMembers(ctx, db.ProjectSet, actions.ProjectRemove, ids); err != nil {
				return err
			}
			if err := s.logAction(ctx, actor, "project_remove", actions.ProjectRemove, len(ids)); err != nil {
				return err
			}
			result.Applied = append(result.Applied, "project_remove")
		}

		if len(actions.AddTags) > 0 {
			if err := s.repo.TagItems(ctx, ids, actions.AddTags); err != nil {
				return err
			}
			if err := s.logAction(ctx, actor, "tag", 0, len(ids)); err != nil {
				return err
			}
			result.Applied = append(result.Applied, "tag")
		}
		if len(actions.RemoveTags) > 0 {
			if err := s.repo.UntagItems(ctx, ids, actions.RemoveTags); err != nil {
				return err
			}
			if err := s.logAction(ctx, actor, "untag", 0, len(ids)); err != nil {
				return err
			}
			result.Applied = append(result.Applied, "untag")
		}

		if actions.Delete {
			if !actor.Admin {
				// not an error: the delete action alone is dropped
				s.log.Warn("delete action skipped for non-administrator",
					map[string]interface{}{"user_id": actor.UserID})
			} else {
				if _, err := s.repo.DeleteItems(ctx, ids); err != nil {
					return err
				}
				if err := s.logAction(ctx, actor, "delete", 0, len(ids)); err != nil {
					return err
				}
				result.Applied = append(result.Applied, "delete")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) logAction(ctx context.Context, actor Actor, action string, ownerID int64, count int) error {
	return s.repo.LogChange(ctx, &db.ChangeLog{
		Action:    action,
		ActorID:   actor.UserID,
		OwnerID:   ownerID,
		ItemCount: count,
	})
}
