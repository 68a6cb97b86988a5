package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/models"
	"github.com/woozar/paperless-ai-ngx/internal/permissions"
	apperrors "github.com/woozar/paperless-ai-ngx/pkg/errors"
	"github.com/woozar/paperless-ai-ngx/pkg/logger"
	"github.com/woozar/paperless-ai-ngx/pkg/metrics"
)

// ShareService implements the kind-agnostic sharing engine over one
// ResourceAdapter. The adapter carries everything kind-specific; the service
// enforces the cross-cutting invariants (caller entitlement, grantee
// existence, self-share prevention, one grant per slot).
type ShareService struct {
	db      *gorm.DB
	adapter ResourceAdapter
	log     *zap.Logger
}

// NewShareService constructs a sharing engine bound to one resource kind.
func NewShareService(db *gorm.DB, adapter ResourceAdapter) (*ShareService, error) {
	if db == nil {
		return nil, errors.New("share service: db is required")
	}
	if adapter == nil {
		return nil, errors.New("share service: resource adapter is required")
	}
	return &ShareService{
		db:      db,
		adapter: adapter,
		log:     logger.WithModule("sharing").With(zap.String("kind", adapter.Kind())),
	}, nil
}

// UpsertShareInput describes a create-or-update share request. A nil
// GranteeUserID targets the wildcard slot covering every authenticated user.
type UpsertShareInput struct {
	GranteeUserID *string
	Permission    permissions.Permission
}

// UpsertShareResult reports the resulting grant and whether it was newly
// created, so the boundary layer can pick 201 versus 200.
type UpsertShareResult struct {
	Grant   GrantInfo
	Created bool
}

// ListShares returns the resource's grants, newest first. Only the owner or
// a FULL-grant holder may inspect sharing; everyone else sees the same
// kind-specific not-found failure as for a missing resource.
func (s *ShareService) ListShares(ctx context.Context, callerID, resourceID string) ([]GrantInfo, error) {
	ctx = ensureContext(ctx)

	if err := s.checkManageable(ctx, resourceID, callerID); err != nil {
		s.countShareOp("list", err)
		return nil, err
	}

	infos, err := s.adapter.Grants().List(ctx, resourceID)
	if err != nil {
		s.countShareOp("list", err)
		return nil, s.internal("list shares", resourceID, err)
	}
	s.countShareOp("list", nil)
	return infos, nil
}

// UpsertShare creates a grant for an empty (resource, grantee) slot or
// updates the permission of the existing one. A create losing the race
// against a concurrent identical create is retried once as an update.
func (s *ShareService) UpsertShare(ctx context.Context, callerID, resourceID string, input UpsertShareInput) (*UpsertShareResult, error) {
	ctx = ensureContext(ctx)

	result, err := s.upsertShare(ctx, callerID, resourceID, input)
	if err != nil {
		s.countShareOp("upsert", err)
		return nil, err
	}
	s.countShareOp("upsert", nil)
	return result, nil
}

func (s *ShareService) upsertShare(ctx context.Context, callerID, resourceID string, input UpsertShareInput) (*UpsertShareResult, error) {
	if err := s.checkManageable(ctx, resourceID, callerID); err != nil {
		return nil, err
	}

	if !input.Permission.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid permission %q", input.Permission))
	}

	grantee := normaliseGrantee(input.GranteeUserID)
	if grantee != nil {
		if err := s.resolveGrantee(ctx, *grantee); err != nil {
			return nil, err
		}
		if *grantee == callerID {
			return nil, ErrSelfShare
		}
	}

	store := s.adapter.Grants()

	existing, err := store.Find(ctx, resourceID, grantee)
	if err != nil {
		return nil, s.internal("find grant", resourceID, err)
	}
	if existing != nil {
		updated, err := store.Update(ctx, existing.ID, input.Permission)
		if err != nil {
			return nil, s.internal("update grant", resourceID, err)
		}
		return s.buildResult(ctx, updated, false)
	}

	created, err := store.Create(ctx, resourceID, grantee, input.Permission, callerID)
	if err == nil {
		return s.buildResult(ctx, created, true)
	}
	if !errors.Is(err, ErrGrantConflict) {
		return nil, s.internal("create grant", resourceID, err)
	}

	// A concurrent request filled the slot between Find and Create. Treat
	// the conflict as "someone else just created it" and update instead.
	existing, err = store.Find(ctx, resourceID, grantee)
	if err != nil {
		return nil, s.internal("find grant after conflict", resourceID, err)
	}
	if existing == nil {
		return nil, s.internal("find grant after conflict", resourceID, ErrGrantVanished)
	}
	updated, err := store.Update(ctx, existing.ID, input.Permission)
	if err != nil {
		return nil, s.internal("update grant after conflict", resourceID, err)
	}
	return s.buildResult(ctx, updated, false)
}

// DeleteShare revokes a grant by id. Owner or FULL-holder only.
func (s *ShareService) DeleteShare(ctx context.Context, callerID, resourceID, grantID string) error {
	ctx = ensureContext(ctx)

	if err := s.checkManageable(ctx, resourceID, callerID); err != nil {
		s.countShareOp("delete", err)
		return err
	}

	if err := s.adapter.Grants().Delete(ctx, resourceID, grantID); err != nil {
		s.countShareOp("delete", err)
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return s.internal("delete grant", resourceID, err)
	}
	s.countShareOp("delete", nil)
	return nil
}

func (s *ShareService) checkManageable(ctx context.Context, resourceID, callerID string) error {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return apperrors.ErrUnauthorized
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return s.adapter.NotFound()
	}

	err := s.adapter.FindManageable(ctx, resourceID, callerID)
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return s.internal("resolve resource", resourceID, err)
}

func (s *ShareService) resolveGrantee(ctx context.Context, granteeUserID string) error {
	var user models.User
	err := s.db.WithContext(ctx).Select("id").First(&user, "id = ?", granteeUserID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGranteeNotFound
		}
		return s.internal("resolve grantee", granteeUserID, err)
	}
	return nil
}

func (s *ShareService) buildResult(ctx context.Context, grant *models.ShareGrant, created bool) (*UpsertShareResult, error) {
	var username map[string]string
	if !grant.IsWildcard() {
		var user models.User
		if err := s.db.WithContext(ctx).Select("id", "username").First(&user, "id = ?", grant.GranteeUserID).Error; err == nil {
			username = map[string]string{user.ID: user.Username}
		}
	}
	return &UpsertShareResult{Grant: toGrantInfo(grant, username), Created: created}, nil
}

// internal logs an unexpected failure with kind context and hides the detail
// from the caller. Expected share outcomes never pass through here.
func (s *ShareService) internal(operation, subject string, err error) error {
	s.log.Error("share operation failed",
		zap.String("operation", operation),
		zap.String("subject", subject),
		zap.Error(err),
	)
	return apperrors.ErrInternalServer.WithInternal(err)
}

func (s *ShareService) countShareOp(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.StatusCode < 500 {
			result = "denied"
		}
	}
	metrics.ShareOperations.WithLabelValues(s.adapter.Kind(), operation, result).Inc()
}

func normaliseGrantee(granteeUserID *string) *string {
	if granteeUserID == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*granteeUserID)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
