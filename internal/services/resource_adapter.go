package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/permissions"
	apperrors "github.com/woozar/paperless-ai-ngx/pkg/errors"
)

// Resource kind identifiers, used as the grant table discriminator and as
// logging context.
const (
	KindAIAccount         = "ai_account"
	KindAIModel           = "ai_model"
	KindBot               = "bot"
	KindPaperlessInstance = "paperless_instance"
)

// ResourceAdapter binds the kind-agnostic sharing engine to one resource
// kind. Table and column names, and the kind-specific not-found code, never
// leak past this interface.
type ResourceAdapter interface {
	// Kind returns the resource kind identifier.
	Kind() string

	// NotFound returns the kind-specific lookup failure. It deliberately
	// covers both "does not exist" and "caller may not manage sharing" so
	// that resource existence is not leaked to non-owners.
	NotFound() *apperrors.AppError

	// FindManageable returns NotFound() unless the resource exists and the
	// caller is its owner or holds a FULL grant on it. WRITE holders may
	// edit the resource itself but not its sharing.
	FindManageable(ctx context.Context, resourceID, callerID string) error

	// Grants exposes the grant store scoped to this resource kind.
	Grants() *GrantStore
}

type kindAdapter struct {
	db       *gorm.DB
	kind     string
	table    string
	notFound *apperrors.AppError
	grants   *GrantStore
}

func newKindAdapter(db *gorm.DB, kind, table, notFoundCode string) (*kindAdapter, error) {
	if db == nil {
		return nil, fmt.Errorf("%s adapter: db is required", kind)
	}
	grants, err := NewGrantStore(db, kind)
	if err != nil {
		return nil, err
	}
	return &kindAdapter{
		db:       db,
		kind:     kind,
		table:    table,
		notFound: apperrors.NewNotFound(notFoundCode),
		grants:   grants,
	}, nil
}

func (a *kindAdapter) Kind() string { return a.kind }

func (a *kindAdapter) NotFound() *apperrors.AppError { return a.notFound }

func (a *kindAdapter) Grants() *GrantStore { return a.grants }

func (a *kindAdapter) FindManageable(ctx context.Context, resourceID, callerID string) error {
	var row struct {
		ID          string
		OwnerUserID string
	}
	if err := a.db.WithContext(ctx).
		Table(a.table).
		Select("id", "owner_user_id").
		Where("id = ?", resourceID).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return a.notFound
		}
		return fmt.Errorf("%s adapter: load resource: %w", a.kind, err)
	}

	if row.OwnerUserID == callerID {
		return nil
	}

	personal, wildcard, err := a.grants.ApplicableGrants(ctx, resourceID, callerID)
	if err != nil {
		return err
	}

	effective := permissions.Effective(row.OwnerUserID, callerID, personal, wildcard)
	if effective != nil && effective.AtLeast(permissions.PermissionFull) {
		return nil
	}
	return a.notFound
}

// NewAIAccountAdapter binds the sharing engine to AI credential accounts.
func NewAIAccountAdapter(db *gorm.DB) (ResourceAdapter, error) {
	return newKindAdapter(db, KindAIAccount, "ai_accounts", "aiAccountNotFound")
}

// NewAIModelAdapter binds the sharing engine to AI model catalog entries.
func NewAIModelAdapter(db *gorm.DB) (ResourceAdapter, error) {
	return newKindAdapter(db, KindAIModel, "ai_models", "aiModelNotFound")
}

// NewBotAdapter binds the sharing engine to AI bots.
func NewBotAdapter(db *gorm.DB) (ResourceAdapter, error) {
	return newKindAdapter(db, KindBot, "bots", "aiBotNotFound")
}

// NewPaperlessInstanceAdapter binds the sharing engine to Paperless instances.
func NewPaperlessInstanceAdapter(db *gorm.DB) (ResourceAdapter, error) {
	return newKindAdapter(db, KindPaperlessInstance, "paperless_instances", "paperlessInstanceNotFound")
}
