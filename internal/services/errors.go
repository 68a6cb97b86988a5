package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/woozar/paperless-ai-ngx/pkg/errors"
)

// Share errors surfaced to API consumers. Codes double as localisation keys.
var (
	// ErrGranteeNotFound is returned when the target user of a share does not exist.
	ErrGranteeNotFound = apperrors.New("userNotFound", "userNotFound", http.StatusNotFound)

	// ErrSelfShare is returned when a caller attempts to grant a permission to themselves.
	ErrSelfShare = apperrors.New("cannotShareWithSelf", "cannotShareWithSelf", http.StatusBadRequest)

	// ErrGrantConflict marks a uniqueness violation on grant creation. It is
	// recovered inside the share service and never reaches API consumers.
	ErrGrantConflict = apperrors.ErrConflict.WithInternal(errors.New("share grant already exists"))

	// ErrGrantVanished marks an update that targeted a grant id no longer
	// present, which indicates a consistency bug rather than a user error.
	ErrGrantVanished = apperrors.ErrInternalServer.WithInternal(errors.New("share grant disappeared during update"))
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate")
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
