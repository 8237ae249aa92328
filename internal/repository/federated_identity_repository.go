package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ppdb-nexus/admissions-api/internal/models"
)

// FederatedIdentityRepository links platform users to external identity
// providers. Nothing in the service layer currently issues federated
// logins; this exists so a future SSO integration has a landing spot
// without another migration.
type FederatedIdentityRepository struct {
	db *sqlx.DB
}

// NewFederatedIdentityRepository constructs a FederatedIdentityRepository.
func NewFederatedIdentityRepository(db *sqlx.DB) *FederatedIdentityRepository {
	return &FederatedIdentityRepository{db: db}
}

const federatedIdentityColumns = `id, user_id, provider, provider_user_id, created_at`

// FindByProvider looks up a user by (provider, provider_user_id).
func (r *FederatedIdentityRepository) FindByProvider(ctx context.Context, provider, providerUserID string) (*models.FederatedIdentity, error) {
	const query = `SELECT ` + federatedIdentityColumns + ` FROM federated_identities WHERE provider = $1 AND provider_user_id = $2`
	var fi models.FederatedIdentity
	if err := r.db.GetContext(ctx, &fi, query, provider, providerUserID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find federated identity: %w", err)
	}
	return &fi, nil
}

// Create links a user to an external identity.
func (r *FederatedIdentityRepository) Create(ctx context.Context, fi *models.FederatedIdentity) error {
	fi.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO federated_identities (user_id, provider, provider_user_id, created_at)
VALUES (:user_id, :provider, :provider_user_id, :created_at) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, fi)
	if err != nil {
		return fmt.Errorf("create federated identity: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&fi.ID); err != nil {
			return fmt.Errorf("scan created federated identity id: %w", err)
		}
	}
	return nil
}
