package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"credhub/internal/credential/models"
)

// PostgresStore persists credential resources in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const credentialColumns = `
	id, participant_context_id, issuer_id, holder_id, state, format,
	raw_credential, credential_id, credential_issuer, types, subject,
	issuance_date, expiration_date, metadata, created_at, updated_at`

func (s *PostgresStore) Save(ctx context.Context, resource models.CredentialResource) error {
	typesBytes, subjectBytes, metadataBytes, err := marshalResource(resource)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			raw_credential = EXCLUDED.raw_credential,
			credential_id = EXCLUDED.credential_id,
			credential_issuer = EXCLUDED.credential_issuer,
			types = EXCLUDED.types,
			subject = EXCLUDED.subject,
			issuance_date = EXCLUDED.issuance_date,
			expiration_date = EXCLUDED.expiration_date,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		resource.ID,
		resource.ParticipantContextID,
		resource.IssuerID,
		resource.HolderID,
		string(resource.State),
		string(resource.Container.Format),
		resource.Container.Raw,
		resource.Container.Credential.ID,
		resource.Container.Credential.Issuer,
		typesBytes,
		subjectBytes,
		resource.Container.Credential.IssuanceDate,
		nullableTime(resource.Container.Credential.ExpirationDate),
		metadataBytes,
		resource.CreatedAt,
		resource.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, resource models.CredentialResource) error {
	metadataBytes, err := json.Marshal(resource.Metadata)
	if err != nil {
		return fmt.Errorf("marshal credential metadata: %w", err)
	}
	query := `
		UPDATE credentials
		SET state = $2, metadata = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		resource.ID,
		string(resource.State),
		metadataBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (models.CredentialResource, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`
	resource, err := scanCredential(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CredentialResource{}, ErrNotFound
		}
		return models.CredentialResource{}, fmt.Errorf("find credential by id: %w", err)
	}
	return resource, nil
}

func (s *PostgresStore) Query(ctx context.Context, criterion models.Criterion) ([]models.CredentialResource, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE participant_context_id = $1 AND types @> to_jsonb($2::text)
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, criterion.ParticipantContextID, criterion.CredentialType)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()
	return collectCredentials(rows)
}

func (s *PostgresStore) QueryByStates(ctx context.Context, states []models.CredentialState) ([]models.CredentialResource, error) {
	if len(states) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(states))
	args := make([]any, len(states))
	for i, state := range states {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(state)
	}
	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE state IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query credentials by state: %w", err)
	}
	defer rows.Close()
	return collectCredentials(rows)
}

type credentialRow interface {
	Scan(dest ...any) error
}

func scanCredential(row credentialRow) (models.CredentialResource, error) {
	var resource models.CredentialResource
	var state, format string
	var typesBytes, subjectBytes, metadataBytes []byte
	var expiration sql.NullTime

	err := row.Scan(
		&resource.ID,
		&resource.ParticipantContextID,
		&resource.IssuerID,
		&resource.HolderID,
		&state,
		&format,
		&resource.Container.Raw,
		&resource.Container.Credential.ID,
		&resource.Container.Credential.Issuer,
		&typesBytes,
		&subjectBytes,
		&resource.Container.Credential.IssuanceDate,
		&expiration,
		&metadataBytes,
		&resource.CreatedAt,
		&resource.UpdatedAt,
	)
	if err != nil {
		return models.CredentialResource{}, err
	}

	resource.State = models.CredentialState(state)
	resource.Container.Format = models.CredentialFormat(format)
	if expiration.Valid {
		exp := expiration.Time
		resource.Container.Credential.ExpirationDate = &exp
	}
	if err := json.Unmarshal(typesBytes, &resource.Container.Credential.Types); err != nil {
		return models.CredentialResource{}, fmt.Errorf("unmarshal credential types: %w", err)
	}
	if len(subjectBytes) > 0 {
		if err := json.Unmarshal(subjectBytes, &resource.Container.Credential.Subject); err != nil {
			return models.CredentialResource{}, fmt.Errorf("unmarshal credential subject: %w", err)
		}
	}
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &resource.Metadata); err != nil {
			return models.CredentialResource{}, fmt.Errorf("unmarshal credential metadata: %w", err)
		}
	}
	if resource.Metadata == nil {
		resource.Metadata = map[string]string{}
	}
	return resource, nil
}

func collectCredentials(rows *sql.Rows) ([]models.CredentialResource, error) {
	var result []models.CredentialResource
	for rows.Next() {
		resource, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		result = append(result, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return result, nil
}

func marshalResource(resource models.CredentialResource) (types, subject, metadata []byte, err error) {
	if types, err = json.Marshal(resource.Container.Credential.Types); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal credential types: %w", err)
	}
	if subject, err = json.Marshal(resource.Container.Credential.Subject); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal credential subject: %w", err)
	}
	if metadata, err = json.Marshal(resource.Metadata); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal credential metadata: %w", err)
	}
	return types, subject, metadata, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
