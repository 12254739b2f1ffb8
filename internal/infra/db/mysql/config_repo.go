package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/frozoai/escalatesafe/internal/redaction"

	domain "github.com/frozoai/escalatesafe/internal/domain/runs"
)

// ConfigRepository stores per-tenant redaction settings as a JSON blob.
// Settings are read fresh per run creation; nothing is cached here.
type ConfigRepository struct {
	db *sql.DB
}

func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// RedactionSettings returns the tenant's settings, falling back to the
// defaults when the tenant has never saved any.
func (r *ConfigRepository) RedactionSettings(ctx context.Context, tenant string) (domain.RedactionSettings, error) {
	const q = `SELECT redaction_json FROM tenant_config WHERE tenant_id=? LIMIT 1;`

	var raw sql.NullString
	err := r.db.QueryRowContext(ctx, q, tenant).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultRedactionSettings(), nil
	}
	if err != nil {
		return domain.RedactionSettings{}, err
	}
	if !raw.Valid || raw.String == "" {
		return DefaultRedactionSettings(), nil
	}

	var settings domain.RedactionSettings
	if err := json.Unmarshal([]byte(raw.String), &settings); err != nil {
		return domain.RedactionSettings{}, fmt.Errorf("decode redaction_json: %w", err)
	}
	// An absent threshold gets the engine default; a stored 0 is kept as-is.
	if settings.ConfidenceThreshold == nil {
		settings.ConfidenceThreshold = redaction.Threshold(redaction.DefaultConfidenceThreshold)
	}
	return settings, nil
}

// SetRedactionSettings upserts the tenant's settings.
func (r *ConfigRepository) SetRedactionSettings(ctx context.Context, tenant string, settings domain.RedactionSettings) error {
	b, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode redaction_json: %w", err)
	}
	const q = `
INSERT INTO tenant_config (tenant_id, redaction_json, created_at, updated_at)
VALUES (?,?,?,?)
ON DUPLICATE KEY UPDATE redaction_json=VALUES(redaction_json), updated_at=VALUES(updated_at);
`
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, q, tenant, string(b), now, now)
	return err
}

// DefaultRedactionSettings mirror the detector defaults.
func DefaultRedactionSettings() domain.RedactionSettings {
	return domain.RedactionSettings{
		ConfidenceThreshold:    redaction.Threshold(redaction.DefaultConfidenceThreshold),
		EnabledEntityTypes:     redaction.DefaultEntityTypes(),
		EnableRegionalEntities: false,
		AllowInternalNotes:     false,
	}
}
