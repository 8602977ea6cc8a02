// database.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"instareply-router/resolver"
)

// Store is the Postgres persistence layer. It doubles as the resolver's
// TenantStore (self-heal and auto-association writes) and audit Sink.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables on first boot. Idempotent; safe to run on
// every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS tenants (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            name TEXT NOT NULL,
            username TEXT NOT NULL DEFAULT '',
            primary_platform_id TEXT NOT NULL DEFAULT '',
            secondary_platform_id TEXT NOT NULL DEFAULT '',
            access_token TEXT NOT NULL DEFAULT '',
            pending_marker_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE TABLE IF NOT EXISTS resolved_events (
            id BIGSERIAL PRIMARY KEY,
            tenant_id UUID NOT NULL REFERENCES tenants(id),
            kind TEXT NOT NULL,
            external_id TEXT NOT NULL,
            sender_id TEXT NOT NULL DEFAULT '',
            direction TEXT NOT NULL,
            content TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (tenant_id, external_id)
        );

        CREATE TABLE IF NOT EXISTS audit_log (
            id BIGSERIAL PRIMARY KEY,
            at TIMESTAMPTZ NOT NULL,
            kind TEXT NOT NULL,
            page_id TEXT NOT NULL DEFAULT '',
            sender_id TEXT NOT NULL DEFAULT '',
            recipient_id TEXT NOT NULL DEFAULT '',
            tenant_id UUID,
            outcome TEXT NOT NULL
        );

        CREATE TABLE IF NOT EXISTS auth_nonces (
            nonce TEXT PRIMARY KEY,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
    `)
	if err != nil {
		return fmt.Errorf("error creating schema: %v", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListTenants loads every tenant for one resolution pass. The set is small
// (one row per customer account) so a full scan per delivery is fine.
func (s *Store) ListTenants(ctx context.Context) ([]resolver.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, username, primary_platform_id, secondary_platform_id,
               access_token, pending_marker_at
        FROM tenants
    `)
	if err != nil {
		return nil, fmt.Errorf("error listing tenants: %v", err)
	}
	defer rows.Close()

	var tenants []resolver.Tenant
	for rows.Next() {
		var t resolver.Tenant
		var markerAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.Username, &t.PrimaryID, &t.SecondaryID,
			&t.AccessToken, &markerAt); err != nil {
			return nil, fmt.Errorf("error scanning tenant: %v", err)
		}
		if markerAt.Valid {
			at := markerAt.Time
			t.MarkerAt = &at
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// AdoptPrimaryID is the self-heal write after a secondary-id match. The
// oldPrimary guard makes a lost race a no-op instead of a double-write;
// concurrent deliveries for the same id may still interleave their reads,
// which mirrors the original system's behavior.
func (s *Store) AdoptPrimaryID(ctx context.Context, tenantID, newID, oldPrimary string) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE tenants
        SET primary_platform_id = $1, updated_at = NOW()
        WHERE id = $2 AND primary_platform_id = $3
    `, newID, tenantID, oldPrimary)
	if err != nil {
		return fmt.Errorf("error adopting primary id: %v", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		LogDebug("Self-heal for tenant %s skipped, primary id already moved", tenantID)
		return nil
	}
	LogInfo("🩹 Tenant %s primary id healed to %s", tenantID, newID)
	return nil
}

// Associate overwrites both platform ids with newID and consumes the pending
// marker in the same statement.
func (s *Store) Associate(ctx context.Context, tenantID, newID string) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE tenants
        SET primary_platform_id = $1,
            secondary_platform_id = $1,
            pending_marker_at = NULL,
            updated_at = NOW()
        WHERE id = $2
    `, newID, tenantID)
	if err != nil {
		return fmt.Errorf("error associating tenant %s with id %s: %v", tenantID, newID, err)
	}
	LogInfo("🔗 Tenant %s associated with platform id %s", tenantID, newID)
	return nil
}

// SetMarker is called by the authorization-completion flow after a tenant
// links their account. At most one marker per tenant: setting overwrites.
func (s *Store) SetMarker(ctx context.Context, tenantID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE tenants SET pending_marker_at = $1, updated_at = NOW() WHERE id = $2
    `, at, tenantID)
	if err != nil {
		return fmt.Errorf("error setting marker for tenant %s: %v", tenantID, err)
	}
	return nil
}

// InsertResolvedEvent persists one processed item. Returns false when the
// (tenant, external id) pair already exists: the delivery was retried and
// the event is a no-op. The unique key is tenant-scoped and checked only
// here, after resolution; a global pre-resolution check was an identified
// source of cross-tenant ambiguity.
func (s *Store) InsertResolvedEvent(ctx context.Context, ev ResolvedEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO resolved_events (tenant_id, kind, external_id, sender_id, direction, content)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (tenant_id, external_id) DO NOTHING
    `, ev.TenantID, string(ev.Kind), ev.ExternalID, ev.SenderID, string(ev.Direction), ev.Content)
	if err != nil {
		return false, fmt.Errorf("error inserting event %s: %v", ev.ExternalID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading insert result: %v", err)
	}
	return n > 0, nil
}

// CountPendingInbound reports how many inbound events a tenant has waiting.
// Outbound rows are stored for history but never counted.
func (s *Store) CountPendingInbound(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM resolved_events
        WHERE tenant_id = $1 AND direction = $2
    `, tenantID, string(DirectionInbound)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting inbound events: %v", err)
	}
	return count, nil
}

// Record appends one resolution decision to the audit trail and mirrors it
// as a single greppable log line. Rows are never updated or deleted; this
// table is the forensic record for investigating misrouted events.
func (s *Store) Record(ctx context.Context, d resolver.Decision) error {
	tenant := "none"
	var tenantID interface{}
	if d.TenantID != "" {
		tenant = d.TenantID
		tenantID = d.TenantID
	}
	LogInfo("📋 AUDIT %s kind=%s page=%s sender=%s recipient=%s tenant=%s outcome=%s",
		d.At.UTC().Format(time.RFC3339), d.Kind, d.PageID, d.SenderID, d.RecipientID, tenant, d.Outcome)

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO audit_log (at, kind, page_id, sender_id, recipient_id, tenant_id, outcome)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, d.At, d.Kind, d.PageID, d.SenderID, d.RecipientID, tenantID, d.Outcome)
	if err != nil {
		return fmt.Errorf("error appending audit entry: %v", err)
	}
	return nil
}

// SweepExpired deletes markers older than ttl and stale one-time auth
// nonces. Both deletes are idempotent, so racing a live association is
// harmless: the association consumes the marker first or the sweep does.
func (s *Store) SweepExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl)

	res, err := s.db.ExecContext(ctx, `
        UPDATE tenants SET pending_marker_at = NULL, updated_at = NOW()
        WHERE pending_marker_at IS NOT NULL AND pending_marker_at < $1
    `, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error sweeping markers: %v", err)
	}
	markers, _ := res.RowsAffected()

	if _, err := s.db.ExecContext(ctx, `
        DELETE FROM auth_nonces WHERE created_at < $1
    `, cutoff); err != nil {
		return markers, fmt.Errorf("error sweeping auth nonces: %v", err)
	}

	return markers, nil
}
