// Package inventory stores the latest report of every machine, keyed by
// hardware UUID.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pcinventory/internal/db"
	"pcinventory/internal/models"
	"pcinventory/internal/version"
)

var (
	// ErrBlankUUID rejects a report without an identity.
	ErrBlankUUID = errors.New("UUID cannot be empty")
	// ErrNotFound is returned by Get for an unknown uuid.
	ErrNotFound = errors.New("machine not found")
)

// Result describes what Upsert did.
type Result struct {
	Action  string
	ID      int64
	Machine models.Machine
	// Previous is the row as it was before an update; nil on create.
	Previous *models.Machine
}

// Moved reports whether an update changed the machine's address or
// network type.
func (r *Result) Moved() bool {
	if r.Previous == nil {
		return false
	}
	return r.Previous.IPAddress != r.Machine.IPAddress || r.Previous.NetworkType != r.Machine.NetworkType
}

// CanonicalUUID trims s and, when it parses as a UUID, returns the
// lowercase hyphenated form so that differently formatted reports from the
// same machine share one row.
func CanonicalUUID(s string) string {
	s = strings.TrimSpace(s)
	if id, err := uuid.Parse(s); err == nil {
		return id.String()
	}
	return s
}

const selectColumns = `
	SELECT id, uuid, mac_address, network_type, user_name, ip_address,
	       os, os_version, model_name, agent_version, created_at, updated_at
	FROM pc_info`

// Upsert stores req as the latest report for its uuid: the row is
// overwritten when the uuid is known and inserted otherwise.
func Upsert(ctx context.Context, conn *sql.DB, req models.PCInfoRequest, agentVersion string) (*Result, error) {
	id := CanonicalUUID(req.UUID)
	if id == "" {
		return nil, ErrBlankUUID
	}
	req.UUID = id

	res, err := upsertTx(ctx, conn, req, agentVersion)
	if err != nil && isUniqueViolation(err) {
		// Lost an insert race for the same uuid; the row exists now.
		res, err = upsertTx(ctx, conn, req, agentVersion)
	}
	return res, err
}

func upsertTx(ctx context.Context, conn *sql.DB, req models.PCInfoRequest, agentVersion string) (*Result, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	now := db.TimeString(time.Now())

	prev, err := scanMachine(tx.QueryRowContext(ctx, selectColumns+` WHERE uuid = ?`, req.UUID))
	switch {
	case errors.Is(err, ErrNotFound):
		result, err := tx.ExecContext(ctx, `
			INSERT INTO pc_info (uuid, mac_address, network_type, user_name, ip_address,
			                     os, os_version, model_name, agent_version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, req.UUID, req.MACAddress, req.NetworkType, req.UserName, req.IPAddress,
			req.OS, req.OSVersion, req.ModelName, agentVersion, now, now)
		if err != nil {
			return nil, fmt.Errorf("insert machine: %w", err)
		}
		newID, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		m, err := scanMachine(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, newID))
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit upsert: %w", err)
		}
		return &Result{Action: models.ActionCreated, ID: newID, Machine: *m}, nil

	case err != nil:
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE pc_info
		SET mac_address = ?, network_type = ?, user_name = ?, ip_address = ?,
		    os = ?, os_version = ?, model_name = ?, agent_version = ?, updated_at = ?
		WHERE id = ?
	`, req.MACAddress, req.NetworkType, req.UserName, req.IPAddress,
		req.OS, req.OSVersion, req.ModelName, agentVersion, now, prev.ID); err != nil {
		return nil, fmt.Errorf("update machine: %w", err)
	}
	m, err := scanMachine(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, prev.ID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}
	return &Result{Action: models.ActionUpdated, ID: prev.ID, Machine: *m, Previous: prev}, nil
}

// Get returns the machine with the given uuid.
func Get(ctx context.Context, conn *sql.DB, id string) (*models.Machine, error) {
	return scanMachine(conn.QueryRowContext(ctx, selectColumns+` WHERE uuid = ?`, CanonicalUUID(id)))
}

// List returns every machine, most recently reported first.
func List(ctx context.Context, conn *sql.DB) ([]models.Machine, error) {
	rows, err := conn.QueryContext(ctx, selectColumns+` ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	out := []models.Machine{}
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMachine(row scanner) (*models.Machine, error) {
	var m models.Machine
	var createdAt, updatedAt string
	err := row.Scan(&m.ID, &m.UUID, &m.MACAddress, &m.NetworkType, &m.UserName, &m.IPAddress,
		&m.OS, &m.OSVersion, &m.ModelName, &m.AgentVersion, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan machine: %w", err)
	}
	m.CreatedAt = db.ParseTime(createdAt)
	m.UpdatedAt = db.ParseTime(updatedAt)
	m.Outdated = version.IsOutdated(m.AgentVersion, version.Version)
	return &m, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
