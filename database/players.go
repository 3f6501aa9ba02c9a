package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sweepsapp/models"

	"github.com/jackc/pgx/v5"
)

const playerColumns = `id, msisdn, name, email, state, status, kyc_status, has_purchased,
	excluded_until, last_ip, last_login_at, created_at, updated_at`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	err := row.Scan(&p.ID, &p.Msisdn, &p.Name, &p.Email, &p.State, &p.Status, &p.KYCStatus,
		&p.HasPurchased, &p.ExcludedUntil, &p.LastIP, &p.LastLoginAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// UpsertPlayerByMsisdn returns the player for msisdn, creating it on first
// sight. created reports whether a new row was inserted.
func (db *Database) UpsertPlayerByMsisdn(ctx context.Context, msisdn string) (*models.Player, bool, error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `INSERT INTO players (msisdn) VALUES ($1)
		ON CONFLICT (msisdn) DO NOTHING RETURNING `+playerColumns, msisdn)
	p, err := scanPlayer(row)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("failed to insert player: %w", err)
	}

	p, err = scanPlayer(conn.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE msisdn = $1`, msisdn))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load player: %w", err)
	}
	return p, false, nil
}

func (db *Database) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	p, err := scanPlayer(db.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get player %d: %w", id, err)
	}
	return p, nil
}

func (db *Database) GetPlayerByMsisdn(ctx context.Context, msisdn string) (*models.Player, error) {
	p, err := scanPlayer(db.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE msisdn = $1`, msisdn))
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

func (db *Database) UpdatePlayerProfile(ctx context.Context, id int64, name, email, state *string) (*models.Player, error) {
	row := db.pool.QueryRow(ctx, `UPDATE players
		SET name = COALESCE($2, name),
			email = COALESCE($3, email),
			state = COALESCE($4, state),
			updated_at = now()
		WHERE id = $1
		RETURNING `+playerColumns, id, name, email, state)
	p, err := scanPlayer(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update player %d: %w", id, err)
	}
	return p, nil
}

func (db *Database) SetSelfExclusion(ctx context.Context, id int64, until time.Time) error {
	tag, err := db.pool.Exec(ctx, `UPDATE players SET excluded_until = $2, updated_at = now() WHERE id = $1`, id, until)
	if err != nil {
		return fmt.Errorf("failed to set self exclusion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *Database) RecordLogin(ctx context.Context, id int64, ip string) error {
	_, err := db.pool.Exec(ctx, `UPDATE players SET last_ip = $2, last_login_at = now() WHERE id = $1`, id, ip)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

func (db *Database) SetPlayerStatus(ctx context.Context, id int64, status string) error {
	tag, err := db.pool.Exec(ctx, `UPDATE players SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set player status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchPlayers matches q against msisdn, name and email.
func (db *Database) SearchPlayers(ctx context.Context, q, status string, page models.Page) ([]models.Player, error) {
	var (
		where []string
		args  []interface{}
	)
	if q = strings.TrimSpace(q); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("(msisdn ILIKE $%d OR name ILIKE $%d OR email ILIKE $%d)", len(args), len(args), len(args)))
	}
	if status != "" {
		args = append(args, status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + playerColumns + ` FROM players`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, page.Limit, page.Offset)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search players: %w", err)
	}
	defer rows.Close()

	var out []models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
