package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"DeliberoScan/internal/domain"
	"DeliberoScan/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists delibere and OTP records into Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var (
	_ ports.DeliberaRepository = (*PostgresRepository)(nil)
	_ ports.OTPRepository      = (*PostgresRepository)(nil)
)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ExistingNumeri returns a map with the numeri that already exist in
// storage, resolved in a single batched query.
func (r *PostgresRepository) ExistingNumeri(ctx context.Context, numeri []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if r.db == nil || len(numeri) == 0 {
		return result, nil
	}

	query, args, err := psql.
		Select("numero").
		From("delibere").
		Where("numero = ANY(?)", pq.StringArray(numeri)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build existing query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing numeri: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var numero string
		if err := rows.Scan(&numero); err != nil {
			return nil, fmt.Errorf("scan numero: %w", err)
		}
		result[numero] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// Upsert inserts or replaces the bulletin keyed by numero. The conflict
// resolution is atomic at the storage layer.
func (r *PostgresRepository) Upsert(ctx context.Context, d domain.Delibera) (domain.Delibera, error) {
	punti, err := json.Marshal(d.PuntiSalienti)
	if err != nil {
		return domain.Delibera{}, fmt.Errorf("marshal punti salienti: %w", err)
	}
	allegati, err := json.Marshal(d.Allegati)
	if err != nil {
		return domain.Delibera{}, fmt.Errorf("marshal allegati: %w", err)
	}

	query, args, err := psql.
		Insert("delibere").
		Columns("numero", "titolo", "data_pubblicazione", "riassunto_ai",
			"punti_salienti", "settori", "link_originale", "allegati",
			"is_aggiornamento_tariffario").
		Values(d.Numero, d.Titolo, d.DataPubblicazione, nullString(d.RiassuntoAI),
			string(punti), pq.StringArray(d.Settori), nullString(d.LinkOriginale), string(allegati),
			d.IsAggiornamentoTariffario).
		Suffix(`ON CONFLICT (numero) DO UPDATE
              SET titolo = EXCLUDED.titolo,
                  data_pubblicazione = EXCLUDED.data_pubblicazione,
                  riassunto_ai = EXCLUDED.riassunto_ai,
                  punti_salienti = EXCLUDED.punti_salienti,
                  settori = EXCLUDED.settori,
                  link_originale = EXCLUDED.link_originale,
                  allegati = EXCLUDED.allegati,
                  is_aggiornamento_tariffario = EXCLUDED.is_aggiornamento_tariffario,
                  updated_at = NOW()
              RETURNING id, created_at, updated_at`).
		ToSql()
	if err != nil {
		return domain.Delibera{}, fmt.Errorf("build upsert: %w", err)
	}

	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return domain.Delibera{}, fmt.Errorf("upsert delibera %s: %w", d.Numero, err)
	}

	return d, nil
}

// Get loads the OTP record for a phone, or nil when unknown.
func (r *PostgresRepository) Get(ctx context.Context, phone string) (*domain.OTPRecord, error) {
	query, args, err := psql.
		Select("phone_number", "otp_code", "otp_expires_at", "is_verified", "verified_at").
		From("whatsapp_verified_users").
		Where(sq.Eq{"phone_number": phone}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build otp query: %w", err)
	}

	var (
		record    domain.OTPRecord
		hash      sql.NullString
		expiresAt sql.NullTime
		verified  sql.NullTime
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&record.PhoneNumber, &hash, &expiresAt, &record.IsVerified, &verified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query otp record %s: %w", phone, err)
	}

	record.OTPHash = hash.String
	if expiresAt.Valid {
		t := expiresAt.Time
		record.ExpiresAt = &t
	}
	if verified.Valid {
		t := verified.Time
		record.VerifiedAt = &t
	}
	return &record, nil
}

// UpsertPending stores a fresh pending code, overwriting any prior one.
func (r *PostgresRepository) UpsertPending(ctx context.Context, phone, hash string, expiresAt time.Time) error {
	query, args, err := psql.
		Insert("whatsapp_verified_users").
		Columns("phone_number", "otp_code", "otp_expires_at", "is_verified").
		Values(phone, hash, expiresAt, false).
		Suffix(`ON CONFLICT (phone_number) DO UPDATE
              SET otp_code = EXCLUDED.otp_code,
                  otp_expires_at = EXCLUDED.otp_expires_at,
                  is_verified = false,
                  updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build otp upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert otp %s: %w", phone, err)
	}
	return nil
}

// MarkVerified flips the flag and clears the code fields so no
// crackable artifact survives a successful verification.
func (r *PostgresRepository) MarkVerified(ctx context.Context, phone string, at time.Time) error {
	query, args, err := psql.
		Update("whatsapp_verified_users").
		Set("is_verified", true).
		Set("verified_at", at).
		Set("otp_code", nil).
		Set("otp_expires_at", nil).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"phone_number": phone}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build verify update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark verified %s: %w", phone, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
