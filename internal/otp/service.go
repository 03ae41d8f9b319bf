// Package otp implements the one-time-code verification gate: codes are
// generated with crypto/rand, stored only as SHA-256 digests, expire
// after a fixed TTL, and are cleared the moment a phone is verified.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"time"

	"DeliberoScan/internal/apperr"
	"DeliberoScan/internal/ports"
)

const codeSpace = 1000000

var (
	phoneExpr = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	codeExpr  = regexp.MustCompile(`^\d{6}$`)
)

// User-facing messages, kept deliberately vague about internal state.
const (
	msgInvalidPhone = "Numero di telefono non valido. Usa il formato internazionale (es. +393331234567)"
	msgInvalidCode  = "Codice OTP non valido"
	msgUnknownPhone = "Numero non trovato. Richiedi un nuovo codice."
	msgExpiredCode  = "Codice scaduto. Richiedi un nuovo codice."
	msgWrongCode    = "Codice errato"
)

// Service drives the send/verify/check lifecycle.
type Service struct {
	repo      ports.OTPRepository
	messenger ports.Messenger
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the storage and dispatch adapters.
func NewService(repo ports.OTPRepository, messenger ports.Messenger, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		repo:      repo,
		messenger: messenger,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// SendResult reports the outcome of a send request.
type SendResult struct {
	AlreadyVerified bool `json:"already_verified,omitempty"`
}

// VerifyResult reports the outcome of a verify request.
type VerifyResult struct {
	Verified        bool `json:"verified,omitempty"`
	AlreadyVerified bool `json:"already_verified,omitempty"`
}

// Send issues a fresh code for the phone, overwriting any pending one,
// and dispatches it. Verified phones short-circuit without a new code.
func (s *Service) Send(ctx context.Context, phone string) (SendResult, error) {
	if !phoneExpr.MatchString(phone) {
		return SendResult{}, apperr.Validation(msgInvalidPhone)
	}

	record, err := s.repo.Get(ctx, phone)
	if err != nil {
		return SendResult{}, apperr.Persistence("load otp record", err)
	}
	if record != nil && record.IsVerified {
		return SendResult{AlreadyVerified: true}, nil
	}

	code, err := generateCode()
	if err != nil {
		return SendResult{}, fmt.Errorf("generate code: %w", err)
	}

	expiresAt := s.now().Add(s.ttl)
	if err := s.repo.UpsertPending(ctx, phone, HashCode(code), expiresAt); err != nil {
		return SendResult{}, apperr.Persistence("store otp code", err)
	}

	message := fmt.Sprintf("Il tuo codice di verifica Delibero è: %s\n\nQuesto codice scade tra 10 minuti.", code)
	if err := s.messenger.SendText(ctx, phone, message); err != nil {
		// The stored code stays valid: an undelivered code is still a
		// secret, so the caller must retry send to rotate it.
		s.log("otp dispatch failed", "error", err)
		return SendResult{}, err
	}

	s.log("otp sent", "phone", phone)
	return SendResult{}, nil
}

// Verify checks the submitted code. On success the phone transitions to
// verified and the stored hash and expiry are cleared.
func (s *Service) Verify(ctx context.Context, phone, code string) (VerifyResult, error) {
	if !phoneExpr.MatchString(phone) {
		return VerifyResult{}, apperr.Validation(msgInvalidPhone)
	}
	if !codeExpr.MatchString(code) {
		return VerifyResult{}, apperr.Validation(msgInvalidCode)
	}

	record, err := s.repo.Get(ctx, phone)
	if err != nil {
		return VerifyResult{}, apperr.Persistence("load otp record", err)
	}
	if record == nil {
		return VerifyResult{}, apperr.NotFound(msgUnknownPhone)
	}
	if record.IsVerified {
		return VerifyResult{AlreadyVerified: true, Verified: true}, nil
	}
	if record.ExpiresAt == nil || s.now().After(*record.ExpiresAt) {
		return VerifyResult{}, apperr.Validation(msgExpiredCode)
	}
	if record.OTPHash != HashCode(code) {
		return VerifyResult{}, apperr.Validation(msgWrongCode)
	}

	if err := s.repo.MarkVerified(ctx, phone, s.now()); err != nil {
		return VerifyResult{}, apperr.Persistence("mark verified", err)
	}

	s.log("phone verified", "phone", phone)
	return VerifyResult{Verified: true}, nil
}

// Check reports whether the phone is verified. Unknown phones are
// simply not verified; this operation never errors on absence.
func (s *Service) Check(ctx context.Context, phone string) (bool, error) {
	if !phoneExpr.MatchString(phone) {
		return false, apperr.Validation(msgInvalidPhone)
	}

	record, err := s.repo.Get(ctx, phone)
	if err != nil {
		return false, apperr.Persistence("load otp record", err)
	}
	return record != nil && record.IsVerified, nil
}

// HashCode returns the hex SHA-256 digest of a code. Both sides of the
// comparison are fixed-length digests.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *Service) log(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
