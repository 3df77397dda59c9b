package crestauth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/crestauth/crestauth/internal/otc"
	"github.com/crestauth/crestauth/internal/rate"
)

// issueChallenge opens the second-factor step of a login: a fresh code
// is stored under a new challenge ID and sent to the account email or,
// for SMS accounts, the account phone. The store keys challenges by
// principal, so a reissue quietly invalidates the previous code.
//
// Unlike other notifications, code delivery is load-bearing: if it
// fails, the challenge is withdrawn and the login fails.
func (e *Engine) issueChallenge(ctx context.Context, principal *Principal) (*MFAChallenge, error) {
	code, err := generateCode(e.config.OTC.Digits)
	if err != nil {
		return nil, err
	}

	challengeID := uuid.NewString()
	expiresAt := time.Now().Add(e.config.OTC.TTL)
	record := &otc.Record{
		PrincipalID: principal.ID,
		Code:        code,
		ExpiresAt:   expiresAt.Unix(),
	}
	if err := e.challenges.Save(ctx, challengeID, record, e.config.OTC.TTL); err != nil {
		e.metrics.inc(&e.metrics.storeFailures)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	destination := principal.Email
	if principal.MFAMethod == MFASMS {
		destination = principal.Phone
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.DispatchTimeout)
	defer cancel()
	if err := e.notifier.SendOTC(nctx, destination, code, expiresAt); err != nil {
		e.metrics.inc(&e.metrics.notifyFailures)
		_, _ = e.challenges.Delete(ctx, challengeID)
		e.emit(ctx, AuditEvent{
			EventType:   AuditNotificationError,
			PrincipalID: principal.ID,
			Error:       err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailure, err)
	}

	e.metrics.inc(&e.metrics.otcIssued)
	e.emit(ctx, AuditEvent{
		EventType:   AuditOTCIssued,
		PrincipalID: principal.ID,
		Success:     true,
		Metadata:    map[string]string{"challenge_id": challengeID},
	})

	return &MFAChallenge{
		ChallengeID: challengeID,
		Method:      principal.MFAMethod,
		ExpiresAt:   expiresAt,
	}, nil
}

// VerifyOTC completes a pending MFA challenge and issues a token pair.
// A correct code consumes the challenge; replaying it afterwards reads
// as unknown. Wrong codes count against the attempt budget and the last
// one burns the challenge.
func (e *Engine) VerifyOTC(ctx context.Context, challengeID, code string) (*TokenPair, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if challengeID == "" || code == "" {
		return nil, ErrValidation
	}

	if err := e.allow(ctx, rate.ActionOTCVerify, challengeID); err != nil {
		return nil, err
	}
	e.recordAttempt(ctx, rate.ActionOTCVerify, challengeID)

	record, err := e.challenges.Consume(ctx, challengeID, code, e.config.OTC.MaxAttempts)
	if err != nil {
		return nil, e.mapChallengeError(ctx, challengeID, err)
	}

	sctx, cancel := e.storeCtx(ctx)
	principal, err := e.store.GetUser(sctx, record.PrincipalID)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	if principal.Status == StatusDisabled {
		return nil, ErrAccountDisabled
	}

	pair, err := e.issuePair(principal.ID)
	if err != nil {
		return nil, err
	}

	e.noteLoginSuccess(ctx, principal)
	e.resetAttempts(ctx, rate.ActionOTCVerify, challengeID)
	e.metrics.inc(&e.metrics.otcVerified)
	e.metrics.inc(&e.metrics.loginSuccess)
	e.emit(ctx, AuditEvent{
		EventType:   AuditOTCVerified,
		PrincipalID: principal.ID,
		Success:     true,
	})

	return pair, nil
}

func (e *Engine) mapChallengeError(ctx context.Context, challengeID string, err error) error {
	var mapped error
	switch {
	case errors.Is(err, otc.ErrNotFound):
		mapped = ErrCodeNotFound
	case errors.Is(err, otc.ErrExpired):
		mapped = ErrCodeExpired
	case errors.Is(err, otc.ErrMismatch):
		mapped = ErrInvalidCode
	default:
		e.metrics.inc(&e.metrics.storeFailures)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emit(ctx, AuditEvent{
		EventType: AuditOTCFailed,
		Error:     mapped.Error(),
		Metadata:  map[string]string{"challenge_id": challengeID},
	})
	return mapped
}

// generateCode draws a uniformly random numeric code of the given width
// from crypto/rand.
func generateCode(digits int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
