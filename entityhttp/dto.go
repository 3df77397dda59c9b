package entityhttp

import (
	"time"

	"github.com/crestauth/crestauth"
)

type userDTO struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"password_hash"`
	Status       string     `json:"status"`
	MFAMethod    string     `json:"mfa_method,omitempty"`
	FailedLogins int        `json:"failed_logins"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func userToDTO(user *crestauth.Principal) userDTO {
	return userDTO{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Phone:        user.Phone,
		PasswordHash: user.PasswordHash,
		Status:       string(user.Status),
		MFAMethod:    string(user.MFAMethod),
		FailedLogins: user.FailedLogins,
		LockedUntil:  user.LockedUntil,
		LastLoginAt:  user.LastLoginAt,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func (d *userDTO) toPrincipal() *crestauth.Principal {
	return &crestauth.Principal{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		Phone:        d.Phone,
		PasswordHash: d.PasswordHash,
		Status:       crestauth.AccountStatus(d.Status),
		MFAMethod:    crestauth.MFAMethod(d.MFAMethod),
		FailedLogins: d.FailedLogins,
		LockedUntil:  d.LockedUntil,
		LastLoginAt:  d.LastLoginAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// userPatchDTO keeps the wire shape of a partial update: absent fields
// stay untouched server-side, and clear_locked_until carries the
// explicit unlock.
type userPatchDTO struct {
	PasswordHash     *string    `json:"password_hash,omitempty"`
	Status           *string    `json:"status,omitempty"`
	MFAMethod        *string    `json:"mfa_method,omitempty"`
	FailedLogins     *int       `json:"failed_logins,omitempty"`
	LockedUntil      *time.Time `json:"locked_until,omitempty"`
	ClearLockedUntil bool       `json:"clear_locked_until,omitempty"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

func userPatchToDTO(patch crestauth.PrincipalPatch) userPatchDTO {
	dto := userPatchDTO{
		PasswordHash:     patch.PasswordHash,
		FailedLogins:     patch.FailedLogins,
		LockedUntil:      patch.LockedUntil,
		ClearLockedUntil: patch.ClearLockedUntil,
		LastLoginAt:      patch.LastLoginAt,
		UpdatedAt:        patch.UpdatedAt,
	}
	if patch.Status != nil {
		status := string(*patch.Status)
		dto.Status = &status
	}
	if patch.MFAMethod != nil {
		method := string(*patch.MFAMethod)
		dto.MFAMethod = &method
	}
	return dto
}

type apiKeyDTO struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	Digest     string     `json:"digest"`
	Active     bool       `json:"active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func apiKeyToDTO(key *crestauth.APIKey) apiKeyDTO {
	return apiKeyDTO{
		ID:         key.ID,
		UserID:     key.UserID,
		Name:       key.Name,
		Digest:     key.Digest,
		Active:     key.Active,
		ExpiresAt:  key.ExpiresAt,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
	}
}

func (d *apiKeyDTO) toAPIKey() *crestauth.APIKey {
	return &crestauth.APIKey{
		ID:         d.ID,
		UserID:     d.UserID,
		Name:       d.Name,
		Digest:     d.Digest,
		Active:     d.Active,
		ExpiresAt:  d.ExpiresAt,
		CreatedAt:  d.CreatedAt,
		LastUsedAt: d.LastUsedAt,
	}
}

type apiKeyPatchDTO struct {
	Active     *bool      `json:"active,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

type resetTokenDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Digest    string    `json:"digest"`
	Used      bool      `json:"used"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func resetTokenToDTO(token *crestauth.ResetToken) resetTokenDTO {
	return resetTokenDTO{
		ID:        token.ID,
		UserID:    token.UserID,
		Digest:    token.Digest,
		Used:      token.Used,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	}
}

func (d *resetTokenDTO) toResetToken() *crestauth.ResetToken {
	return &crestauth.ResetToken{
		ID:        d.ID,
		UserID:    d.UserID,
		Digest:    d.Digest,
		Used:      d.Used,
		ExpiresAt: d.ExpiresAt,
		CreatedAt: d.CreatedAt,
	}
}

type resetTokenPatchDTO struct {
	Used *bool `json:"used,omitempty"`
}

type invalidateResetTokensDTO struct {
	UserID string `json:"user_id"`
}

type linkageDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider"`
	SubjectID string    `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`
}

func linkageToDTO(linkage *crestauth.SSOLinkage) linkageDTO {
	return linkageDTO{
		ID:        linkage.ID,
		UserID:    linkage.UserID,
		Provider:  linkage.Provider,
		SubjectID: linkage.SubjectID,
		CreatedAt: linkage.CreatedAt,
	}
}

func (d *linkageDTO) toLinkage() *crestauth.SSOLinkage {
	return &crestauth.SSOLinkage{
		ID:        d.ID,
		UserID:    d.UserID,
		Provider:  d.Provider,
		SubjectID: d.SubjectID,
		CreatedAt: d.CreatedAt,
	}
}
