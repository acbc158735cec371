package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/internal/credential"
	"github.com/fastygo/taskhub/pkg/logger"
	"github.com/fastygo/taskhub/repository"
)

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   *credential.TokenManager
	hasher   *credential.PasswordHasher
	logger   *zap.Logger
	now      func() time.Time
}

func New(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *credential.TokenManager,
	hasher *credential.PasswordHasher,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates an account. Duplicate emails yield domain.ErrEmailTaken.
func (uc *UseCase) Register(ctx context.Context, input domain.Registration) (*domain.User, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	hash, err := uc.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.WithRequestID(ctx, uc.logger).Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login checks the password and opens a session. Unknown email and wrong password are
// reported identically.
func (uc *UseCase) Login(ctx context.Context, email, password string) (*domain.Credential, error) {
	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !uc.hasher.Verify(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := uc.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.tokens.TTL()),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	token, err := uc.tokens.Issue(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		_ = uc.sessions.Delete(ctx, session.ID)
		return nil, err
	}

	return &domain.Credential{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Authenticate resolves a bearer token to its owner. The token must verify and its session
// must still exist.
func (uc *UseCase) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := uc.tokens.Verify(token)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "invalid or expired token", err)
	}

	session, err := uc.sessions.Get(ctx, claims.SessionID())
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.NewError(domain.ErrCodeUnauthorized, "session revoked")
		}
		return nil, err
	}
	if session.UserID != claims.UserID || session.IsExpired(uc.now()) {
		return nil, domain.NewError(domain.ErrCodeUnauthorized, "session revoked")
	}

	return &domain.Principal{UserID: claims.UserID, SessionID: session.ID}, nil
}

// Logout revokes the session behind a token.
func (uc *UseCase) Logout(ctx context.Context, sessionID string) error {
	return uc.sessions.Delete(ctx, sessionID)
}
