package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/google/uuid"
)

const tokenTypeBearer = "Bearer"

// UserUseCase выдаёт токены доступа и восстанавливает по ним вызывающего.
type UserUseCase struct {
	userRepo    UserRepository
	sessionRepo SessionRepository
	hasher      PasswordHasher
	sessionTTL  time.Duration
	logger      logger.Logger
}

func NewUserUC(
	userRepo UserRepository,
	sessionRepo SessionRepository,
	hasher PasswordHasher,
	sessionTTL time.Duration,
	logger logger.Logger,
) *UserUseCase {
	return &UserUseCase{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		sessionTTL:  sessionTTL,
		logger:      logger,
	}
}

// Authenticate проверяет email и пароль и выдаёт непрозрачный токен.
// Неизвестный email и неверный пароль неразличимы для клиента.
func (u *UserUseCase) Authenticate(ctx context.Context, req *AuthenticateReq) (*TokenRes, error) {
	const op = "UserUseCase.Authenticate"

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, e.Wrap(op, e.ErrBadCredentials)
	}

	user, err := u.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, e.ErrResourceNotFound) {
			return nil, e.Wrap(op, e.ErrBadCredentials)
		}
		return nil, e.Wrap(op, err)
	}

	if err := u.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		u.logger.Warnf("failed login attempt: user_id=%d", user.ID)
		return nil, e.Wrap(op, e.ErrBadCredentials)
	}

	token := uuid.NewString()
	if err := u.sessionRepo.Save(ctx, token, user.ID, u.sessionTTL); err != nil {
		return nil, e.Wrap(op, err)
	}

	return &TokenRes{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   u.sessionTTL,
	}, nil
}

// ResolveCaller строит Caller по токену доступа.
func (u *UserUseCase) ResolveCaller(ctx context.Context, token string) (*domain.Caller, error) {
	const op = "UserUseCase.ResolveCaller"

	if token == "" {
		return nil, e.Wrap(op, e.ErrUnauthenticated)
	}

	userID, err := u.sessionRepo.GetUserID(ctx, token)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, e.ErrResourceNotFound) {
			return nil, e.Wrap(op, e.ErrUnauthenticated)
		}
		return nil, e.Wrap(op, err)
	}

	return domain.NewCaller(user), nil
}

func (u *UserUseCase) Logout(ctx context.Context, token string) error {
	const op = "UserUseCase.Logout"

	if err := u.sessionRepo.Delete(ctx, token); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// GetMe возвращает профиль вызывающего.
func (u *UserUseCase) GetMe(ctx context.Context, caller *domain.Caller) (*UserView, error) {
	const op = "UserUseCase.GetMe"

	if caller == nil {
		return nil, e.Wrap(op, e.ErrUnauthenticated)
	}

	user, err := u.userRepo.GetByID(ctx, caller.ID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return NewUserView(user), nil
}
