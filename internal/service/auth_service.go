package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-api/internal/domain"
	"auth-api/internal/email"
	"auth-api/internal/repository"
)

// AuthService coordina el ciclo de vida de credenciales: alta, login,
// usuario actual y el flujo de reset por código.
type AuthService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	emailSender email.Sender
	tokens      *TokenService
	hasher      PasswordHasher
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, emailSender email.Sender, tokens *TokenService, hasher PasswordHasher) *AuthService {
	return &AuthService{
		logger:      logger,
		users:       users,
		emailSender: emailSender,
		tokens:      tokens,
		hasher:      hasher,
	}
}

var (
	ErrNameRequired       = errors.New("name required")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrEmailTaken         = errors.New("email taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const minPasswordLength = 6

// Register da de alta un usuario con su contraseña hasheada. No emite token:
// el alta no inicia sesión.
func (s *AuthService) Register(ctx context.Context, name, emailAddr, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	name = strings.TrimSpace(name)
	emailAddr = strings.TrimSpace(emailAddr)
	if name == "" {
		return domain.User{}, ErrNameRequired
	}
	if len(password) < minPasswordLength {
		return domain.User{}, ErrPasswordTooShort
	}

	_, err := s.users.GetByEmail(ctx, emailAddr)
	if err == nil {
		return domain.User{}, ErrEmailTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Dos registros concurrentes con el mismo email: el índice único
		// decide y el perdedor recibe el mismo conflicto que la prelectura.
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	return user, nil
}

// Authenticate verifica email y contraseña y emite el token de sesión con
// subject = id del usuario.
func (s *AuthService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, string, error) {
	if s.users == nil {
		return domain.User{}, "", errors.New("auth service not configured")
	}

	emailAddr = strings.TrimSpace(emailAddr)
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, "", ErrUserNotFound
		}
		return domain.User{}, "", err
	}
	if user.PasswordHash == "" || !s.hasher.Verify(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// CurrentUser resuelve el usuario detrás de un token ya validado. Un token
// vigente puede apuntar a un usuario que ya no existe.
func (s *AuthService) CurrentUser(ctx context.Context, id string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// RequestReset genera un código nuevo y lo escribe sobre el usuario; un
// pedido posterior pisa el código anterior. El correo sale en una goroutine
// aparte: su falla se loguea y nunca escala al llamador.
func (s *AuthService) RequestReset(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}

	emailAddr = strings.TrimSpace(emailAddr)
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	code, err := GenerateResetCode()
	if err != nil {
		return err
	}

	affected, err := s.users.SetResetCode(ctx, user.Email, code)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	if s.emailSender == nil {
		if s.logger != nil {
			s.logger.Warn("reset email skipped, sender not configured", zap.String("email", user.Email))
		}
		return nil
	}
	go func(toEmail, name, code string) {
		if err := s.emailSender.SendPasswordReset(context.Background(), toEmail, name, code); err != nil {
			if s.logger != nil {
				s.logger.Warn("send password reset failed", zap.Error(err), zap.String("email", toEmail))
			}
		}
	}(user.Email, user.Name, code)

	return nil
}

// CompleteReset reemplaza el hash y limpia el código cuando email y código
// coinciden exactamente. Sin coincidencia no escribe nada y aún así responde
// éxito: la respuesta no permite enumerar emails ni códigos válidos.
func (s *AuthService) CompleteReset(ctx context.Context, emailAddr, code, newPassword string) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}

	emailAddr = strings.TrimSpace(emailAddr)
	code = strings.TrimSpace(code)

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	affected, err := s.users.CompletePasswordReset(ctx, emailAddr, code, passwordHash)
	if err != nil {
		return err
	}
	if affected == 0 && s.logger != nil {
		s.logger.Info("password reset without match", zap.String("email", emailAddr))
	}
	return nil
}
