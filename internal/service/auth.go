package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/auth"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/repository"
)

// errBadCredentials is deliberately the same for an unknown identifier and a
// wrong password so the response does not reveal which accounts exist.
const errBadCredentials = "invalid username/email or password"

// AuthService handles registration, login and profile lookup.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// respond (and set the cookie) in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account.
//
// Username is checked before email so a request that collides on both gets
// the username conflict. The UNIQUE constraints still back both checks up
// when two registrations race.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	switch {
	case username == "":
		return nil, apperror.ValidationFailed("username", "username is required")
	case email == "":
		return nil, apperror.ValidationFailed("email", "email is required")
	case password == "":
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	if err := s.ensureFree(ctx, "username", username, s.users.GetUserByUsername); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, "email", email, s.users.GetUserByEmail); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password",
				fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
		}
		return nil, fmt.Errorf("registering %q: %w", username, err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		s.logger.Error("failed to register user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, writeFailed("creating user", err)
	}

	s.logger.Info("user registered",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// ensureFree returns a Conflict when lookup finds a user for value.
func (s *AuthService) ensureFree(
	ctx context.Context,
	field, value string,
	lookup func(context.Context, string) (*model.User, error),
) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return apperror.Conflict("user", field, value)
	case isNotFound(err):
		return nil
	default:
		return fmt.Errorf("checking %s: %w", field, err)
	}
}

// Login authenticates by username or email and issues a token.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperror.ValidationFailed("identifier", "identifier and password are required")
	}

	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.Unauthorized(errBadCredentials)
		}
		return nil, fmt.Errorf("looking up %q: %w", identifier, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("failed login", slog.String("user_id", user.ID))
			return nil, apperror.Unauthorized(errBadCredentials)
		}
		return nil, err
	}

	return s.issue(user)
}

func (s *AuthService) findByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	user, err := s.users.GetUserByUsername(ctx, identifier)
	if err == nil || !isNotFound(err) {
		return user, err
	}
	return s.users.GetUserByEmail(ctx, identifier)
}

// Profile returns the public view of the user behind a verified token.
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFoundMessage("user not found")
		}
		return nil, fmt.Errorf("loading profile %s: %w", userID, err)
	}
	profile := user.Profile()
	return &profile, nil
}

// LoginOrRegisterGitHub handles the OAuth callback after the handler has
// exchanged the code for a GitHub profile.
//
// A known github_id logs straight in. On first login a user row is created:
// the GitHub login becomes the username (suffixed with the GitHub id when
// taken) and the GitHub email is used unless another account already owns
// it, in which case the noreply address stands in.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("github login: profile must not be nil")
	}

	user, err := s.users.GetUserByGitHubID(ctx, gh.ID)
	if err == nil {
		s.logger.Info("user authenticated via GitHub",
			slog.String("user_id", user.ID),
			slog.String("login", gh.Login),
		)
		return s.issue(user)
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("github login: looking up github id %d: %w", gh.ID, err)
	}

	username, err := s.freeValue(ctx, gh.Login, gh.Login+"-"+strconv.FormatInt(gh.ID, 10), s.users.GetUserByUsername)
	if err != nil {
		return nil, err
	}
	email, err := s.freeValue(ctx, gh.Email, noreplyEmail(gh), s.users.GetUserByEmail)
	if err != nil {
		return nil, err
	}

	githubID := gh.ID
	user = &model.User{
		Username: username,
		Email:    email,
		GitHubID: &githubID,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, writeFailed("creating user", err)
	}

	s.logger.Info("user registered via GitHub",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// freeValue returns preferred when no user holds it, otherwise fallback.
func (s *AuthService) freeValue(
	ctx context.Context,
	preferred, fallback string,
	lookup func(context.Context, string) (*model.User, error),
) (string, error) {
	if preferred == "" {
		return fallback, nil
	}
	_, err := lookup(ctx, preferred)
	switch {
	case err == nil:
		return fallback, nil
	case isNotFound(err):
		return preferred, nil
	default:
		return "", fmt.Errorf("github login: checking %q: %w", preferred, err)
	}
}

func noreplyEmail(gh *auth.GitHubUser) string {
	return fmt.Sprintf("%d+%s@users.noreply.github.com", gh.ID, gh.Login)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
