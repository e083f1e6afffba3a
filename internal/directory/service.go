package directory

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"pro-chat/internal/identity"
)

type Service struct {
	repo      *Repository
	jwtSecret string
}

type ChatClaims struct {
	ID    int            `json:"id"`
	Class identity.Class `json:"class"`
	Name  string         `json:"name"`
	jwt.RegisteredClaims
}

func NewService(repo *Repository, secret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: secret,
	}
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*Account, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	a := &Account{
		Class:    req.Class,
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPwd),
	}

	return s.repo.CreateAccount(ctx, a)
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	a, err := s.repo.GetByEmail(ctx, req.Class, req.Email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(req.Password)); err != nil {
		return nil, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ChatClaims{
		ID:    a.ID,
		Class: a.Class,
		Name:  a.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "pro-chat",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken: ss,
		ID:          a.ID,
		Class:       a.Class,
		Name:        a.Name,
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (identity.Participant, string, error) {
	claims := &ChatClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return identity.Participant{}, "", err
	}
	if !token.Valid {
		return identity.Participant{}, "", errors.New("invalid token")
	}

	p := identity.Participant{Class: claims.Class, ID: claims.ID}
	if !p.Valid() {
		return identity.Participant{}, "", errors.New("malformed identity claims")
	}
	return p, claims.Name, nil
}

// Resolve reports whether a participant exists and its display name. It is
// the lookup collaborator the chat core depends on: ok=false means the
// identity does not exist, err means the lookup itself failed.
func (s *Service) Resolve(ctx context.Context, p identity.Participant) (string, bool, error) {
	a, err := s.repo.GetByID(ctx, p)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return a.Name, true, nil
}

func (s *Service) Search(ctx context.Context, class identity.Class, query string) ([]Account, error) {
	return s.repo.Search(ctx, class, query)
}
