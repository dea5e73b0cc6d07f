package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// AuthService issues tokens for operators and manages their accounts.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	CreateOperator(ctx context.Context, req dto.CreateOperatorRequest) (*dto.OperatorResponse, error)
	ListOperators(ctx context.Context, includeInactive bool) ([]dto.OperatorResponse, error)
	UpdateOperator(ctx context.Context, id uuid.UUID, req dto.UpdateOperatorRequest) (*dto.OperatorResponse, error)
	// SetOperatorActive refuses to let an operator deactivate themselves.
	SetOperatorActive(ctx context.Context, actor, id uuid.UUID, active bool) error
}

type authService struct {
	repo repository.OperatorRepository
	cfg  *config.Config
}

func NewAuthService(repo repository.OperatorRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	op, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredential
	}
	return s.issue(op)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredential
	}
	if typ, _ := claims["token_type"].(string); typ != "refresh" {
		return nil, ErrInvalidCredential
	}
	idStr, _ := claims["operator_id"].(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	op, err := s.repo.FindByID(ctx, id)
	if err != nil || !op.Active {
		return nil, ErrInvalidCredential
	}
	return s.issue(op)
}

func (s *authService) CreateOperator(ctx context.Context, req dto.CreateOperatorRequest) (*dto.OperatorResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, err
	}
	op := &model.Operator{
		Username:     req.Username,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	}
	if err := s.repo.Create(ctx, op); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("username %q: %w", req.Username, ErrDuplicateUsername)
		}
		return nil, persistence("create operator", err)
	}
	resp := toOperatorResponse(op)
	return &resp, nil
}

func (s *authService) ListOperators(ctx context.Context, includeInactive bool) ([]dto.OperatorResponse, error) {
	ops, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, persistence("list operators", err)
	}
	out := make([]dto.OperatorResponse, len(ops))
	for i := range ops {
		out[i] = toOperatorResponse(&ops[i])
	}
	return out, nil
}

func (s *authService) UpdateOperator(ctx context.Context, id uuid.UUID, req dto.UpdateOperatorRequest) (*dto.OperatorResponse, error) {
	op, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, classify("update operator", err)
	}
	if req.Name != "" {
		op.Name = req.Name
	}
	if req.Email != nil {
		op.Email = req.Email
	}
	if req.Role != "" {
		op.Role = req.Role
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			return nil, err
		}
		op.PasswordHash = string(hash)
	}
	if err := s.repo.Update(ctx, op); err != nil {
		return nil, persistence("update operator", err)
	}
	resp := toOperatorResponse(op)
	return &resp, nil
}

func (s *authService) SetOperatorActive(ctx context.Context, actor, id uuid.UUID, active bool) error {
	if !active && actor == id {
		return fmt.Errorf("cannot deactivate yourself: %w", ErrPermissionDenied)
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return classify("set operator active", err)
	}
	return nil
}

func (s *authService) issue(op *model.Operator) (*dto.LoginResponse, error) {
	access, err := s.generateToken(op, "access", time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refresh, err := s.generateToken(op, "refresh", time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         toOperatorResponse(op),
	}, nil
}

func (s *authService) generateToken(op *model.Operator, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"operator_id": op.ID.String(),
		"username":    op.Username,
		"role":        op.Role,
		"token_type":  tokenType,
		"exp":         now.Add(ttl).Unix(),
		"iat":         now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

func toOperatorResponse(op *model.Operator) dto.OperatorResponse {
	return dto.OperatorResponse{
		ID:       op.ID.String(),
		Username: op.Username,
		Name:     op.Name,
		Email:    op.Email,
		Role:     op.Role,
		Active:   op.Active,
	}
}
