package token

import (
	"poolpay/pkg/platform/middleware/auth"
)

// ServiceAdapter satisfies the auth middleware's TokenValidator interface.
type ServiceAdapter struct {
	service *Service
}

func NewServiceAdapter(service *Service) *ServiceAdapter {
	return &ServiceAdapter{service: service}
}

func (a *ServiceAdapter) ValidateToken(tokenString string) (*auth.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &auth.Claims{
		Account: claims.Account,
		JTI:     claims.ID,
	}, nil
}
