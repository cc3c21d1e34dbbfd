package usecase

import (
	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
)

// AccessPolicy решает, может ли вызывающий работать с ресурсом, принадлежащим ownerID.
// Не хранит состояния: решение принимается заново на каждый вызов.
type AccessPolicy struct{}

func NewAccessPolicy() AccessPolicy {
	return AccessPolicy{}
}

// AuthorizeAccess разрешает доступ администратору и владельцу ресурса.
// Ошибка не содержит сведений о ресурсе.
func (AccessPolicy) AuthorizeAccess(caller *domain.Caller, ownerID int64) error {
	if caller == nil {
		return e.ErrUnauthenticated
	}

	if caller.IsAdmin() || caller.ID == ownerID {
		return nil
	}

	return e.ErrForbidden
}
