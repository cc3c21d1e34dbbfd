package hasher

import (
	"errors"

	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher сравнивает и создаёт bcrypt-хэши паролей.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (b *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", e.Wrap("BcryptHasher.Hash", err)
	}

	return string(hash), nil
}

// Compare возвращает e.ErrBadCredentials, если пароль не совпадает с хэшем.
func (b *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return e.ErrBadCredentials
	}

	return e.Wrap("BcryptHasher.Compare", err)
}
