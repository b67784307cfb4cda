package service

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/observer-server/internal/model"
)

var dummySecret = []byte("observer-dummy-secret")

// Credentials hashes and checks principal secrets with bcrypt.
type Credentials struct {
	cost      int
	dummyOnce sync.Once
	dummy     []byte
	generate  func(secret []byte, cost int) ([]byte, error)
}

// NewCredentials creates a hasher with the given bcrypt cost. Out of range
// costs fall back to bcrypt.DefaultCost.
func NewCredentials(cost int) *Credentials {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Credentials{cost: cost, generate: bcrypt.GenerateFromPassword}
}

// Hash returns the bcrypt hash of secret. Secrets longer than
// model.MaxSecretBytes yield model.ErrSecretTooLong.
func (c *Credentials) Hash(secret string) ([]byte, error) {
	if len(secret) > model.MaxSecretBytes {
		return nil, model.ErrSecretTooLong
	}
	hash, err := c.generate([]byte(secret), c.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, model.ErrSecretTooLong
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash secret: %w", err)
	}
	return hash, nil
}

func (c *Credentials) Compare(hash []byte, secret string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(secret)) == nil
}

// CompareDummy burns the same time as a real comparison. It is used when
// the identifier is unknown.
func (c *Credentials) CompareDummy(secret string) {
	c.dummyOnce.Do(func() {
		dummy, err := c.generate(dummySecret, c.cost)
		if err != nil {
			dummy, err = c.generate(dummySecret, bcrypt.MinCost)
		}
		if err != nil {
			panic(fmt.Sprintf("credentials: failed to prepare dummy hash: %v", err))
		}
		c.dummy = dummy
	})
	_ = bcrypt.CompareHashAndPassword(c.dummy, []byte(secret))
}
