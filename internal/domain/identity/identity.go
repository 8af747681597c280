package identity

import (
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("identity: caller is not authenticated")
	ErrInvalidRole     = errors.New("identity: unknown role")
)

type Role string

const (
	RoleTaker  Role = "taker"
	RoleLister Role = "lister"
)

// ParseRole accepts the role names issued by the identity service.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleTaker:
		return RoleTaker, nil
	case RoleLister:
		return RoleLister, nil
	}
	return "", ErrInvalidRole
}

// Identity is the resolved caller attached to every core operation.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) Validate() error {
	if strings.TrimSpace(i.UserID) == "" {
		return ErrUnauthenticated
	}
	if i.Role != RoleTaker && i.Role != RoleLister {
		return ErrInvalidRole
	}
	return nil
}

func (i Identity) IsLister() bool { return i.Role == RoleLister }
