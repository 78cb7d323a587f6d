// Package auth registers users, checks credentials and keeps login sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	"github.com/ariefcatur/go-ledger-orders/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound   = errors.New("user does not exist")
	ErrBadCredentials = errors.New("login failed")
	ErrUsernameTaken  = errors.New("username already taken")
)

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password"`
}

type Credentials struct {
	Username string `form:"username" validate:"required,max=64"`
	Password string `form:"password" validate:"required,max=72"` // bcrypt input limit
}

type activityLog interface {
	Log(ctx context.Context, userID, text string)
}

type Service struct {
	Store    docstore.Store
	Activity activityLog
	Cost     int
}

func (s *Service) Register(ctx context.Context, c Credentials) (User, error) {
	if err := validation.Struct(c); err != nil {
		return User{}, err
	}
	if _, found, err := s.byUsername(ctx, c.Username); err != nil {
		return User{}, err
	} else if found {
		return User{}, ErrUsernameTaken
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.Store.Add(ctx, docstore.Users, docstore.Fields{
		"username": c.Username,
		"password": string(hash),
	})
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	s.Activity.Log(ctx, id, "User registered")
	return User{ID: id, Username: c.Username, PasswordHash: string(hash)}, nil
}

func (s *Service) Login(ctx context.Context, c Credentials) (User, error) {
	if err := validation.Struct(c); err != nil {
		return User{}, err
	}
	u, found, err := s.byUsername(ctx, c.Username)
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(c.Password)); err != nil {
		return User{}, ErrBadCredentials
	}
	s.Activity.Log(ctx, u.ID, "User logged in")
	return u, nil
}

func (s *Service) byUsername(ctx context.Context, username string) (User, bool, error) {
	docs, err := s.Store.QueryEquals(ctx, docstore.Users, "username", username)
	if err != nil {
		return User{}, false, fmt.Errorf("lookup user: %w", err)
	}
	if len(docs) == 0 {
		return User{}, false, nil
	}
	var u User
	if err := docs[0].DataTo(&u); err != nil {
		return User{}, false, err
	}
	u.ID = docs[0].ID
	return u, true, nil
}
