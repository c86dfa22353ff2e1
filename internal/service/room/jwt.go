package room

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sharetube/syncspace/internal/repository/room"
)

type Claims struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Picture  string `json:"picture"`
	jwt.RegisteredClaims
}

func (s *service) parseJWT(tokenString string) (*Claims, error) {
	if s.cfg.Secret == "" {
		return nil, errors.New("token secret is not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

func anonymousUser(userId string) room.UserInfo {
	short := userId
	if len(short) > 8 {
		short = short[:8]
	}

	return room.UserInfo{
		UserID:   userId,
		Name:     "Listener " + short,
		Username: short,
	}
}

// identify decodes the session token into a display identity. A token that
// does not decode falls back to the cached identity, then to an anonymous one.
func (s *service) identify(ctx context.Context, userId, token string) room.UserInfo {
	if token != "" {
		claims, err := s.parseJWT(token)
		if err == nil {
			info := room.UserInfo{
				UserID:   userId,
				Name:     claims.Name,
				Username: claims.Username,
				Email:    claims.Email,
				ImageURL: claims.Picture,
			}
			if info.Name == "" {
				info.Name = info.Username
			}
			if info.Name == "" {
				info.Name = anonymousUser(userId).Name
			}
			if err := s.roomRepo.SetUserInfo(ctx, &info); err != nil {
				s.logger.WarnContext(ctx, "failed to cache user info", "user_id", userId, "error", err)
			}
			return info
		}
		s.logger.InfoContext(ctx, "failed to decode session token", "user_id", userId, "error", err)
	}

	info, err := s.roomRepo.GetUserInfo(ctx, userId)
	if err == nil {
		return info
	}
	if !errors.Is(err, room.ErrUserInfoNotFound) {
		s.logger.WarnContext(ctx, "failed to read user info", "user_id", userId, "error", err)
	}

	return anonymousUser(userId)
}
