package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// NonceService issues and verifies the tokens the donation form must echo
// back. A token is an HMAC over its issue timestamp; verification recomputes
// the mac and bounds the token age.
type NonceService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewNonceService(secret string, ttl time.Duration) *NonceService {
	return &NonceService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a fresh token.
func (s *NonceService) Issue() string {
	ts := strconv.FormatInt(s.now().Unix(), 10)
	return ts + "." + s.sign(ts)
}

// Verify reports whether token was issued by this service and has not
// expired.
func (s *NonceService) Verify(token string) bool {
	ts, mac, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	if !hmac.Equal([]byte(mac), []byte(s.sign(ts))) {
		return false
	}
	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	age := s.now().Sub(time.Unix(issued, 0))
	return age >= 0 && age <= s.ttl
}

func (s *NonceService) sign(ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(ts))
	return hex.EncodeToString(mac.Sum(nil))
}
