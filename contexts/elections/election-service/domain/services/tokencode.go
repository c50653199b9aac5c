package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// TokenAlphabet omits characters that are easy to misread on paper (0/O, 1/I).
const TokenAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	tokenGroupSize   = 4
	tokenGroups      = 2
	tokenCodeLength  = tokenGroupSize * tokenGroups
	sessionSecretLen = 32
	redactedPrefix   = "redacted:"
)

// CodeGenerator draws token codes and session secrets from a random source.
type CodeGenerator struct {
	Random io.Reader
}

func (g CodeGenerator) reader() io.Reader {
	if g.Random == nil {
		return rand.Reader
	}
	return g.Random
}

// NewTokenCode returns a code formatted as two dash-separated groups, e.g. "K7QD-M2XA".
// Bytes at or above the largest multiple of the alphabet size are rejected so
// every symbol is equally likely.
func (g CodeGenerator) NewTokenCode() (string, error) {
	limit := 256 - (256 % len(TokenAlphabet))
	symbols := make([]byte, 0, tokenCodeLength)
	buf := make([]byte, tokenCodeLength*2)
	for len(symbols) < tokenCodeLength {
		if _, err := io.ReadFull(g.reader(), buf); err != nil {
			return "", fmt.Errorf("read token entropy: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			symbols = append(symbols, TokenAlphabet[int(b)%len(TokenAlphabet)])
			if len(symbols) == tokenCodeLength {
				break
			}
		}
	}
	return string(symbols[:tokenGroupSize]) + "-" + string(symbols[tokenGroupSize:]), nil
}

// NewSessionSecret returns a URL-safe secret with 256 bits of entropy.
func (g CodeGenerator) NewSessionSecret() (string, error) {
	buf := make([]byte, sessionSecretLen)
	if _, err := io.ReadFull(g.reader(), buf); err != nil {
		return "", fmt.Errorf("read session entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NormalizeTokenCode canonicalizes user input. It accepts lower case and a
// missing dash, and reports false for anything that cannot be a token code.
func NormalizeTokenCode(raw string) (string, bool) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "-", "")
	if len(value) != tokenCodeLength {
		return "", false
	}
	for _, r := range value {
		if !strings.ContainsRune(TokenAlphabet, r) {
			return "", false
		}
	}
	return value[:tokenGroupSize] + "-" + value[tokenGroupSize:], true
}

// RedactedCode is the placeholder stored once a token leaves UNUSED. It is
// derived from the row id only, so it stays unique and never matches a real code.
func RedactedCode(tokenID string) string {
	return redactedPrefix + strings.TrimSpace(tokenID)
}

func IsRedacted(code string) bool {
	return strings.HasPrefix(code, redactedPrefix)
}

// HashSecret is the one-way digest persisted in place of session secrets.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
