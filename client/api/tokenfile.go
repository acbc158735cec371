package api

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	TokenFileEnv     = "TASKHUB_TOKEN_FILE"
	defaultTokenDir  = ".taskhub"
	defaultTokenName = "token"
)

// ErrNoToken means nobody is logged in.
var ErrNoToken = errors.New("not logged in, run `taskhub login` first")

// TokenFile persists the bearer token between CLI invocations.
type TokenFile struct {
	Path string
}

// DefaultTokenFile honours TASKHUB_TOKEN_FILE, then falls back to ~/.taskhub/token.
func DefaultTokenFile() (TokenFile, error) {
	if path := strings.TrimSpace(os.Getenv(TokenFileEnv)); path != "" {
		return TokenFile{Path: path}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return TokenFile{}, fmt.Errorf("resolve home directory: %w", err)
	}
	return TokenFile{Path: filepath.Join(home, defaultTokenDir, defaultTokenName)}, nil
}

func (f TokenFile) Load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Save writes the token readable by the current user only.
func (f TokenFile) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.Path, []byte(token+"\n"), 0o600)
}

// Remove deletes the token; a missing file is not an error.
func (f TokenFile) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
