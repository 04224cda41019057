package rpc

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
)

// ObtainJWTSecret reads a hex encoded 32 byte JWT secret, and generates one if it is missing and
// generateMissing is set. Any other read error is returned, the file is never overwritten.
func ObtainJWTSecret(logger log.Logger, jwtSecretPath string, generateMissing bool) (common.Hash, error) {
	jwtSecretPath = strings.TrimSpace(jwtSecretPath)
	if jwtSecretPath == "" {
		return common.Hash{}, errors.New("file-name of jwt secret is empty")
	}
	data, err := os.ReadFile(jwtSecretPath)
	if errors.Is(err, fs.ErrNotExist) {
		if !generateMissing {
			return common.Hash{}, fmt.Errorf("JWT-secret in path %q does not exist: %w", jwtSecretPath, err)
		}
		logger.Warn("Failed to read JWT secret from file, generating a new one now.", "path", jwtSecretPath)
		return generateJWTSecret(jwtSecretPath)
	} else if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read JWT secret from file path %q: %w", jwtSecretPath, err)
	}
	jwtSecret := common.FromHex(strings.TrimSpace(string(data)))
	if len(jwtSecret) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid jwt secret in path %q, not 32 hex-formatted bytes", jwtSecretPath)
	}
	return common.Hash(jwtSecret), nil
}

func generateJWTSecret(path string) (common.Hash, error) {
	var secret common.Hash
	if _, err := io.ReadFull(rand.Reader, secret[:]); err != nil {
		return common.Hash{}, fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	if err := os.WriteFile(path, []byte(hexutil.Encode(secret[:])), 0o600); err != nil {
		return common.Hash{}, err
	}
	return secret, nil
}
