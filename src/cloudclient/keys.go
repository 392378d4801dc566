package cloudclient

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/stake-plus/claimd/src/claim"
	"github.com/stake-plus/claimd/src/shared/fsx"
)

const (
	keyDir         = "cloud.d"
	keyFile        = "private.pem"
	keyBits        = 2048
	assertionTTL   = 5 * time.Minute
	pemPrivateType = "RSA PRIVATE KEY"
	pemPublicType  = "PUBLIC KEY"
)

// KeyStore owns the host key used to identify this node to the cloud.
type KeyStore struct {
	mu   sync.Mutex
	dir  string
	bits int
	key  *rsa.PrivateKey
}

func NewKeyStore(stateDir string) *KeyStore {
	return &KeyStore{dir: fsx.StatePath(stateDir, keyDir), bits: keyBits}
}

func (k *KeyStore) Path() string { return fsx.StatePath(k.dir, keyFile) }

// LoadOrCreate returns the host key, generating and saving it on first use.
func (k *KeyStore) LoadOrCreate() (*rsa.PrivateKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.key != nil {
		return k.key, nil
	}

	raw, err := os.ReadFile(k.Path())
	switch {
	case err == nil:
		block, _ := pem.Decode(raw)
		if block == nil || block.Type != pemPrivateType {
			return nil, fmt.Errorf("%s: not an RSA private key", k.Path())
		}
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k.Path(), err)
		}
		k.key = key
		return key, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	key, err := rsa.GenerateKey(rand.Reader, k.bits)
	if err != nil {
		return nil, err
	}
	if err := fsx.EnsureDir(k.dir, 0o770); err != nil {
		return nil, err
	}
	block := pem.EncodeToMemory(&pem.Block{Type: pemPrivateType, Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := fsx.ReplaceFile(k.Path(), block, 0o600); err != nil {
		return nil, err
	}
	k.key = key
	return key, nil
}

// PublicKey returns the PEM encoded public half and its key id, the first
// 16 bytes of its BLAKE2b-256 digest in hex.
func PublicKey(key *rsa.PrivateKey) (string, string, error) {
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", err
	}
	sum := blake2b.Sum256(der)
	encoded := pem.EncodeToMemory(&pem.Block{Type: pemPublicType, Bytes: der})
	return string(encoded), hex.EncodeToString(sum[:16]), nil
}

func signAssertion(key *rsa.PrivateKey, kid string, id claim.Identity, audience string, now time.Time) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    id.NodeID,
		Subject:   id.MachineGUID,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
		ID:        uuid.NewString(),
	})
	tok.Header["kid"] = kid
	return tok.SignedString(key)
}
