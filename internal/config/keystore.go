package config

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters for deriving the key store's encryption key.
const (
	kdfTime      = 1
	kdfMemory    = 64 * 1024
	kdfThreads   = 4
	kdfKeyLength = chacha20poly1305.KeySize
	saltLength   = 16
	secretLength = 32
)

// SecretFileName holds the random secret used when no passphrase is set.
const SecretFileName = "storage.key"

const keyFileVersion = 1

// ErrDecrypt means a stored key could not be opened with the current
// passphrase or the file was altered.
var ErrDecrypt = errors.New("cannot decrypt stored api key")

type kdfParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
	Salt    string `json:"salt"`
}

type keyFile struct {
	Version int               `json:"version"`
	KDF     kdfParams         `json:"kdf"`
	Entries map[string]string `json:"entries"`
}

// KeyStore keeps provider API keys in keys.json, each sealed with
// XChaCha20-Poly1305 under a key derived by argon2id. The provider name
// is bound as associated data so entries cannot be swapped.
type KeyStore struct {
	mu   sync.Mutex
	path string
	aead cipher.AEAD
	file keyFile
}

// OpenKeyStore opens or creates dir/keys.json. With an empty passphrase
// the key is derived from a random secret kept in dir/storage.key.
func OpenKeyStore(dir, passphrase string) (*KeyStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key store directory: %w", err)
	}

	secret := []byte(passphrase)
	if passphrase == "" {
		s, err := loadOrCreateSecret(filepath.Join(dir, SecretFileName))
		if err != nil {
			return nil, err
		}
		secret = s
	}

	ks := &KeyStore{path: filepath.Join(dir, KeysFileName)}
	if err := ks.load(); err != nil {
		return nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(ks.file.KDF.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode key store salt: %w", err)
	}
	p := ks.file.KDF
	key := argon2.IDKey(secret, salt, p.Time, p.Memory, p.Threads, kdfKeyLength)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	ks.aead = aead
	return ks, nil
}

func loadOrCreateSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		secret, err := base64.RawStdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return secret, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	secret := make([]byte, secretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	encoded := base64.RawStdEncoding.EncodeToString(secret)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return secret, nil
}

func (ks *KeyStore) load() error {
	data, err := os.ReadFile(ks.path)
	if errors.Is(err, fs.ErrNotExist) {
		salt := make([]byte, saltLength)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		ks.file = keyFile{
			Version: keyFileVersion,
			KDF: kdfParams{
				Time:    kdfTime,
				Memory:  kdfMemory,
				Threads: kdfThreads,
				Salt:    base64.RawStdEncoding.EncodeToString(salt),
			},
			Entries: map[string]string{},
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read key store: %w", err)
	}
	if err := json.Unmarshal(data, &ks.file); err != nil {
		return fmt.Errorf("decode key store: %w", err)
	}
	if ks.file.Version != keyFileVersion {
		return fmt.Errorf("unsupported key store version %d", ks.file.Version)
	}
	if ks.file.KDF.Threads == 0 {
		return errors.New("invalid key store: thread count must be positive")
	}
	if ks.file.Entries == nil {
		ks.file.Entries = map[string]string{}
	}
	return nil
}

// Set stores key for provider, replacing any previous value.
func (ks *KeyStore) Set(provider, key string) error {
	if provider == "" {
		return errors.New("provider is required")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("api key is empty")
	}

	nonce := make([]byte, ks.aead.NonceSize(), ks.aead.NonceSize()+len(key)+ks.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := ks.aead.Seal(nonce, nonce, []byte(key), []byte(provider))

	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.file.Entries[provider] = base64.RawStdEncoding.EncodeToString(sealed)
	return ks.persist()
}

// Get returns the key stored for provider.
func (ks *KeyStore) Get(provider string) (string, bool, error) {
	ks.mu.Lock()
	encoded, ok := ks.file.Entries[provider]
	ks.mu.Unlock()
	if !ok {
		return "", false, nil
	}

	sealed, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil || len(sealed) < ks.aead.NonceSize() {
		return "", false, fmt.Errorf("%w for %s", ErrDecrypt, provider)
	}
	n := ks.aead.NonceSize()
	plain, err := ks.aead.Open(nil, sealed[:n], sealed[n:], []byte(provider))
	if err != nil {
		return "", false, fmt.Errorf("%w for %s", ErrDecrypt, provider)
	}
	return string(plain), true, nil
}

// Delete removes the key for provider and reports whether one existed.
func (ks *KeyStore) Delete(provider string) (bool, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if _, ok := ks.file.Entries[provider]; !ok {
		return false, nil
	}
	delete(ks.file.Entries, provider)
	return true, ks.persist()
}

// Providers lists providers with a stored key in sorted order.
func (ks *KeyStore) Providers() []string {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return slices.Sorted(maps.Keys(ks.file.Entries))
}

// persist writes the file through a temp file and rename. Callers hold mu.
func (ks *KeyStore) persist() error {
	data, err := json.MarshalIndent(ks.file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(ks.path), ".keys-*.json")
	if err != nil {
		return fmt.Errorf("create temp key store: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod key store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write key store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close key store: %w", err)
	}
	if err := os.Rename(tmp.Name(), ks.path); err != nil {
		return fmt.Errorf("replace key store: %w", err)
	}
	return nil
}

// MaskKey shows the first and last four characters of key.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
