package credential

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// keySize is the size of the master key kept in the key file.
const keySize = 32

// sealMagic prefixes every sealed slot.
var sealMagic = []byte("GLV1")

// cipherID identifies the AEAD a slot was sealed with.
type cipherID byte

const (
	cipherAESGCM   cipherID = 1
	cipherChaCha20 cipherID = 2
)

func (c cipherID) String() string {
	switch c {
	case cipherAESGCM:
		return "aes-gcm"
	case cipherChaCha20:
		return "chacha20-poly1305"
	default:
		return fmt.Sprintf("cipher(%d)", byte(c))
	}
}

// preferredCipher picks AES-GCM where Go uses hardware AES, ChaCha20 elsewhere.
func preferredCipher() cipherID {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return cipherAESGCM
	default:
		return cipherChaCha20
	}
}

// sealer encrypts slot payloads with a key derived from the master key.
//
// Sealed layout: magic(4) | cipher(1) | nonce | ciphertext+tag.
// The slot name is bound as additional data, so a payload copied into
// another slot does not open.
type sealer struct {
	master []byte
	cipher cipherID
}

func newSealer(master []byte) (*sealer, error) {
	if len(master) != keySize {
		return nil, fmt.Errorf("credential: master key must be %d bytes, got %d", keySize, len(master))
	}
	return &sealer{master: master, cipher: preferredCipher()}, nil
}

func (s *sealer) aead(id cipherID) (cipher.AEAD, error) {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, s.master, nil, []byte("glovectl credential "+id.String()))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	switch id {
	case cipherAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case cipherChaCha20:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("credential: unknown %s", id)
	}
}

func (s *sealer) seal(plaintext []byte, slot string) ([]byte, error) {
	aead, err := s.aead(s.cipher)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(sealMagic)+1+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, sealMagic...)
	out = append(out, byte(s.cipher))
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, []byte(slot)), nil
}

func (s *sealer) open(sealed []byte, slot string) ([]byte, error) {
	if len(sealed) < len(sealMagic)+1 || !bytes.Equal(sealed[:len(sealMagic)], sealMagic) {
		return nil, ErrSealed
	}
	id := cipherID(sealed[len(sealMagic)])
	aead, err := s.aead(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealed, err)
	}

	body := sealed[len(sealMagic)+1:]
	if len(body) < aead.NonceSize() {
		return nil, ErrSealed
	}
	nonce, ciphertext := body[:aead.NonceSize()], body[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(slot))
	if err != nil {
		return nil, ErrSealed
	}
	return plaintext, nil
}

// LoadOrCreateKey reads the master key at path, creating it with fresh
// random bytes when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != keySize {
			return nil, fmt.Errorf("credential: key file %s is corrupt (%d bytes)", path, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("credential: read key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("credential: create key dir: %w", err)
	}

	key = make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("credential: generate key: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			// Lost a race with another process; use its key.
			return LoadOrCreateKey(path)
		}
		return nil, fmt.Errorf("credential: create key file: %w", err)
	}
	if _, err := f.Write(key); err != nil {
		f.Close()
		return nil, fmt.Errorf("credential: write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("credential: close key file: %w", err)
	}
	return key, nil
}
