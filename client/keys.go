package client

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/go-bip39"
	"golang.org/x/crypto/argon2"
)

const (
	// CoinType is the BIP44 coin type used for key derivation.
	CoinType = 118

	keyFileSuffix = ".key.json"
	saltSize      = 16
)

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrKeyExists       = errors.New("key already exists")
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidKeyName  = errors.New("key name must be 1-64 characters of [a-zA-Z0-9_-]")
)

var (
	keyNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

	// Argon2id cost used for new key files: time=3, memory=64MB, threads=4.
	defaultKDFParams     = KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}
	lightweightKDFParams = KDFParams{Time: 1, MemoryKiB: 1024, Threads: 1}
)

// NewMnemonic generates a BIP39 mnemonic of 12 or 24 words.
func NewMnemonic(words int) (string, error) {
	var entropyBits int
	switch words {
	case 12:
		entropyBits = 128
	case 24:
		entropyBits = 256
	default:
		return "", fmt.Errorf("mnemonic length must be 12 or 24 words")
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// DeriveKey derives the secp256k1 key at m/44'/118'/account'/0/index.
func DeriveKey(mnemonic string, account, index uint32) (*secp256k1.PrivKey, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	path := hd.CreateHDPath(CoinType, account, index)
	bz, err := hd.Secp256k1.Derive()(mnemonic, "", path.String())
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return &secp256k1.PrivKey{Key: bz}, nil
}

// KDFParams are the argon2id parameters used to encrypt a key file.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
}

// KeyInfo is the public part of a stored key.
type KeyInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	PubKey  []byte `json:"pub_key"`
}

type keyFile struct {
	KeyInfo
	KDF        KDFParams `json:"kdf"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
}

// KeystoreOption configures a Keystore.
type KeystoreOption func(*Keystore)

// WithLightweightKDF lowers the argon2 cost. Tests and throwaway devnet keys only.
func WithLightweightKDF() KeystoreOption {
	return func(ks *Keystore) { ks.kdf = lightweightKDFParams }
}

// Keystore keeps passphrase-encrypted keys as one file per name in a directory.
type Keystore struct {
	dir string
	kdf KDFParams
}

// NewKeystore opens (creating if needed) the keystore at dir.
func NewKeystore(dir string, opts ...KeystoreOption) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create keystore: %w", err)
	}
	ks := &Keystore{dir: dir, kdf: defaultKDFParams}
	for _, opt := range opts {
		opt(ks)
	}
	return ks, nil
}

func (ks *Keystore) path(name string) string {
	return filepath.Join(ks.dir, name+keyFileSuffix)
}

// Save encrypts priv under passphrase and stores it as name.
func (ks *Keystore) Save(name string, priv *secp256k1.PrivKey, passphrase string) (KeyInfo, error) {
	if !keyNameRegex.MatchString(name) {
		return KeyInfo{}, ErrInvalidKeyName
	}
	if _, err := os.Stat(ks.path(name)); err == nil {
		return KeyInfo{}, fmt.Errorf("%w: %s", ErrKeyExists, name)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return KeyInfo{}, err
	}
	gcm, err := newGCM(passphrase, salt, ks.kdf)
	if err != nil {
		return KeyInfo{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return KeyInfo{}, err
	}

	info := KeyInfo{
		Name:    name,
		Address: sdk.AccAddress(priv.PubKey().Address()).String(),
		PubKey:  priv.PubKey().Bytes(),
	}
	kf := keyFile{
		KeyInfo:    info,
		KDF:        ks.kdf,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, priv.Key, []byte(name)),
	}
	bz, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return KeyInfo{}, err
	}
	if err := os.WriteFile(ks.path(name), bz, 0o600); err != nil {
		return KeyInfo{}, fmt.Errorf("failed to write key file: %w", err)
	}
	return info, nil
}

// Load decrypts the key stored as name.
func (ks *Keystore) Load(name, passphrase string) (*secp256k1.PrivKey, error) {
	kf, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(passphrase, kf.Salt, kf.KDF)
	if err != nil {
		return nil, err
	}
	if len(kf.Nonce) != gcm.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	plain, err := gcm.Open(nil, kf.Nonce, kf.Ciphertext, []byte(name))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return &secp256k1.PrivKey{Key: plain}, nil
}

// Show returns the public info of name without decrypting it.
func (ks *Keystore) Show(name string) (KeyInfo, error) {
	kf, err := ks.read(name)
	if err != nil {
		return KeyInfo{}, err
	}
	return kf.KeyInfo, nil
}

// List returns every stored key sorted by name.
func (ks *Keystore) List() ([]KeyInfo, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		return nil, err
	}
	infos := make([]KeyInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), keyFileSuffix) {
			continue
		}
		info, err := ks.Show(strings.TrimSuffix(entry.Name(), keyFileSuffix))
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Delete removes the key stored as name.
func (ks *Keystore) Delete(name string) error {
	if err := os.Remove(ks.path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, name)
		}
		return err
	}
	return nil
}

func (ks *Keystore) read(name string) (keyFile, error) {
	if !keyNameRegex.MatchString(name) {
		return keyFile{}, ErrInvalidKeyName
	}
	bz, err := os.ReadFile(ks.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return keyFile{}, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
		}
		return keyFile{}, err
	}
	var kf keyFile
	if err := json.Unmarshal(bz, &kf); err != nil {
		return keyFile{}, fmt.Errorf("corrupted key file %s: %w", name, err)
	}
	return kf, nil
}

func newGCM(passphrase string, salt []byte, params KDFParams) (cipher.AEAD, error) {
	if params.Time == 0 || params.MemoryKiB == 0 || params.Threads == 0 {
		return nil, fmt.Errorf("invalid kdf parameters")
	}
	key := argon2.IDKey([]byte(passphrase), salt, params.Time, params.MemoryKiB, params.Threads, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
