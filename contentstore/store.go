// Package contentstore stores job scripts, datasets and trained models off
// chain and addresses them by content identifier.
package contentstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxObjectSize caps a single stored or fetched object.
	MaxObjectSize = 256 << 20

	cidPrefix = "ipfs://"
)

var (
	ErrNotFound   = errors.New("content not found")
	ErrTooLarge   = errors.New("content exceeds maximum object size")
	ErrInvalidCID = errors.New("invalid content identifier")
)

// Store puts and fetches opaque content by identifier.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, cid string) ([]byte, error)
	Ping(ctx context.Context) error
}

// ComputeCID is the deterministic identifier used by the local stores: "Qm"
// followed by the first 44 hex characters of the SHA-256 of data.
func ComputeCID(data []byte) string {
	sum := sha256.Sum256(data)
	return "Qm" + hex.EncodeToString(sum[:])[:44]
}

// NormalizeCID strips an ipfs:// scheme and surrounding whitespace.
func NormalizeCID(cid string) (string, error) {
	cid = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cid), cidPrefix))
	if cid == "" || strings.ContainsAny(cid, "/?#\\ ") {
		return "", fmt.Errorf("%w: %q", ErrInvalidCID, cid)
	}
	return cid, nil
}

// PutJSON stores the JSON encoding of v.
func PutJSON(ctx context.Context, s Store, v any) (string, error) {
	bz, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode content: %w", err)
	}
	return s.Put(ctx, bz)
}

// GetJSON fetches cid and decodes it into out.
func GetJSON(ctx context.Context, s Store, cid string, out any) error {
	bz, err := s.Get(ctx, cid)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(bz, out); err != nil {
		return fmt.Errorf("content %s is not valid json: %w", cid, err)
	}
	return nil
}
