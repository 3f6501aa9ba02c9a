// Package games contains the server-side house games and the provably fair
// random source that drives them.
package games

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Seed is a player's provably fair seed pair. ServerSeed stays secret until it
// is rotated; ServerHash is shown to the player up front.
type Seed struct {
	ServerSeed string `json:"-"`
	ServerHash string `json:"server_seed_hash"`
	ClientSeed string `json:"client_seed"`
	Nonce      int64  `json:"nonce"`
}

// NewServerSeed returns a random 32 byte hex seed.
func NewServerSeed() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random seed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewClientSeed returns a short default client seed.
func NewClientSeed() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random seed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func HashSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// NewSeed builds a fresh seed pair at nonce 0.
func NewSeed(clientSeed string) (Seed, error) {
	server, err := NewServerSeed()
	if err != nil {
		return Seed{}, err
	}
	if clientSeed == "" {
		clientSeed, err = NewClientSeed()
		if err != nil {
			return Seed{}, err
		}
	}
	return Seed{ServerSeed: server, ServerHash: HashSeed(server), ClientSeed: clientSeed}, nil
}

// Rolls is a deterministic stream of floats in [0,1) for one round.
type Rolls struct {
	serverSeed string
	clientSeed string
	nonce      int64
	cursor     int
}

func NewRolls(serverSeed, clientSeed string, nonce int64) *Rolls {
	return &Rolls{serverSeed: serverSeed, clientSeed: clientSeed, nonce: nonce}
}

// Next returns the next float of the round.
func (r *Rolls) Next() float64 {
	v := Roll(r.serverSeed, r.clientSeed, r.nonce, r.cursor)
	r.cursor++
	return v
}

// Roll computes HMAC-SHA256(server, "client:nonce:cursor") and maps its first
// four bytes to [0,1).
func Roll(serverSeed, clientSeed string, nonce int64, cursor int) float64 {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	fmt.Fprintf(mac, "%s:%d:%d", clientSeed, nonce, cursor)
	sum := mac.Sum(nil)
	return float64(binary.BigEndian.Uint32(sum[:4])) / (1 << 32)
}
