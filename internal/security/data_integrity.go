// Package security verifies that a request was signed by the identity it
// claims to act for and that it has not been seen before.
package security

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

var (
	// ErrMissingSignature is returned when signatures are required but absent.
	ErrMissingSignature = errors.New("missing request signature")
	// ErrInvalidSignature is returned for a malformed or unrecoverable signature.
	ErrInvalidSignature = errors.New("invalid request signature")
	// ErrSignerMismatch is returned when the signature recovers to another identity.
	ErrSignerMismatch = errors.New("signature does not match actor")
	// ErrMissingNonce is returned for a signed request without nonce.
	ErrMissingNonce = errors.New("missing request nonce")
	// ErrExpired is returned when the expiry has passed or lies too far ahead.
	ErrExpired = errors.New("request expired")
	// ErrReplayed is returned for a nonce that was already accepted.
	ErrReplayed = errors.New("request replayed")
)

// Request is the signed envelope of one API call
type Request struct {
	Method string
	Path   string
	Nonce  string
	Expiry int64
	Body   []byte
}

// Digest is the hash that gets signed. Method, path, nonce and expiry are
// bound together with the body hash, one field per line.
func (r Request) Digest() common.Hash {
	bodyHash := crypto.Keccak256Hash(r.Body)
	msg := r.Method + "\n" + r.Path + "\n" + r.Nonce + "\n" +
		strconv.FormatInt(r.Expiry, 10) + "\n" + bodyHash.Hex()
	return crypto.Keccak256Hash([]byte(msg))
}

// VerificationOptions configures the behavior of request integrity checks
type VerificationOptions struct {
	// Required rejects requests that carry no signature
	Required bool `json:"required"`

	// MaxTTL bounds how far in the future an expiry may lie
	MaxTTL time.Duration `json:"max_ttl"`

	// NonceCacheSize bounds the number of remembered nonces
	NonceCacheSize int `json:"nonce_cache_size"`
}

// DefaultVerificationOptions returns the default options
func DefaultVerificationOptions() VerificationOptions {
	return VerificationOptions{
		Required:       true,
		MaxTTL:         5 * time.Minute,
		NonceCacheSize: 100_000,
	}
}

// Verifier checks secp256k1 signatures over a Request digest and rejects
// replayed nonces until their expiry passes.
type Verifier struct {
	opts VerificationOptions
	now  func() time.Time

	mu     sync.Mutex
	nonces *lru.Cache[string, int64]
	// floor is the highest expiry of a nonce evicted while still live.
	// Requests expiring at or before it cannot be checked and are refused.
	floor int64
}

// NewVerifier creates a request verifier
func NewVerifier(opts VerificationOptions) (*Verifier, error) {
	defaults := DefaultVerificationOptions()
	if opts.MaxTTL <= 0 {
		opts.MaxTTL = defaults.MaxTTL
	}
	if opts.NonceCacheSize <= 0 {
		opts.NonceCacheSize = defaults.NonceCacheSize
	}

	v := &Verifier{opts: opts, now: time.Now}
	cache, err := lru.NewWithEvict[string, int64](opts.NonceCacheSize, v.evicted)
	if err != nil {
		return nil, fmt.Errorf("failed to create nonce cache: %w", err)
	}
	v.nonces = cache

	logrus.WithFields(logrus.Fields{
		"required": opts.Required,
		"max_ttl":  opts.MaxTTL,
	}).Info("Request signature verification configured")
	return v, nil
}

// WithClock sets the clock used for expiry checks
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Required reports whether unsigned requests are rejected
func (v *Verifier) Required() bool {
	return v.opts.Required
}

// evicted runs inside Add while v.mu is held
func (v *Verifier) evicted(_ string, expiry int64) {
	if expiry > v.now().Unix() && expiry > v.floor {
		v.floor = expiry
	}
}

// Sign produces the hex signature a client sends for req
func Sign(req Request, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(req.Digest().Bytes(), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return hexutil.Encode(sig), nil
}

// Recover returns the address that produced signature over req. Both the raw
// recovery id (0/1) and the 27/28 form are accepted.
func Recover(req Request, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(req.Digest().Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that signature over req recovers to actor, that the request
// has not expired and that its nonce is new. An absent signature passes
// unless signatures are required.
func (v *Verifier) Verify(actor common.Address, req Request, signature string) error {
	if signature == "" {
		if v.opts.Required {
			return ErrMissingSignature
		}
		return nil
	}
	if req.Nonce == "" {
		return ErrMissingNonce
	}

	now := v.now().Unix()
	if req.Expiry <= now {
		return fmt.Errorf("%w: expiry %d, now %d", ErrExpired, req.Expiry, now)
	}
	if req.Expiry > now+int64(v.opts.MaxTTL/time.Second) {
		return fmt.Errorf("%w: expiry %d is more than %s ahead", ErrExpired, req.Expiry, v.opts.MaxTTL)
	}

	signer, err := Recover(req, signature)
	if err != nil {
		return err
	}
	if signer != actor {
		logrus.WithFields(logrus.Fields{
			"actor":  actor.Hex(),
			"signer": signer.Hex(),
		}).Warn("Request signature mismatch")
		return fmt.Errorf("%w: signed by %s", ErrSignerMismatch, signer.Hex())
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if req.Expiry <= v.floor {
		return fmt.Errorf("%w: nonce window exhausted, retry with a later expiry", ErrExpired)
	}
	key := actor.Hex() + "/" + req.Nonce
	if seen, ok := v.nonces.Get(key); ok && seen > now {
		logrus.WithFields(logrus.Fields{
			"actor": actor.Hex(),
			"nonce": req.Nonce,
		}).Warn("Replayed request rejected")
		return fmt.Errorf("%w: nonce %s", ErrReplayed, req.Nonce)
	}
	v.nonces.Add(key, req.Expiry)
	return nil
}
