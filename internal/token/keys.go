package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

const (
	pemTypePrivate = "PRIVATE KEY"
	pemTypePublic  = "PUBLIC KEY"
)

// GenerateKeyPair creates a fresh Ed25519 pair encoded as PEM
// The private key stays with the issuer, the public key may be handed out freely
func GenerateKeyPair() (privatePEM []byte, publicPEM []byte, err error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("error while generating key pair. Err: %w", err)
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return nil, nil, fmt.Errorf("error while encoding private key. Err: %w", err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(public)
	if err != nil {
		return nil, nil, fmt.Errorf("error while encoding public key. Err: %w", err)
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: pemTypePrivate, Bytes: privateDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: pemTypePublic, Bytes: publicDER})

	return privatePEM, publicPEM, nil
}

// ParsePrivateKeyPEM decodes a PKCS8 PEM block into an Ed25519 private key
func ParsePrivateKeyPEM(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypePrivate {
		return nil, errors.New("not a PEM encoded private key")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error while parsing private key. Err: %w", err)
	}

	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not ed25519")
	}

	return key, nil
}

// ParsePublicKeyPEM decodes a PKIX PEM block into an Ed25519 public key
func ParsePublicKeyPEM(data []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypePublic {
		return nil, errors.New("not a PEM encoded public key")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error while parsing public key. Err: %w", err)
	}

	key, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("public key is not ed25519")
	}

	return key, nil
}
