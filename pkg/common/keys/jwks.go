// Package keys holds the RSA key the console signs its session cookies and
// seals stored credentials with.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/connectbox/console/pkg/common/logger"
)

const issuer = "connectbox-console"

// Signer issues and checks session tokens.
type Signer struct {
	key  *rsa.PrivateKey
	kid  string
	jwks jwk.Set
}

// Load parses pemStr (PEM text, or base64 of it) as a PKCS#1 or PKCS#8 RSA
// key. An empty pemStr generates a throwaway key, so sessions do not survive
// a restart. An empty kid gets a random one.
func Load(pemStr, kid string) (*Signer, error) {
	if kid == "" {
		kid = uuid.NewString()
	}
	var key *rsa.PrivateKey
	if pemStr = strings.TrimSpace(pemStr); pemStr != "" {
		k, err := parsePEM(pemStr)
		if err != nil {
			return nil, err
		}
		key = k
	} else {
		gen, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, err
		}
		key = gen
		logger.Warn("keys: generated an ephemeral session key; set CONSOLE_PRIVATE_KEY_PEM to keep sessions across restarts")
	}
	return newSigner(key, kid)
}

func newSigner(key *rsa.PrivateKey, kid string) (*Signer, error) {
	pub, err := jwk.FromRaw(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	_ = pub.Set(jwk.KeyIDKey, kid)
	_ = pub.Set(jwk.AlgorithmKey, jwa.RS256)
	_ = pub.Set(jwk.KeyUsageKey, "sig")

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, err
	}
	return &Signer{key: key, kid: kid, jwks: set}, nil
}

func parsePEM(s string) (*rsa.PrivateKey, error) {
	raw := []byte(s)
	if !strings.HasPrefix(s, "-----") {
		der, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.New("keys: private key is neither PEM nor base64 PEM")
		}
		raw = der
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("keys: no PEM block found")
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	pkcs8, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rk, ok := pkcs8.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("keys: private key is not RSA")
	}
	return rk, nil
}

// Seal encrypts plain to the signer's public key as a compact JWE.
func (s *Signer) Seal(plain []byte) (string, error) {
	sealed, err := jwe.Encrypt(plain, jwe.WithKey(jwa.RSA_OAEP_256, &s.key.PublicKey))
	if err != nil {
		return "", err
	}
	return string(sealed), nil
}

// Open reverses Seal.
func (s *Signer) Open(sealed string) ([]byte, error) {
	return jwe.Decrypt([]byte(sealed), jwe.WithKey(jwa.RSA_OAEP_256, s.key))
}

// Sign returns a token naming session sid, valid for ttl.
func (s *Signer) Sign(sid string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(issuer).
		Subject(sid).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		JwtID(uuid.NewString()).
		Build()
	if err != nil {
		return "", err
	}
	hdrs := jws.NewHeaders()
	_ = hdrs.Set(jwk.KeyIDKey, s.kid)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, s.key, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Verify checks signature, issuer and expiry and returns the session id.
// The token's kid must name the signer's key.
func (s *Signer) Verify(token string) (string, error) {
	tok, err := jwt.ParseString(token,
		jwt.WithKeySet(s.jwks),
		jwt.WithValidate(true),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return "", err
	}
	if tok.Subject() == "" {
		return "", errors.New("keys: token has no subject")
	}
	return tok.Subject(), nil
}
