package jwt

import (
	"crypto/ed25519"
	"crypto/hmac"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned by Decode for any signature, format or claim failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongTokenType is returned by VerifyType when the type claim does not match.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrReservedClaim is returned by Create when extra claims collide with a reserved name.
	ErrReservedClaim = errors.New("extra claim overrides reserved claim")
	// ErrInvalidTTL is returned by Create for lifetimes shorter than one second.
	ErrInvalidTTL = errors.New("token ttl must be at least one second")
	// ErrSigningUnavailable is returned by Create when the codec only holds verification keys.
	ErrSigningUnavailable = errors.New("codec has no signing key")
)

// SigningMethod selects the JWS algorithm used for every token of a codec.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodHS384   SigningMethod = "hs384"
	MethodHS512   SigningMethod = "hs512"
	MethodEd25519 SigningMethod = "ed25519"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Valid reports whether t is one of the known token types.
func (t TokenType) Valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

const minSecretLen = 32

var reservedClaims = map[string]struct{}{
	"sub":  {},
	"type": {},
	"jti":  {},
	"iat":  {},
	"nbf":  {},
	"exp":  {},
	"iss":  {},
	"aud":  {},
}

// Config configures a Codec.
//
// HMAC methods use Secret for both signing and verification. Ed25519 signs with
// PrivateKey and verifies with PublicKey or, when set, the VerifyKeys map keyed
// by the "kid" header. Keys may be raw or PEM encoded.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
	VerifyKeys    map[string][]byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	Now           func() time.Time
}

// Claims is the verified claim set of a decoded token.
type Claims struct {
	Type TokenType `json:"type"`
	Role string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Issued is the result of Create.
type Issued struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec creates and verifies tokens with one pinned algorithm. It is immutable
// after construction and safe for concurrent use.
type Codec struct {
	config  Config
	method  jwt.SigningMethod
	signKey interface{}
	now     func() time.Time
}

// NewCodec validates cfg and returns a ready codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	c := &Codec{config: cfg, now: cfg.Now}
	if c.now == nil {
		c.now = time.Now
	}

	switch cfg.SigningMethod {
	case MethodHS256, MethodHS384, MethodHS512:
		if len(cfg.Secret) < minSecretLen {
			return nil, fmt.Errorf("%s requires a secret of at least %d bytes", cfg.SigningMethod, minSecretLen)
		}
		c.method = hmacMethod(cfg.SigningMethod)
		c.signKey = cfg.Secret
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if len(key) < minSecretLen {
				return nil, fmt.Errorf("verify key for kid %q must be at least %d bytes", kid, minSecretLen)
			}
		}
		if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
			if key, ok := cfg.VerifyKeys[cfg.KeyID]; ok && !hmac.Equal(key, cfg.Secret) {
				return nil, errors.New("verify key for KeyID does not match Secret")
			}
		}
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
		var signerPub ed25519.PublicKey
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			c.signKey = priv
			signerPub = priv.Public().(ed25519.PublicKey)
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			if signerPub != nil && len(cfg.VerifyKeys) == 0 && !pub.Equal(signerPub) {
				return nil, errors.New("PublicKey does not match PrivateKey")
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			pub, err := parseEdPublicKey(key)
			if err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
			if kid == cfg.KeyID && signerPub != nil && !pub.Equal(signerPub) {
				return nil, errors.New("verify key for KeyID does not match PrivateKey")
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	// A signing codec with a key set must stamp a kid that the set resolves,
	// otherwise it cannot decode its own tokens.
	if len(cfg.VerifyKeys) > 0 && c.signKey != nil {
		if cfg.KeyID == "" {
			return nil, errors.New("VerifyKeys requires KeyID")
		}
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return c, nil
}

// Create signs a new claim set for subject. The returned jti is fresh for every
// call; iat and nbf are the current second and exp is iat plus ttl. Extra claims
// are merged in but may not replace reserved names.
func (c *Codec) Create(subject string, typ TokenType, ttl time.Duration, extra map[string]any) (Issued, error) {
	if subject == "" {
		return Issued{}, errors.New("empty subject")
	}
	if !typ.Valid() {
		return Issued{}, fmt.Errorf("unknown token type %q", typ)
	}
	if ttl < time.Second {
		return Issued{}, ErrInvalidTTL
	}
	if c.signKey == nil {
		return Issued{}, ErrSigningUnavailable
	}

	claims := make(jwt.MapClaims, len(extra)+8)
	for k, v := range extra {
		if _, reserved := reservedClaims[k]; reserved {
			return Issued{}, fmt.Errorf("%w: %s", ErrReservedClaim, k)
		}
		claims[k] = v
	}

	issuedAt := c.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl).Truncate(time.Second)
	jti := uuid.NewString()

	claims["sub"] = subject
	claims["type"] = string(typ)
	claims["jti"] = jti
	claims["iat"] = issuedAt.Unix()
	claims["nbf"] = issuedAt.Unix()
	claims["exp"] = expiresAt.Unix()
	if c.config.Issuer != "" {
		claims["iss"] = c.config.Issuer
	}
	if c.config.Audience != "" {
		claims["aud"] = c.config.Audience
	}

	token := jwt.NewWithClaims(c.method, claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}
	signed, err := token.SignedString(c.signKey)
	if err != nil {
		return Issued{}, fmt.Errorf("sign token: %w", err)
	}

	return Issued{
		Token:     signed,
		JTI:       jti,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Decode verifies the signature and the time, issuer and audience claims of
// token. Every failure is reported as ErrInvalidToken.
func (c *Codec) Decode(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, c.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrInvalidToken)
	}
	if claims.NotBefore == nil {
		return nil, fmt.Errorf("%w: missing nbf", ErrInvalidToken)
	}

	return claims, nil
}

// VerifyType checks the type claim of already decoded claims.
func VerifyType(claims *Claims, expected TokenType) error {
	if claims == nil || claims.Type != expected {
		return ErrWrongTokenType
	}
	return nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(c.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := c.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return c.verifyKey(key)
	}

	if c.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != c.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	if c.config.SigningMethod == MethodEd25519 {
		return c.verifyKey(c.config.PublicKey)
	}
	return c.config.Secret, nil
}

func (c *Codec) verifyKey(key []byte) (interface{}, error) {
	if c.config.SigningMethod == MethodEd25519 {
		return parseEdPublicKey(key)
	}
	return key, nil
}

func hmacMethod(m SigningMethod) jwt.SigningMethod {
	switch m {
	case MethodHS384:
		return jwt.SigningMethodHS384
	case MethodHS512:
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
