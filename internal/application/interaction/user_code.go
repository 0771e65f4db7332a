package interaction

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"

	"github.com/manorfm/identityserver/internal/domain"
)

// UserCodeRetryLimit bounds how many colliding user codes are generated before giving up
const UserCodeRetryLimit = 5

const (
	numericUserCodeLength = 9
	// no vowels and no easily confused characters (0/O, 1/I/L, U/V)
	userCodeAlphabet = "BCDFGHJKLMNPQRSTVWXZ23456789"
)

// NumericUserCodeGenerator generates nine digit user codes.
type NumericUserCodeGenerator struct{}

func (NumericUserCodeGenerator) UserCodeType() string { return domain.DefaultUserCodeType }

func (NumericUserCodeGenerator) RetryLimit() int { return UserCodeRetryLimit }

func (NumericUserCodeGenerator) Generate() (string, error) {
	return randomString("0123456789", numericUserCodeLength)
}

// AlphanumericUserCodeGenerator generates upper-case user codes without ambiguous characters.
type AlphanumericUserCodeGenerator struct {
	Length int
}

func (AlphanumericUserCodeGenerator) UserCodeType() string { return domain.AlphanumericUserCodeType }

func (AlphanumericUserCodeGenerator) RetryLimit() int { return UserCodeRetryLimit }

func (g AlphanumericUserCodeGenerator) Generate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = 8
	}
	return randomString(userCodeAlphabet, length)
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating user code: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// UserCodeService picks the user code generator for a client.
type UserCodeService struct {
	generators  map[string]domain.UserCodeGenerator
	defaultType string
}

// NewUserCodeService registers the built-in generators plus extra ones, which replace
// built-ins of the same type
func NewUserCodeService(options domain.DeviceFlowOptions, extra ...domain.UserCodeGenerator) *UserCodeService {
	s := &UserCodeService{
		generators:  map[string]domain.UserCodeGenerator{},
		defaultType: options.DefaultUserCodeType,
	}
	if s.defaultType == "" {
		s.defaultType = domain.DefaultUserCodeType
	}
	for _, g := range append([]domain.UserCodeGenerator{
		NumericUserCodeGenerator{},
		AlphanumericUserCodeGenerator{Length: options.UserCodeLength},
	}, extra...) {
		s.generators[g.UserCodeType()] = g
	}
	return s
}

// Generator returns the generator for userCodeType, falling back to the default type
func (s *UserCodeService) Generator(userCodeType string) (domain.UserCodeGenerator, error) {
	if userCodeType == "" {
		userCodeType = s.defaultType
	}
	g, ok := s.generators[userCodeType]
	if !ok {
		return nil, fmt.Errorf("no user code generator for type %q", userCodeType)
	}
	return g, nil
}

// ConsentRequestID identifies an authorize request across the consent round trip.
// It only depends on the parameters, so the consent page and the authorize callback
// derive the same value from the return URL.
func ConsentRequestID(params url.Values) string {
	sum := sha256.Sum256([]byte(params.Encode()))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
