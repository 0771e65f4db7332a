// Package seed loads the static configuration (clients, resources, test users) from YAML.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/password"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Seed is the decoded seed file.
type Seed struct {
	Clients           []*domain.Client
	IdentityResources []*domain.IdentityResource
	ApiScopes         []*domain.ApiScope
	ApiResources      []*domain.ApiResource
	Users             []*domain.User
}

type document struct {
	Clients           []yaml.Node `yaml:"clients"`
	IdentityResources []yaml.Node `yaml:"identity_resources"`
	ApiScopes         []yaml.Node `yaml:"api_scopes"`
	ApiResources      []yaml.Node `yaml:"api_resources"`
	Users             []seedUser  `yaml:"users"`
}

type seedUser struct {
	SubjectID    string        `yaml:"subject_id"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	PasswordHash string        `yaml:"password_hash"`
	Claims       domain.Claims `yaml:"claims"`
}

// Load reads and parses the seed file at path
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document. Clients and resources start from their defaults,
// so a document only lists what differs. Without identity_resources the standard
// OpenID Connect resources are used.
func Parse(data []byte) (*Seed, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}

	s := &Seed{}
	for i := range doc.Clients {
		client := domain.NewClient()
		if err := doc.Clients[i].Decode(client); err != nil {
			return nil, fmt.Errorf("client #%d: %w", i, err)
		}
		if client.ClientID == "" {
			return nil, fmt.Errorf("client #%d: client_id is required", i)
		}
		s.Clients = append(s.Clients, client)
	}

	if len(doc.IdentityResources) == 0 {
		s.IdentityResources = domain.StandardIdentityResources()
	}
	for i := range doc.IdentityResources {
		r := &domain.IdentityResource{Enabled: true, ShowInDiscoveryDocument: true}
		if err := doc.IdentityResources[i].Decode(r); err != nil {
			return nil, fmt.Errorf("identity resource #%d: %w", i, err)
		}
		s.IdentityResources = append(s.IdentityResources, r)
	}
	for i := range doc.ApiScopes {
		sc := &domain.ApiScope{Enabled: true, ShowInDiscoveryDocument: true}
		if err := doc.ApiScopes[i].Decode(sc); err != nil {
			return nil, fmt.Errorf("api scope #%d: %w", i, err)
		}
		s.ApiScopes = append(s.ApiScopes, sc)
	}
	for i := range doc.ApiResources {
		api := &domain.ApiResource{Enabled: true}
		if err := doc.ApiResources[i].Decode(api); err != nil {
			return nil, fmt.Errorf("api resource #%d: %w", i, err)
		}
		s.ApiResources = append(s.ApiResources, api)
	}

	now := time.Now().UTC()
	for i, u := range doc.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("user #%d: username is required", i)
		}
		hash := u.PasswordHash
		if hash == "" {
			if u.Password == "" {
				return nil, fmt.Errorf("user %s: password or password_hash is required", u.Username)
			}
			var err error
			if hash, err = password.HashPassword(u.Password); err != nil {
				return nil, fmt.Errorf("user %s: %w", u.Username, err)
			}
		}
		sub := u.SubjectID
		if sub == "" {
			sub = ulid.Make().String()
		}
		s.Users = append(s.Users, &domain.User{
			SubjectID: sub,
			Username:  u.Username,
			Password:  hash,
			IsActive:  true,
			Claims:    u.Claims,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// validate checks that every client scope resolves to a resource
func (s *Seed) validate() error {
	known := map[string]bool{domain.ScopeOfflineAccess: true}
	for _, r := range s.IdentityResources {
		known[r.Name] = true
	}
	for _, sc := range s.ApiScopes {
		known[sc.Name] = true
	}
	var problems []string
	for _, c := range s.Clients {
		for _, scope := range c.AllowedScopes {
			if !known[scope] {
				problems = append(problems, fmt.Sprintf("client %s allows unknown scope %s", c.ClientID, scope))
			}
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Apply creates the seeded clients and users that the repositories do not have yet.
// Existing rows are left untouched.
func (s *Seed) Apply(ctx context.Context, clients domain.ClientRepository, users domain.UserStore, logger *zap.Logger) error {
	for _, c := range s.Clients {
		err := clients.CreateClient(ctx, c)
		switch {
		case err == nil:
			logger.Info("Seeded client", zap.String("client_id", c.ClientID))
		case errors.Is(err, domain.ErrClientAlreadyExists):
			logger.Debug("Client already present", zap.String("client_id", c.ClientID))
		default:
			return fmt.Errorf("seeding client %s: %w", c.ClientID, err)
		}
	}
	for _, u := range s.Users {
		err := users.Create(ctx, u)
		switch {
		case err == nil:
			logger.Info("Seeded user", zap.String("username", u.Username))
		case errors.Is(err, domain.ErrDuplicateKey):
			logger.Debug("User already present", zap.String("username", u.Username))
		default:
			return fmt.Errorf("seeding user %s: %w", u.Username, err)
		}
	}
	return nil
}
