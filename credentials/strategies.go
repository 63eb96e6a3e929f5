package credentials

import (
	"context"
	"strings"
	"unicode"

	"wabiz/db"
	"wabiz/models"

	"github.com/jinzhu/gorm"
)

// StoreStrategy reads meta_tokens, newest row first.
type StoreStrategy struct {
	DB       *gorm.DB
	Provider string
}

func (s StoreStrategy) Name() string { return "store" }

func (s StoreStrategy) Resolve(ctx context.Context, tenantID, alias string) (string, bool, error) {
	if s.DB == nil || alias == "" {
		return "", false, nil
	}
	provider := s.Provider
	if provider == "" {
		provider = models.TOKEN_PROVIDER_FACEBOOK
	}

	var row models.MetaToken
	err := s.DB.
		Where("tenant_id = ? AND provider = ? AND alias = ?", tenantID, provider, alias).
		Order("created_at desc").
		First(&row).Error
	if err != nil {
		if db.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return row.AccessToken, row.AccessToken != "", nil
}

// AliasTableStrategy maps a few well-known aliases to named secrets.
type AliasTableStrategy struct {
	Table   map[string]string
	Secrets SecretLookup
}

func (s AliasTableStrategy) Name() string { return "alias_table" }

func (s AliasTableStrategy) Resolve(_ context.Context, _ string, alias string) (string, bool, error) {
	if s.Secrets == nil {
		return "", false, nil
	}
	name, ok := s.Table[strings.ToLower(alias)]
	if !ok || name == "" {
		return "", false, nil
	}
	token, ok := s.Secrets.Lookup(name)
	return token, ok, nil
}

// DerivedNameStrategy looks up Prefix + the alias in upper snake case.
type DerivedNameStrategy struct {
	Prefix  string
	Secrets SecretLookup
}

func (s DerivedNameStrategy) Name() string { return "derived_name" }

func (s DerivedNameStrategy) Resolve(_ context.Context, _ string, alias string) (string, bool, error) {
	if s.Secrets == nil || alias == "" {
		return "", false, nil
	}
	token, ok := s.Secrets.Lookup(SecretName(s.Prefix, alias))
	return token, ok, nil
}

// SecretName derives "META_TOKEN_VENTAS_MX" from prefix "META_TOKEN_" and alias "ventas-mx".
func SecretName(prefix, alias string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, r := range strings.ToUpper(strings.TrimSpace(alias)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
