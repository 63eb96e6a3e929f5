package config

import (
	"strings"

	"github.com/spf13/viper"
)

// SecretStore looks up named secrets in the process environment, falling back to the
// "secrets" block of the config file.
type SecretStore struct {
	v *viper.Viper
}

func NewSecretStore(fileSecrets map[string]string) *SecretStore {
	v := viper.New()
	v.AutomaticEnv()
	for name, value := range fileSecrets {
		v.SetDefault(strings.ToLower(strings.TrimSpace(name)), value)
	}
	return &SecretStore{v: v}
}

func (s *SecretStore) Lookup(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if s == nil || name == "" {
		return "", false
	}
	val := strings.TrimSpace(s.v.GetString(name))
	if val == "" {
		return "", false
	}
	return val, true
}
