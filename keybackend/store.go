package keybackend

// SecretStore resolves an access key to its secret.
type SecretStore interface {
	Lookup(accessKey string) (string, error)
}

// KeysConfig holds configuration for loading access keys.
type KeysConfig struct {
	Inline []KeyPair `mapstructure:"inline" yaml:"inline,omitempty"`
	File   string    `mapstructure:"file" yaml:"file,omitempty"`
}

// NewSecretStore merges inline keys with the keys file, if any. File keys
// win over inline keys with the same access key.
func NewSecretStore(cfg KeysConfig) (*MapSecretStore, error) {
	store := NewMapSecretStore(nil)

	for _, p := range cfg.Inline {
		store.Put(p.AccessKey, p.SecretKey)
	}

	if cfg.File != "" {
		fileKeys, err := LoadKeysFromFile(cfg.File)
		if err != nil {
			return nil, err
		}
		for k, v := range fileKeys {
			store.Put(k, v)
		}
	}

	return store, nil
}
