package config

// RegistryConfig is the subset of environment configuration shared by both
// binaries for selecting and opening the durable job registry.
type RegistryConfig struct {
	Backend     string `env:"VIZSCHED_REGISTRY_BACKEND" envDefault:"sql"`
	DBDriver    string `env:"VIZSCHED_DB_DRIVER" envDefault:"sqlite"`
	DBDSN       string `env:"VIZSCHED_DB_DSN" envDefault:"./vizsched.db"`
	DynamoTable string `env:"VIZSCHED_DYNAMO_TABLE" envDefault:"vizsched_jobs"`
	AWSRegion   string `env:"VIZSCHED_AWS_REGION" envDefault:"us-east-1"`
}

// IsSQL reports whether the relational (gormreg) backend is selected.
func (r RegistryConfig) IsSQL() bool { return r.Backend == "sql" }

// IsDynamo reports whether the wide-column (dynamoreg) backend is selected.
func (r RegistryConfig) IsDynamo() bool { return r.Backend == "dynamo" }

// TLSConfig holds the cert/key paths accepted by both binaries. Loading
// these files is out of scope (external collaborator) — the paths are
// handed to http.Server verbatim when non-empty.
type TLSConfig struct {
	CertFile string `env:"VIZSCHED_TLS_CERT_FILE"`
	KeyFile  string `env:"VIZSCHED_TLS_KEY_FILE"`
}

// Enabled reports whether both a cert and key path were supplied.
func (t TLSConfig) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }
