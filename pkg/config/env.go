package config

// EnvPrefix is the envconfig prefix for all palette services.
const EnvPrefix = "PALETTE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "PALETTE_DB_DSN"
	EnvDBHost = "PALETTE_DB_HOST"
	EnvDBUser = "PALETTE_DB_USER"
	EnvDBName = "PALETTE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
