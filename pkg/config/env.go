package config

const (
	EnvPrefix = "VEVURN"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                 = "VEVURN_APP_ENV"
	EnvPort                   = "VEVURN_APP_PORT"
	EnvDBDSN                  = "VEVURN_DB_DSN"
	EnvDBHost                 = "VEVURN_DB_HOST"
	EnvDBUser                 = "VEVURN_DB_USER"
	EnvDBName                 = "VEVURN_DB_NAME"
	EnvDBPassword             = "VEVURN_DB_PASSWORD"
	EnvRedisURL               = "VEVURN_REDIS_URL"
	EnvJWTSecret              = "VEVURN_JWT_SECRET"
	EnvJWTIssuer              = "VEVURN_JWT_ISSUER"
	EnvJWTExpMins             = "VEVURN_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "VEVURN_REFRESH_TOKEN_TTL_MINUTES"
	EnvPOSVATRate             = "VEVURN_POS_VAT_RATE"
	EnvPOSTransactionTTL      = "VEVURN_POS_TRANSACTION_TTL"
	EnvPubSubSalesTopic       = "VEVURN_PUBSUB_SALES_TOPIC"
	EnvGCPProjectID           = "VEVURN_GCP_PROJECT_ID"
)
