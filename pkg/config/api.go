package config

import "time"

// APIConfig holds runtime configuration for the analytics API service.
type APIConfig struct {
	Environment        string
	Addr               string
	LogLevel           string
	DatabaseURL        string
	MigrationsDir      string
	StoreBaseURL       string
	StoreToken         string
	StoreDataset       string
	StoreTimeout       time.Duration
	StoreMaxGroups     int
	StoreMaxSamples    int
	TokenSecret        string
	TokenTTL           time.Duration
	CacheRedisAddr     string
	CacheRedisPass     string
	CacheRedisDB       int
	IdentityCacheTTL   time.Duration
	GeoCacheTTL        time.Duration
	GeoDatabasePath    string
	LiveRefreshEvery   time.Duration
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://openalex:openalex@db:5432/openalex?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		StoreBaseURL:       GetString("TELEMETRY_STORE_URL", "http://localhost:7700"),
		StoreToken:         GetString("TELEMETRY_STORE_TOKEN", ""),
		StoreDataset:       GetString("TELEMETRY_STORE_DATASET", "api_requests"),
		StoreTimeout:       GetSeconds("TELEMETRY_STORE_TIMEOUT_SECONDS", 15*time.Second),
		StoreMaxGroups:     GetInt("TELEMETRY_STORE_MAX_GROUPS", 10000),
		StoreMaxSamples:    GetInt("TELEMETRY_STORE_MAX_SAMPLES", 50000),
		TokenSecret:        GetString("DASHBOARD_TOKEN_SECRET", "supersecuresecret"),
		TokenTTL:           time.Duration(GetInt("DASHBOARD_TOKEN_TTL_HOURS", 24)) * time.Hour,
		CacheRedisAddr:     GetString("CACHE_REDIS_ADDR", ""),
		CacheRedisPass:     GetString("CACHE_REDIS_PASSWORD", ""),
		CacheRedisDB:       GetInt("CACHE_REDIS_DB", 0),
		IdentityCacheTTL:   GetSeconds("IDENTITY_CACHE_TTL_SECONDS", 5*time.Minute),
		GeoCacheTTL:        GetSeconds("GEO_CACHE_TTL_SECONDS", time.Hour),
		GeoDatabasePath:    GetString("GEOIP_DATABASE_PATH", ""),
		LiveRefreshEvery:   GetSeconds("LIVE_REFRESH_SECONDS", 30*time.Second),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
