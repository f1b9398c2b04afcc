package config

import "os"

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	GenAI    GenAIConfig
	Geo      GeoConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port string
}

type AuthConfig struct {
	JWTSecret     string
	JWTAccessTTL  string
	JWTRefreshTTL string
	AllowSignup   string
	CookieSecure  string
	CookieDomain  string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       string
}

type GenAIConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
}

type GeoConfig struct {
	BaseURL string
}

type CORSConfig struct {
	AllowedOrigins string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port: getenv("PORT", "8080"),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET_KEY"),
			JWTAccessTTL:  getenv("ACCESS_TOKEN_EXPIRY", "15m"),
			JWTRefreshTTL: getenv("REFRESH_TOKEN_EXPIRY", "168h"),
			AllowSignup:   os.Getenv("ALLOW_SIGNUP"),
			CookieSecure:  os.Getenv("AUTH_COOKIE_SECURE"),
			CookieDomain:  os.Getenv("AUTH_COOKIE_DOMAIN"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getenv("TOKEN_REDIS_HOST", "localhost"),
			Port:     getenv("TOKEN_REDIS_PORT", "6379"),
			Password: os.Getenv("TOKEN_REDIS_PASSWORD"),
			DB:       getenv("TOKEN_REDIS_DB", "0"),
		},
		GenAI: GenAIConfig{
			APIKey:         os.Getenv("AI_API_KEY"),
			ChatModel:      getenv("AI_CHAT_MODEL", "gemini-2.0-flash"),
			EmbeddingModel: getenv("AI_EMBEDDING_MODEL", "text-embedding-004"),
		},
		Geo: GeoConfig{
			BaseURL: getenv("GEO_API_URL", "http://ip-api.com"),
		},
		CORS: CORSConfig{
			AllowedOrigins: os.Getenv("CORS_ALLOWED_ORIGINS"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
