package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	DBDSN    string
	MediaDir string
	LogFile  string

	AdminUser  string
	AdminPass  string
	AdminEmail string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	MailFrom     string
	MailFromName string

	CollectionCron string
	TimeZone       string
	CORSOrigins    string
}

// Load reads the environment. A .env file in the working directory is
// loaded first when present; real env vars win over it.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] could not read .env: %v", err)
	}

	smtpPort, err := strconv.Atoi(env("SMTP_PORT", "587"))
	if err != nil {
		log.Printf("[config] bad SMTP_PORT, using 587: %v", err)
		smtpPort = 587
	}

	cfg := Config{
		Port:     env("PORT", "8080"),
		DBDSN:    env("DB_DSN", "sierras.db"), // sqlite file in project root
		MediaDir: env("MEDIA_DIR", "./web/media"),
		LogFile:  os.Getenv("LOG_FILE"),

		AdminUser:  os.Getenv("ADMIN_USER"),
		AdminPass:  os.Getenv("ADMIN_PASS"),
		AdminEmail: os.Getenv("ADMIN_EMAIL"),

		SMTPHost:     env("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     smtpPort,
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPass:     os.Getenv("SMTP_PASS"),
		MailFrom:     env("SMTP_FROM", "no-reply@ganimedes.cl"),
		MailFromName: env("MAIL_FROM_NAME", "Sierras POS"),

		CollectionCron: envAllowEmpty("COLLECTION_CRON", "0 9 * * 1"),
		TimeZone:       env("TIMEZONE", "America/Santiago"),
		CORSOrigins:    env("CORS_ORIGINS", "*"),
	}
	log.Printf("[config] PORT=%s DB_DSN=%s MEDIA_DIR=%s LOG_FILE=%s SMTP=%s:%d COLLECTION_CRON=%q",
		cfg.Port, cfg.DBDSN, cfg.MediaDir, cfg.LogFile, cfg.SMTPHost, cfg.SMTPPort, cfg.CollectionCron)
	return cfg
}

// MailEnabled reports whether SMTP credentials were provided.
func (c Config) MailEnabled() bool {
	return strings.TrimSpace(c.SMTPUser) != "" && c.SMTPPass != ""
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envAllowEmpty lets an explicitly empty variable disable a feature.
func envAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}
