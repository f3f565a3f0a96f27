package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds the console settings resolved from the environment.
type Config struct {
	Env      string
	LogLevel string
	Port     string

	// ApplianceURL is the appliance admin API prefix, e.g. http://127.0.0.1/admin/api/.
	ApplianceURL     string
	ApplianceTimeout time.Duration

	SessionDBPath string
	SessionTTL    time.Duration

	PrivateKeyPEM string
	KeyID         string
	CSRFKey       string
	RollbarToken  string
}

func defaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("PORT", "8080")
	v.SetDefault("APPLIANCE_API_URL", "http://127.0.0.1/admin/api/")
	v.SetDefault("APPLIANCE_TIMEOUT", time.Duration(0))
	v.SetDefault("SESSION_SQLITE_PATH", "./sessions.db")
	v.SetDefault("SESSION_TTL", 12*time.Hour)
	v.SetDefault("CONSOLE_PRIVATE_KEY_PEM", "")
	v.SetDefault("CONSOLE_KID", "")
	v.SetDefault("CSRF_KEY", "")
	v.SetDefault("ROLLBAR_TOKEN", "")
}

// Load reads an optional dotenv file (missing files are ignored) and then the
// process environment.
func Load(dotEnvPath string) (*Config, error) {
	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "config: load %s", dotEnvPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "config: stat %s", dotEnvPath)
		}
	}

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	c := &Config{
		Env:              strings.ToLower(v.GetString("ENV")),
		LogLevel:         v.GetString("LOG_LEVEL"),
		Port:             v.GetString("PORT"),
		ApplianceURL:     v.GetString("APPLIANCE_API_URL"),
		ApplianceTimeout: v.GetDuration("APPLIANCE_TIMEOUT"),
		SessionDBPath:    v.GetString("SESSION_SQLITE_PATH"),
		SessionTTL:       v.GetDuration("SESSION_TTL"),
		PrivateKeyPEM:    v.GetString("CONSOLE_PRIVATE_KEY_PEM"),
		KeyID:            v.GetString("CONSOLE_KID"),
		CSRFKey:          v.GetString("CSRF_KEY"),
		RollbarToken:     v.GetString("ROLLBAR_TOKEN"),
	}
	if !strings.HasSuffix(c.ApplianceURL, "/") {
		c.ApplianceURL += "/"
	}
	if c.SessionTTL <= 0 {
		return nil, errors.New("config: SESSION_TTL must be positive")
	}
	if c.CSRFKey != "" && len(c.CSRFKey) != 32 {
		return nil, errors.New("config: CSRF_KEY must be 32 bytes")
	}
	return c, nil
}
