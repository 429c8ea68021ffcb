package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// EnvConfig maps environment variables onto Config. Unset (or empty)
// variables leave the current value alone.
type EnvConfig struct {
	EndpointAddrHTTP            string        `env:"HTTP_ADDR"`
	EndpointAddrGRPC            string        `env:"GRPC_ADDR"`
	DatabaseDSN                 string        `env:"DATABASE_URL"`
	SecretKey                   string        `env:"SECRET_KEY"`
	AccessTokenValidityDuration time.Duration `env:"ACCESS_TOKEN_TTL"`

	StorageType       string        `env:"STORAGE_TYPE"`
	UploadDir         string        `env:"UPLOAD_DIR"`
	S3AccessKeyID     string        `env:"R2_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `env:"R2_SECRET_ACCESS_KEY"`
	S3Bucket          string        `env:"R2_BUCKET_NAME"`
	S3Region          string        `env:"R2_REGION"`
	S3BaseEndpoint    string        `env:"R2_ENDPOINT_URL"`
	PresignTTL        time.Duration `env:"PRESIGN_TTL"`
	RedisAddr         string        `env:"REDIS_ADDR"`

	TTSURL       string        `env:"TTS_URL"`
	TTSTimeout   time.Duration `env:"TTS_TIMEOUT"`
	TTSRateLimit float64       `env:"TTS_RATE_LIMIT"`
	TTSRateBurst int           `env:"TTS_RATE_BURST"`

	SMTPServer   string `env:"SMTP_SERVER"`
	SMTPPort     int    `env:"SMTP_PORT"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPSender   string `env:"SMTP_SENDER"`
	MailWorkers  int    `env:"MAIL_WORKERS"`

	AppURL               string `env:"APP_URL"`
	DefaultPIN           string `env:"DEFAULT_PIN"`
	TokenJanitorSchedule string `env:"TOKEN_JANITOR_SCHEDULE"`
	CORSOrigins          string `env:"CORS_ORIGINS"`
	LogFormat            string `env:"LOG_FORMAT"`
}

// dotenvLoad is a seam for tests.
var dotenvLoad = func() error { return godotenv.Load() }

// parseEnv overlays environment variables, reading a .env file from the
// working directory first when one exists. A malformed variable panics.
func parseEnv(config *Config) {
	_ = dotenvLoad()

	e := &EnvConfig{}
	if err := envdecode.StrictDecode(e); err != nil {
		// StrictDecode reports "nothing set" as an invalid target.
		if errors.Is(err, envdecode.ErrInvalidTarget) {
			return
		}
		panic(err)
	}
	e.apply(config)
}

func (e *EnvConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, e.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, e.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, e.DatabaseDSN)
	setString(&config.SecretKey, e.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, e.AccessTokenValidityDuration)

	setString(&config.StorageType, e.StorageType)
	setString(&config.UploadDir, e.UploadDir)
	setString(&config.S3AccessKeyID, e.S3AccessKeyID)
	setString(&config.S3SecretAccessKey, e.S3SecretAccessKey)
	setString(&config.S3Bucket, e.S3Bucket)
	setString(&config.S3Region, e.S3Region)
	setString(&config.S3BaseEndpoint, e.S3BaseEndpoint)
	setDuration(&config.PresignTTL, e.PresignTTL)
	setString(&config.RedisAddr, e.RedisAddr)

	setString(&config.TTSURL, e.TTSURL)
	setDuration(&config.TTSTimeout, e.TTSTimeout)
	if e.TTSRateLimit > 0 {
		config.TTSRateLimit = e.TTSRateLimit
	}
	setInt(&config.TTSRateBurst, e.TTSRateBurst)

	setString(&config.SMTPServer, e.SMTPServer)
	setInt(&config.SMTPPort, e.SMTPPort)
	setString(&config.SMTPUser, e.SMTPUser)
	setString(&config.SMTPPassword, e.SMTPPassword)
	setString(&config.SMTPSender, e.SMTPSender)
	setInt(&config.MailWorkers, e.MailWorkers)

	setString(&config.AppURL, e.AppURL)
	setString(&config.DefaultPIN, e.DefaultPIN)
	setString(&config.TokenJanitorSchedule, e.TokenJanitorSchedule)
	if e.CORSOrigins != "" {
		config.CORSOrigins = splitList(e.CORSOrigins)
	}
	setString(&config.LogFormat, e.LogFormat)
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
