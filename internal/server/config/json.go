package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/talkboard/internal/flagx"
	"github.com/dmitrijs2005/talkboard/internal/timex"
)

// JsonConfig is the on-disk shape of the optional configuration file.
// Interval fields use timex.Duration so both "15s" and integer nanoseconds
// are accepted. Only keys present in the file override the current values.
type JsonConfig struct {
	EndpointAddrHTTP            string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string          `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string          `json:"database_dsn"`
	SecretKey                   string          `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`

	StorageType       string          `json:"storage_type"`
	UploadDir         string          `json:"upload_dir"`
	S3AccessKeyID     string          `json:"s3_access_key_id"`
	S3SecretAccessKey string          `json:"s3_secret_access_key"`
	S3Bucket          string          `json:"s3_bucket"`
	S3Region          string          `json:"s3_region"`
	S3BaseEndpoint    string          `json:"s3_base_endpoint"`
	PresignTTL        *timex.Duration `json:"presign_ttl"`
	RedisAddr         string          `json:"redis_addr"`

	TTSURL       string          `json:"tts_url"`
	TTSTimeout   *timex.Duration `json:"tts_timeout"`
	TTSRateLimit *float64        `json:"tts_rate_limit"`
	TTSRateBurst *int            `json:"tts_rate_burst"`

	SMTPServer   string `json:"smtp_server"`
	SMTPPort     *int   `json:"smtp_port"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`
	SMTPSender   string `json:"smtp_sender"`
	MailWorkers  *int   `json:"mail_workers"`

	AppURL               string          `json:"app_url"`
	DefaultPIN           string          `json:"default_pin"`
	ResetTokenTTL        *timex.Duration `json:"reset_token_ttl"`
	TokenJanitorSchedule string          `json:"token_janitor_schedule"`
	CORSOrigins          []string        `json:"cors_origins"`
	LogFormat            string          `json:"log_format"`
}

// parseJson loads configuration values from the JSON file named by the
// -c or -config flag into config. Without the flag nothing is loaded.
// An unreadable file or invalid JSON panics, as a misconfigured server
// must not start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}

	setString(&config.StorageType, c.StorageType)
	setString(&config.UploadDir, c.UploadDir)
	setString(&config.S3AccessKeyID, c.S3AccessKeyID)
	setString(&config.S3SecretAccessKey, c.S3SecretAccessKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.PresignTTL != nil {
		config.PresignTTL = c.PresignTTL.Duration
	}
	setString(&config.RedisAddr, c.RedisAddr)

	setString(&config.TTSURL, c.TTSURL)
	if c.TTSTimeout != nil {
		config.TTSTimeout = c.TTSTimeout.Duration
	}
	if c.TTSRateLimit != nil {
		config.TTSRateLimit = *c.TTSRateLimit
	}
	if c.TTSRateBurst != nil {
		config.TTSRateBurst = *c.TTSRateBurst
	}

	setString(&config.SMTPServer, c.SMTPServer)
	if c.SMTPPort != nil {
		config.SMTPPort = *c.SMTPPort
	}
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPSender, c.SMTPSender)
	if c.MailWorkers != nil {
		config.MailWorkers = *c.MailWorkers
	}

	setString(&config.AppURL, c.AppURL)
	setString(&config.DefaultPIN, c.DefaultPIN)
	if c.ResetTokenTTL != nil {
		config.ResetTokenTTL = c.ResetTokenTTL.Duration
	}
	setString(&config.TokenJanitorSchedule, c.TokenJanitorSchedule)
	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
