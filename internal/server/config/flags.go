package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/flagx"
)

// serverFlags lists every flag parseFlags understands.
var serverFlags = []string{
	"-a", "-grpc", "-d", "-s", "-t",
	"-storage", "-upload-dir", "-u", "-p", "-b", "-g", "-e", "-redis",
	"-tts-url", "-smtp", "-app-url", "-log",
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string           HTTP bind address (e.g., ":8000")
//	-grpc string        gRPC health bind address (e.g., ":50051")
//	-d string           PostgreSQL DSN
//	-s string           JWT HMAC secret key
//	-t int              access token validity, minutes
//	-storage string     "local" or "r2"
//	-upload-dir string  directory for local assets
//	-u / -p string      S3 access key id / secret
//	-b string           S3 bucket name
//	-g string           S3 region
//	-e string           S3 base endpoint
//	-redis string       redis address for the presigned URL cache
//	-tts-url string     speech synthesis endpoint
//	-smtp string        SMTP relay host
//	-app-url string     frontend base URL used in emails
//	-log string         "json" or "zap"
//
// os.Args is first filtered with flagx.FilterArgs so flags intended for
// other components do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run the HTTP API")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "address and port to run the gRPC health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")

	fs.StringVar(&config.StorageType, "storage", config.StorageType, "asset storage backend: local or r2")
	fs.StringVar(&config.UploadDir, "upload-dir", config.UploadDir, "directory for locally stored assets")
	fs.StringVar(&config.S3AccessKeyID, "u", config.S3AccessKeyID, "S3 access key id")
	fs.StringVar(&config.S3SecretAccessKey, "p", config.S3SecretAccessKey, "S3 secret access key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address for presigned URL cache")

	fs.StringVar(&config.TTSURL, "tts-url", config.TTSURL, "text-to-speech endpoint")
	fs.StringVar(&config.SMTPServer, "smtp", config.SMTPServer, "SMTP relay host")
	fs.StringVar(&config.AppURL, "app-url", config.AppURL, "frontend base URL")
	fs.StringVar(&config.LogFormat, "log", config.LogFormat, "log format: json or zap")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
