package blobstore

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	bserrors "github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport/miniotransport"
	"github.com/input-output-hk/catalyst-forge-libs/blobstore/transport/s3transport"
)

// Provider selects the transport implementation.
type Provider string

const (
	// ProviderS3 talks to Amazon S3 or an S3-compatible endpoint through the AWS SDK.
	ProviderS3 Provider = "s3"
	// ProviderMinIO talks to MinIO or an S3-compatible endpoint through minio-go.
	ProviderMinIO Provider = "minio"
)

// Environment variables read by LoadConfig.
const (
	EnvProvider        = "BLOBSTORE_PROVIDER"
	EnvRegion          = "BLOBSTORE_REGION"
	EnvEndpoint        = "BLOBSTORE_ENDPOINT"
	EnvProfile         = "BLOBSTORE_PROFILE"
	EnvAccessKeyID     = "BLOBSTORE_ACCESS_KEY_ID"
	EnvSecretAccessKey = "BLOBSTORE_SECRET_ACCESS_KEY"
	EnvSessionToken    = "BLOBSTORE_SESSION_TOKEN"
	EnvUsePathStyle    = "BLOBSTORE_USE_PATH_STYLE"
	EnvSecure          = "BLOBSTORE_SECURE"
	EnvMaxAttempts     = "BLOBSTORE_MAX_ATTEMPTS"
)

// Config identifies the storage account and the identity used to reach it.
// It is read once when the client is built.
type Config struct {
	Provider Provider

	// Region locates the account for S3
	Region string

	// Endpoint overrides the service endpoint; required for MinIO
	Endpoint string

	// Profile is a shared-config profile used as the S3 identity
	Profile string

	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	UsePathStyle bool
	Secure       bool

	// MaxAttempts bounds transport attempts per request (S3 only)
	MaxAttempts int
}

// LoadConfig reads configuration from the given .env files, overlaid by the
// process environment. Process variables take precedence. Files are optional;
// a named file that cannot be read is a configuration error.
func LoadConfig(files ...string) (Config, error) {
	values := map[string]string{}
	if len(files) > 0 {
		fileValues, err := godotenv.Read(files...)
		if err != nil {
			return Config{}, bserrors.New(bserrors.KindConfiguration, "loadConfig", err)
		}
		values = fileValues
	}

	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return values[key]
	}

	cfg := Config{
		Provider:        Provider(strings.ToLower(lookup(EnvProvider))),
		Region:          lookup(EnvRegion),
		Endpoint:        lookup(EnvEndpoint),
		Profile:         lookup(EnvProfile),
		AccessKeyID:     lookup(EnvAccessKeyID),
		SecretAccessKey: lookup(EnvSecretAccessKey),
		SessionToken:    lookup(EnvSessionToken),
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderS3
	}

	var err error
	if cfg.UsePathStyle, err = parseBool(EnvUsePathStyle, lookup(EnvUsePathStyle)); err != nil {
		return Config{}, err
	}
	if cfg.Secure, err = parseBool(EnvSecure, lookup(EnvSecure)); err != nil {
		return Config{}, err
	}
	if v := lookup(EnvMaxAttempts); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 {
			return Config{}, bserrors.New(bserrors.KindConfiguration, "loadConfig", bserrors.ErrConfiguration).
				WithMessage(fmt.Sprintf("%s must be a non-negative integer, got %q", EnvMaxAttempts, v))
		}
		cfg.MaxAttempts = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports missing or inconsistent settings as a configuration error.
func (c Config) Validate() error {
	invalid := func(msg string) error {
		return bserrors.New(bserrors.KindConfiguration, "validateConfig", bserrors.ErrConfiguration).WithMessage(msg)
	}

	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return invalid("access key id and secret access key must be set together")
	}

	switch c.Provider {
	case ProviderS3:
		if c.Region == "" && c.Endpoint == "" {
			return invalid("region or endpoint is required")
		}
		if c.Profile == "" && c.AccessKeyID == "" {
			return invalid("an identity is required: set a profile or an access key")
		}
	case ProviderMinIO:
		if c.Endpoint == "" {
			return invalid("endpoint is required for minio")
		}
		if c.AccessKeyID == "" {
			return invalid("an access key is required for minio")
		}
	default:
		return invalid(fmt.Sprintf("unknown provider %q", c.Provider))
	}
	return nil
}

func (c Config) s3Config() s3transport.Config {
	return s3transport.Config{
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		Profile:         c.Profile,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		UsePathStyle:    c.UsePathStyle,
		MaxAttempts:     c.MaxAttempts,
	}
}

func (c Config) minioConfig() miniotransport.Config {
	return miniotransport.Config{
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		Region:          c.Region,
		Secure:          c.Secure,
	}
}

func parseBool(name, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, bserrors.New(bserrors.KindConfiguration, "loadConfig", bserrors.ErrConfiguration).
			WithMessage(fmt.Sprintf("%s must be a boolean, got %q", name, value))
	}
	return b, nil
}
