// Package lambdaboot provides Lambda cold-start bootstrap helpers: AWS
// config, optional S3 access, the Gemini key from SSM, and startup logging.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/fedpath/internal/auth"
	"github.com/fpang/fedpath/internal/logging"
)

// DefaultAPIKeyParam is the SSM parameter holding the Gemini API key.
const DefaultAPIKeyParam = "/fedpath/prod/gemini-api-key"

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// S3Clients holds S3 client, presigner, and bucket name.
type S3Clients struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3Optional creates S3 clients for bucket. Returns nil when bucket is
// empty, which disables report upload.
func InitS3Optional(cfg aws.Config, bucket string) *S3Clients {
	if bucket == "" {
		log.Warn().Msg("Report bucket not set, S3 export disabled")
		return nil
	}
	client := s3.NewFromConfig(cfg)
	return &S3Clients{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
	}
}

// parameterGetter is the subset of *ssm.Client used to read the key.
type parameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadGeminiKey fetches the Gemini API key from SSM Parameter Store if
// GEMINI_API_KEY is not already set, and exports it. Fatals on error.
func LoadGeminiKey(ssmClient *ssm.Client) {
	if err := loadGeminiKey(context.Background(), ssmClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to read API key from SSM")
	}
}

func loadGeminiKey(ctx context.Context, client parameterGetter) error {
	if os.Getenv(auth.APIKeyEnv) != "" {
		return nil
	}
	paramName := APIKeyParam()
	ssmStart := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return err
	}
	os.Setenv(auth.APIKeyEnv, aws.ToString(result.Parameter.Value))
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
	return nil
}

// APIKeyParam returns the SSM parameter name, overridable via SSM_API_KEY_PARAM.
func APIKeyParam() string {
	return logging.EnvOrDefault("SSM_API_KEY_PARAM", DefaultAPIKeyParam)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
