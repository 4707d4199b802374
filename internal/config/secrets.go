package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// SecretsAPI is the subset of the Secrets Manager client used to resolve
// database credentials.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewSecretsClient builds a Secrets Manager client from the default AWS
// credential chain.
func NewSecretsClient(ctx context.Context) (SecretsAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// rdsSecret is the JSON layout RDS-managed secrets use.
type rdsSecret struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Host     string          `json:"host"`
	Port     json.RawMessage `json:"port"`
	DBName   string          `json:"dbname"`
}

// ResolveDatabaseSecret fills the database password from Secrets Manager
// when database.passwordSecretArn is set. The secret may be an RDS-style
// JSON document or a bare password string.
func ResolveDatabaseSecret(ctx context.Context, cfg *types.ProjectConfig, client SecretsAPI) error {
	arn := cfg.Database.PasswordSecretARN
	if arn == "" {
		return nil
	}
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(arn)})
	if err != nil {
		return fmt.Errorf("reading database secret: %w", err)
	}
	raw := strings.TrimSpace(aws.ToString(out.SecretString))
	if raw == "" {
		return fmt.Errorf("database secret %s is empty", arn)
	}

	var sec rdsSecret
	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), &sec); err != nil {
			return fmt.Errorf("parsing database secret: %w", err)
		}
		if sec.Password == "" {
			return fmt.Errorf("database secret %s has no password", arn)
		}
	} else {
		sec.Password = raw
	}

	dsn, err := withCredentials(cfg.Database.DSN, sec)
	if err != nil {
		return err
	}
	cfg.Database.DSN = dsn
	return nil
}

func withCredentials(dsn string, sec rdsSecret) (string, error) {
	if dsn == "" {
		if sec.Host == "" {
			return "", fmt.Errorf("database.dsn is empty and the secret has no host")
		}
		u := &url.URL{Scheme: "postgres", Host: sec.Host, Path: "/" + sec.DBName}
		if port := strings.Trim(string(sec.Port), `"`); port != "" {
			u.Host = sec.Host + ":" + port
		}
		u.User = url.UserPassword(sec.Username, sec.Password)
		return u.String(), nil
	}

	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parsing database.dsn: %w", err)
		}
		user := sec.Username
		if user == "" && u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, sec.Password)
		return u.String(), nil
	}

	// keyword/value form
	quoted := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(sec.Password)
	out := dsn + " password='" + quoted + "'"
	if sec.Username != "" && !strings.Contains(dsn, "user=") {
		out += " user=" + sec.Username
	}
	return out, nil
}
