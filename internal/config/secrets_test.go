package config

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/oacload/pkg/types"
)

type mockSecrets struct {
	value string
	err   error
	asked []string
}

func (m *mockSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.asked = append(m.asked, aws.ToString(in.SecretId))
	if m.err != nil {
		return nil, m.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(m.value)}, nil
}

const secretARN = "arn:aws:secretsmanager:us-east-1:123456789012:secret:oac-db"

func cfgWith(dsn string) *types.ProjectConfig {
	return &types.ProjectConfig{Database: types.DatabaseConfig{DSN: dsn, PasswordSecretARN: secretARN}}
}

func TestResolveDatabaseSecret_NoARN(t *testing.T) {
	mock := &mockSecrets{}
	cfg := &types.ProjectConfig{Database: types.DatabaseConfig{DSN: "postgres://db/oac"}}
	require.NoError(t, ResolveDatabaseSecret(context.Background(), cfg, mock))
	assert.Empty(t, mock.asked)
	assert.Equal(t, "postgres://db/oac", cfg.Database.DSN)
}

func TestResolveDatabaseSecret_RDSJSON(t *testing.T) {
	mock := &mockSecrets{value: `{"username":"loader","password":"p@ss:word","host":"db.internal","port":5432,"dbname":"capacity"}`}
	cfg := cfgWith("postgres://db.internal:5432/capacity?sslmode=require")

	require.NoError(t, ResolveDatabaseSecret(context.Background(), cfg, mock))
	assert.Equal(t, []string{secretARN}, mock.asked)

	u, err := url.Parse(cfg.Database.DSN)
	require.NoError(t, err)
	assert.Equal(t, "loader", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss:word", pw)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestResolveDatabaseSecret_BuildsDSNFromSecret(t *testing.T) {
	mock := &mockSecrets{value: `{"username":"loader","password":"pw","host":"db.internal","port":"5433","dbname":"capacity"}`}
	cfg := cfgWith("")

	require.NoError(t, ResolveDatabaseSecret(context.Background(), cfg, mock))
	assert.Equal(t, "postgres://loader:pw@db.internal:5433/capacity", cfg.Database.DSN)
}

func TestResolveDatabaseSecret_BarePassword(t *testing.T) {
	mock := &mockSecrets{value: "hunter2"}
	cfg := cfgWith("postgres://loader@db/capacity")

	require.NoError(t, ResolveDatabaseSecret(context.Background(), cfg, mock))
	assert.Equal(t, "postgres://loader:hunter2@db/capacity", cfg.Database.DSN)
}

func TestResolveDatabaseSecret_KeywordDSN(t *testing.T) {
	mock := &mockSecrets{value: "it's"}
	cfg := cfgWith("host=db dbname=capacity user=loader")

	require.NoError(t, ResolveDatabaseSecret(context.Background(), cfg, mock))
	assert.Equal(t, `host=db dbname=capacity user=loader password='it\'s'`, cfg.Database.DSN)
}

func TestResolveDatabaseSecret_Errors(t *testing.T) {
	tests := []struct {
		name string
		mock *mockSecrets
		dsn  string
	}{
		{"client error", &mockSecrets{err: errors.New("access denied")}, "postgres://db/oac"},
		{"empty secret", &mockSecrets{value: "  "}, "postgres://db/oac"},
		{"json without password", &mockSecrets{value: `{"username":"loader"}`}, "postgres://db/oac"},
		{"no dsn and no host", &mockSecrets{value: `{"password":"pw"}`}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ResolveDatabaseSecret(context.Background(), cfgWith(tt.dsn), tt.mock))
		})
	}
}
