package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policytrail/policytrail/core"
)

const sampleConfig = `
snapshots:
  type: git
  git:
    path: ./data/snapshots
    author_name: Policytrail Bot
    author_email: bot@policytrail.example
    publish: true
versions:
  type: mongo
  mongo:
    uri: mongodb://localhost:27017
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, TypeGit, cfg.Snapshots.Type)
	assert.Equal(t, "./data/snapshots", cfg.Snapshots.Git.Path)
	assert.True(t, cfg.Snapshots.Git.Publish)
	assert.Equal(t, TypeMongo, cfg.Versions.Type)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Versions.Mongo.URI)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestCreateGit(t *testing.T) {
	repo, err := Create(RepositoryConfig{
		Type: TypeGit,
		Git:  GitConfig{Path: t.TempDir()},
	}, core.KindSnapshot)
	require.NoError(t, err)
	assert.NotNil(t, repo)
}

func TestCreateBadger(t *testing.T) {
	repo, err := Create(RepositoryConfig{
		Type:   TypeBadger,
		Badger: BadgerConfig{Path: t.TempDir()},
	}, core.KindVersion)
	require.NoError(t, err)
	assert.NotNil(t, repo)
}

func TestCreateMongoDefaults(t *testing.T) {
	// Database and collection default from the record kind; only the URI is
	// mandatory.
	repo, err := Create(RepositoryConfig{
		Type:  TypeMongo,
		Mongo: MongoConfig{URI: "mongodb://localhost:27017"},
	}, core.KindVersion)
	require.NoError(t, err)
	assert.NotNil(t, repo)
}

func TestCreateUnknownBackend(t *testing.T) {
	_, err := Create(RepositoryConfig{Type: "sqlite"}, core.KindSnapshot)
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = Create(RepositoryConfig{}, core.KindSnapshot)
	assert.ErrorContains(t, err, "no storage backend configured")
}
