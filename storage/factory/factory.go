// Package factory builds storage repositories from declarative
// configuration, keeping backend choice out of calling code: the same
// config file can point snapshots at a git working tree and versions at a
// MongoDB collection.
package factory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
	"github.com/policytrail/policytrail/storage/badgerrepo"
	"github.com/policytrail/policytrail/storage/gitrepo"
	"github.com/policytrail/policytrail/storage/mongorepo"
)

// Backend type names accepted in configuration.
const (
	TypeGit    = "git"
	TypeMongo  = "mongo"
	TypeBadger = "badger"
)

// Config holds the storage configuration of both record repositories.
type Config struct {
	Snapshots RepositoryConfig `yaml:"snapshots"`
	Versions  RepositoryConfig `yaml:"versions"`
}

// RepositoryConfig selects and configures one backend.
type RepositoryConfig struct {
	Type   string       `yaml:"type"`
	Git    GitConfig    `yaml:"git"`
	Mongo  MongoConfig  `yaml:"mongo"`
	Badger BadgerConfig `yaml:"badger"`
}

// GitConfig holds git backend settings.
type GitConfig struct {
	Path        string `yaml:"path"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
	RemoteURL   string `yaml:"remote_url"`
	Publish     bool   `yaml:"publish"`
}

// MongoConfig holds MongoDB backend settings.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// BadgerConfig holds embedded store settings.
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Create builds the repository described by the config, for the given record
// kind. Defaults that depend on the kind (collection names) are applied
// here.
func Create(cfg RepositoryConfig, kind core.RecordKind) (storage.Repository, error) {
	switch cfg.Type {
	case TypeGit:
		return gitrepo.New(gitrepo.Config{
			Path:        cfg.Git.Path,
			AuthorName:  cfg.Git.AuthorName,
			AuthorEmail: cfg.Git.AuthorEmail,
			RemoteURL:   cfg.Git.RemoteURL,
			Publish:     cfg.Git.Publish,
		}, kind)

	case TypeMongo:
		mongoCfg := mongorepo.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		}
		if mongoCfg.Database == "" {
			mongoCfg.Database = "policytrail"
		}
		if mongoCfg.Collection == "" {
			mongoCfg.Collection = kind.String() + "s"
		}
		return mongorepo.New(mongoCfg, kind)

	case TypeBadger:
		return badgerrepo.New(badgerrepo.Config{Path: cfg.Badger.Path}, kind)

	case "":
		return nil, fmt.Errorf("no storage backend configured for %ss", kind)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Type)
	}
}
