package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mindtree/internal/config"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
	BackendNeo4j    = "neo4j"
)

// Open connects the backend named by cfg.Store. The Postgres backend also
// applies pending migrations.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Store {
	case "", BackendMemory:
		logger.Info("using in-memory node store")
		return NewMemoryStore(), nil
	case BackendPostgres, "postgresql":
		db, err := OpenSQL(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		migrations, err := MigrationFS(cfg.MigrationsDir)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		applied, err := ApplyMigrations(ctx, db, migrations)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("using postgres node store", zap.Strings("migrations_applied", applied))
		return NewPostgresStore(db), nil
	case BackendMongo, "mongodb":
		s, err := OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, err
		}
		logger.Info("using mongo node store",
			zap.String("database", cfg.MongoDatabase),
			zap.String("collection", cfg.MongoCollection))
		return s, nil
	case BackendRedis:
		s, err := NewRedisStore(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		logger.Info("using redis node store", zap.String("prefix", s.prefix))
		return s, nil
	case BackendNeo4j:
		s, err := OpenNeo4j(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info("using neo4j node store", zap.String("uri", cfg.Neo4jURI))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}
