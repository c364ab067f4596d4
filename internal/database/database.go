package database

import (
	"context"
	"fmt"
	"time"

	"byteshop/internal/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gocql/gocql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Connections holds every backend client. Only Postgres is mandatory; the
// other clients are nil when their configuration is absent.
type Connections struct {
	Postgres *sqlx.DB
	Scylla   *gocql.Session
	Redis    *redis.Client
	Elastic  *elasticsearch.Client
	MinIO    *minio.Client
}

func Connect(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Connections, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conns := &Connections{}

	db, err := ConnectPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	conns.Postgres = db
	log.Info("✅ connected to PostgreSQL")

	if cfg.ScyllaEnabled() {
		if conns.Scylla, err = ConnectScylla(cfg); err != nil {
			log.WithError(err).Warn("⚠️ ScyllaDB unavailable, audit log disabled")
		} else {
			log.WithField("keyspace", cfg.ScyllaKeyspace).Info("✅ connected to ScyllaDB")
		}
	}

	if cfg.RedisEnabled() {
		if conns.Redis, err = ConnectRedis(ctx, cfg); err != nil {
			log.WithError(err).Warn("⚠️ Redis unavailable, cache and rate limits disabled")
		} else {
			log.Info("✅ connected to Redis")
		}
	}

	if cfg.ElasticEnabled() {
		if conns.Elastic, err = ConnectElastic(cfg); err != nil {
			log.WithError(err).Warn("⚠️ Elasticsearch unavailable, search falls back to SQL")
		} else {
			log.Info("✅ connected to Elasticsearch")
		}
	}

	if cfg.MinIOEnabled() {
		if conns.MinIO, err = ConnectMinIO(ctx, cfg); err != nil {
			log.WithError(err).Warn("⚠️ MinIO unavailable, image upload disabled")
		} else {
			log.WithField("bucket", cfg.MinIOBucket).Info("✅ connected to MinIO")
		}
	}

	return conns, nil
}

func (c *Connections) Close() {
	if c.Scylla != nil {
		c.Scylla.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Postgres != nil {
		_ = c.Postgres.Close()
	}
}

func ConnectPostgres(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxConns)
	db.SetMaxIdleConns(cfg.DBIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func ConnectScylla(cfg *config.Config) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.ScyllaHostList()...)
	cluster.Keyspace = cfg.ScyllaKeyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.NumConns = 4
	cluster.ReconnectInterval = time.Second
	if cfg.ScyllaUser != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.ScyllaUser,
			Password: cfg.ScyllaPassword,
		}
	}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("scylla session for %s: %w", cfg.ScyllaKeyspace, err)
	}
	return session, nil
}

func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisHost,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func ConnectElastic(cfg *config.Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ElasticURL},
		Username:  cfg.ElasticUser,
		Password:  cfg.ElasticPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info: %s", res.Status())
	}
	return client, nil
}

// ConnectMinIO creates the client and makes sure the bucket exists.
func ConnectMinIO(ctx context.Context, cfg *config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}
	return client, nil
}
