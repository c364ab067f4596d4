// Command backup dumps the database to a JSON lines file and optionally
// uploads it to object storage.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"byteshop/internal/backup"
	"byteshop/internal/config"
	"byteshop/internal/database"
	"byteshop/internal/logging"
	"byteshop/internal/storage"

	"github.com/sirupsen/logrus"
)

func main() {
	dir := flag.String("dir", "backups", "directory the dump is written to")
	upload := flag.Bool("upload", false, "upload the dump to MinIO under backups/")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("❌ invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.IsProduction())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	db, err := database.ConnectPostgres(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("❌ database connection failed")
	}
	defer db.Close()

	if err := os.MkdirAll(*dir, 0o750); err != nil {
		log.WithError(err).Fatal("❌ cannot create backup directory")
	}
	name := backup.FileName(time.Now())
	path := filepath.Join(*dir, name)

	f, err := os.Create(path)
	if err != nil {
		log.WithError(err).Fatal("❌ cannot create backup file")
	}
	counts, err := backup.Dump(ctx, db, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		log.WithError(err).Fatal("❌ backup failed")
	}

	fields := logrus.Fields{"file": path}
	for table, n := range counts {
		fields[table] = n
	}
	log.WithFields(fields).Info("✅ backup written")

	if !*upload {
		return
	}
	if !cfg.MinIOEnabled() {
		log.Fatal("❌ upload requested but MINIO_ENDPOINT is not set")
	}
	client, err := database.ConnectMinIO(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("❌ MinIO connection failed")
	}

	f, err = os.Open(path)
	if err != nil {
		log.WithError(err).Fatal("❌ cannot reopen backup file")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		log.WithError(err).Fatal("❌ cannot stat backup file")
	}

	objectPath, err := storage.New(client, cfg.MinIOBucket, cfg.MinIOPublicURL).UploadBackup(ctx, name, f, info.Size())
	if err != nil {
		log.WithError(err).Fatal("❌ upload failed")
	}
	log.WithField("object", objectPath).Info("✅ backup uploaded")
}
