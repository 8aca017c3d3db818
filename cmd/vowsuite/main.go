// vowsuite serves the multi-tenant wedding-website backend: public
// wedding pages addressed by slug and the authenticated admin API, on
// top of one DynamoDB table and one media bucket.
//
// Configuration comes from the environment (see internal/config), with
// an optional .env file for local development:
//
//	MEDIA_BUCKET=my-media-bucket JWT_SECRET=... vowsuite
package main

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vowsuite/vowsuite/internal/auth"
	"github.com/vowsuite/vowsuite/internal/config"
	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/gallery"
	"github.com/vowsuite/vowsuite/internal/httpapi"
	"github.com/vowsuite/vowsuite/internal/keys"
	"github.com/vowsuite/vowsuite/internal/music"
	"github.com/vowsuite/vowsuite/internal/objstore"
	"github.com/vowsuite/vowsuite/internal/registry"
	"github.com/vowsuite/vowsuite/internal/rsvp"
	"github.com/vowsuite/vowsuite/internal/tenant"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vowsuite: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	// Fail fast on broken credentials instead of on the first request.
	caller, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("verify aws credentials: %w", err)
	}
	log.Info("aws identity",
		zap.Stringp("account", caller.Account),
		zap.Stringp("arn", caller.Arn),
	)

	table := keys.Table
	table.Name = cfg.TableName
	db := dynamo.New(dynamodb.NewFromConfig(awsCfg), table)

	s3Client := s3.NewFromConfig(awsCfg)
	objects := objstore.New(s3Client, s3.NewPresignClient(s3Client), cfg.MediaBucket, cfg.PresignTTL, log)

	srv := httpapi.NewServer(httpapi.Deps{
		Log:      log,
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		Plans:    cfg.Plans,
		DB:       db,
		Tenants:  tenant.NewStore(db, log),
		Registry: registry.NewService(db, log),
		Music:    music.NewService(db, log),
		RSVPs:    rsvp.NewService(db, log),
		Gallery:  gallery.NewService(db, objects, log),
		Objects:  objects,
	})
	return srv.Run(cfg.Addr, cfg.ShutdownTimeout)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
