package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	config "github.com/maheshrc27/postdispatch/configs"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository"
	"go.uber.org/zap"
)

const presignExpiry = time.Hour

var errStorageNotConfigured = errors.New("object storage is not configured")

type AssetService interface {
	ResolveURLs(ctx context.Context, assetIDs []string) ([]string, error)
	RecordUsage(ctx context.Context, assetIDs []string) error
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type assetService struct {
	cfg    config.R2
	assets repository.MediaAssetRepository
	logger *zap.Logger

	once      sync.Once
	presigner objectPresigner
	initErr   error
}

func NewAssetService(cfg config.R2, assets repository.MediaAssetRepository, logger *zap.Logger) AssetService {
	return &assetService{
		cfg:    cfg,
		assets: assets,
		logger: logger,
	}
}

// r2Presigner builds the R2 client on first use.
func (s *assetService) r2Presigner(ctx context.Context) (objectPresigner, error) {
	s.once.Do(func() {
		if s.presigner != nil {
			return
		}
		if s.cfg.AccountID == "" || s.cfg.AccessKey == "" || s.cfg.BucketName == "" {
			s.initErr = errStorageNotConfigured
			return
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.cfg.AccessKey, s.cfg.SecretKey, "")),
			awsconfig.WithRegion("auto"),
		)
		if err != nil {
			s.initErr = fmt.Errorf("load r2 config: %w", err)
			return
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.cfg.AccountID))
		})
		s.presigner = s3.NewPresignClient(client)
	})
	return s.presigner, s.initErr
}

// ResolveURLs returns a fetchable URL per asset, in the order of ids.
// Unknown ids are skipped.
func (s *assetService) ResolveURLs(ctx context.Context, assetIDs []string) ([]string, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	assets, err := s.assets.GetByIDs(ctx, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	byID := make(map[string]*models.MediaAsset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}

	urls := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		a, ok := byID[id]
		if !ok {
			s.logger.Warn("asset not found", zap.String("asset_id", id))
			continue
		}
		u, err := s.urlFor(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", id, err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (s *assetService) urlFor(ctx context.Context, a *models.MediaAsset) (string, error) {
	if a.SecureURL != "" {
		return a.SecureURL, nil
	}
	if a.ObjectKey == "" {
		return "", errors.New("asset has neither url nor object key")
	}
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + strings.TrimLeft(a.ObjectKey, "/"), nil
	}

	presigner, err := s.r2Presigner(ctx)
	if err != nil {
		return "", err
	}
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(a.ObjectKey),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", a.ObjectKey, err)
	}
	return req.URL, nil
}

func (s *assetService) RecordUsage(ctx context.Context, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	return s.assets.IncrementUsage(ctx, assetIDs)
}
