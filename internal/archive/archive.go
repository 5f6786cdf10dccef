// Package archive uploads tree snapshots to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const keyPrefix = "snapshots/"

// ErrDisabled is returned when no object storage endpoint is configured.
var ErrDisabled = errors.New("archive storage not configured")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// objectStore is the part of *minio.Client the archiver uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

type Object struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

type Archiver struct {
	client objectStore
	bucket string
	now    func() time.Time

	bucketMu    sync.Mutex
	bucketReady bool
}

// New connects to the endpoint. It returns ErrDisabled when no endpoint is
// configured.
func New(cfg Config) (*Archiver, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, ErrDisabled
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return newArchiver(client, cfg.Bucket), nil
}

func newArchiver(client objectStore, bucket string) *Archiver {
	if bucket == "" {
		bucket = "mindtree-snapshots"
	}
	return &Archiver{client: client, bucket: bucket, now: time.Now}
}

// Upload stores payload as snapshots/<utc timestamp>.json, creating the bucket
// on first use.
func (a *Archiver) Upload(ctx context.Context, payload []byte) (Object, error) {
	if err := a.ensureBucket(ctx); err != nil {
		return Object{}, err
	}
	at := a.now().UTC()
	key := keyPrefix + at.Format("20060102T150405.000000000Z") + ".json"
	info, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", key, err)
	}
	return Object{Bucket: a.bucket, Key: key, Size: info.Size, ETag: info.ETag, LastModified: at}, nil
}

// List returns archived snapshots, newest first.
func (a *Archiver) List(ctx context.Context, limit int) ([]Object, error) {
	objects := make([]Object, 0)
	for info := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: keyPrefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list snapshots: %w", info.Err)
		}
		objects = append(objects, Object{
			Bucket:       a.bucket,
			Key:          info.Key,
			Size:         info.Size,
			ETag:         info.ETag,
			LastModified: info.LastModified,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })
	if limit > 0 && len(objects) > limit {
		objects = objects[:limit]
	}
	return objects, nil
}

func (a *Archiver) ensureBucket(ctx context.Context) error {
	a.bucketMu.Lock()
	defer a.bucketMu.Unlock()
	if a.bucketReady {
		return nil
	}
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucket, err)
		}
	}
	a.bucketReady = true
	return nil
}
