package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// User metadata keys stored alongside each object.
const (
	metaHash           = "Sha256"
	metaConsultationID = "Consultation-Id"
	metaFileName       = "File-Name"
)

// MinioConfig holds the connection settings of a MinIO backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore is a Store backed by a MinIO (or S3 compatible) bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// NewMinioClient builds a client for cfg.
func NewMinioClient(cfg MinioConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// NewMinioStore wraps client. Call EnsureBucket before first use.
func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, now: time.Now}
}

// EnsureBucket creates the bucket when it does not exist.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads content under the key derived from meta.
func (s *MinioStore) Put(ctx context.Context, meta Metadata, content []byte) (*Metadata, error) {
	meta, err := prepare(meta, content, s.now())
	if err != nil {
		return nil, err
	}
	_, err = s.client.PutObject(ctx, s.bucket, meta.Key, bytes.NewReader(content), meta.Size, minio.PutObjectOptions{
		ContentType: meta.ContentType,
		UserMetadata: map[string]string{
			metaHash:           meta.Hash,
			metaConsultationID: meta.ConsultationID.String(),
			metaFileName:       meta.FileName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("put %s/%s: %w", s.bucket, meta.Key, err)
	}
	return &meta, nil
}

// Get downloads the object stored under key.
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, *Metadata, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, s.mapErr(key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, nil, s.mapErr(key, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, nil, s.mapErr(key, err)
	}
	meta := fromObjectInfo(info)
	return data, &meta, nil
}

// Stat returns the metadata of the object stored under key.
func (s *MinioStore) Stat(ctx context.Context, key string) (*Metadata, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	meta := fromObjectInfo(info)
	return &meta, nil
}

// List returns the letters archived for a consultation, oldest first.
func (s *MinioStore) List(ctx context.Context, consultationID uuid.UUID) ([]*Metadata, error) {
	out := []*Metadata{}
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix(consultationID)}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s: %w", s.bucket, info.Err)
		}
		meta := fromObjectInfo(info)
		out = append(out, &meta)
	}
	return out, nil
}

func (s *MinioStore) mapErr(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return fmt.Errorf("read %s/%s: %w", s.bucket, key, err)
}

func fromObjectInfo(info minio.ObjectInfo) Metadata {
	meta := Metadata{
		Key:         info.Key,
		ContentType: info.ContentType,
		Size:        info.Size,
		CreatedAt:   info.LastModified.UTC(),
		Hash:        userMeta(info.UserMetadata, metaHash),
		FileName:    userMeta(info.UserMetadata, metaFileName),
	}
	if meta.ContentType == "" {
		meta.ContentType = ContentTypePDF
	}
	if id, err := uuid.Parse(userMeta(info.UserMetadata, metaConsultationID)); err == nil {
		meta.ConsultationID = id
	} else if parts := strings.Split(info.Key, "/"); len(parts) == 3 {
		meta.ConsultationID, _ = uuid.Parse(parts[1])
	}
	return meta
}

// userMeta looks key up ignoring case and the x-amz-meta- prefix.
func userMeta(m minio.StringMap, key string) string {
	for k, v := range m {
		k = strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")
		if k == strings.ToLower(key) {
			return v
		}
	}
	return ""
}
