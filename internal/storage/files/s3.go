package files

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gabrielstm/cyoa-backend/internal/config"
)

const s3KeyPrefix = "profile_pics/"

// ObjectAPI: часть клиента S3, которая нужна хранилищу.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store хранит аватары в S3-совместимом бакете (AWS, MinIO).
// Ссылка имеет вид "s3://<bucket>/profile_pics/<uuid>.<ext>".
type S3Store struct {
	client ObjectAPI
	bucket string
}

// NewS3Store создает клиент S3 из настроек загрузки.
// Если задан s3_endpoint, используется path-style адресация (MinIO).
func NewS3Store(ctx context.Context, cfg config.Uploads) (*S3Store, error) {
	const op = "files.NewS3Store"
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3User != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3User, cfg.S3Password, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, cfg.S3Bucket), nil
}

// NewS3StoreWithClient используется, когда клиент создан снаружи.
func NewS3StoreWithClient(client ObjectAPI, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Store загружает объект и возвращает ссылку на него.
func (s *S3Store) Store(ctx context.Context, data []byte, ext string) (string, error) {
	const op = "files.S3Store.Store"
	if len(data) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyFile)
	}
	key := s3KeyPrefix + ObjectName(ext)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// Remove удаляет объект по ссылке из Store.
func (s *S3Store) Remove(ctx context.Context, ref string) error {
	const op = "files.S3Store.Remove"
	prefix := "s3://" + s.bucket + "/"
	if !strings.HasPrefix(ref, prefix) {
		return fmt.Errorf("%s: reference %q does not belong to bucket %s", op, ref, s.bucket)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(strings.TrimPrefix(ref, prefix)),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
