package storage

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cyclopcam/logs"
)

// StorageS3 is an S3-compatible blob store (AWS S3, MinIO, etc).
type StorageS3 struct {
	bucket string
	client *s3.Client
	log    logs.Log
}

// S3Config carries the connection details for an S3-compatible endpoint.
// Endpoint may be empty for real AWS.
type S3Config struct {
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
}

func NewStorageS3(log logs.Log, cfg S3Config) (*StorageS3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &StorageS3{
		bucket: cfg.Bucket,
		client: client,
		log:    log,
	}, nil
}

// s3Writer streams the object body through a pipe, so WriteFile callers can
// treat S3 like any other WriteCloser target.
type s3Writer struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	w.pw.Close()
	return <-w.done
}

func (s *StorageS3) WriteFile(name string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := s.client.PutObject(context.Background(), &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(name),
			Body:   pr,
		})
		pr.CloseWithError(err)
		done <- err
	}()
	return &s3Writer{pw: pw, done: done}, nil
}

func (s *StorageS3) ReadFile(name string) (*File, error) {
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, err
	}
	f := &File{
		Reader: out.Body,
	}
	if out.LastModified != nil {
		f.ModifiedAt = *out.LastModified
	}
	if out.ContentLength != nil {
		f.Size = *out.ContentLength
	}
	return f, nil
}

func (s *StorageS3) DeleteFile(name string) error {
	_, err := s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	return err
}
