package s3

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

/*
Conn wraps a MinIO client bound to a single bucket.
*/
type Conn struct {
	client *minio.Client
	bucket string
}

/*
NewConn connects to an S3-compatible endpoint. The bucket is not
touched until EnsureBucket runs.
*/
func NewConn(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Conn, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})

	if err != nil {
		return nil, err
	}

	return &Conn{client: client, bucket: bucket}, nil
}

/*
EnsureBucket creates the bucket when it does not exist yet.
*/
func (conn *Conn) EnsureBucket(ctx context.Context) error {
	exists, err := conn.client.BucketExists(ctx, conn.bucket)

	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return conn.client.MakeBucket(ctx, conn.bucket, minio.MakeBucketOptions{})
}

func (conn *Conn) Get(ctx context.Context, key string) (*bytes.Buffer, error) {
	obj, err := conn.client.GetObject(ctx, conn.bucket, key, minio.GetObjectOptions{})

	if err != nil {
		return nil, err
	}

	defer obj.Close()

	// GetObject is lazy: a missing key only surfaces on the first read.
	buf := bytes.NewBuffer(nil)

	if _, err := io.Copy(buf, obj); err != nil {
		return nil, err
	}

	return buf, nil
}

func (conn *Conn) Put(ctx context.Context, key string, data []byte) error {
	_, err := conn.client.PutObject(
		ctx, conn.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)

	return err
}

func (conn *Conn) Del(ctx context.Context, key string) error {
	return conn.client.RemoveObject(ctx, conn.bucket, key, minio.RemoveObjectOptions{})
}
