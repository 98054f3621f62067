// Package s3 implements the S3 transport, registered under the "s3"
// scheme. URLs name the bucket as the host and an optional key prefix
// as the path: s3://bucket/backups/host1.
//
// Credentials come from the usual SDK chain (environment, shared
// config, instance roles). Embedding an access key pair in the URL as
// user:password overrides the chain. A storage-class query parameter
// selects the class uploads are written with:
// s3://bucket/prefix?storage-class=STANDARD_IA.
package s3

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/meigma/drift/backend"
)

func init() {
	backend.Register("s3", true, func(ctx context.Context, u *backend.ParsedURL) (backend.Backend, error) {
		return New(ctx, u)
	})
}

// api is the slice of the S3 client the backend uses. It exists so
// tests can substitute a fake.
type api interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, opts ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, opts ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, opts ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
}

// Backend stores objects under a key prefix in one bucket.
type Backend struct {
	cfg          aws.Config
	client       api
	bucket       string
	prefix       string
	storageClass types.StorageClass
	connected    bool
}

// New loads SDK configuration, builds a client, and verifies the
// bucket is reachable. Missing credentials surface as a configuration
// error here rather than on the first data operation.
func New(ctx context.Context, u *backend.ParsedURL) (backend.Backend, error) {
	if u.Host == "" {
		return nil, backend.Errf(backend.KindConfig, "open", u.String(), "s3 URL needs a bucket name")
	}

	var loadOpts []func(*config.LoadOptions) error
	if u.Username != "" {
		loadOpts = append(loadOpts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(u.Username, u.Password, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, backend.Wrap(backend.KindConfig, "open", u.String(), err)
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, backend.Wrap(backend.KindConfig, "open", u.String(), err)
	}

	b := &Backend{
		cfg:          cfg,
		bucket:       u.Host,
		prefix:       keyPrefix(u.Path),
		storageClass: types.StorageClass(u.Query.Get("storage-class")),
	}
	if err := b.Reset(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func keyPrefix(path string) string {
	p := strings.Trim(path, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func (b *Backend) key(remoteName string) string {
	return b.prefix + remoteName
}

// Put uploads the local file under remoteName.
func (b *Backend) Put(ctx context.Context, localPath, remoteName string) error {
	if err := b.ready("put", remoteName); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return backend.Wrap(backend.KindFatal, "put", remoteName, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return backend.Wrap(backend.KindFatal, "put", remoteName, err)
	}

	_, err = b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.key(remoteName)),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		StorageClass:  b.storageClass,
	})
	return classify("put", remoteName, err)
}

// Get downloads remoteName into localPath.
func (b *Backend) Get(ctx context.Context, remoteName, localPath string) error {
	if err := b.ready("get", remoteName); err != nil {
		return err
	}

	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(remoteName)),
	})
	if err != nil {
		return classify("get", remoteName, err)
	}
	defer out.Body.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return backend.Wrap(backend.KindFatal, "get", remoteName, err)
	}
	if _, err := dst.ReadFrom(out.Body); err != nil {
		dst.Close()
		return backend.Wrap(backend.KindTransient, "get", remoteName, err)
	}
	if err := dst.Close(); err != nil {
		return backend.Wrap(backend.KindFatal, "get", remoteName, err)
	}
	return nil
}

// List names every object under the prefix, following continuation
// tokens until the listing is complete.
func (b *Backend) List(ctx context.Context) ([]string, error) {
	if err := b.ready("list", ""); err != nil {
		return nil, err
	}

	var names []string
	pager := awss3.NewListObjectsV2Paginator(b.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify("list", "", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, b.prefix)
			// Skip keys nested below the prefix and the prefix
			// placeholder some tools create.
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}
	return names, nil
}

// Delete removes remoteName. S3 deletes are idempotent at the API
// level, so a missing object is only detected via HeadObject first.
func (b *Backend) Delete(ctx context.Context, remoteName string) error {
	if err := b.ready("delete", remoteName); err != nil {
		return err
	}

	if _, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(remoteName)),
	}); err != nil {
		return classify("delete", remoteName, err)
	}
	_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(remoteName)),
	})
	return classify("delete", remoteName, err)
}

// Query returns the size of remoteName.
func (b *Backend) Query(ctx context.Context, remoteName string) (int64, error) {
	if err := b.ready("query", remoteName); err != nil {
		return 0, err
	}

	out, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(remoteName)),
	})
	if err != nil {
		return 0, classify("query", remoteName, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Reset rebuilds the client from the stored configuration and checks
// the bucket is still reachable.
func (b *Backend) Reset(ctx context.Context) error {
	b.client = awss3.NewFromConfig(b.cfg)
	b.connected = true

	if _, err := b.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	}); err != nil {
		b.connected = false
		if backend.KindOf(classify("reset", b.bucket, err)) == backend.KindNotFound {
			return backend.Errf(backend.KindConfig, "reset", b.bucket, "bucket does not exist")
		}
		return classify("reset", b.bucket, err)
	}
	return nil
}

// Close marks the backend unusable until the next Reset.
func (b *Backend) Close() error {
	b.connected = false
	b.client = nil
	return nil
}

func (b *Backend) ready(op, target string) error {
	if !b.connected {
		return backend.Errf(backend.KindFatal, op, target, "backend is closed")
	}
	return nil
}

// classify maps SDK errors onto the backend taxonomy using the smithy
// error code. Unknown codes stay transient.
func classify(op, target string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return backend.Wrap(backend.KindNotFound, op, target, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return backend.Wrap(backend.KindFatal, op, target, err)
		case "MalformedXML", "InvalidRequest", "InvalidArgument":
			return backend.Wrap(backend.KindProtocol, op, target, err)
		}
	}
	return backend.Wrap(backend.KindTransient, op, target, err)
}
