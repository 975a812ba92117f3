package s3

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/hupe1980/direkte/blobstore"
)

// Client is the part of the S3 API the store calls. *s3.Client satisfies it.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ Client = (*s3.Client)(nil)

// Store keeps index files as objects of one bucket. Uploads carry a
// CRC32C checksum that S3 verifies, and downloads verify it again.
type Store struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewStore returns a store over client with default multipart settings.
func NewStore(client Client, bucket, prefix string) *Store {
	return newStore(client, bucket, settings{prefix: prefix})
}

func newStore(client Client, bucket string, cfg settings) *Store {
	return &Store{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			if cfg.partSize > 0 {
				u.PartSize = cfg.partSize
			}
			if cfg.concurrency > 0 {
				u.Concurrency = cfg.concurrency
			}
		}),
		bucket: bucket,
		prefix: strings.Trim(cfg.prefix, "/"),
	}
}

type settings struct {
	prefix      string
	region      string
	endpoint    string
	creds       aws.CredentialsProvider
	partSize    int64
	concurrency int
}

// Option configures New.
type Option func(*settings)

// WithPrefix places all blob names below prefix.
func WithPrefix(prefix string) Option {
	return func(s *settings) { s.prefix = prefix }
}

// WithRegion overrides the region of the shared AWS configuration.
func WithRegion(region string) Option {
	return func(s *settings) { s.region = region }
}

// WithEndpoint targets an S3 compatible server. Buckets are then
// addressed by path.
func WithEndpoint(url string) Option {
	return func(s *settings) { s.endpoint = url }
}

// WithStaticCredentials bypasses the default credential chain.
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(s *settings) {
		s.creds = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)
	}
}

// WithMultipart sets the part size and the number of parts sent at once.
func WithMultipart(partSize int64, concurrency int) Option {
	return func(s *settings) {
		s.partSize = partSize
		s.concurrency = concurrency
	}
}

// New loads the shared AWS configuration and returns a store for bucket.
func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}

	var load []func(*awsconfig.LoadOptions) error
	if cfg.region != "" {
		load = append(load, awsconfig.WithRegion(cfg.region))
	}
	if cfg.creds != nil {
		load = append(load, awsconfig.WithCredentialsProvider(cfg.creds))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.endpoint)
			o.UsePathStyle = true
		}
	})
	return newStore(client, bucket, cfg), nil
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func notFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open fetches the whole object behind name.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Reader, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(s.key(name)),
		ChecksumMode: types.ChecksumModeEnabled,
	})
	if err != nil {
		if notFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &objectReader{ReadCloser: out.Body, size: aws.ToInt64(out.ContentLength)}, nil
}

// Create streams name through the multipart uploader. An aborted or
// failed upload removes its parts.
func (s *Store) Create(ctx context.Context, name string) (blobstore.Writer, error) {
	key := s.key(name)
	return blobstore.Stream(ctx, func(ctx context.Context, r io.Reader) error {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:            aws.String(s.bucket),
			Key:               aws.String(key),
			Body:              r,
			ContentType:       aws.String(blobstore.ContentType),
			ChecksumAlgorithm: types.ChecksumAlgorithmCrc32c,
		})
		return err
	}), nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && !notFound(err) {
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	root := s.key("")
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	})

	var names []string
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			names = append(names, strings.TrimPrefix(aws.ToString(obj.Key), root))
		}
	}
	slices.Sort(names)
	return names, nil
}

var _ blobstore.BlobStore = (*Store)(nil)

type objectReader struct {
	io.ReadCloser
	size int64
}

func (r *objectReader) Size() int64 { return r.size }
