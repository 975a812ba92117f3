package minio

import (
	"context"
	"io"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/direkte/blobstore"
)

// Store keeps index files as objects of one bucket.
type Store struct {
	client   *minio.Client
	bucket   string
	prefix   string
	partSize uint64
}

// NewStore returns a store over an existing client. Blob names are placed
// below prefix, which may be empty.
func NewStore(client *minio.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Options configures New.
type Options struct {
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
	Secure    bool
	// PartSize is the multipart chunk size of uploads. Zero lets the client
	// choose.
	PartSize uint64
}

// Option configures New.
type Option func(*Options)

// WithPrefix places all blob names below prefix.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

// WithRegion skips the bucket location lookup.
func WithRegion(region string) Option {
	return func(o *Options) { o.Region = region }
}

// WithCredentials signs requests with a static V4 key pair.
func WithCredentials(accessKey, secretKey string) Option {
	return func(o *Options) {
		o.AccessKey = accessKey
		o.SecretKey = secretKey
	}
}

// WithTLS talks to the endpoint over HTTPS.
func WithTLS() Option {
	return func(o *Options) { o.Secure = true }
}

// WithPartSize sets the multipart chunk size of uploads.
func WithPartSize(n uint64) Option {
	return func(o *Options) { o.PartSize = n }
}

// New connects to the server at endpoint (host:port, no scheme). It does
// not contact the server.
func New(endpoint, bucket string, optFns ...Option) (*Store, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}
	s := NewStore(client, bucket, opts.Prefix)
	s.partSize = opts.PartSize
	return s, nil
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *Store) name(key string) string {
	return strings.TrimPrefix(key, s.key(""))
}

func notFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func translate(err error) error {
	if notFound(err) {
		return blobstore.ErrNotFound
	}
	return err
}

// Open fetches the whole object behind name.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Reader, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}
	// GetObject is lazy; Stat issues the request.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, translate(err)
	}
	return &objectReader{Object: obj, size: info.Size}, nil
}

// Create streams an upload of name. An aborted upload leaves no object.
func (s *Store) Create(ctx context.Context, name string) (blobstore.Writer, error) {
	key := s.key(name)
	return blobstore.Stream(ctx, func(ctx context.Context, r io.Reader) error {
		_, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
			ContentType: blobstore.ContentType,
			PartSize:    s.partSize,
		})
		return err
	}), nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !notFound(err) {
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return nil, obj.Err
		}
		names = append(names, s.name(obj.Key))
	}
	slices.Sort(names)
	return names, nil
}

var _ blobstore.BlobStore = (*Store)(nil)

type objectReader struct {
	*minio.Object
	size int64
}

func (r *objectReader) Size() int64 { return r.size }
