package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	// namePrefix and nameSuffix frame every archived snapshot name.
	namePrefix = "floors-"
	nameSuffix = ".snap.zst"

	// nameTimeLayout sorts lexicographically in time order.
	nameTimeLayout = "20060102T150405.000000000Z"
)

// ErrNoSnapshot is returned when an archive holds no snapshot.
var ErrNoSnapshot = errors.New("no snapshot in archive")

// Archive stores compressed snapshots by name.
type Archive interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns snapshot names in ascending order.
	List(ctx context.Context) ([]string, error)
}

// Name returns the archive name of a snapshot created at t.
func Name(t time.Time) string {
	return namePrefix + t.UTC().Format(nameTimeLayout) + nameSuffix
}

// isSnapshotName reports whether name was produced by Name.
func isSnapshotName(name string) bool {
	return strings.HasPrefix(name, namePrefix) && strings.HasSuffix(name, nameSuffix)
}

// Latest returns the name of the newest snapshot in a.
func Latest(ctx context.Context, a Archive) (string, error) {
	names, err := a.List(ctx)
	if err != nil {
		return "", err
	}

	if len(names) == 0 {
		return "", ErrNoSnapshot
	}

	return names[len(names)-1], nil
}

// Dir is an Archive backed by a local directory.
type Dir struct {
	path string
}

// NewDir creates the directory if needed and returns the archive.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create archive dir:\n%w", err)
	}

	return &Dir{path: path}, nil
}

// Put writes data to a temp file and renames it into place.
func (d *Dir) Put(_ context.Context, name string, data []byte) error {
	tmp, err := os.CreateTemp(d.path, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file:\n%w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot:\n%w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot:\n%w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(d.path, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename snapshot:\n%w", err)
	}

	return nil
}

// Get reads a snapshot file.
func (d *Dir) Get(_ context.Context, name string) ([]byte, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid snapshot name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(d.path, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("snapshot %s: %w", name, ErrNoSnapshot)
	}

	return data, err
}

// List implements Archive.
func (d *Dir) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("read archive dir:\n%w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && isSnapshotName(e.Name()) {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

// S3Config holds S3 archive parameters.
type S3Config struct {
	Bucket          string
	Prefix          string // Prefix is prepended to every object key
	Region          string // Region defaults to us-east-1
	Endpoint        string // Endpoint is optional, for S3-compatible servers such as MinIO
	PathStyle       bool
	AccessKeyID     string // AccessKeyID is optional, falls back to the default credential chain
	SecretAccessKey string
}

// S3 is an Archive backed by an S3 bucket.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 creates an S3 archive. optFns adjust the client, e.g. its HTTP transport.
func NewS3(ctx context.Context, cfg S3Config, optFns ...func(*s3.Options)) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config:\n%w", err)
	}

	clientOpts := append([]func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}}, optFns...)

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	return &S3{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// Put implements Archive.
func (a *S3) Put(ctx context.Context, name string, data []byte) error {
	key := a.prefix + name

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &a.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/zstd"),
	})
	if err != nil {
		return fmt.Errorf("put %s:\n%w", key, err)
	}

	return nil
}

// Get implements Archive.
func (a *S3) Get(ctx context.Context, name string) ([]byte, error) {
	key := a.prefix + name

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &a.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("get %s:\n%w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s:\n%w", key, err)
	}

	return data, nil
}

// List implements Archive.
func (a *S3) List(ctx context.Context) ([]string, error) {
	var (
		names []string
		token *string
	)

	for {
		out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &a.bucket,
			Prefix:            &a.prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s:\n%w", a.prefix, err)
		}

		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), a.prefix)
			if isSnapshotName(name) {
				names = append(names, name)
			}
		}

		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}

		break
	}

	sort.Strings(names)

	return names, nil
}

// OpenArchive parses an archive location: "dir:<path>" or "s3://bucket/prefix".
// For S3, base supplies region, endpoint and credentials; bucket and prefix come from location.
func OpenArchive(ctx context.Context, location string, base S3Config) (Archive, error) {
	switch {
	case strings.HasPrefix(location, "dir:"):
		path := strings.TrimPrefix(location, "dir:")
		if path == "" {
			return nil, fmt.Errorf("archive %q: empty directory", location)
		}

		return NewDir(path)

	case strings.HasPrefix(location, "s3://"):
		rest := strings.TrimPrefix(location, "s3://")
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("archive %q: empty bucket", location)
		}

		base.Bucket = bucket
		base.Prefix = prefix

		return NewS3(ctx, base)

	default:
		return nil, fmt.Errorf("archive %q: want dir:<path> or s3://bucket/prefix", location)
	}
}
