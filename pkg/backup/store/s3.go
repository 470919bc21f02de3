package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"mercator-hq/backstop/pkg/backup"
)

const (
	statusObjectName = "status.json"
	rangesDir        = "ranges"

	// Concurrent GetObject calls while listing statuses.
	defaultS3FetchConcurrency = 8
)

// S3Config contains configuration for the S3 store.
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string // Custom endpoint for S3-compatible storage
	AccessKeyID     string // Static credentials; the default chain is used when empty
	SecretAccessKey string
	ForcePathStyle  bool

	// FetchConcurrency bounds concurrent status downloads.
	// Default: 8
	FetchConcurrency int
}

// ObjectAPI is the subset of the S3 client used by S3Store.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Store implements backup.Store on S3 object storage.
//
// Object layout:
//
//	<prefix>/<partition>/<checkpoint>/<node>/status.json
//	<prefix>/ranges/<partition>/<kind>-<checkpoint>
//
// Range markers are empty objects; their key carries all the information.
type S3Store struct {
	client ObjectAPI
	config S3Config
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewS3Store creates an S3 store using the AWS default configuration chain,
// overridden by the static credentials and endpoint in cfg when set.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, backup.NewStoreError("s3", "open", errors.New("bucket cannot be empty"))
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, backup.NewStoreError("s3", "load_config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewS3StoreWithClient(client, cfg), nil
}

// NewS3StoreWithClient creates an S3 store on an existing client.
func NewS3StoreWithClient(client ObjectAPI, cfg S3Config) *S3Store {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = defaultS3FetchConcurrency
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")

	return &S3Store{
		client: client,
		config: cfg,
		logger: slog.Default().With("component", "backup.store.s3", "bucket", cfg.Bucket),
	}
}

// List returns the statuses matched by the wildcard, sorted by identifier.
// The listing prefix is narrowed to the partition, and to the checkpoint for
// exact checkpoint patterns.
func (s *S3Store) List(ctx context.Context, wildcard backup.Wildcard) ([]backup.Status, error) {
	if err := s.checkOpen("list"); err != nil {
		return nil, err
	}

	keys, err := s.listKeys(ctx, s.statusPrefix(wildcard))
	if err != nil {
		return nil, backup.NewStoreError("s3", "list", err)
	}

	var matched []string
	for _, key := range keys {
		id, ok := s.parseStatusKey(key)
		if ok && wildcard.Matches(id) {
			matched = append(matched, key)
		}
	}

	statuses := make([]*backup.Status, len(matched))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.FetchConcurrency)
	for i, key := range matched {
		g.Go(func() error {
			status, err := s.getStatus(gctx, key)
			if err != nil {
				return err
			}
			statuses[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, backup.NewStoreError("s3", "get", err)
	}

	results := []backup.Status{}
	for _, status := range statuses {
		if status != nil {
			results = append(results, *status)
		}
	}

	slices.SortFunc(results, compareStatuses)
	return results, nil
}

// Save writes the status object of a backup.
func (s *S3Store) Save(ctx context.Context, status backup.Status) error {
	if err := s.checkOpen("save"); err != nil {
		return err
	}
	if err := status.Validate(); err != nil {
		return backup.NewStoreError("s3", "save", err)
	}

	data, err := json.Marshal(status)
	if err != nil {
		return backup.NewStoreError("s3", "save", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(s.statusKey(status.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return backup.NewStoreError("s3", "save", err)
	}
	return nil
}

// Delete removes the status object of a backup. S3 deletes are idempotent.
func (s *S3Store) Delete(ctx context.Context, id backup.Identifier) error {
	if err := s.checkOpen("delete"); err != nil {
		return err
	}

	if err := s.deleteObject(ctx, s.statusKey(id)); err != nil {
		return backup.NewStoreError("s3", "delete", err)
	}
	return nil
}

// RangeMarkers returns the markers of a partition sorted by checkpoint and kind.
// Keys that do not parse as markers are skipped.
func (s *S3Store) RangeMarkers(ctx context.Context, partition int) ([]backup.RangeMarker, error) {
	if err := s.checkOpen("list_markers"); err != nil {
		return nil, err
	}

	prefix := s.join(rangesDir, strconv.Itoa(partition)) + "/"
	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return nil, backup.NewStoreError("s3", "list_markers", err)
	}

	markers := []backup.RangeMarker{}
	for _, key := range keys {
		marker, ok := parseMarkerName(strings.TrimPrefix(key, prefix))
		if !ok {
			s.logger.Warn("skipping unrecognized range marker object", "key", key)
			continue
		}
		markers = append(markers, marker)
	}

	slices.SortFunc(markers, backup.CompareMarkers)
	return markers, nil
}

// StoreRangeMarker writes an empty marker object.
func (s *S3Store) StoreRangeMarker(ctx context.Context, partition int, marker backup.RangeMarker) error {
	if err := s.checkOpen("store_marker"); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.markerKey(partition, marker)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return backup.NewStoreError("s3", "store_marker", err)
	}
	return nil
}

// DeleteRangeMarker removes a marker object.
func (s *S3Store) DeleteRangeMarker(ctx context.Context, partition int, marker backup.RangeMarker) error {
	if err := s.checkOpen("delete_marker"); err != nil {
		return err
	}

	if err := s.deleteObject(ctx, s.markerKey(partition, marker)); err != nil {
		return backup.NewStoreError("s3", "delete_marker", err)
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (s *S3Store) Ping(ctx context.Context) error {
	if err := s.checkOpen("ping"); err != nil {
		return err
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.config.Bucket)})
	if err != nil {
		return backup.NewStoreError("s3", "ping", err)
	}
	return nil
}

// Close marks the store closed. The S3 client holds no resources to release.
func (s *S3Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (s *S3Store) checkOpen(operation string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return backup.NewStoreError("s3", operation, backup.ErrStoreClosed)
	}
	return nil
}

func (s *S3Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return keys, nil
}

// getStatus downloads and decodes a status object. It returns nil when the
// object was deleted after it was listed.
func (s *S3Store) getStatus(ctx context.Context, key string) (*backup.Status, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var status backup.Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return &status, nil
}

func (s *S3Store) deleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3Store) join(parts ...string) string {
	if s.config.Prefix != "" {
		parts = append([]string{s.config.Prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func (s *S3Store) statusKey(id backup.Identifier) string {
	return s.join(
		strconv.Itoa(id.PartitionID),
		strconv.FormatInt(id.CheckpointID, 10),
		strconv.Itoa(id.NodeID),
		statusObjectName,
	)
}

func (s *S3Store) statusPrefix(wildcard backup.Wildcard) string {
	if wildcard.PartitionID == nil {
		if s.config.Prefix == "" {
			return ""
		}
		return s.config.Prefix + "/"
	}

	partition := strconv.Itoa(*wildcard.PartitionID)
	if iv, ok := wildcard.Checkpoint.Interval(); ok && iv.Start() == iv.End() {
		return s.join(partition, strconv.FormatInt(iv.Start(), 10)) + "/"
	}
	return s.join(partition) + "/"
}

// parseStatusKey extracts the identifier from a status object key.
func (s *S3Store) parseStatusKey(key string) (backup.Identifier, bool) {
	if s.config.Prefix != "" {
		rest, ok := strings.CutPrefix(key, s.config.Prefix+"/")
		if !ok {
			return backup.Identifier{}, false
		}
		key = rest
	}

	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[3] != statusObjectName {
		return backup.Identifier{}, false
	}

	partition, err := strconv.Atoi(parts[0])
	if err != nil {
		return backup.Identifier{}, false
	}
	checkpoint, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return backup.Identifier{}, false
	}
	node, err := strconv.Atoi(parts[2])
	if err != nil {
		return backup.Identifier{}, false
	}

	return backup.Identifier{NodeID: node, PartitionID: partition, CheckpointID: checkpoint}, true
}

func (s *S3Store) markerKey(partition int, marker backup.RangeMarker) string {
	return s.join(rangesDir, strconv.Itoa(partition), fmt.Sprintf("%s-%d", marker.Kind, marker.CheckpointID))
}

// parseMarkerName parses "<kind>-<checkpoint>". Checkpoint ids may be negative.
func parseMarkerName(name string) (backup.RangeMarker, bool) {
	kindName, id, ok := strings.Cut(name, "-")
	if !ok {
		return backup.RangeMarker{}, false
	}
	kind, err := backup.ParseMarkerKind(kindName)
	if err != nil {
		return backup.RangeMarker{}, false
	}
	checkpointID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return backup.RangeMarker{}, false
	}
	return backup.RangeMarker{Kind: kind, CheckpointID: checkpointID}, true
}
