package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/repsync/repsync/internal/config"
	"github.com/repsync/repsync/internal/model"
)

// s3FetchConcurrency bounds parallel GetObject calls during a list.
const s3FetchConcurrency = 8

// S3 stores each record as a JSON object under
// <prefix><kind>s/<escaped id>.json.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
	log    *slog.Logger
}

// OpenS3 builds an S3 client for cfg. An empty endpoint uses AWS; otherwise
// path-style addressing is used, as S3-compatible services require.
func OpenS3(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    logger,
	}, nil
}

func (s *S3) Workouts(ctx context.Context) ([]model.Workout, error) {
	return fetchObjects[model.Workout](ctx, s, model.KindWorkout)
}

func (s *S3) SaveWorkout(ctx context.Context, w model.Workout) error {
	return s.put(ctx, model.KindWorkout, w.ID, w)
}

func (s *S3) DeleteWorkout(ctx context.Context, id string) error {
	return s.delete(ctx, model.KindWorkout, id)
}

func (s *S3) Templates(ctx context.Context) ([]model.Template, error) {
	return fetchObjects[model.Template](ctx, s, model.KindTemplate)
}

func (s *S3) SaveTemplate(ctx context.Context, t model.Template) error {
	return s.put(ctx, model.KindTemplate, t.ID, t)
}

func (s *S3) DeleteTemplate(ctx context.Context, id string) error {
	return s.delete(ctx, model.KindTemplate, id)
}

// Close is a no-op; the SDK client holds no connections that need closing.
func (s *S3) Close(context.Context) error { return nil }

func (s *S3) put(ctx context.Context, kind model.Kind, id string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return Permanent(fmt.Errorf("encoding %s %q: %w", kind, id, err))
	}
	key := objectKey(s.prefix, kind, id)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting object %q: %w", key, err)
	}
	return nil
}

func (s *S3) delete(ctx context.Context, kind model.Kind, id string) error {
	key := objectKey(s.prefix, kind, id)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting object %q: %w", key, err)
	}
	return nil
}

// keys lists the object keys holding records of kind.
func (s *S3) keys(ctx context.Context, kind model.Kind) ([]string, error) {
	dir := kindDir(s.prefix, kind)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(dir),
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %q: %w", dir, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if _, ok := parseKey(s.prefix, kind, key); ok {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

// fetchObjects downloads and decodes every record of kind. Objects that
// vanish between list and get, or that do not decode, are skipped.
func fetchObjects[T any](ctx context.Context, s *S3, kind model.Kind) ([]T, error) {
	keys, err := s.keys(ctx, kind)
	if err != nil {
		return nil, err
	}

	vals := make([]T, len(keys))
	found := make([]bool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s3FetchConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			out, err := s.client.GetObject(gctx, &s3.GetObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				var nsk *types.NoSuchKey
				if errors.As(err, &nsk) {
					return nil
				}
				return fmt.Errorf("getting object %q: %w", key, err)
			}
			defer out.Body.Close()

			if err := json.NewDecoder(out.Body).Decode(&vals[i]); err != nil {
				s.log.Warn("skipping undecodable object", "key", key, "error", err)
				return nil
			}
			found[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]T, 0, len(keys))
	for i, ok := range found {
		if ok {
			records = append(records, vals[i])
		}
	}
	return records, nil
}

// --- key codec -------------------------------------------------------------

func kindDir(prefix string, kind model.Kind) string {
	return prefix + kind.String() + "s/"
}

// objectKey returns the object key of a record. The id is path-escaped so
// that ids containing "/" stay one key segment.
func objectKey(prefix string, kind model.Kind, id string) string {
	return kindDir(prefix, kind) + url.PathEscape(id) + ".json"
}

// parseKey reverses objectKey. ok is false for keys that do not name a record
// of kind directly under its directory.
func parseKey(prefix string, kind model.Kind, key string) (id string, ok bool) {
	rest, ok := strings.CutPrefix(key, kindDir(prefix, kind))
	if !ok {
		return "", false
	}
	rest, ok = strings.CutSuffix(rest, ".json")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	id, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return id, true
}
