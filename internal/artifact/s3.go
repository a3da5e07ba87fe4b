package artifact

import (
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/dmarinho/rollback-engine/pkg/models"
)

// S3API defines the S3 operations used by S3Store
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// S3Store implements Store using an S3-compatible backend. Versioned
// artifact sets live under {prefix}/{environment}/{version}/ and the
// environment's live set under {prefix}/{environment}/current/.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Store creates a new S3Store
func NewS3Store(client S3API, bucket, prefix string, logger zerolog.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "artifact").Logger(),
	}
}

// versionPrefix returns the S3 key prefix for a versioned artifact set
func (s *S3Store) versionPrefix(environment models.Environment, version string) string {
	return path.Join(s.prefix, string(environment), version) + "/"
}

// livePrefix returns the S3 key prefix for the environment's live set
func (s *S3Store) livePrefix(environment models.Environment) string {
	return path.Join(s.prefix, string(environment), "current") + "/"
}

// Locate verifies at least one object exists for the version
func (s *S3Store) Locate(ctx context.Context, environment models.Environment, version string) error {
	prefix := s.versionPrefix(environment, version)

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("failed to list artifacts at %s: %w", prefix, err)
	}

	if len(out.Contents) == 0 {
		return fmt.Errorf("%w for %s version %s", ErrArtifactsNotFound, environment, version)
	}

	return nil
}

// Restore copies every object of the versioned set over the live set
func (s *S3Store) Restore(ctx context.Context, environment models.Environment, version string) (int, error) {
	srcPrefix := s.versionPrefix(environment, version)
	dstPrefix := s.livePrefix(environment)

	restored := 0
	var continuationToken *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(srcPrefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return restored, fmt.Errorf("failed to list artifacts at %s: %w", srcPrefix, err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			dstKey := dstPrefix + key[len(srcPrefix):]

			_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
				Bucket:     aws.String(s.bucket),
				CopySource: aws.String(s.bucket + "/" + key),
				Key:        aws.String(dstKey),
			})
			if err != nil {
				return restored, fmt.Errorf("failed to restore artifact %s: %w", key, err)
			}
			restored++
		}

		if out.NextContinuationToken == nil {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	if restored == 0 {
		return 0, fmt.Errorf("%w for %s version %s", ErrArtifactsNotFound, environment, version)
	}

	s.logger.Info().
		Str("environment", string(environment)).
		Str("version", version).
		Int("objects", restored).
		Msg("Artifact set restored")

	return restored, nil
}
