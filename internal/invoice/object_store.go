package invoice

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
	"github.com/minio/minio-go/v7"
)

const objectPrefix = "invoices/"

// ObjectStore keeps one JSON object per invoice in an S3 bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

func NewObjectStore(client *minio.Client, bucket string) (*ObjectStore, error) {
	if client == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "minio client cannot be nil")
	}
	if bucket == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "bucket name cannot be empty")
	}
	return &ObjectStore{
		client: client,
		bucket: bucket,
	}, nil
}

func objectName(id uuid.UUID) string {
	return objectPrefix + id.String() + ".json"
}

func (s *ObjectStore) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap(err, id, "failed to get invoice")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrap(err, id, "failed to read invoice")
	}

	var inv Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "failed to decode invoice")
	}
	return &inv, nil
}

func (s *ObjectStore) Put(ctx context.Context, inv *Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(inv)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to encode invoice")
	}

	_, err = s.client.PutObject(
		ctx,
		s.bucket,
		objectName(inv.ID),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return s.wrap(err, inv.ID, "failed to store invoice")
	}
	return nil
}

func (s *ObjectStore) Delete(ctx context.Context, id uuid.UUID) error {
	name := objectName(id)
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err != nil {
		return s.wrap(err, id, "failed to stat invoice")
	}

	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return s.wrap(err, id, "failed to delete invoice")
	}
	return nil
}

func (s *ObjectStore) List(ctx context.Context) ([]*Invoice, error) {
	var out []*Invoice
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    objectPrefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, errors.Wrap(info.Err, errors.CodeDatabase, "failed to list invoices")
		}

		id, err := uuid.Parse(strings.TrimSuffix(path.Base(info.Key), ".json"))
		if err != nil {
			continue
		}

		inv, err := s.Get(ctx, id)
		if err != nil {
			if errors.GetCode(err) == errors.CodeNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, inv)
	}

	sortForListing(out)
	return out, nil
}

func (s *ObjectStore) wrap(err error, id uuid.UUID, msg string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return notFound(id)
	}
	return errors.WithContext(
		errors.Wrap(err, errors.CodeDatabase, msg),
		"invoice_id", id.String(),
	)
}
