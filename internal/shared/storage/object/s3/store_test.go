package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"script-backend/internal/shared/storage/object"
)

type fakeS3 struct {
	objects map[string][]byte
	put     *s3.PutObjectInput
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.put = in
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "scripts/a.pdf", want: "scripts/a.pdf"},
		{name: "simple prefix", prefix: "root", key: "scripts/a.pdf", want: "root/scripts/a.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/scripts/a.pdf", want: "root/scripts/a.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestSaveAndOpen(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	s := newStore(fake, "bucket", "uploads/", "kms-1")
	s.now = func() time.Time { return time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC) }

	obj, err := s.Save(context.Background(), "pilot.pdf", strings.NewReader("%PDF-1.5 body"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(obj.Key, "scripts/2025-05-06/") {
		t.Fatalf("key = %q", obj.Key)
	}
	if !strings.HasPrefix(aws.ToString(fake.put.Key), "uploads/scripts/") {
		t.Fatalf("object key = %q", aws.ToString(fake.put.Key))
	}
	if fake.put.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms {
		t.Fatalf("sse = %v", fake.put.ServerSideEncryption)
	}
	if got := fake.put.Metadata["original-name"]; got != "pilot.pdf" {
		t.Fatalf("original-name = %q", got)
	}
	if obj.Size != 13 || obj.MimeType != "application/pdf" {
		t.Fatalf("object = %+v", obj)
	}

	rc, err := s.Open(context.Background(), obj.Key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	if _, err := s.Open(context.Background(), "scripts/missing.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestDeleteUsesPrefixedKey(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"uploads/scripts/a.pdf": []byte("%PDF")}}
	s := newStore(fake, "bucket", "uploads", "")

	if err := s.Delete(context.Background(), "scripts/a.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := fake.objects["uploads/scripts/a.pdf"]; ok {
		t.Fatal("object still present")
	}
	if _, err := s.Open(context.Background(), "scripts/a.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("open after delete err = %v", err)
	}
}
