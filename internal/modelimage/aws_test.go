package modelimage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 records calls in order and can fail any of them.
type fakeS3 struct {
	calls   []string
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	acls    []*s3.PutObjectAclInput

	putErr    error
	aclErr    error
	deleteErr error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls = append(f.calls, "PutObject")
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) PutObjectAcl(_ context.Context, in *s3.PutObjectAclInput, _ ...func(*s3.Options)) (*s3.PutObjectAclOutput, error) {
	f.calls = append(f.calls, "PutObjectAcl")
	if f.aclErr != nil {
		return nil, f.aclErr
	}
	f.acls = append(f.acls, in)
	return &s3.PutObjectAclOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.calls = append(f.calls, "DeleteObject")
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestAWS(client *fakeS3) *AWSManager {
	return newAWSManager(client, AWSConfig{
		Region:           "eu-west-1",
		Bucket:           "model-images",
		CacheMaxAge:      600,
		DefaultImageName: "default-template-icon.png",
	})
}

func TestAWSManager_ChangeImage(t *testing.T) {
	client := newFakeS3()
	m := newTestAWS(client)

	uri, err := m.ChangeImage(context.Background(), "model-7", strings.NewReader("\x89PNG\r\n\x1a\n"))
	if err != nil {
		t.Fatalf("ChangeImage() error = %v", err)
	}
	if want := "https://model-images.s3.eu-west-1.amazonaws.com/model-7"; uri != want {
		t.Errorf("ChangeImage() uri = %q, want %q", uri, want)
	}
	if m.ComputeImageURI("model-7") != uri {
		t.Errorf("ComputeImageURI() = %q, want %q", m.ComputeImageURI("model-7"), uri)
	}

	if len(client.calls) != 2 || client.calls[0] != "PutObject" || client.calls[1] != "PutObjectAcl" {
		t.Fatalf("calls = %v, want [PutObject PutObjectAcl]", client.calls)
	}
	put := client.puts[0]
	if aws.ToString(put.Bucket) != "model-images" || aws.ToString(put.Key) != "model-7" {
		t.Errorf("PutObject bucket/key = %s/%s", aws.ToString(put.Bucket), aws.ToString(put.Key))
	}
	if aws.ToString(put.CacheControl) != "max-age=600, must-revalidate" {
		t.Errorf("CacheControl = %q", aws.ToString(put.CacheControl))
	}
	if aws.ToInt64(put.ContentLength) != 8 {
		t.Errorf("ContentLength = %d, want 8", aws.ToInt64(put.ContentLength))
	}
	if client.acls[0].ACL != types.ObjectCannedACLPublicRead {
		t.Errorf("ACL = %q, want public-read", client.acls[0].ACL)
	}
}

func TestAWSManager_Failures(t *testing.T) {
	vendor := errors.New("AccessDenied")

	tests := []struct {
		name  string
		setup func(*fakeS3)
	}{
		{"put object fails", func(f *fakeS3) { f.putErr = vendor }},
		{"acl fails", func(f *fakeS3) { f.aclErr = vendor }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeS3()
			tt.setup(client)

			_, err := newTestAWS(client).ChangeImage(context.Background(), "m", strings.NewReader("x"))
			if !errors.Is(err, ErrInternalServer) || !errors.Is(err, vendor) {
				t.Errorf("ChangeImage() error = %v, want %v wrapping %v", err, ErrInternalServer, vendor)
			}
		})
	}

	t.Run("acl not attempted after failed put", func(t *testing.T) {
		client := newFakeS3()
		client.putErr = vendor
		_, _ = newTestAWS(client).ChangeImage(context.Background(), "m", strings.NewReader("x"))
		if len(client.calls) != 1 {
			t.Errorf("calls = %v, want only PutObject", client.calls)
		}
	})
}

func TestAWSManager_DeleteImage(t *testing.T) {
	client := newFakeS3()
	m := newTestAWS(client)
	ctx := context.Background()

	if err := m.DeleteImage(ctx, "missing"); err != nil {
		t.Errorf("DeleteImage() on missing key error = %v", err)
	}

	client.deleteErr = &types.NoSuchKey{}
	if err := m.DeleteImage(ctx, "missing"); err != nil {
		t.Errorf("DeleteImage() with NoSuchKey error = %v, want nil", err)
	}

	client.deleteErr = errors.New("SlowDown")
	if err := m.DeleteImage(ctx, "m"); !errors.Is(err, ErrInternalServer) {
		t.Errorf("DeleteImage() error = %v, want %v", err, ErrInternalServer)
	}
}

func TestAWSManager_DefaultImages(t *testing.T) {
	client := newFakeS3()
	m := newTestAWS(client)
	ctx := context.Background()

	if err := m.InitializeDefaultImageBlob(ctx); err != nil {
		t.Fatalf("InitializeDefaultImageBlob() error = %v", err)
	}
	if _, ok := client.objects["default-template-icon.png"]; !ok {
		t.Error("default image not uploaded under its own key")
	}

	uri, err := m.SetDefaultImage(ctx, "model-9")
	if err != nil {
		t.Fatalf("SetDefaultImage() error = %v", err)
	}
	if !strings.HasSuffix(uri, "/model-9") {
		t.Errorf("SetDefaultImage() uri = %q", uri)
	}
	if string(client.objects["model-9"]) != string(DefaultImage()) {
		t.Error("model image is not the default image")
	}
}

func TestAWSManager_SyncImagesCacheControlNotSupported(t *testing.T) {
	client := newFakeS3()
	if err := newTestAWS(client).SyncImagesCacheControl(context.Background()); !errors.Is(err, ErrNotSupported) {
		t.Errorf("SyncImagesCacheControl() error = %v, want %v", err, ErrNotSupported)
	}
	if len(client.calls) != 0 {
		t.Errorf("SyncImagesCacheControl() made calls %v", client.calls)
	}
}

func TestAWSManager_EndpointOverride(t *testing.T) {
	m := newAWSManager(newFakeS3(), AWSConfig{Region: "us-east-1", Bucket: "b", Endpoint: "http://minio:9000/"})
	if got := m.ComputeImageURI("x"); got != "http://minio:9000/b/x" {
		t.Errorf("ComputeImageURI() = %q", got)
	}
}
