package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"backend-navi/internal/apperr"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failOn  string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string][]byte{}}
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failOn != "" && strings.HasSuffix(*in.Key, f.failOn) {
		return nil, errors.New("AccessDenied")
	}
	body, _ := io.ReadAll(in.Body)
	f.mu.Lock()
	f.objects[*in.Key] = body
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, *in.Key)
	f.deleted = append(f.deleted, *in.Key)
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

type fakePresigner struct {
	expires time.Duration
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + *in.Key + "?X-Amz-Signature=abc"}, nil
}

func newTestS3(api *fakeAPI, presigner *fakePresigner) *S3 {
	s := newS3(api, presigner, S3Config{Region: "us-east-1", Bucket: "navi", Timeout: time.Second})
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	s.nonce = func() string { return "a1b2c3d4" }
	return s
}

func TestS3UploadKeyAndURL(t *testing.T) {
	api := newFakeAPI()
	s := newTestS3(api, &fakePresigner{})

	obj, err := s.Upload(context.Background(), File{Name: "../my photo.jpg", ContentType: "image/jpeg", Body: []byte("jpeg")})
	require.NoError(t, err)
	assert.Equal(t, "uploads/1700000000000-a1b2c3d4-my-photo.jpg", obj.Key)
	assert.Equal(t, "https://navi.s3.us-east-1.amazonaws.com/uploads/1700000000000-a1b2c3d4-my-photo.jpg", obj.URL)
	assert.Equal(t, int64(4), obj.Size)
	assert.Equal(t, []byte("jpeg"), api.objects[obj.Key])
}

func TestS3UploadFailureIsIntegrationError(t *testing.T) {
	api := newFakeAPI()
	api.failOn = "a.png"
	s := newTestS3(api, &fakePresigner{})

	_, err := s.Upload(context.Background(), File{Name: "a.png", ContentType: "image/png"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrIntegration))
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.NotContains(t, appErr.Message, "AccessDenied")
}

func TestS3UploadManyAllOrNothing(t *testing.T) {
	api := newFakeAPI()
	api.failOn = "bad.png"
	s := newS3(api, &fakePresigner{}, S3Config{Bucket: "navi", Endpoint: "http://minio:9000"})

	_, err := s.UploadMany(context.Background(), []File{
		{Name: "one.png", Body: []byte("1")},
		{Name: "bad.png", Body: []byte("2")},
		{Name: "three.png", Body: []byte("3")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrIntegration))
	assert.Empty(t, api.objects, "successful uploads must be cleaned up")
}

func TestS3UploadManyPreservesOrder(t *testing.T) {
	api := newFakeAPI()
	s := newS3(api, &fakePresigner{}, S3Config{Bucket: "navi", Endpoint: "http://minio:9000/"})

	objs, err := s.UploadMany(context.Background(), []File{{Name: "a.png"}, {Name: "b.png"}})
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.True(t, strings.HasSuffix(objs[0].Key, "-a.png"))
	assert.True(t, strings.HasPrefix(objs[1].URL, "http://minio:9000/navi/uploads/"))
}

func TestS3UploadManySameNameKeepsBoth(t *testing.T) {
	api := newFakeAPI()
	s := newS3(api, &fakePresigner{}, S3Config{Bucket: "navi", Region: "us-east-1"})
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }

	objs, err := s.UploadMany(context.Background(), []File{
		{Name: "image.jpg", Body: []byte("first")},
		{Name: "image.jpg", Body: []byte("second")},
	})
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.NotEqual(t, objs[0].Key, objs[1].Key)
	assert.Len(t, api.objects, 2)
	assert.Equal(t, []byte("first"), api.objects[objs[0].Key])
	assert.Equal(t, []byte("second"), api.objects[objs[1].Key])
}

func TestS3DeleteByURL(t *testing.T) {
	api := newFakeAPI()
	s := newTestS3(api, &fakePresigner{})

	obj, err := s.Upload(context.Background(), File{Name: "a.png"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(context.Background(), obj.URL))
	assert.Equal(t, []string{obj.Key}, api.deleted)

	err = s.Delete(context.Background(), "https://elsewhere.example/uploads/x.png")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestS3SignedURLDefaultTTL(t *testing.T) {
	presigner := &fakePresigner{}
	s := newTestS3(newFakeAPI(), presigner)

	u, err := s.SignedURL(context.Background(), "uploads/1-a.png", 0)
	require.NoError(t, err)
	assert.Contains(t, u, "uploads/1-a.png")
	assert.Equal(t, DefaultSignedTTL, presigner.expires)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "evil.sh", sanitizeName("../../evil.sh"))
	assert.Equal(t, "win.txt", sanitizeName(`C:\temp\win.txt`))
	assert.Equal(t, "file", sanitizeName(""))
}
