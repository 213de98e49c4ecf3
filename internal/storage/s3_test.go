package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory S3API keyed by bucket/object
type fakeS3 struct {
	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string][]byte
	created  []*s3.CreateBucketInput
	failGets error
}

func newFakeS3(buckets ...string) *fakeS3 {
	f := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGets != nil {
		return nil, f.failGets
	}
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.buckets[*in.Bucket] {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[*in.Bucket] = true
	f.created = append(f.created, in)
	return &s3.CreateBucketOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3("testpersistence")
	store, err := NewS3StoreFromClient(ctx, client, S3Options{Bucket: "testpersistence", PathPrefix: "test_prefix"})
	require.NoError(t, err)

	_, found, err := store.Get(ctx, "app")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, "app", Attributes{"launchCount": 2}))
	assert.Contains(t, client.objects, "testpersistence/test_prefix/app")

	got, found, err := store.Get(ctx, "app")
	require.NoError(t, err)
	require.True(t, found)
	count, _ := got.Int("launchCount")
	assert.Equal(t, 2, count)

	require.NoError(t, store.Delete(ctx, "app"))
	_, found, err = store.Get(ctx, "app")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestS3StoreAutoCreate(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()

	_, err := NewS3StoreFromClient(ctx, client, S3Options{Bucket: "fresh", Region: "eu-west-1", AutoCreate: true})
	require.NoError(t, err)
	require.Len(t, client.created, 1)
	assert.Equal(t, types.BucketLocationConstraint("eu-west-1"), client.created[0].CreateBucketConfiguration.LocationConstraint)

	_, err = NewS3StoreFromClient(ctx, client, S3Options{Bucket: "fresh", Region: "eu-west-1", AutoCreate: true})
	require.NoError(t, err)
	assert.Len(t, client.created, 1)

	_, err = NewS3StoreFromClient(ctx, client, S3Options{Bucket: "east", Region: "us-east-1", AutoCreate: true})
	require.NoError(t, err)
	require.Len(t, client.created, 2)
	assert.Nil(t, client.created[1].CreateBucketConfiguration)
}

func TestS3StoreErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3StoreFromClient(ctx, newFakeS3(), S3Options{})
	assert.Error(t, err)

	client := newFakeS3("b")
	store, err := NewS3StoreFromClient(ctx, client, S3Options{Bucket: "b"})
	require.NoError(t, err)

	client.failGets = errors.New("access denied")
	_, _, err = store.Get(ctx, "app")
	assert.ErrorContains(t, err, "access denied")

	client.failGets = nil
	client.objects["b/app"] = []byte("garbage")
	_, _, err = store.Get(ctx, "app")
	assert.ErrorIs(t, err, ErrMalformedRecord)

	assert.Equal(t, "app", store.objectKey("app"))
}
