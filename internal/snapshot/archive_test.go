package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestName_SortsByTime(t *testing.T) {
	early := Name(time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC))
	late := Name(time.Date(2026, 1, 2, 3, 4, 5, 7, time.UTC))

	if !(early < late) {
		t.Errorf("names not time ordered: %s >= %s", early, late)
	}

	if !isSnapshotName(early) {
		t.Errorf("Name produced unrecognized name %s", early)
	}
}

func TestDir_PutGetList(t *testing.T) {
	ctx := context.Background()

	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}

	if _, err := Latest(ctx, d); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Latest on empty dir err = %v, want ErrNoSnapshot", err)
	}

	older := Name(time.Unix(100, 0))
	newer := Name(time.Unix(200, 0))

	_ = d.Put(ctx, newer, []byte("new"))
	_ = d.Put(ctx, older, []byte("old"))
	_ = d.Put(ctx, "notes.txt", []byte("ignored"))

	names, err := d.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(names) != 2 || names[0] != older || names[1] != newer {
		t.Errorf("List = %v, want [%s %s]", names, older, newer)
	}

	latest, _ := Latest(ctx, d)
	if latest != newer {
		t.Errorf("Latest = %s, want %s", latest, newer)
	}

	data, err := d.Get(ctx, newer)
	if err != nil || string(data) != "new" {
		t.Errorf("Get = %q, %v", data, err)
	}

	if _, err := d.Get(ctx, "../escape"); err == nil {
		t.Error("expected error for path outside archive")
	}
}

// fakeS3 is an in-memory S3 endpoint handling path-style PUT, GET and ListObjectsV2.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")

	respond := func(status int, body string) *http.Response {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{"Content-Type": {"application/xml"}},
			Request:    req,
		}
	}

	switch {
	case req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2":
		prefix := req.URL.Query().Get("prefix")

		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(f.objects[k]))
		}
		b.WriteString(`</ListBucketResult>`)

		return respond(http.StatusOK, b.String()), nil

	case req.Method == http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = body

		return respond(http.StatusOK, ""), nil

	case req.Method == http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, `<Error><Code>NoSuchKey</Code></Error>`), nil
		}

		resp := respond(http.StatusOK, "")
		resp.Body = io.NopCloser(bytes.NewReader(body))
		resp.Header.Set("Content-Length", fmt.Sprint(len(body)))

		return resp, nil
	}

	return respond(http.StatusNotImplemented, ""), nil
}

// newFakeS3Archive returns an S3 archive talking to an in-memory endpoint.
func newFakeS3Archive(t *testing.T, prefix string) (*S3, *fakeS3) {
	t.Helper()

	fake := &fakeS3{objects: make(map[string][]byte)}

	a, err := NewS3(context.Background(), S3Config{
		Bucket:          "snapshots",
		Prefix:          prefix,
		Endpoint:        "https://s3.test.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	if err != nil {
		t.Fatalf("NewS3 failed: %v", err)
	}

	return a, fake
}

func TestS3_PutGetList(t *testing.T) {
	ctx := context.Background()
	a, fake := newFakeS3Archive(t, "/ledger/prod/")

	name := Name(time.Unix(300, 0))
	if err := a.Put(ctx, name, []byte("payload")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, ok := fake.objects["ledger/prod/"+name]; !ok {
		t.Errorf("object not stored under prefixed key, have %v", fake.objects)
	}

	fake.objects["ledger/prod/unrelated.json"] = []byte("{}")

	names, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(names) != 1 || names[0] != name {
		t.Errorf("List = %v, want [%s]", names, name)
	}

	data, err := a.Get(ctx, name)
	if err != nil || string(data) != "payload" {
		t.Errorf("Get = %q, %v", data, err)
	}

	if _, err := a.Get(ctx, "missing"); err == nil {
		t.Error("expected error for missing object")
	}
}

func TestOpenArchive(t *testing.T) {
	ctx := context.Background()

	a, err := OpenArchive(ctx, "dir:"+t.TempDir(), S3Config{})
	if err != nil {
		t.Fatalf("OpenArchive dir failed: %v", err)
	}

	if _, ok := a.(*Dir); !ok {
		t.Errorf("expected *Dir, got %T", a)
	}

	a, err = OpenArchive(ctx, "s3://bucket/some/prefix", S3Config{AccessKeyID: "AKIA", SecretAccessKey: "SECRET"})
	if err != nil {
		t.Fatalf("OpenArchive s3 failed: %v", err)
	}

	s3a, ok := a.(*S3)
	if !ok {
		t.Fatalf("expected *S3, got %T", a)
	}

	if s3a.bucket != "bucket" || s3a.prefix != "some/prefix/" {
		t.Errorf("bucket/prefix = %s/%s", s3a.bucket, s3a.prefix)
	}

	for _, bad := range []string{"", "dir:", "s3://", "ftp://host/x"} {
		if _, err := OpenArchive(ctx, bad, S3Config{}); err == nil {
			t.Errorf("OpenArchive(%q) succeeded, want error", bad)
		}
	}
}
