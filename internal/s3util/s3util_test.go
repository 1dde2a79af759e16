package s3util

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	put    *s3.PutObjectInput
	putErr error
	body   string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	return &s3.PutObjectOutput{}, f.putErr
}

func (f *fakeS3) GetObject(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestUploadReport(t *testing.T) {
	f := &fakeS3{}
	err := UploadReport(context.Background(), f, "bucket", "reports/a.csv", "text/csv", []byte("Filename\n"))
	if err != nil {
		t.Fatalf("UploadReport: %v", err)
	}
	if *f.put.Bucket != "bucket" || *f.put.Key != "reports/a.csv" || *f.put.ContentType != "text/csv" {
		t.Errorf("unexpected input: %+v", f.put)
	}
	if *f.put.Tagging != "Project=fedpath" {
		t.Errorf("tagging = %q", *f.put.Tagging)
	}
	got, _ := io.ReadAll(f.put.Body)
	if string(got) != "Filename\n" {
		t.Errorf("body = %q", got)
	}
}

func TestUploadReportError(t *testing.T) {
	f := &fakeS3{putErr: errors.New("access denied")}
	err := UploadReport(context.Background(), f, "b", "k", "text/csv", nil)
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestDownloadLimit(t *testing.T) {
	f := &fakeS3{body: "0123456789"}
	if _, err := Download(context.Background(), f, "b", "k", 5); err == nil {
		t.Error("expected size limit error")
	}
	data, err := Download(context.Background(), f, "b", "k", 10)
	if err != nil || string(data) != "0123456789" {
		t.Errorf("Download = %q, %v", data, err)
	}
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri, bucket, key string
		ok               bool
	}{
		{"s3://slides/batch/a.zip", "slides", "batch/a.zip", true},
		{"s3://slides/", "", "", false},
		{"s3://slides", "", "", false},
		{"/tmp/a.zip", "", "", false},
	}
	for _, tt := range tests {
		bucket, key, ok := ParseURI(tt.uri)
		if bucket != tt.bucket || key != tt.key || ok != tt.ok {
			t.Errorf("ParseURI(%q) = %q, %q, %v", tt.uri, bucket, key, ok)
		}
	}
}

func TestReportKey(t *testing.T) {
	ts := time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)
	if got := ReportKey("reports", "batch.csv", ts); got != "reports/2026-03-04/batch.csv" {
		t.Errorf("got %q", got)
	}
}
