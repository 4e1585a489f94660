package gstorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/bestsecurity/meetman/server/logger"
	"google.golang.org/api/option"
)

var (
	ErrObjectNotExist = storage.ErrObjectNotExist

	logg = logger.NewLogger()
)

// GStorage wraps a cloud storage client for database backup & restore.
// Objects are stored under the provided prefix, so multiple deployments
// can share a bucket.
type GStorage struct {
	storageClient *storage.Client
	prefix        string
}

func NewGStorage(credentialsFilePath, prefix string) (*GStorage, error) {
	var client *storage.Client
	var err error

	if credentialsFilePath != "" {
		client, err = storage.NewClient(context.Background(), option.WithCredentialsFile(credentialsFilePath))
	} else {
		client, err = storage.NewClient(context.Background())
	}

	if err != nil {
		return nil, fmt.Errorf("NewGStorage: %v", err)
	}

	return &GStorage{storageClient: client, prefix: prefix}, nil
}

// UploadFile uploads a local file as an object named after its base name.
func (gs *GStorage) UploadFile(bucket, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("os.Open: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*50)
	defer cancel()

	object := gs.objectName(filepath.Base(filePath))
	wc := gs.storageClient.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err = io.Copy(wc, f); err != nil {
		return fmt.Errorf("io.Copy: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %v", err)
	}

	logg.Infof("Blob %v uploaded", object)
	return nil
}

// DownloadFile downloads an object to a local file.
func (gs *GStorage) DownloadFile(bucket, object string, destFileName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*50)
	defer cancel()

	rc, err := gs.storageClient.Bucket(bucket).Object(gs.objectName(object)).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		return err
	}
	if err != nil {
		return fmt.Errorf("Object(%q).NewReader: %v", object, err)
	}
	defer rc.Close()

	f, err := os.Create(destFileName)
	if err != nil {
		return fmt.Errorf("os.Create: %v", err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		return fmt.Errorf("io.Copy: %v", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("f.Close: %v", err)
	}

	logg.Infof("Blob %v downloaded to local file %v", object, destFileName)

	return nil
}

func (gs *GStorage) objectName(name string) string {
	if gs.prefix == "" {
		return name
	}
	return strings.TrimSuffix(gs.prefix, "/") + "/" + name
}
