package blob

import (
	"context"
	"fmt"
	"path/filepath"
)

// Open constructs the payload store for one environment directory. The
// filesystem driver keeps payloads under <dir>/blobs so an environment
// stays self-contained on disk.
func Open(ctx context.Context, driver Driver, envDir string, s3cfg S3Config) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverFilesystem:
		return NewFilesystem(filepath.Join(envDir, "blobs"))
	case DriverS3:
		return NewS3(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("blob: unknown driver %q", driver)
	}
}
