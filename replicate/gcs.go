// replicate/gcs.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package replicate

import (
	"bytes"
	"hash/crc32"
	"io"
	"io/ioutil"
	"strconv"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/net/context"
	"google.golang.org/api/iterator"
)

// GCSOptions configures NewGCSStorage.
type GCSOptions struct {
	BucketName string
	ProjectId  string
	// Optional. Will use "us-central1" if not specified.
	Location string

	// zero -> unlimited
	MaxUploadBytesPerSecond   int
	MaxDownloadBytesPerSecond int
}

// GCS implements a direct-SDK alternative to the external-tool-based
// Driver for operators who don't want an rclone dependency. It offers
// List, FetchObject and SendObject against a GCS bucket of archives;
// List shares Driver's ListResult and ParseListing rules, while
// FetchObject and SendObject move one object's bytes at a time rather
// than taking path lists like Driver.Fetch and Driver.Send.
type GCS struct {
	ctx    context.Context
	client *gcs.Client
	bucket *gcs.BucketHandle
}

// NewGCSStorage connects to (and creates, if necessary) the given bucket.
func NewGCSStorage(options GCSOptions) (*GCS, error) {
	g := &GCS{ctx: context.Background()}

	var err error
	g.client, err = gcs.NewClient(g.ctx)
	if err != nil {
		return nil, err
	}

	g.bucket = g.client.Bucket(options.BucketName)
	if _, err := g.bucket.Attrs(g.ctx); err == gcs.ErrBucketNotExist {
		loc := options.Location
		if loc == "" {
			loc = "us-central1"
		}
		if log != nil {
			log.Verbose("%s: creating bucket @ %s", options.BucketName, loc)
		}
		if err := g.bucket.Create(g.ctx, options.ProjectId, &gcs.BucketAttrs{Location: loc}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if options.MaxUploadBytesPerSecond > 0 || options.MaxDownloadBytesPerSecond > 0 {
		InitBandwidthLimit(options.MaxUploadBytesPerSecond, options.MaxDownloadBytesPerSecond)
	}

	return g, nil
}

// List enumerates every object under prefix and applies the same
// size-match/archive-name parsing ParseListing applies to rclone output.
func (g *GCS) List(prefix string) ListResult {
	res := ListResult{Index: make(map[string]FileInfo)}

	it := g.bucket.Objects(g.ctx, &gcs.Query{Prefix: prefix})
	for {
		obj, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			res.OtherFiles = append(res.OtherFiles, prefix+": "+err.Error())
			break
		}

		name := obj.Name
		for i := len(name) - 1; i >= 0; i-- {
			if name[i] == '/' {
				name = name[i+1:]
				break
			}
		}

		oneLine := ParseListing(strconv.FormatInt(obj.Size, 10)+" "+name, obj.Created)
		for k, v := range oneLine.Index {
			res.Index[k] = v
		}
		res.BadFiles = append(res.BadFiles, oneLine.BadFiles...)
		res.OtherFiles = append(res.OtherFiles, oneLine.OtherFiles...)
	}

	return res
}

// FetchObject downloads one archive from the bucket.
func (g *GCS) FetchObject(name string) ([]byte, error) {
	obj := g.bucket.Object(name)
	r, err := obj.NewReader(g.ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(NewLimitedDownloadReader(r))
}

// SendObject uploads one archive's bytes to the bucket, verifying the CRC
// GCS reports against one computed locally.
func (g *GCS) SendObject(name string, data []byte) error {
	obj := g.bucket.Object(name)
	w := obj.NewWriter(g.ctx)
	w.ChunkSize = 256 * 1024

	r := NewLimitedUploadReader(bytes.NewReader(data))
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	localCrc := crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli))
	if gcsCrc := w.Attrs().CRC32C; localCrc != gcsCrc {
		return errCrcMismatch
	}
	return nil
}

var errCrcMismatch = &crcError{}

type crcError struct{}

func (*crcError) Error() string { return "replicate: CRC32 checksum mismatch after GCS upload" }
