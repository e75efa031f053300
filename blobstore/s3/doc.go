// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", func(o *s3.Options) {
//	    o.Prefix = "images/"
//	    o.Region = "us-east-1"
//	})
//
//	manifest, err := image.Export(ctx, dev, store, "vol-1")
//
// # Features
//
//   - Range reads for chunk fetches
//   - Multipart streaming uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - Configurable prefix so several volumes can share a bucket
package s3
