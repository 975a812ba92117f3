// Package blobstore moves whole index files between the local disk and
// object storage.
//
// A blob is written through a Writer and only becomes visible under its
// name on Commit, mirroring the rename step of a local index write. A
// failed transfer is aborted and leaves the previous blob in place.
//
// Implementations:
//
//   - LocalStore: a directory tree with part files renamed on commit
//   - MemoryStore: process memory, used for staging and tests
//   - s3.Store: Amazon S3 through the multipart uploader
//   - minio.Store: MinIO and other S3 compatible servers
package blobstore
