// Package minio publishes index files to MinIO or any other S3 compatible
// server through the minio-go client.
//
//	store, err := minio.New("localhost:9000", "indexes",
//	    minio.WithCredentials(accessKey, secretKey),
//	    minio.WithRegion("us-east-1"),
//	    minio.WithPrefix("orders"),
//	)
//	if err != nil {
//	    return err
//	}
//	err = idx.Publish(ctx, store, "status.idx")
//
// Uploads are streamed with an unknown length, so the client splits them
// into parts of PartSize. Objects carry [blobstore.ContentType].
package minio
