// Package s3 publishes index files to Amazon S3.
//
//	store, err := s3.New(ctx, "indexes",
//	    s3.WithRegion("eu-central-1"),
//	    s3.WithPrefix("orders"),
//	)
//	if err != nil {
//	    return err
//	}
//	err = idx.Publish(ctx, store, "status.idx")
//
// Uploads go through the multipart uploader of the AWS SDK, so an index of
// any size is streamed without buffering it whole. WithEndpoint points the
// store at an S3 compatible server instead.
package s3
