// Package blobstore provides authenticated access to a remote object-storage
// account: upload content, enumerate a container and check whether a named
// object exists.
//
// Uploads adapt to payload size. Below the threshold (100 MiB by default) the
// whole payload is written with one request. At or above it the payload is
// streamed into parts that a bounded pool of workers uploads concurrently
// through a multipart session, which is committed only when every part
// succeeded and aborted otherwise.
//
// Every failure carries a kind from the errors package: configuration,
// invalid input, transport, transfer, catalog or cancelled. Cancellation
// through the context is reported as its own kind, never as a failed
// transfer.
//
// Example usage:
//
//	cfg, err := blobstore.LoadConfig()
//	if err != nil {
//	    return err
//	}
//	client, err := blobstore.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//
//	result, err := client.UploadFile(ctx, "backups", "db/2025-10-01.dump", "/var/backups/db.dump")
//	if err != nil {
//	    return err
//	}
//
//	objects, err := client.ListObjects(ctx, "backups")
package blobstore
