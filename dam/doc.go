// Package dam is a client for the DAM (digital asset management) HTTP API.
//
// Client runs each call on the caller's goroutine. AsyncClient runs calls on a
// bounded worker pool and returns a Future per call. Both share the same request
// pipeline: credential headers, a retry policy with exponential backoff, an
// optional circuit breaker and bearer token, and response classification into
// *Error values.
//
//	client, err := dam.NewClient(dam.DefaultConfig("http://localhost:55055", keyID, keySecret))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	file, err := client.UploadFile(ctx, dam.FromPath("photo.jpg"), &models.UploadOptions{FolderID: "f1"})
//	if errors.Is(err, dam.ErrFileTooLarge) {
//		...
//	}
//
// Files can also be copied between the DAM and an object store from package
// storage with Client.MirrorFile and Client.ImportFile.
package dam
