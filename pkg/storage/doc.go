// Package storage manages the output directory of a download run.
//
// Layout:
//
//	<output>/images/<id><ext>
//	<output>/tags/<id>.txt
//
// Files are written to a temporary file in the target directory and renamed
// into place, so an interrupted download never leaves a partial image that a
// later run would mistake for a finished one.
//
// Usage:
//
//	manager, err := storage.NewManager("downloads")
//	if err != nil {
//	    return err
//	}
//
//	if !manager.ImageExists("1234.png") {
//	    err = manager.SaveImage("1234.png", func(w io.Writer) error {
//	        _, err := client.Download(ctx, url, w)
//	        return err
//	    })
//	}
package storage
