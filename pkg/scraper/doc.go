// Package scraper runs one download session against a booru site.
//
// A run walks the listing page by page, filters each post, and persists the
// accepted ones as an image plus a tag text file:
//
//	<output>/images/<id><ext>
//	<output>/tags/<id>.txt
//
// Every accepted post counts toward output.max_images, whether it was
// downloaded or already on disk. Images already present are never fetched
// again, so a rerun over the same directory is cheap and converges on the
// same set of files. Download failures are logged and skipped; a failed page
// request ends pagination without failing the run.
//
// Usage:
//
//	cfg, err := config.Load("", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s, err := scraper.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := s.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Downloaded, result.StopReason)
//
// Concurrency:
//
// Downloads run on download.concurrent_downloads workers, one page at a time.
// The producer reserves a slot in the download budget before handing a post to
// the pool, so the image count never passes max_images.
package scraper
